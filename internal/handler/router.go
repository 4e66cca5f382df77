package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 客户相关
		customer := api.Group("/customer")
		{
			customer.POST("/create", h.CreateCustomer)
		}

		// 账户相关
		account := api.Group("/account")
		{
			account.POST("/open", h.OpenAccount)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.GET("/balance", h.GetBalance)
			account.GET("/detail", h.GetAccountByNo)
			account.GET("/list", h.ListAccounts)
			account.GET("/types", h.ListAccountTypes)
			account.GET("/transaction", h.GetTransaction)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/close", h.CloseAccount)
		}

		// 转账相关
		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		// 贷款相关
		loan := api.Group("/loan")
		{
			loan.POST("/apply", h.ApplyLoan)
			loan.POST("/approve", h.ApproveLoan)
			loan.POST("/reject", h.RejectLoan)
			loan.POST("/disburse", h.DisburseLoan)
			loan.POST("/payment", h.MakeLoanPayment)
			loan.GET("/detail", h.GetLoan)
			loan.GET("/list", h.ListLoans)
			loan.GET("/payments", h.ListLoanPayments)
		}

		// 审计相关
		audit := api.Group("/audit")
		{
			audit.GET("/list", h.ListAudit)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
