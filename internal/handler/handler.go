package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"
	"github.com/shivam8897/dubeys-banking-management-system/internal/service"
	"github.com/shivam8897/dubeys-banking-management-system/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService  *service.AccountService
	transferService *service.TransferService
	loanService     *service.LoanService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client) *Handler {
	return &Handler{
		accountService:  service.NewAccountService(db),
		transferService: service.NewTransferService(db, rdb),
		loanService:     service.NewLoanService(db, rdb),
	}
}

// fail 把领域错误翻译成业务错误码，未识别的错误按服务器错误返回
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, repository.ErrAccountInactive):
		response.BusinessError(c, response.CodeAccountInactive, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrBelowMinimumDeposit),
		errors.Is(err, service.ErrInvalidLoanType), errors.Is(err, service.ErrInvalidLoanTerms):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, service.ErrSameAccount):
		response.BusinessError(c, response.CodeSameAccount, err.Error())
	case errors.Is(err, repository.ErrLoanNotFound):
		response.BusinessError(c, response.CodeLoanNotFound, err.Error())
	case errors.Is(err, repository.ErrLoanStatusInvalid), errors.Is(err, service.ErrAccountHasOpenLoans),
		errors.Is(err, repository.ErrAccountNotEmpty):
		response.BusinessError(c, response.CodeLoanStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrCustomerNotFound):
		response.BusinessError(c, response.CodeCustomerNotFound, err.Error())
	case errors.Is(err, repository.ErrCustomerInactive):
		response.BusinessError(c, response.CodeCustomerInactive, err.Error())
	case errors.Is(err, repository.ErrOptimisticLock):
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	case errors.Is(err, service.ErrAccountOwnerMismatch):
		response.BusinessError(c, response.CodeOwnerMismatch, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 客户相关接口
// ============================================================

// CreateCustomerRequest 客户建档请求
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

// CreateCustomer 客户建档
// POST /api/v1/customer/create
func (h *Handler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	customer, err := h.accountService.CreateCustomer(c.Request.Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"customer_id": customer.ID,
		"status":      customer.Status,
	})
}

// ============================================================
// 账户相关接口
// ============================================================

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	CustomerID     int64  `json:"customer_id" binding:"required"`
	AccountTypeID  int64  `json:"account_type_id" binding:"required"`
	InitialDeposit string `json:"initial_deposit" binding:"required"`
}

// OpenAccount 开户
// POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	initialDeposit, err := decimal.NewFromString(req.InitialDeposit)
	if err != nil {
		response.ParamError(c, "initial_deposit 金额格式错误")
		return
	}

	account, err := h.accountService.OpenAccount(c.Request.Context(), req.CustomerID, req.AccountTypeID, initialDeposit)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.ID,
		"account_no": account.AccountNo,
		"balance":    account.Balance.StringFixed(2),
		"status":     account.Status,
	})
}

// MutationRequest 存取款请求
type MutationRequest struct {
	AccountID   int64  `json:"account_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// Deposit 存款
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.mutate(c, h.accountService.Deposit)
}

// Withdraw 取款
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.mutate(c, h.accountService.Withdraw)
}

func (h *Handler) mutate(c *gin.Context, op func(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (decimal.Decimal, error)) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 金额格式错误")
		return
	}

	newBalance, err := op(c.Request.Context(), req.AccountID, amount, req.Description)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": req.AccountID,
		"balance":    newBalance.StringFixed(2),
	})
}

// GetBalance 查询账户余额
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{
		"account_id": account.ID,
		"account_no": account.AccountNo,
		"balance":    account.Balance.StringFixed(2),
		"status":     account.Status,
	}
	if account.AccountType != nil {
		resp["account_type"] = account.AccountType.TypeName
		resp["min_balance"] = account.AccountType.MinBalance.StringFixed(2)
	}
	response.Success(c, resp)
}

// GetAccountByNo 按账号查询账户
// GET /api/v1/account/detail?account_no=xxx
func (h *Handler) GetAccountByNo(c *gin.Context) {
	accountNo := c.Query("account_no")
	if accountNo == "" {
		response.ParamError(c, "account_no 参数不能为空")
		return
	}

	account, err := h.accountService.GetAccountByNo(c.Request.Context(), accountNo)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{
		"account_id":  account.ID,
		"account_no":  account.AccountNo,
		"customer_id": account.CustomerID,
		"balance":     account.Balance.StringFixed(2),
		"status":      account.Status,
	}
	if account.AccountType != nil {
		resp["account_type"] = account.AccountType.TypeName
	}
	response.Success(c, resp)
}

// ListAccounts 查询客户名下全部账户
// GET /api/v1/account/list?customer_id=xxx
func (h *Handler) ListAccounts(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	accounts, err := h.accountService.ListAccounts(c.Request.Context(), customerID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"list": accounts, "total": len(accounts)})
}

// ListAccountTypes 查询可开户的账户类型
// GET /api/v1/account/types
func (h *Handler) ListAccountTypes(c *gin.Context) {
	types, err := h.accountService.ListAccountTypes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"list": types, "total": len(types)})
}

// GetTransaction 按流水号查询单笔流水
// GET /api/v1/account/transaction?transaction_no=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	transactionNo := c.Query("transaction_no")
	if transactionNo == "" {
		response.ParamError(c, "transaction_no 参数不能为空")
		return
	}

	record, err := h.accountService.GetTransaction(c.Request.Context(), transactionNo)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, record)
}

// ListTransactions 查询账户流水
// GET /api/v1/account/transactions?account_id=xxx&page=1&page_size=10
// 带 from/to（RFC3339）时返回区间内全部流水
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr != "" && toStr != "" {
		from, err1 := time.Parse(time.RFC3339, fromStr)
		to, err2 := time.Parse(time.RFC3339, toStr)
		if err1 != nil || err2 != nil {
			response.ParamError(c, "from/to 时间格式错误，需要 RFC3339")
			return
		}

		records, err := h.accountService.ListTransactionsByRange(c.Request.Context(), accountID, from, to)
		if err != nil {
			fail(c, err)
			return
		}
		response.Success(c, gin.H{"list": records, "total": len(records)})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.accountService.ListTransactions(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CloseAccount 关闭账户
// POST /api/v1/account/close
func (h *Handler) CloseAccount(c *gin.Context) {
	var req struct {
		AccountID int64  `json:"account_id" binding:"required"`
		Actor     string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.CloseAccount(c.Request.Context(), req.AccountID, req.Actor); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "账户已关闭"})
}

// ============================================================
// 转账相关接口
// ============================================================

// TransferRequest 转账请求
type TransferRequest struct {
	FromAccountID int64  `json:"from_account_id" binding:"required"`
	ToAccountID   int64  `json:"to_account_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Description   string `json:"description"`
}

// Transfer 转账
// POST /api/v1/transfer/execute
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 金额格式错误")
		return
	}

	result, err := h.transferService.Transfer(c.Request.Context(), req.FromAccountID, req.ToAccountID, amount, req.Description)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 贷款相关接口
// ============================================================

// ApplyLoanRequest 贷款申请请求
type ApplyLoanRequest struct {
	CustomerID   int64  `json:"customer_id" binding:"required"`
	LoanType     string `json:"loan_type" binding:"required"`
	Principal    string `json:"principal" binding:"required"`
	InterestRate string `json:"interest_rate" binding:"required"`
	TenureMonths int    `json:"tenure_months" binding:"required,gt=0"`
	Actor        string `json:"actor" binding:"required"`
}

// ApplyLoan 贷款申请
// POST /api/v1/loan/apply
func (h *Handler) ApplyLoan(c *gin.Context) {
	var req ApplyLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	principal, err1 := decimal.NewFromString(req.Principal)
	rate, err2 := decimal.NewFromString(req.InterestRate)
	if err1 != nil || err2 != nil {
		response.ParamError(c, "principal/interest_rate 金额格式错误")
		return
	}

	loan, err := h.loanService.Apply(c.Request.Context(), req.CustomerID, req.LoanType, principal, rate, req.TenureMonths, req.Actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"loan_id": loan.ID,
		"loan_no": loan.LoanNo,
		"emi":     loan.EMI.StringFixed(2),
		"status":  loan.Status,
	})
}

// LoanDecisionRequest 审批请求
type LoanDecisionRequest struct {
	LoanID  int64  `json:"loan_id" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
	Remarks string `json:"remarks"`
}

// ApproveLoan 审批通过
// POST /api/v1/loan/approve
func (h *Handler) ApproveLoan(c *gin.Context) {
	h.decide(c, h.loanService.Approve)
}

// RejectLoan 审批拒绝
// POST /api/v1/loan/reject
func (h *Handler) RejectLoan(c *gin.Context) {
	h.decide(c, h.loanService.Reject)
}

func (h *Handler) decide(c *gin.Context, op func(ctx context.Context, loanID int64, actor, remarks string) error) {
	var req LoanDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := op(c.Request.Context(), req.LoanID, req.Actor, req.Remarks); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "审批完成"})
}

// DisburseLoanRequest 放款请求
type DisburseLoanRequest struct {
	LoanID          int64  `json:"loan_id" binding:"required"`
	TargetAccountID int64  `json:"target_account_id" binding:"required"`
	Actor           string `json:"actor" binding:"required"`
}

// DisburseLoan 放款
// POST /api/v1/loan/disburse
func (h *Handler) DisburseLoan(c *gin.Context) {
	var req DisburseLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.loanService.Disburse(c.Request.Context(), req.LoanID, req.TargetAccountID, req.Actor); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "放款成功"})
}

// LoanPaymentRequest 还款请求
type LoanPaymentRequest struct {
	LoanID int64  `json:"loan_id" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
}

// MakeLoanPayment 还款
// POST /api/v1/loan/payment
func (h *Handler) MakeLoanPayment(c *gin.Context) {
	var req LoanPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 金额格式错误")
		return
	}

	payment, err := h.loanService.MakePayment(c.Request.Context(), req.LoanID, amount, req.Actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"payment_no":        payment.PaymentNo,
		"principal_part":    payment.PrincipalPart.StringFixed(2),
		"interest_part":     payment.InterestPart.StringFixed(2),
		"outstanding_after": payment.OutstandingAfter.StringFixed(2),
	})
}

// GetLoan 查询贷款详情
// GET /api/v1/loan/detail?loan_no=xxx
func (h *Handler) GetLoan(c *gin.Context) {
	loanNo := c.Query("loan_no")
	if loanNo == "" {
		response.ParamError(c, "loan_no 参数不能为空")
		return
	}

	loan, err := h.loanService.GetLoanByNo(c.Request.Context(), loanNo)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, loan)
}

// ListLoans 查询客户贷款列表
// GET /api/v1/loan/list?customer_id=xxx&page=1&page_size=10
func (h *Handler) ListLoans(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "customer_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	loans, total, err := h.loanService.ListLoans(c.Request.Context(), customerID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      loans,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListLoanPayments 查询还款记录
// GET /api/v1/loan/payments?loan_id=xxx
func (h *Handler) ListLoanPayments(c *gin.Context) {
	loanID, err := strconv.ParseInt(c.Query("loan_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "loan_id 参数错误")
		return
	}

	payments, err := h.loanService.ListPayments(c.Request.Context(), loanID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"list": payments, "total": len(payments)})
}

// ============================================================
// 审计相关接口
// ============================================================

// ListAudit 查询审计日志
// GET /api/v1/audit/list?page=1&page_size=10，带 loan_id 时只看单笔贷款
func (h *Handler) ListAudit(c *gin.Context) {
	if loanIDStr := c.Query("loan_id"); loanIDStr != "" {
		loanID, err := strconv.ParseInt(loanIDStr, 10, 64)
		if err != nil {
			response.ParamError(c, "loan_id 参数错误")
			return
		}
		entries, err := h.loanService.ListLoanAudit(c.Request.Context(), loanID)
		if err != nil {
			fail(c, err)
			return
		}
		response.Success(c, gin.H{"list": entries, "total": len(entries)})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	entries, total, err := h.loanService.ListAuditTrail(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
