package job

import (
	"context"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/config"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"

	"gorm.io/gorm"
)

// LedgerCheckJob 账实核对任务
// 逐批扫描账户，核对账户余额和最后一条流水的 balance_after 是否一致
// 发现不一致只告警，不自动修数
type LedgerCheckJob struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewLedgerCheckJob(db *gorm.DB, cfg *config.Config) *LedgerCheckJob {
	interval := 30 * time.Minute
	if cfg != nil && cfg.Business.ReconcileScanMinutes > 0 {
		interval = time.Duration(cfg.Business.ReconcileScanMinutes) * time.Minute
	}
	return &LedgerCheckJob{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		stopCh:          make(chan struct{}),
		interval:        interval,
		batchSize:       200,
	}
}

func (j *LedgerCheckJob) Start(ctx context.Context) {
	log.Println("[LedgerCheckJob] 账实核对任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerCheckJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LedgerCheckJob] 任务停止")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *LedgerCheckJob) Stop() {
	close(j.stopCh)
}

func (j *LedgerCheckJob) reconcile(ctx context.Context) {
	var afterID int64
	checked, mismatched := 0, 0

	for {
		accounts, err := j.accountRepo.ListAfterID(ctx, afterID, j.batchSize)
		if err != nil {
			log.Printf("[LedgerCheckJob] 扫描账户失败: afterID=%d, err=%v", afterID, err)
			return
		}
		if len(accounts) == 0 {
			break
		}

		for _, account := range accounts {
			afterID = account.ID
			checked++

			latest, err := j.transactionRepo.GetLatestByAccountID(ctx, account.ID)
			if err != nil {
				log.Printf("[LedgerCheckJob] 查询流水失败: accountID=%d, err=%v", account.ID, err)
				continue
			}
			if latest == nil {
				// 无流水的账户余额必须为零
				if !account.Balance.IsZero() {
					mismatched++
					log.Printf("[LedgerCheckJob] 账实不符: accountNo=%s, balance=%s, 无流水",
						account.AccountNo, account.Balance.StringFixed(2))
				}
				continue
			}

			if !account.Balance.Equal(latest.BalanceAfter) {
				mismatched++
				log.Printf("[LedgerCheckJob] 账实不符: accountNo=%s, balance=%s, lastBalanceAfter=%s, txn=%s",
					account.AccountNo, account.Balance.StringFixed(2),
					latest.BalanceAfter.StringFixed(2), latest.TransactionNo)
			}
		}
	}

	if mismatched > 0 {
		log.Printf("[LedgerCheckJob] 核对完成: 检查 %d 个账户，发现 %d 处不一致", checked, mismatched)
	}
}
