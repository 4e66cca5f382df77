package job

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/config"
	"github.com/shivam8897/dubeys-banking-management-system/internal/model"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"

	"gorm.io/gorm"
)

// LoanOverdueJob 贷款逾期扫描任务
// 放款后经过的整月数达到期数仍未结清的贷款视为逾期
// 逾期只产生一次性的审计标记和告警事件，不改变贷款状态
type LoanOverdueJob struct {
	db         *gorm.DB
	loanRepo   *repository.LoanRepository
	auditRepo  *repository.AuditRepository
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewLoanOverdueJob(db *gorm.DB, cfg *config.Config) *LoanOverdueJob {
	interval := 10 * time.Minute
	if cfg != nil && cfg.Business.OverdueScanMinutes > 0 {
		interval = time.Duration(cfg.Business.OverdueScanMinutes) * time.Minute
	}
	return &LoanOverdueJob{
		db:         db,
		loanRepo:   repository.NewLoanRepository(db),
		auditRepo:  repository.NewAuditRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
	}
}

func (j *LoanOverdueJob) Start(ctx context.Context) {
	log.Println("[LoanOverdueJob] 贷款逾期扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LoanOverdueJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[LoanOverdueJob] 任务停止")
			return
		case <-ticker.C:
			j.scanOverdueLoans(ctx)
		}
	}
}

func (j *LoanOverdueJob) Stop() {
	close(j.stopCh)
}

func (j *LoanOverdueJob) scanOverdueLoans(ctx context.Context) {
	loans, err := j.loanRepo.GetByStatus(ctx, model.LoanStatusDisbursed, j.batchSize)
	if err != nil {
		log.Printf("[LoanOverdueJob] 查询放款中贷款失败: %v", err)
		return
	}

	for _, loan := range loans {
		if loan.DisbursedAt == nil {
			continue
		}
		if monthsSince(*loan.DisbursedAt, time.Now()) < loan.TenureMonths {
			continue
		}
		j.markOverdue(ctx, loan)
	}
}

func (j *LoanOverdueJob) markOverdue(ctx context.Context, loan *model.Loan) {
	// 已经标记过的贷款不再重复告警
	exists, err := j.auditRepo.ExistsOverdueEntry(ctx, loan.ID)
	if err != nil {
		log.Printf("[LoanOverdueJob] 查询逾期标记失败: loanNo=%s, err=%v", loan.LoanNo, err)
		return
	}
	if exists {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event_type":  "loan_overdue",
		"loan_no":     loan.LoanNo,
		"customer_id": loan.CustomerID,
		"outstanding": loan.Outstanding.StringFixed(2),
		"timestamp":   time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[LoanOverdueJob] 序列化告警事件失败: loanNo=%s, err=%v", loan.LoanNo, err)
		return
	}

	err = j.db.Transaction(func(tx *gorm.DB) error {
		entry := &model.AuditEntry{
			LoanID:    loan.ID,
			OldStatus: model.LoanStatusDisbursed,
			NewStatus: model.AuditStatusOverdue,
			Actor:     "system",
			Remarks:   "贷款超过期限仍未结清",
		}
		if err := j.auditRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		msg := &model.OutboxMessage{
			MessageKey: loan.LoanNo,
			Topic:      j.overdueAlertTopic(),
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return j.outboxRepo.Create(ctx, tx, msg)
	})

	if err != nil {
		log.Printf("[LoanOverdueJob] 标记逾期失败: loanNo=%s, err=%v", loan.LoanNo, err)
		return
	}

	log.Printf("[LoanOverdueJob] 贷款逾期告警: loanNo=%s, outstanding=%s",
		loan.LoanNo, loan.Outstanding.StringFixed(2))
}

func (j *LoanOverdueJob) overdueAlertTopic() string {
	if j.cfg != nil && j.cfg.Kafka.Topic.OverdueAlert != "" {
		return j.cfg.Kafka.Topic.OverdueAlert
	}
	return "banking.loan.overdue"
}

// monthsSince 计算两个时间点之间经过的整月数
func monthsSince(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
