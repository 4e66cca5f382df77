package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/config"
	"github.com/shivam8897/dubeys-banking-management-system/internal/infrastructure/lock"
	"github.com/shivam8897/dubeys-banking-management-system/internal/model"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"
	"github.com/shivam8897/dubeys-banking-management-system/pkg/emi"
	"github.com/shivam8897/dubeys-banking-management-system/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidLoanType      = errors.New("不支持的贷款类型")
	ErrInvalidLoanTerms     = errors.New("贷款本金、利率、期数必须大于0")
	ErrAccountOwnerMismatch = errors.New("放款账户不属于该贷款客户")
)

// LoanService 贷款服务
// 覆盖贷款从申请到结清的完整生命周期：
// PENDING → APPROVED → DISBURSED → CLOSED（申请阶段也可能被 REJECTED）
// 每一次状态变化都在同一事务内写入审计日志和 outbox 事件
type LoanService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	customerRepo    *repository.CustomerRepository
	loanRepo        *repository.LoanRepository
	loanPaymentRepo *repository.LoanPaymentRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	auditRepo       *repository.AuditRepository
	outboxRepo      *repository.OutboxRepository
}

func NewLoanService(db *gorm.DB, redisClient *redis.Client) *LoanService {
	return &LoanService{
		db:              db,
		redisClient:     redisClient,
		customerRepo:    repository.NewCustomerRepository(db),
		loanRepo:        repository.NewLoanRepository(db),
		loanPaymentRepo: repository.NewLoanPaymentRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		auditRepo:       repository.NewAuditRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// Apply 贷款申请
// 月供在申请时一次性算定，后续生命周期内不再改变
func (s *LoanService) Apply(ctx context.Context, customerID int64, loanType string, principal, annualRate decimal.Decimal, tenureMonths int, actor string) (*model.Loan, error) {
	if !model.IsValidLoanType(loanType) {
		return nil, ErrInvalidLoanType
	}
	if !principal.IsPositive() || !annualRate.IsPositive() || tenureMonths <= 0 {
		return nil, ErrInvalidLoanTerms
	}

	if err := s.customerRepo.CheckActive(ctx, customerID); err != nil {
		return nil, err
	}

	monthlyEMI, err := emi.ComputeEMI(principal, annualRate, tenureMonths)
	if err != nil {
		return nil, err
	}

	loan := &model.Loan{
		LoanNo:       idgen.GenerateLoanNo(),
		CustomerID:   customerID,
		LoanType:     loanType,
		Principal:    principal,
		InterestRate: annualRate,
		TenureMonths: tenureMonths,
		EMI:          monthlyEMI,
		Outstanding:  principal,
		Status:       model.LoanStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loanRepo.Create(ctx, tx, loan); err != nil {
			return fmt.Errorf("创建贷款失败: %w", err)
		}
		if err := s.writeAudit(ctx, tx, loan.ID, "", model.LoanStatusPending, actor, "贷款申请"); err != nil {
			return err
		}
		return s.writeLoanEvent(ctx, tx, loan, "loan_applied")
	})

	if err != nil {
		return nil, err
	}

	log.Printf("贷款申请成功: loanNo=%s, customerID=%d, principal=%s, emi=%s",
		loan.LoanNo, customerID, principal.StringFixed(2), monthlyEMI.StringFixed(2))

	return loan, nil
}

// Approve 审批通过，仅允许 PENDING → APPROVED
func (s *LoanService) Approve(ctx context.Context, loanID int64, actor, remarks string) error {
	return s.decide(ctx, loanID, model.LoanStatusApproved, "loan_approved", actor, remarks)
}

// Reject 审批拒绝，仅允许 PENDING → REJECTED；REJECTED 是终态
func (s *LoanService) Reject(ctx context.Context, loanID int64, actor, remarks string) error {
	return s.decide(ctx, loanID, model.LoanStatusRejected, "loan_rejected", actor, remarks)
}

func (s *LoanService) decide(ctx context.Context, loanID int64, toStatus, eventType, actor, remarks string) error {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loanRepo.UpdateStatus(ctx, tx, loanID, model.LoanStatusPending, toStatus); err != nil {
			return err
		}
		if err := s.writeAudit(ctx, tx, loanID, model.LoanStatusPending, toStatus, actor, remarks); err != nil {
			return err
		}
		loan.Status = toStatus
		return s.writeLoanEvent(ctx, tx, loan, eventType)
	})

	if err != nil {
		return err
	}

	log.Printf("贷款审批完成: loanNo=%s, status=%s, actor=%s", loan.LoanNo, toStatus, actor)
	return nil
}

// Disburse 放款
// 状态转换、账户入账、入账流水、审计、outbox 五项必须同一事务内生效
func (s *LoanService) Disburse(ctx context.Context, loanID, targetAccountID int64, actor string) error {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != model.LoanStatusApproved {
		return repository.ErrLoanStatusInvalid
	}

	account, err := s.accountRepo.GetByID(ctx, targetAccountID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountStatusActive {
		return repository.ErrAccountInactive
	}
	// 放款只能进借款人本人名下的账户
	if account.CustomerID != loan.CustomerID {
		return ErrAccountOwnerMismatch
	}

	newBalance := account.Balance.Add(loan.Principal)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loanRepo.UpdateStatus(ctx, tx, loanID, model.LoanStatusApproved, model.LoanStatusDisbursed); err != nil {
			return err
		}

		if err := s.accountRepo.Deposit(ctx, tx, targetAccountID, loan.Principal, account.Version); err != nil {
			return err
		}

		record := &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     targetAccountID,
			Kind:          model.TransactionKindDeposit,
			Amount:        loan.Principal,
			BalanceAfter:  newBalance,
			Description:   fmt.Sprintf("贷款放款: %s", loan.LoanNo),
		}
		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录放款流水失败: %w", err)
		}

		if err := s.writeAudit(ctx, tx, loanID, model.LoanStatusApproved, model.LoanStatusDisbursed, actor, fmt.Sprintf("放款至账户 %s", account.AccountNo)); err != nil {
			return err
		}

		loan.Status = model.LoanStatusDisbursed
		return s.writeLoanEvent(ctx, tx, loan, "loan_disbursed")
	})

	if err != nil {
		return err
	}

	log.Printf("放款成功: loanNo=%s, accountID=%d, principal=%s",
		loan.LoanNo, targetAccountID, loan.Principal.StringFixed(2))

	return nil
}

// MakePayment 还款
// 还款额先抵扣当期利息，剩余冲减本金；余额降到零时贷款自动结清
func (s *LoanService) MakePayment(ctx context.Context, loanID int64, amount decimal.Decimal, actor string) (*model.LoanPayment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if s.redisClient != nil {
		loanLock := lock.NewLoanLock(s.redisClient, loanID, idgen.GeneratePaymentNo())
		if err := loanLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("获取贷款锁失败: %w", err)
		}
		defer loanLock.Unlock(context.Background())
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != model.LoanStatusDisbursed {
		return nil, repository.ErrLoanStatusInvalid
	}

	interestPart, principalPart, newOutstanding := emi.SplitPayment(loan.Outstanding, loan.InterestRate, amount)
	closed := newOutstanding.IsZero()

	payment := &model.LoanPayment{
		PaymentNo:        idgen.GeneratePaymentNo(),
		LoanID:           loanID,
		Amount:           amount,
		PrincipalPart:    principalPart,
		InterestPart:     interestPart,
		OutstandingAfter: newOutstanding,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loanPaymentRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("创建还款记录失败: %w", err)
		}

		if err := s.loanRepo.ApplyPayment(ctx, tx, loanID, newOutstanding, closed, loan.Version); err != nil {
			return err
		}

		if closed {
			if err := s.writeAudit(ctx, tx, loanID, model.LoanStatusDisbursed, model.LoanStatusClosed, actor, "贷款结清，自动关闭"); err != nil {
				return err
			}
			loan.Status = model.LoanStatusClosed
			loan.Outstanding = newOutstanding
			return s.writeLoanEvent(ctx, tx, loan, "loan_closed")
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("还款成功: loanNo=%s, amount=%s, outstanding=%s, closed=%v",
		loan.LoanNo, amount.StringFixed(2), newOutstanding.StringFixed(2), closed)

	return payment, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID int64) (*model.Loan, error) {
	return s.loanRepo.GetByID(ctx, loanID)
}

func (s *LoanService) GetLoanByNo(ctx context.Context, loanNo string) (*model.Loan, error) {
	return s.loanRepo.GetByLoanNo(ctx, loanNo)
}

func (s *LoanService) ListLoans(ctx context.Context, customerID int64, page, pageSize int) ([]*model.Loan, int64, error) {
	return s.loanRepo.ListByCustomerID(ctx, customerID, page, pageSize)
}

func (s *LoanService) ListPayments(ctx context.Context, loanID int64) ([]*model.LoanPayment, error) {
	return s.loanPaymentRepo.ListByLoanID(ctx, loanID)
}

func (s *LoanService) ListAuditTrail(ctx context.Context, page, pageSize int) ([]*model.AuditEntry, int64, error) {
	return s.auditRepo.List(ctx, page, pageSize)
}

func (s *LoanService) ListLoanAudit(ctx context.Context, loanID int64) ([]*model.AuditEntry, error) {
	return s.auditRepo.ListByLoanID(ctx, loanID)
}

func (s *LoanService) writeAudit(ctx context.Context, tx *gorm.DB, loanID int64, oldStatus, newStatus, actor, remarks string) error {
	entry := &model.AuditEntry{
		LoanID:    loanID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Actor:     actor,
		Remarks:   remarks,
	}
	if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

// writeLoanEvent 贷款事件先落 outbox，由后台任务异步投递到 Kafka
func (s *LoanService) writeLoanEvent(ctx context.Context, tx *gorm.DB, loan *model.Loan, eventType string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event_type":  eventType,
		"loan_no":     loan.LoanNo,
		"customer_id": loan.CustomerID,
		"status":      loan.Status,
		"outstanding": loan.Outstanding.StringFixed(2),
		"timestamp":   time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("序列化贷款事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: loan.LoanNo,
		Topic:      loanEventsTopic(),
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入outbox失败: %w", err)
	}
	return nil
}

func loanEventsTopic() string {
	if config.GlobalConfig != nil && config.GlobalConfig.Kafka.Topic.LoanEvents != "" {
		return config.GlobalConfig.Kafka.Topic.LoanEvents
	}
	return "banking.loan.events"
}
