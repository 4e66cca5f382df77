package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrLoanNotFound      = errors.New("贷款不存在")
	ErrLoanStatusInvalid = errors.New("贷款状态不允许该操作")
)

type LoanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, tx *gorm.DB, loan *model.Loan) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(loan).Error
}

func (r *LoanRepository) GetByID(ctx context.Context, loanID int64) (*model.Loan, error) {
	var loan model.Loan
	err := r.db.WithContext(ctx).Where("id = ?", loanID).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) GetByLoanNo(ctx context.Context, loanNo string) (*model.Loan, error) {
	var loan model.Loan
	err := r.db.WithContext(ctx).Where("loan_no = ?", loanNo).First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// UpdateStatus 贷款状态转换
//
// 先查状态机合法性，再用条件更新（WHERE status = fromStatus）兜底并发：
// 两个并发的审批只有一个能命中，另一个拿到 ErrLoanStatusInvalid
func (r *LoanRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, loanID int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrLoanStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status":  toStatus,
		"version": gorm.Expr("version + 1"),
	}

	now := time.Now()
	switch toStatus {
	case model.LoanStatusApproved:
		updates["approved_at"] = &now
	case model.LoanStatusDisbursed:
		updates["disbursed_at"] = &now
		// 放款时未还本金重新确认为本金全额
		updates["outstanding"] = gorm.Expr("principal")
	}

	result := tx.WithContext(ctx).
		Model(&model.Loan{}).
		Where("id = ? AND status = ?", loanID, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrLoanStatusInvalid
	}

	return nil
}

// ApplyPayment 还款入账（CAS）
//
// 未还本金的更新用版本号保护：两笔并发还款只有一笔能基于旧值成功，
// 另一笔必须重读后重算利息本金拆分
func (r *LoanRepository) ApplyPayment(ctx context.Context, tx *gorm.DB, loanID int64, newOutstanding decimal.Decimal, closed bool, version int) error {
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"outstanding": newOutstanding,
		"version":     gorm.Expr("version + 1"),
	}
	if closed {
		updates["status"] = model.LoanStatusClosed
	}

	result := tx.WithContext(ctx).
		Model(&model.Loan{}).
		Where("id = ? AND status = ? AND version = ?", loanID, model.LoanStatusDisbursed, version).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var loan model.Loan
		err := r.db.WithContext(ctx).Where("id = ?", loanID).First(&loan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status != model.LoanStatusDisbursed {
			return ErrLoanStatusInvalid
		}
		return ErrOptimisticLock
	}

	return nil
}

func (r *LoanRepository) ListByCustomerID(ctx context.Context, customerID int64, page, pageSize int) ([]*model.Loan, int64, error) {
	var loans []*model.Loan
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Loan{}).Where("customer_id = ?", customerID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&loans).Error

	return loans, total, err
}

func (r *LoanRepository) GetByStatus(ctx context.Context, status string, limit int) ([]*model.Loan, error) {
	var loans []*model.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Limit(limit).
		Find(&loans).Error
	return loans, err
}

// HasOpenLoans 客户是否还有未结清贷款（审批通过或已放款）
// 账户关闭的前置检查
func (r *LoanRepository) HasOpenLoans(ctx context.Context, customerID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Loan{}).
		Where("customer_id = ? AND status IN ?", customerID, []string{model.LoanStatusApproved, model.LoanStatusDisbursed}).
		Count(&count).Error
	return count > 0, err
}
