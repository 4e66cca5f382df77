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
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrAccountInactive  = errors.New("账户状态不可用")
	ErrBalanceNotEnough = errors.New("余额不足（不能低于账户类型最低余额）")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrAccountNotEmpty  = errors.New("账户余额不为零，不能关闭")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Preload("AccountType").
		Where("id = ?", accountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByAccountNo(ctx context.Context, accountNo string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Preload("AccountType").
		Where("account_no = ?", accountNo).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Deposit 入账（CAS）
//
// 条件更新：账户必须是 ACTIVE 且版本号未变，避免并发写丢失
func (r *AccountRepository) Deposit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND status = ? AND version = ?", accountID, model.AccountStatusActive, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return r.classifyConflict(ctx, accountID, decimal.Zero, decimal.Zero)
	}

	return nil
}

// Withdraw 出账（CAS）
//
// 最低余额约束直接写进 WHERE 条件：balance - amount >= minBalance，
// 条件不满足时一行都不会更新，取款和流水在事务里一起回滚
func (r *AccountRepository) Withdraw(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal, minBalance decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND status = ? AND version = ? AND balance - ? >= ?",
			accountID, model.AccountStatusActive, version, amount, minBalance).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return r.classifyConflict(ctx, accountID, amount, minBalance)
	}

	return nil
}

// classifyConflict 条件更新没有命中时，区分到底是哪种失败
func (r *AccountRepository) classifyConflict(ctx context.Context, accountID int64, amount, minBalance decimal.Decimal) error {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if account.Status != model.AccountStatusActive {
		return ErrAccountInactive
	}
	if amount.IsPositive() && account.Balance.Sub(amount).LessThan(minBalance) {
		return ErrBalanceNotEnough
	}
	return ErrOptimisticLock
}

// Close 关闭账户（状态转换，物理上永不删除）
func (r *AccountRepository) Close(ctx context.Context, tx *gorm.DB, accountID int64, version int) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND status = ? AND version = ? AND balance = ?",
			accountID, model.AccountStatusActive, version, decimal.Zero).
		Updates(map[string]interface{}{
			"status":    model.AccountStatusClosed,
			"closed_at": &now,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var account model.Account
		err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Status != model.AccountStatusActive {
			return ErrAccountInactive
		}
		if !account.Balance.IsZero() {
			return ErrAccountNotEmpty
		}
		return ErrOptimisticLock
	}

	return nil
}

func (r *AccountRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Preload("AccountType").
		Where("customer_id = ?", customerID).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

// ListAfterID 按主键分批扫描，供后台对账任务使用
func (r *AccountRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
