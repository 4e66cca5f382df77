package repository

import (
	"context"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"gorm.io/gorm"
)

type LoanPaymentRepository struct {
	db *gorm.DB
}

func NewLoanPaymentRepository(db *gorm.DB) *LoanPaymentRepository {
	return &LoanPaymentRepository{db: db}
}

func (r *LoanPaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.LoanPayment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *LoanPaymentRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*model.LoanPayment, error) {
	var payments []*model.LoanPayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}
