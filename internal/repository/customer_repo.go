package repository

import (
	"context"
	"errors"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound = errors.New("客户不存在")
	ErrCustomerInactive = errors.New("客户状态不可用")
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, customerID int64) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where("id = ?", customerID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// CheckActive 开户和贷款申请的客户状态前置校验
func (r *CustomerRepository) CheckActive(ctx context.Context, customerID int64) error {
	customer, err := r.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer.Status != model.CustomerStatusActive {
		return ErrCustomerInactive
	}
	return nil
}
