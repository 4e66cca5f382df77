package repository

import (
	"context"
	"errors"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"gorm.io/gorm"
)

var ErrAccountTypeNotFound = errors.New("账户类型不存在")

type AccountTypeRepository struct {
	db *gorm.DB
}

func NewAccountTypeRepository(db *gorm.DB) *AccountTypeRepository {
	return &AccountTypeRepository{db: db}
}

func (r *AccountTypeRepository) GetByID(ctx context.Context, typeID int64) (*model.AccountType, error) {
	var accountType model.AccountType
	err := r.db.WithContext(ctx).Where("id = ?", typeID).First(&accountType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountTypeNotFound
		}
		return nil, err
	}
	return &accountType, nil
}

func (r *AccountTypeRepository) List(ctx context.Context) ([]*model.AccountType, error) {
	var types []*model.AccountType
	err := r.db.WithContext(ctx).Order("id ASC").Find(&types).Error
	return types, err
}
