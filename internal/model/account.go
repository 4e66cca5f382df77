package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive    = "ACTIVE"
	AccountStatusClosed    = "CLOSED"
	AccountStatusSuspended = "SUSPENDED"
)

// AccountType 账户类型表
// 参考数据，系统初始化时写入，之后不可变更
type AccountType struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TypeName     string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"type_name"`
	MinBalance   decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"min_balance"`  // 最低余额要求
	InterestRate decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"interest_rate"` // 年利率（百分比）
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (AccountType) TableName() string {
	return "account_type"
}

// Account 账户表
// 余额是整个核心引擎的权威数据，只允许通过存款/取款/转账操作变更
//
// 【不变式】status = ACTIVE 时，balance >= 账户类型的 min_balance
type Account struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_no"`
	CustomerID    int64           `gorm:"index;not null" json:"customer_id"`
	AccountTypeID int64           `gorm:"not null" json:"account_type_id"`
	Balance       decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance"`
	Status        string          `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	Version       int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	OpenedAt      time.Time       `gorm:"autoCreateTime" json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	AccountType *AccountType `gorm:"foreignKey:AccountTypeID" json:"account_type,omitempty"`
}

func (Account) TableName() string {
	return "account"
}
