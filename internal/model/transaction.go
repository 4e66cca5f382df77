package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionKindDeposit     = "DEPOSIT"      // 存款
	TransactionKindWithdrawal  = "WITHDRAWAL"   // 取款
	TransactionKindTransferOut = "TRANSFER_OUT" // 转账转出
	TransactionKindTransferIn  = "TRANSFER_IN"  // 转账转入
)

// ============================================================================
// 交易流水实体
// ============================================================================

// TransactionRecord 账户交易流水表
// 记录账户的每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 记录交易后余额 —— 同一账户最新一条流水的 balance_after 必须等于账户当前余额
// 3. 转账的两条流水通过 counter_account_id 互相关联（0 表示非转账流水）
type TransactionRecord struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	AccountID        int64           `gorm:"index;not null" json:"account_id"`
	Kind             string          `gorm:"type:varchar(20);not null" json:"kind"`
	Amount           decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"` // 恒为正数，方向由 kind 表达
	BalanceAfter     decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance_after"`
	CounterAccountID int64           `gorm:"not null;default:0" json:"counter_account_id"` // 对手账户，0 表示无
	Description      string          `gorm:"type:varchar(256)" json:"description"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_record"
}
