package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanStatusPending   = "PENDING"
	LoanStatusApproved  = "APPROVED"
	LoanStatusRejected  = "REJECTED"
	LoanStatusDisbursed = "DISBURSED"
	LoanStatusClosed    = "CLOSED"
)

// ValidLoanStatusTransitions 贷款状态机
// REJECTED 和 CLOSED 是终态，不出现在 key 中
var ValidLoanStatusTransitions = map[string][]string{
	LoanStatusPending:   {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:  {LoanStatusDisbursed},
	LoanStatusDisbursed: {LoanStatusClosed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidLoanStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	LoanTypePersonal = "PERSONAL"
	LoanTypeHome     = "HOME"
	LoanTypeCar      = "CAR"
	LoanTypeBusiness = "BUSINESS"
)

func IsValidLoanType(loanType string) bool {
	switch loanType {
	case LoanTypePersonal, LoanTypeHome, LoanTypeCar, LoanTypeBusiness:
		return true
	}
	return false
}

// Loan 贷款表
// 状态只允许通过贷款状态机变更，outstanding 只允许通过还款操作变更
type Loan struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"loan_no"`
	CustomerID   int64           `gorm:"index;not null" json:"customer_id"`
	LoanType     string          `gorm:"type:varchar(20);not null" json:"loan_type"`
	Principal    decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"principal"`
	InterestRate decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"interest_rate"` // 年利率（百分比）
	TenureMonths int             `gorm:"not null" json:"tenure_months"`
	EMI          decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"emi"`
	Outstanding  decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"outstanding"`
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Version      int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	AppliedAt    time.Time       `gorm:"autoCreateTime" json:"applied_at"`
	ApprovedAt   *time.Time      `json:"approved_at"`
	DisbursedAt  *time.Time      `json:"disbursed_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string {
	return "loan"
}

// LoanPayment 还款记录表
// 只追加，不修改；principal_part + interest_part 必须等于 amount（2位小数内）
type LoanPayment struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	LoanID           int64           `gorm:"index;not null" json:"loan_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"`
	PrincipalPart    decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"principal_part"`
	InterestPart     decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"interest_part"`
	OutstandingAfter decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"outstanding_after"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LoanPayment) TableName() string {
	return "loan_payment"
}
