package model

import (
	"time"
)

// AuditStatusOverdue 逾期告警使用的审计状态标记
// 不是贷款表的合法状态，仅出现在审计日志中
const AuditStatusOverdue = "OVERDUE"

// AuditEntry 审计日志表
// 记录贷款状态变更和系统级事件，只追加，不提供修改和删除
// loan_id = 0 表示系统级事件（如账户关闭、对账告警）
type AuditEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanID    int64     `gorm:"index;not null;default:0" json:"loan_id"`
	OldStatus string    `gorm:"type:varchar(20)" json:"old_status"`
	NewStatus string    `gorm:"type:varchar(20)" json:"new_status"`
	Actor     string    `gorm:"type:varchar(64);not null" json:"actor"`
	Remarks   string    `gorm:"type:varchar(256)" json:"remarks"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "audit_entry"
}
