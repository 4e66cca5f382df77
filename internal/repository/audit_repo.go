package repository

import (
	"context"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"gorm.io/gorm"
)

// AuditRepository 审计日志仓储
// 只暴露追加和按写入顺序遍历，没有更新和删除
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.AuditEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) List(ctx context.Context, page, pageSize int) ([]*model.AuditEntry, int64, error) {
	var entries []*model.AuditEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AuditEntry{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

func (r *AuditRepository) ListByLoanID(ctx context.Context, loanID int64) ([]*model.AuditEntry, error) {
	var entries []*model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// ExistsOverdueEntry 该贷款是否已经写过逾期告警
// 逾期扫描是周期任务，靠这个判断保证每笔贷款只告警一次
func (r *AuditRepository) ExistsOverdueEntry(ctx context.Context, loanID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AuditEntry{}).
		Where("loan_id = ? AND new_status = ?", loanID, model.AuditStatusOverdue).
		Count(&count).Error
	return count > 0, err
}
