package repository

import (
	"context"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
)

// TransferLogRepository 转账审计记录仓储
type TransferLogRepository struct {
	*BaseRepo
}

// NewTransferLogRepository 创建转账记录仓储
func NewTransferLogRepository(db *gorm.DB) *TransferLogRepository {
	return &TransferLogRepository{BaseRepo: NewBaseRepo(db)}
}

// Create 写入记录
func (r *TransferLogRepository) Create(ctx context.Context, log *models.TransferLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入转账记录失败")
	}
	return nil
}

// List 按完成时间倒序分页
func (r *TransferLogRepository) List(ctx context.Context, page *Pagination) ([]models.TransferLog, error) {
	var logs []models.TransferLog
	db := r.db.WithContext(ctx).Model(&models.TransferLog{})
	if err := db.Count(&page.Total).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	err := db.Scopes(Paginate(page)).
		Order("completed_at DESC, id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return logs, nil
}

// FindByTransactionID 按交易号查找
func (r *TransferLogRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]models.TransferLog, error) {
	var logs []models.TransferLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return logs, nil
}
