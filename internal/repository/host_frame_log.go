package repository

import (
	"context"
	"time"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
)

// HostFrameLogRepository 主机链路日志仓储
type HostFrameLogRepository struct {
	*BaseRepo
}

// NewHostFrameLogRepository 创建主机链路日志仓储
func NewHostFrameLogRepository(db *gorm.DB) *HostFrameLogRepository {
	return &HostFrameLogRepository{BaseRepo: NewBaseRepo(db)}
}

// CreateBatch 批量写入
func (r *HostFrameLogRepository) CreateBatch(ctx context.Context, logs []*models.HostFrameLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(logs, 100).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入主机链路日志失败")
	}
	return nil
}

// Query 查询日志
func (r *HostFrameLogRepository) Query(ctx context.Context, query *models.HostFrameLogQuery) ([]*models.HostFrameLog, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.HostFrameLog{})

	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.Command != nil {
		db = db.Where("command = ?", *query.Command)
	}
	if query.RequestID != "" {
		db = db.Where("request_id = ?", query.RequestID)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}
	if query.HasError != nil {
		if *query.HasError {
			db = db.Where("error_msg != ''")
		} else {
			db = db.Where("error_msg = '' OR error_msg IS NULL")
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	limit := query.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var logs []*models.HostFrameLog
	err := db.Order("id DESC").Limit(limit).Offset(query.Offset).Find(&logs).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return logs, total, nil
}

// DeleteBefore 删除指定时间之前的日志
func (r *HostFrameLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.HostFrameLog{})
	if result.Error != nil {
		return 0, apperrors.Wrap(result.Error, apperrors.ErrDatabaseDelete)
	}
	return result.RowsAffected, nil
}
