package repository

import (
	"context"

	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
)

// ReceiptDataRepository 收据数据仓储（实现 aft.ReceiptDataStore）
type ReceiptDataRepository struct {
	*BaseRepo
}

// NewReceiptDataRepository 创建收据数据仓储
func NewReceiptDataRepository(db *gorm.DB) *ReceiptDataRepository {
	return &ReceiptDataRepository{BaseRepo: NewBaseRepo(db)}
}

// Load 读取全部字段
func (r *ReceiptDataRepository) Load(ctx context.Context) (map[aft.ReceiptField]string, error) {
	var rows []models.ReceiptDataField
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "读取收据数据失败")
	}

	fields := make(map[aft.ReceiptField]string, len(rows))
	for _, row := range rows {
		fields[aft.ReceiptField(row.Field)] = row.Value
	}
	return fields, nil
}

// Save 在一个事务内替换全部字段
func (r *ReceiptDataRepository) Save(ctx context.Context, fields map[aft.ReceiptField]string) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ReceiptDataField{}).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "清除收据数据失败")
		}
		if len(fields) == 0 {
			return nil
		}

		rows := make([]models.ReceiptDataField, 0, len(fields))
		for field, value := range fields {
			rows = append(rows, models.ReceiptDataField{Field: uint8(field), Value: value})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入收据数据失败")
		}
		return nil
	})
}
