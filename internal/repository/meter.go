package repository

import (
	"context"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MeterRepository AFT累计计数器仓储
type MeterRepository struct {
	*BaseRepo
}

// NewMeterRepository 创建计数器仓储
func NewMeterRepository(db *gorm.DB) *MeterRepository {
	return &MeterRepository{BaseRepo: NewBaseRepo(db)}
}

// Increment 累加指定转账类型的计数器并返回累计值
func (r *MeterRepository) Increment(ctx context.Context, delta models.TransferMeter) (*models.TransferMeter, error) {
	var meter models.TransferMeter
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		row := delta
		row.Transfers = 1
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "transfer_type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"transfers":      gorm.Expr("transfers + 1"),
				"cashable":       gorm.Expr("cashable + ?", delta.Cashable),
				"restricted":     gorm.Expr("restricted + ?", delta.Restricted),
				"non_restricted": gorm.Expr("non_restricted + ?", delta.NonRestricted),
				"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("transfer_type = ?", delta.TransferType).First(&meter).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新AFT计数器失败")
	}
	return &meter, nil
}

// List 全部计数器
func (r *MeterRepository) List(ctx context.Context) ([]models.TransferMeter, error) {
	var meters []models.TransferMeter
	if err := r.db.WithContext(ctx).Order("transfer_type ASC").Find(&meters).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return meters, nil
}
