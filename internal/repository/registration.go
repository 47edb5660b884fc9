package repository

import (
	"context"
	"encoding/hex"

	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrationRepository 注册信息仓储（实现 aft.RegistrationStore）
type RegistrationRepository struct {
	*BaseRepo
}

// NewRegistrationRepository 创建注册信息仓储
func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{BaseRepo: NewBaseRepo(db)}
}

// Load 读取注册信息，未注册过返回 nil
func (r *RegistrationRepository) Load(ctx context.Context) (*aft.RegistrationState, error) {
	var row models.AFTRegistration
	if err := r.db.WithContext(ctx).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "读取注册信息失败")
	}

	state := &aft.RegistrationState{
		Status: aft.RegistrationStatus(row.Status),
		POSID:  row.POSID,
	}
	if row.Key != "" {
		raw, err := hex.DecodeString(row.Key)
		if err != nil || len(raw) != len(state.Key) {
			return nil, apperrors.New(apperrors.ErrDataIntegrity, "注册密钥格式错误")
		}
		copy(state.Key[:], raw)
	}
	return state, nil
}

// Save 覆盖保存注册信息
func (r *RegistrationRepository) Save(ctx context.Context, state aft.RegistrationState) error {
	row := models.NewAFTRegistration(uint8(state.Status), hex.EncodeToString(state.Key[:]), state.POSID)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "key", "pos_id", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrRegistrationPersist)
	}
	return nil
}
