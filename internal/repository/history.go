package repository

import (
	"context"
	"encoding/json"

	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository 转账历史文档仓储（实现 aft.HistoryStore）
type HistoryRepository struct {
	*BaseRepo
}

// NewHistoryRepository 创建历史仓储
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{BaseRepo: NewBaseRepo(db)}
}

// Load 读取历史文档，首次启动返回 nil
func (r *HistoryRepository) Load(ctx context.Context) (*aft.HistorySnapshot, error) {
	var doc models.AFTHistoryDocument
	if err := r.db.WithContext(ctx).First(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "读取转账历史失败")
	}

	snapshot := &aft.HistorySnapshot{Cursor: doc.Cursor}
	if err := json.Unmarshal([]byte(doc.Entries), &snapshot.Entries); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDataIntegrity, "转账历史文档损坏")
	}
	return snapshot, nil
}

// Save 用单条upsert整体替换文档
func (r *HistoryRepository) Save(ctx context.Context, snapshot *aft.HistorySnapshot) error {
	entries, err := json.Marshal(snapshot.Entries)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrHistoryPersist, "序列化转账历史失败")
	}

	doc := models.NewAFTHistoryDocument(snapshot.Cursor, string(entries))
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"cursor":     doc.Cursor,
			"entries":    doc.Entries,
			"version":    gorm.Expr("version + 1"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(doc).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrHistoryPersist)
	}
	return nil
}

// Version 文档被替换的次数
func (r *HistoryRepository) Version(ctx context.Context) (int64, error) {
	var doc models.AFTHistoryDocument
	if err := r.db.WithContext(ctx).Select("version").First(&doc).Error; err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return doc.Version, nil
}
