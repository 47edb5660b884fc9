package database

import (
	"fmt"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/logger"
	"github.com/wfunc/egm-aft/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// indexes 迁移后补建的索引
var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at)",
	"CREATE INDEX IF NOT EXISTS idx_aft_transfer_logs_type_status ON aft_transfer_logs(transfer_type, status)",
	"CREATE INDEX IF NOT EXISTS idx_host_frame_logs_command_ts ON host_frame_logs(command, timestamp)",
}

// AutoMigrate 迁移全局数据库
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return Migrate(DB)
}

// Migrate 迁移表结构并初始化单行数据
func Migrate(db *gorm.DB) error {
	log := logger.WithModule("database")

	// 文件数据库需要获取迁移锁，避免多个进程同时迁移
	if dbPath := sqlitePath(db); dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "获取迁移锁失败")
		}
		defer releaseMigrationLock(lockFile)
	}

	log.Info("开始数据库迁移...")
	for _, model := range models.All() {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return apperrors.Wrapf(err, apperrors.ErrDatabaseUpdate, "迁移 %T 失败", model)
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
		}
	}

	if err := initDefaultData(db); err != nil {
		return err
	}

	log.Info("数据库迁移完成")
	return nil
}

// initDefaultData 创建余额单行记录
func initDefaultData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.CreditBalance{}).Count(&count).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if count > 0 {
		return nil
	}

	if err := db.Create(models.NewCreditBalance()).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建余额记录失败")
	}
	logger.WithModule("database").Info("默认数据初始化完成")
	return nil
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables(db *gorm.DB) error {
	all := models.All()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			logger.WithModule("database").Error("删除表失败",
				zap.String("model", fmt.Sprintf("%T", all[i])),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}
