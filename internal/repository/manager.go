package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 仓储实例（使用懒加载）
	historyOnce sync.Once
	history     *HistoryRepository

	registrationOnce sync.Once
	registration     *RegistrationRepository

	receiptDataOnce sync.Once
	receiptData     *ReceiptDataRepository

	creditOnce sync.Once
	credit     *CreditRepository

	meterOnce sync.Once
	meter     *MeterRepository

	transferLogOnce sync.Once
	transferLog     *TransferLogRepository

	frameLogOnce sync.Once
	frameLog     *HostFrameLogRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// History 转账历史仓储
func (m *Manager) History() *HistoryRepository {
	m.historyOnce.Do(func() {
		m.history = NewHistoryRepository(m.db)
	})
	return m.history
}

// Registration 注册信息仓储
func (m *Manager) Registration() *RegistrationRepository {
	m.registrationOnce.Do(func() {
		m.registration = NewRegistrationRepository(m.db)
	})
	return m.registration
}

// ReceiptData 收据数据仓储
func (m *Manager) ReceiptData() *ReceiptDataRepository {
	m.receiptDataOnce.Do(func() {
		m.receiptData = NewReceiptDataRepository(m.db)
	})
	return m.receiptData
}

// Credit 信用仓储
func (m *Manager) Credit() *CreditRepository {
	m.creditOnce.Do(func() {
		m.credit = NewCreditRepository(m.db)
	})
	return m.credit
}

// Meter 计数器仓储
func (m *Manager) Meter() *MeterRepository {
	m.meterOnce.Do(func() {
		m.meter = NewMeterRepository(m.db)
	})
	return m.meter
}

// TransferLog 转账记录仓储
func (m *Manager) TransferLog() *TransferLogRepository {
	m.transferLogOnce.Do(func() {
		m.transferLog = NewTransferLogRepository(m.db)
	})
	return m.transferLog
}

// HostFrameLog 主机链路日志仓储
func (m *Manager) HostFrameLog() *HostFrameLogRepository {
	m.frameLogOnce.Do(func() {
		m.frameLog = NewHostFrameLogRepository(m.db)
	})
	return m.frameLog
}
