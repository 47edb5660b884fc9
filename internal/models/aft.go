package models

import (
	"time"
)

// singletonID 单行文档表的固定主键
const singletonID = 1

// AFTHistoryDocument 转账历史缓冲区文档（整行替换）
type AFTHistoryDocument struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Cursor    uint8     `gorm:"not null" json:"cursor"`
	Entries   string    `gorm:"type:text;not null" json:"entries"` // 128个条目的JSON数组
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (AFTHistoryDocument) TableName() string {
	return "aft_history"
}

// NewAFTHistoryDocument 创建单行历史文档
func NewAFTHistoryDocument(cursor uint8, entries string) *AFTHistoryDocument {
	return &AFTHistoryDocument{ID: singletonID, Cursor: cursor, Entries: entries}
}

// AFTRegistration 机台注册信息（单行）
type AFTRegistration struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Status    uint8     `gorm:"not null" json:"status"`
	Key       string    `gorm:"size:40;not null" json:"-"` // 十六进制编码的20字节密钥
	POSID     uint32    `gorm:"column:pos_id" json:"pos_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (AFTRegistration) TableName() string {
	return "aft_registrations"
}

// NewAFTRegistration 创建单行注册记录
func NewAFTRegistration(status uint8, key string, posID uint32) *AFTRegistration {
	return &AFTRegistration{ID: singletonID, Status: status, Key: key, POSID: posID}
}

// ReceiptDataField 主机下发的收据字段
type ReceiptDataField struct {
	Field     uint8     `gorm:"primaryKey;autoIncrement:false" json:"field"`
	Value     string    `gorm:"size:64;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ReceiptDataField) TableName() string {
	return "receipt_data_fields"
}

// CreditBalance 机台信用余额（单行，单位：分）
type CreditBalance struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Cashable             int64     `gorm:"not null;default:0" json:"cashable"`
	Restricted           int64     `gorm:"not null;default:0" json:"restricted"`
	NonRestricted        int64     `gorm:"not null;default:0" json:"non_restricted"`
	RestrictedPoolID     uint16    `gorm:"not null;default:0" json:"restricted_pool_id"`
	RestrictedExpiration uint32    `gorm:"not null;default:0" json:"restricted_expiration"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// NewCreditBalance 创建单行余额记录
func NewCreditBalance() *CreditBalance {
	return &CreditBalance{ID: singletonID}
}

// LedgerDirection 账本方向
type LedgerDirection string

const (
	LedgerCredit LedgerDirection = "credit"
	LedgerDebit  LedgerDirection = "debit"
)

// LedgerEntry 信用变动流水
type LedgerEntry struct {
	BaseModel
	LedgerID      string          `gorm:"uniqueIndex;size:36;not null" json:"ledger_id"`
	TransactionID string          `gorm:"index;size:20;not null" json:"transaction_id"`
	Direction     LedgerDirection `gorm:"size:10;not null" json:"direction"`
	Cashable      int64           `json:"cashable"`
	Restricted    int64           `json:"restricted"`
	NonRestricted int64           `json:"non_restricted"`
	PoolID        uint16          `json:"pool_id"`
	BalanceAfter  int64           `json:"balance_after"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// TransferMeter 按转账类型累计的AFT计数器
type TransferMeter struct {
	TransferType  uint8     `gorm:"primaryKey;autoIncrement:false" json:"transfer_type"`
	Transfers     int64     `gorm:"not null;default:0" json:"transfers"` // 完成次数
	Cashable      int64     `gorm:"not null;default:0" json:"cashable"`
	Restricted    int64     `gorm:"not null;default:0" json:"restricted"`
	NonRestricted int64     `gorm:"not null;default:0" json:"non_restricted"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (TransferMeter) TableName() string {
	return "aft_transfer_meters"
}

// TransferLog 已完成转账的审计记录
type TransferLog struct {
	BaseModel
	TransactionID string    `gorm:"index;size:20;not null" json:"transaction_id"`
	TransferType  uint8     `gorm:"index;not null" json:"transfer_type"`
	TransferCode  uint8     `json:"transfer_code"`
	Status        uint8     `gorm:"index;not null" json:"status"`
	ReceiptStatus uint8     `json:"receipt_status"`
	Flags         uint8     `json:"flags"`
	AssetNumber   uint32    `json:"asset_number"`
	Position      uint8     `json:"position"`
	POSID         uint32    `gorm:"column:pos_id" json:"pos_id"`
	Cashable      int64     `json:"cashable"`
	Restricted    int64     `json:"restricted"`
	NonRestricted int64     `json:"non_restricted"`
	Requested     int64     `json:"requested"` // 请求金额合计
	CompletedAt   time.Time `gorm:"index" json:"completed_at"`
}

// TableName 指定表名
func (TransferLog) TableName() string {
	return "aft_transfer_logs"
}
