package aft

import (
	"context"
)

// Ledger 信用账本（余额由外部子系统持有）
type Ledger interface {
	// Balances 查询三类余额及限制性信用所属奖池
	Balances(ctx context.Context) (Balances, error)
	// CreditLimit 机台信用上限
	CreditLimit() uint64
	// Credit 按交易号入账
	Credit(ctx context.Context, transactionID string, amounts Amounts, poolID uint16, expiration uint32) error
	// Debit 按交易号出账
	Debit(ctx context.Context, transactionID string, amounts Amounts) error
}

// MeterRecorder AFT累计计数器
type MeterRecorder interface {
	// Increment 累加指定转账类型的计数器并返回累计值
	Increment(ctx context.Context, transferType TransferType, amounts Amounts) (Amounts, error)
}

// PrinterAvailability 打印机是否可用
type PrinterAvailability interface {
	CanPrint() bool
}

// TicketPrinter 彩票/收据打印（格式与模板不在本模块范围内）
type TicketPrinter interface {
	PrinterAvailability
	PrintTicket(ctx context.Context, record Record) error
	PrintReceipt(ctx context.Context, record Record) error
}

// RegistrationProvider 注册信息提供者
type RegistrationProvider interface {
	IsRegistered() bool
	RegistrationKey() RegistrationKey
	KeyMatches(key RegistrationKey) bool
	POSID() uint32
	DebitTransfersEnabled() bool
}

// FundsTransferDisable 禁止转账的条件
type FundsTransferDisable interface {
	InGame() bool
	Tilt() bool
	Overlay() bool
	// TransferOutDisabled 存在无法兑现的故障
	TransferOutDisabled() bool
}

// HostCashOutProvider 主机兑现状态
type HostCashOutProvider interface {
	// WinPending 是否有待兑现到主机的赢分
	WinPending() bool
	CanCashOut() bool
	// PendingWin 待兑现赢分的三类金额
	PendingWin() Amounts
	// CompleteWinCashOut 赢分已转出
	CompleteWinCashOut(transactionID string)
	ResetTimer()
	// ApplyHostCashOutFlags 根据转账标志位更新主机兑现设置
	ApplyHostCashOutFlags(enabled, hardMode bool)
	HostCashOutEnabled() bool
	HostCashOutHardMode() bool
}

// AutoPlayStatusProvider 自动游戏状态
type AutoPlayStatusProvider interface {
	// EndAutoPlayIfActive 结束自动游戏，返回之前是否处于自动游戏
	EndAutoPlayIfActive() bool
	ResumeAutoPlay()
}

// BonusAwarder 奖励发放（奖励计算不在本模块范围内）
type BonusAwarder interface {
	BonusAllowed() bool
	AwardBonus(ctx context.Context, transactionID string, transferType TransferType, amounts Amounts) error
}

// FeatureConfiguration AFT功能配置
type FeatureConfiguration interface {
	AssetNumber() uint32
	AFTEnabled() bool
	TransferInEnabled() bool
	TransferOutEnabled() bool
	TicketTransfersEnabled() bool
	BonusTransfersEnabled() bool
	DebitTransfersEnabled() bool
	WinToHostEnabled() bool
	PartialTransfersAllowed() bool
	ReceiptsSupported() bool
	CustomTicketDataSupported() bool
	TransferLimit() uint64
}

// TransferObserver 转账完成通知
type TransferObserver interface {
	OnTransferCompleted(record Record)
}

// Collaborators 引擎依赖的外部协作者
type Collaborators struct {
	Ledger       Ledger
	Meters       MeterRecorder
	Printer      TicketPrinter
	Registration RegistrationProvider
	Disable      FundsTransferDisable
	HostCashOut  HostCashOutProvider
	AutoPlay     AutoPlayStatusProvider
	Bonus        BonusAwarder
	Features     FeatureConfiguration
}
