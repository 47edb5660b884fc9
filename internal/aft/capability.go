package aft

// CapabilityFlags 当前可用的转账方向（每次请求重新计算）
type CapabilityFlags struct {
	ToMachine               bool `json:"to_machine"`
	FromMachine             bool `json:"from_machine"`
	ToPrinter               bool `json:"to_printer"`
	WinPendingCashOutToHost bool `json:"win_pending_cashout_to_host"`
	BonusToMachine          bool `json:"bonus_to_machine"`
}

// Bits 编码为可用转账字节
func (c CapabilityFlags) Bits() byte {
	var b byte
	if c.ToMachine {
		b |= 1 << 0
	}
	if c.FromMachine {
		b |= 1 << 1
	}
	if c.ToPrinter {
		b |= 1 << 2
	}
	if c.WinPendingCashOutToHost {
		b |= 1 << 3
	}
	if c.BonusToMachine {
		b |= 1 << 4
	}
	return b
}

// StatusFlags AFT状态位
type StatusFlags struct {
	PrinterAvailableForReceipts bool `json:"printer_available_for_receipts"`
	PartialTransfersAllowed     bool `json:"partial_transfers_allowed"`
	CustomTicketDataSupported   bool `json:"custom_ticket_data_supported"`
	Registered                  bool `json:"registered"`
	InHouseTransfersEnabled     bool `json:"in_house_transfers_enabled"`
	BonusTransfersEnabled       bool `json:"bonus_transfers_enabled"`
	DebitTransfersEnabled       bool `json:"debit_transfers_enabled"`
	AnyTransferEnabled          bool `json:"any_transfer_enabled"`
}

// Bits 编码为AFT状态字节
func (s StatusFlags) Bits() byte {
	flags := []bool{
		s.PrinterAvailableForReceipts,
		s.PartialTransfersAllowed,
		s.CustomTicketDataSupported,
		s.Registered,
		s.InHouseTransfersEnabled,
		s.BonusTransfersEnabled,
		s.DebitTransfersEnabled,
		s.AnyTransferEnabled,
	}
	var b byte
	for i, set := range flags {
		if set {
			b |= 1 << uint(i)
		}
	}
	return b
}

// LockConditions 主机申请锁机时要求的转账条件
type LockConditions byte

const (
	ConditionToMachine   LockConditions = 1 << 0
	ConditionFromMachine LockConditions = 1 << 1
	ConditionToPrinter   LockConditions = 1 << 2
	ConditionBonus       LockConditions = 1 << 3
)

// TransferProgress 是否有转账正在进行
type TransferProgress interface {
	TransferInProgress() bool
}

// CapabilityResolver 根据配置和实时状态推导转账能力
type CapabilityResolver struct {
	deps     *Collaborators
	progress TransferProgress
}

// NewCapabilityResolver 创建能力推导器
func NewCapabilityResolver(deps *Collaborators, progress TransferProgress) *CapabilityResolver {
	return &CapabilityResolver{
		deps:     deps,
		progress: progress,
	}
}

// AvailableTransfers 当前允许的转账方向
func (r *CapabilityResolver) AvailableTransfers() CapabilityFlags {
	features := r.deps.Features
	if !features.AFTEnabled() ||
		!(features.TransferInEnabled() || features.TransferOutEnabled()) ||
		(r.progress != nil && r.progress.TransferInProgress()) {
		return CapabilityFlags{}
	}

	disable := r.deps.Disable
	inboundBlocked := disable.InGame() || disable.Tilt() || disable.Overlay()
	winPending := r.deps.HostCashOut.WinPending()

	return CapabilityFlags{
		ToMachine:               features.TransferInEnabled() && !inboundBlocked,
		FromMachine:             features.TransferOutEnabled() && !winPending,
		ToPrinter:               features.TicketTransfersEnabled() && r.deps.Printer.CanPrint() && !inboundBlocked,
		WinPendingCashOutToHost: features.WinToHostEnabled() && winPending,
		BonusToMachine:          features.BonusTransfersEnabled() && !(disable.Tilt() || disable.Overlay()),
	}
}

// TransferAllowedUnderLock 主机要求的每个条件都必须在当前可用能力之内
func (r *CapabilityResolver) TransferAllowedUnderLock(conditions LockConditions) bool {
	available := r.AvailableTransfers()

	checks := []struct {
		condition LockConditions
		allowed   bool
	}{
		{ConditionToMachine, available.ToMachine},
		{ConditionFromMachine, available.FromMachine},
		{ConditionToPrinter, available.ToPrinter},
		{ConditionBonus, available.BonusToMachine},
	}
	for _, check := range checks {
		if conditions&check.condition != 0 && !check.allowed {
			return false
		}
	}
	return true
}

// Status 当前AFT状态位
func (r *CapabilityResolver) Status() StatusFlags {
	features := r.deps.Features
	anyEnabled := features.AFTEnabled() && (features.TransferInEnabled() || features.TransferOutEnabled())

	return StatusFlags{
		PrinterAvailableForReceipts: features.ReceiptsSupported() && r.deps.Printer.CanPrint(),
		PartialTransfersAllowed:     features.PartialTransfersAllowed(),
		CustomTicketDataSupported:   features.CustomTicketDataSupported(),
		Registered:                  r.deps.Registration.IsRegistered(),
		InHouseTransfersEnabled:     anyEnabled,
		BonusTransfersEnabled:       features.AFTEnabled() && features.BonusTransfersEnabled(),
		DebitTransfersEnabled:       r.deps.Registration.DebitTransfersEnabled(),
		AnyTransferEnabled:          anyEnabled,
	}
}

// HostCashOutBits 主机兑现状态字节
func (r *CapabilityResolver) HostCashOutBits() byte {
	var b byte
	if r.deps.HostCashOut.CanCashOut() {
		b |= 1 << 0
	}
	if r.deps.HostCashOut.HostCashOutEnabled() {
		b |= 1 << 1
	}
	if r.deps.HostCashOut.HostCashOutHardMode() {
		b |= 1 << 2
	}
	return b
}
