package machine

import (
	"sync/atomic"

	"github.com/wfunc/egm-aft/internal/config"
)

// Options AFT功能配置（实现 aft.FeatureConfiguration），配置热更新时整体替换
type Options struct {
	current atomic.Pointer[config.AFTConfig]
}

// NewOptions 创建功能配置
func NewOptions(cfg config.AFTConfig) *Options {
	o := &Options{}
	o.Update(cfg)
	return o
}

// Update 替换配置
func (o *Options) Update(cfg config.AFTConfig) {
	o.current.Store(&cfg)
}

// Snapshot 当前配置副本
func (o *Options) Snapshot() config.AFTConfig {
	return *o.current.Load()
}

func (o *Options) get() *config.AFTConfig {
	return o.current.Load()
}

func (o *Options) AssetNumber() uint32             { return o.get().AssetNumber }
func (o *Options) AFTEnabled() bool                { return o.get().Enabled }
func (o *Options) TransferInEnabled() bool         { return o.get().TransferIn }
func (o *Options) TransferOutEnabled() bool        { return o.get().TransferOut }
func (o *Options) TicketTransfersEnabled() bool    { return o.get().TicketTransfers }
func (o *Options) BonusTransfersEnabled() bool     { return o.get().BonusTransfers }
func (o *Options) DebitTransfersEnabled() bool     { return o.get().DebitTransfers }
func (o *Options) WinToHostEnabled() bool          { return o.get().WinToHost }
func (o *Options) PartialTransfersAllowed() bool   { return o.get().PartialTransfers }
func (o *Options) ReceiptsSupported() bool         { return o.get().Receipts }
func (o *Options) CustomTicketDataSupported() bool { return o.get().CustomTicketData }
func (o *Options) TransferLimit() uint64           { return o.get().TransferLimit }

// CreditLimit 机台信用上限
func (o *Options) CreditLimit() uint64 { return o.get().CreditLimit }
