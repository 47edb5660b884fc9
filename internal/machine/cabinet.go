package machine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/config"
	"github.com/wfunc/egm-aft/internal/logger"
	"github.com/wfunc/egm-aft/internal/repository"
	"go.uber.org/zap"
)

// Cabinet 机台侧协作者集合
type Cabinet struct {
	Options *Options
	Ledger  *Ledger
	Meters  *Meters
	State   *State
	Printer *Printer
	Bonus   *BonusAwarder

	logger *zap.Logger
}

// CabinetStatus 机台状态与余额
type CabinetStatus struct {
	Status
	Balances aft.Balances `json:"balances"`
}

// NewCabinet 按配置创建机台协作者
func NewCabinet(ctx context.Context, repos *repository.Manager, aftCfg config.AFTConfig, machineCfg config.MachineConfig, log *zap.Logger) (*Cabinet, error) {
	options := NewOptions(aftCfg)

	ledger, err := NewLedger(ctx, repos.Credit(), options, log.Named("ledger"))
	if err != nil {
		return nil, err
	}

	state := NewState(StateOptions{
		PrinterReady:       machineCfg.PrinterAvailable,
		BonusAllowed:       machineCfg.BonusAllowed,
		HostCashOutEnabled: aftCfg.HostCashOutEnabled,
		CashOutTimeout:     machineCfg.CashOutTimeout,
	}, log.Named("state"))
	state.OnWinTimeout(func(win aft.Amounts) {
		logger.LogTransferEvent("host_cashout_timeout", "",
			zap.Uint64("cashable", win.Cashable),
			zap.Uint64("restricted", win.Restricted),
			zap.Uint64("non_restricted", win.NonRestricted))
	})

	return &Cabinet{
		Options: options,
		Ledger:  ledger,
		Meters:  NewMeters(repos.Meter()),
		State:   state,
		Printer: NewPrinter(state, log.Named("printer")),
		Bonus:   NewBonusAwarder(state, ledger),
		logger:  log,
	}, nil
}

// Collaborators 引擎所需的协作者，注册信息由引擎内置处理
func (c *Cabinet) Collaborators() aft.Collaborators {
	return aft.Collaborators{
		Ledger:      c.Ledger,
		Meters:      c.Meters,
		Printer:     c.Printer,
		Disable:     c.State,
		HostCashOut: c.State,
		AutoPlay:    c.State,
		Bonus:       c.Bonus,
		Features:    c.Options,
	}
}

// AwardWin 游戏赢分记入信用，主机兑现开启时挂起等待主机转出
func (c *Cabinet) AwardWin(ctx context.Context, amounts aft.Amounts) (bool, error) {
	if err := c.Ledger.Credit(ctx, winTransactionID(), amounts, 0, 0); err != nil {
		return false, err
	}
	return c.State.AwardWin(amounts), nil
}

// winTransactionID 赢分入账的流水交易号（不超过20字符）
func winTransactionID() string {
	return "WIN" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Status 当前状态与余额
func (c *Cabinet) Status(ctx context.Context) (CabinetStatus, error) {
	balances, err := c.Ledger.Balances(ctx)
	if err != nil {
		return CabinetStatus{}, err
	}
	return CabinetStatus{Status: c.State.Snapshot(), Balances: balances}, nil
}

// Close 停止兑现计时
func (c *Cabinet) Close() {
	c.State.Close()
}
