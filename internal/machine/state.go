package machine

import (
	"sync"
	"time"

	"github.com/wfunc/egm-aft/internal/aft"
	"go.uber.org/zap"
)

// WinTimeoutFunc 软模式主机兑现超时回调，赢分留在机台信用中
type WinTimeoutFunc func(amounts aft.Amounts)

// Status 机台状态快照
type Status struct {
	InGame              bool        `json:"in_game"`
	Tilt                bool        `json:"tilt"`
	Overlay             bool        `json:"overlay"`
	TransferOutDisabled bool        `json:"transfer_out_disabled"`
	PrinterReady        bool        `json:"printer_ready"`
	BonusAllowed        bool        `json:"bonus_allowed"`
	AutoPlay            bool        `json:"auto_play"`
	HostCashOutEnabled  bool        `json:"host_cashout_enabled"`
	HostCashOutHard     bool        `json:"host_cashout_hard"`
	WinPending          bool        `json:"win_pending"`
	PendingWin          aft.Amounts `json:"pending_win"`
}

// State 机台运行状态。
// 实现 aft.FundsTransferDisable、aft.HostCashOutProvider、aft.AutoPlayStatusProvider。
type State struct {
	mu     sync.Mutex
	status Status

	cashOutTimeout time.Duration
	timer          *time.Timer
	generation     uint64
	onWinTimeout   WinTimeoutFunc

	logger *zap.Logger
}

// StateOptions 初始状态
type StateOptions struct {
	PrinterReady       bool
	BonusAllowed       bool
	HostCashOutEnabled bool
	CashOutTimeout     time.Duration
}

// NewState 创建机台状态
func NewState(opts StateOptions, logger *zap.Logger) *State {
	return &State{
		status: Status{
			PrinterReady:       opts.PrinterReady,
			BonusAllowed:       opts.BonusAllowed,
			HostCashOutEnabled: opts.HostCashOutEnabled,
		},
		cashOutTimeout: opts.CashOutTimeout,
		logger:         logger,
	}
}

// OnWinTimeout 设置软模式兑现超时回调
func (s *State) OnWinTimeout(fn WinTimeoutFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWinTimeout = fn
}

// Snapshot 状态快照
func (s *State) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *State) read(fn func(*Status) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.status)
}

func (s *State) write(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

// InGame 游戏进行中
func (s *State) InGame() bool { return s.read(func(st *Status) bool { return st.InGame }) }

// Tilt 故障
func (s *State) Tilt() bool { return s.read(func(st *Status) bool { return st.Tilt }) }

// Overlay 覆盖界面（菜单、审计等）
func (s *State) Overlay() bool { return s.read(func(st *Status) bool { return st.Overlay }) }

// TransferOutDisabled 存在无法兑现的故障
func (s *State) TransferOutDisabled() bool {
	return s.read(func(st *Status) bool { return st.TransferOutDisabled })
}

// CanPrint 打印机可用
func (s *State) CanPrint() bool { return s.read(func(st *Status) bool { return st.PrinterReady }) }

// BonusAllowed 当前允许发放奖励
func (s *State) BonusAllowed() bool {
	return s.read(func(st *Status) bool { return st.BonusAllowed && !st.Tilt })
}

func (s *State) SetInGame(v bool)              { s.write(func(st *Status) { st.InGame = v }) }
func (s *State) SetTilt(v bool)                { s.write(func(st *Status) { st.Tilt = v }) }
func (s *State) SetOverlay(v bool)             { s.write(func(st *Status) { st.Overlay = v }) }
func (s *State) SetTransferOutDisabled(v bool) { s.write(func(st *Status) { st.TransferOutDisabled = v }) }
func (s *State) SetPrinterReady(v bool)        { s.write(func(st *Status) { st.PrinterReady = v }) }
func (s *State) SetBonusAllowed(v bool)        { s.write(func(st *Status) { st.BonusAllowed = v }) }

// StartAutoPlay 开始自动游戏
func (s *State) StartAutoPlay() { s.write(func(st *Status) { st.AutoPlay = true }) }

// EndAutoPlayIfActive 结束自动游戏，返回之前是否处于自动游戏
func (s *State) EndAutoPlayIfActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.status.AutoPlay
	s.status.AutoPlay = false
	return active
}

// ResumeAutoPlay 恢复自动游戏
func (s *State) ResumeAutoPlay() { s.StartAutoPlay() }

// WinPending 是否有待兑现到主机的赢分
func (s *State) WinPending() bool { return s.read(func(st *Status) bool { return st.WinPending }) }

// CanCashOut 主机兑现可用
func (s *State) CanCashOut() bool {
	return s.read(func(st *Status) bool {
		return st.HostCashOutEnabled && !st.TransferOutDisabled && !st.Tilt
	})
}

// PendingWin 待兑现赢分
func (s *State) PendingWin() aft.Amounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.PendingWin
}

// HostCashOutEnabled 主机兑现是否开启
func (s *State) HostCashOutEnabled() bool {
	return s.read(func(st *Status) bool { return st.HostCashOutEnabled })
}

// HostCashOutHardMode 是否为硬兑现模式
func (s *State) HostCashOutHardMode() bool {
	return s.read(func(st *Status) bool { return st.HostCashOutHard })
}

// ApplyHostCashOutFlags 根据转账标志位更新主机兑现设置
func (s *State) ApplyHostCashOutFlags(enabled, hardMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.HostCashOutEnabled = enabled
	s.status.HostCashOutHard = hardMode
	s.logger.Info("主机兑现设置已更新",
		zap.Bool("enabled", enabled),
		zap.Bool("hard_mode", hardMode))
}

// AwardWin 游戏赢分。主机兑现开启时挂起等待主机转出，返回是否已挂起。
func (s *State) AwardWin(amounts aft.Amounts) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.HostCashOutEnabled || amounts.IsZero() {
		return false
	}
	s.status.WinPending = true
	s.status.PendingWin = s.status.PendingWin.Add(amounts)
	s.startTimerLocked()

	s.logger.Info("赢分等待主机兑现",
		zap.Uint64("cashable", amounts.Cashable),
		zap.Duration("timeout", s.cashOutTimeout))
	return true
}

// CompleteWinCashOut 赢分已转出
func (s *State) CompleteWinCashOut(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearWinLocked()
	s.logger.Info("赢分已兑现到主机", zap.String("transaction_id", transactionID))
}

// ResetTimer 重新计时兑现超时
func (s *State) ResetTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.WinPending {
		s.startTimerLocked()
	}
}

// Close 停止计时器
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

func (s *State) startTimerLocked() {
	s.stopTimerLocked()
	if s.cashOutTimeout <= 0 {
		return
	}

	generation := s.generation
	s.timer = time.AfterFunc(s.cashOutTimeout, func() {
		s.expire(generation)
	})
}

func (s *State) stopTimerLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *State) clearWinLocked() {
	s.stopTimerLocked()
	s.status.WinPending = false
	s.status.PendingWin = aft.Amounts{}
}

// expire 兑现超时：硬模式保持挂起，软模式取消挂起
func (s *State) expire(generation uint64) {
	s.mu.Lock()
	if generation != s.generation || !s.status.WinPending {
		s.mu.Unlock()
		return
	}

	if s.status.HostCashOutHard {
		s.timer = nil
		s.mu.Unlock()
		s.logger.Warn("主机兑现超时，硬模式等待主机处理")
		return
	}

	win := s.status.PendingWin
	callback := s.onWinTimeout
	s.clearWinLocked()
	s.mu.Unlock()

	s.logger.Warn("主机兑现超时，赢分留在机台", zap.Uint64("cashable", win.Cashable))
	if callback != nil {
		callback(win)
	}
}
