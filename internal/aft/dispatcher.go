package aft

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// State 当前转账的状态机状态
type State int

const (
	// StateIdle 无转账或上一笔已被主机确认
	StateIdle State = iota
	// StatePending 处理器正在执行资金移动
	StatePending
	// StateCompletedUnacknowledged 已有最终结果，等待主机查询确认
	StateCompletedUnacknowledged
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCompletedUnacknowledged:
		return "completed_unacknowledged"
	default:
		return "unknown"
	}
}

// LockState 游戏锁状态
type LockState interface {
	IsLocked() bool
	Release()
}

// Dispatcher 全额/部分转账入口，持有唯一的当前转账
type Dispatcher struct {
	mu sync.Mutex

	state    State
	current  *Record
	recorded bool
	// autoPlaySuspended 本次转账结束了自动游戏，被拒绝时需要恢复
	autoPlaySuspended bool

	deps        *Collaborators
	history     *HistoryBuffer
	processors  map[TransferType]TransferProcessor
	commonRules []Rule
	lock        LockState
	observers   []TransferObserver

	tasks  conc.WaitGroup
	ctx    context.Context
	now    func() time.Time
	logger *zap.Logger
}

// NewDispatcher 创建转账调度器
func NewDispatcher(deps *Collaborators, history *HistoryBuffer, processors map[TransferType]TransferProcessor, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		state:      StateIdle,
		deps:       deps,
		history:    history,
		processors: processors,
		ctx:        context.Background(),
		now:        time.Now,
		logger:     logger,
	}
	d.commonRules = d.buildCommonRules()
	return d
}

// SetLock 设置游戏锁（锁依赖能力推导，能力推导又依赖调度器）
func (d *Dispatcher) SetLock(lock LockState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lock = lock
}

// AddObserver 注册转账完成通知
func (d *Dispatcher) AddObserver(observer TransferObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, observer)
}

// State 当前状态
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// TransferInProgress 是否有转账正在执行
func (d *Dispatcher) TransferInProgress() bool {
	return d.State() == StatePending
}

// Current 当前转账记录副本
func (d *Dispatcher) Current() (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Record{}, false
	}
	return *d.current, true
}

// Wait 等待所有后台资金移动任务结束
func (d *Dispatcher) Wait() {
	d.tasks.Wait()
}

// Process 处理全额/部分转账请求。
// 与当前转账完全相同的请求视为重发，只返回当前状态，第二个返回值为 true。
func (d *Dispatcher) Process(request Request) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && d.current.Request == request {
		d.logger.Info("检测到重发的转账请求，按仅查询状态处理",
			zap.String("transaction_id", request.TransactionID),
			zap.String("state", d.state.String()))
		return *d.current, true
	}

	if d.state != StateIdle {
		response := *d.current
		response.Status = StatusNotCompatibleWithCurrentTransfer
		d.logger.Warn("已有转账未完成或未确认，拒绝新请求",
			zap.String("current_transaction_id", d.current.TransactionID),
			zap.String("transaction_id", request.TransactionID),
			zap.String("state", d.state.String()))
		return response, false
	}

	return d.processLocked(request), false
}

// processLocked 安装新转账并执行规则（调用方持有锁）
func (d *Dispatcher) processLocked(request Request) Record {
	previous := d.current
	current := &Record{
		Request:       request,
		Status:        StatusTransferPending,
		ReceiptStatus: ReceiptNotRequested,
		Timestamp:     d.now(),
		POSID:         d.deps.Registration.POSID(),
	}
	if request.ReceiptRequested() {
		current.ReceiptStatus = ReceiptPending
	}
	d.current = current
	d.recorded = false
	d.autoPlaySuspended = false

	p, ok := d.processors[request.TransferType]
	if !ok {
		d.failLocked(StatusUnsupportedTransferCode, fmt.Sprintf("未注册转账类型 0x%02X 的处理器", byte(request.TransferType)))
		return *current
	}

	d.autoPlaySuspended = d.deps.AutoPlay.EndAutoPlayIfActive()

	in := &ruleInput{
		record:            current,
		autoPlayWasActive: d.autoPlaySuspended,
		previous:          previous,
	}
	if rule, violated := firstViolation(d.commonRules, in); violated {
		d.rejectLocked(rule)
		return *current
	}

	balances, err := d.deps.Ledger.Balances(d.ctx)
	if err != nil {
		d.failLocked(StatusUnexpectedError, fmt.Sprintf("查询余额失败: %v", err))
		return *current
	}
	in.balances = balances

	if rule, violated := firstViolation(p.Rules(), in); violated {
		d.rejectLocked(rule)
		return *current
	}

	d.state = StatePending
	d.logger.Info("转账已受理",
		zap.String("transaction_id", current.TransactionID),
		zap.String("transfer_type", current.TransferType.String()),
		zap.Uint64("cashable", current.Amounts.Cashable),
		zap.Uint64("restricted", current.Amounts.Restricted),
		zap.Uint64("non_restricted", current.Amounts.NonRestricted),
		zap.Bool("partial_allowed", current.IsPartialAllowed()))

	snapshot := *current
	d.tasks.Go(func() {
		d.complete(d.execute(p, snapshot))
	})

	return *current
}

// rejectLocked 前置条件不满足
func (d *Dispatcher) rejectLocked(rule *Rule) {
	d.failLocked(rule.Status, rule.Message)
	d.logger.Debug("命中前置条件", zap.String("rule", rule.Name))
}

// failLocked 失败完成：写入状态、恢复被中断的自动游戏、回到空闲
func (d *Dispatcher) failLocked(status TransferStatus, message string) {
	current := d.current
	current.Status = status
	d.state = StateIdle

	d.logger.Warn("转账被拒绝",
		zap.String("transaction_id", current.TransactionID),
		zap.String("transfer_type", current.TransferType.String()),
		zap.Uint8("status", uint8(status)),
		zap.String("reason", message))

	d.resumeAutoPlayLocked()
}

func (d *Dispatcher) resumeAutoPlayLocked() {
	if d.autoPlaySuspended {
		d.autoPlaySuspended = false
		d.deps.AutoPlay.ResumeAutoPlay()
	}
}

// execute 在后台执行资金移动，收据与计数器也在此完成
func (d *Dispatcher) execute(p TransferProcessor, record Record) Record {
	var outcome Outcome
	var catcher panics.Catcher
	catcher.Try(func() {
		outcome = p.Execute(d.ctx, record)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		d.logger.Error("资金移动发生panic",
			zap.String("transaction_id", record.TransactionID),
			zap.String("panic", fmt.Sprintf("%v", recovered.Value)),
			zap.ByteString("stack", recovered.Stack))
		outcome = failed(StatusUnexpectedError, fmt.Errorf("panic: %v", recovered.Value))
	}

	record.Status = outcome.Status
	if outcome.Err != nil {
		d.logger.Error("资金移动失败",
			zap.String("transaction_id", record.TransactionID),
			zap.String("transfer_type", record.TransferType.String()),
			zap.Uint8("status", uint8(outcome.Status)),
			zap.Error(outcome.Err))
		return record
	}
	if !outcome.Status.IsSuccess() {
		return record
	}

	record.Transferred = outcome.Transferred

	if record.ReceiptRequested() {
		if err := d.deps.Printer.PrintReceipt(d.ctx, record); err != nil {
			d.logger.Warn("收据打印失败",
				zap.String("transaction_id", record.TransactionID),
				zap.Error(err))
		} else {
			record.ReceiptStatus = ReceiptPrinted
		}
	}

	cumulative, err := d.deps.Meters.Increment(d.ctx, record.TransferType, record.Transferred)
	if err != nil {
		d.logger.Error("更新AFT计数器失败",
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err))
	}
	record.Cumulative = cumulative

	return record
}

// complete 将后台结果写回当前转账
func (d *Dispatcher) complete(result Record) {
	d.mu.Lock()

	current := d.current
	if d.state != StatePending || current == nil || current.TransactionID != result.TransactionID {
		d.mu.Unlock()
		d.logger.Error("后台结果与当前转账不匹配，已丢弃",
			zap.String("transaction_id", result.TransactionID),
			zap.String("state", d.state.String()))
		return
	}

	current.Status = result.Status
	current.Transferred = result.Transferred
	current.ReceiptStatus = result.ReceiptStatus
	current.Cumulative = result.Cumulative
	d.state = StateCompletedUnacknowledged

	if current.Status.IsSuccess() {
		d.autoPlaySuspended = false
		d.commitLocked()
		d.deps.HostCashOut.ResetTimer()
	} else {
		d.resumeAutoPlayLocked()
	}

	if d.lock != nil && d.lock.IsLocked() && !current.Flags.Has(FlagLockAfterTransfer) {
		d.lock.Release()
	}

	d.logger.Info("转账完成",
		zap.String("transaction_id", current.TransactionID),
		zap.String("transfer_type", current.TransferType.String()),
		zap.Uint8("status", uint8(current.Status)),
		zap.Uint64("transferred", current.Transferred.Total()),
		zap.Uint8("position", current.Position))

	completed := *current
	observers := append([]TransferObserver(nil), d.observers...)
	d.mu.Unlock()

	for _, observer := range observers {
		observer.OnTransferCompleted(completed)
	}
}

// commitLocked 成功且金额非零的转账写入历史，只写一次
func (d *Dispatcher) commitLocked() {
	current := d.current
	if d.recorded || current == nil || !current.Status.IsSuccess() || current.Transferred.IsZero() {
		return
	}

	position, err := d.history.AddEntry(d.ctx, current.Entry())
	if err != nil {
		d.logger.Error("转账写入历史失败，将在下次查询时重试",
			zap.String("transaction_id", current.TransactionID),
			zap.Error(err))
		return
	}
	current.Position = position
	d.recorded = true
}

// Interrogate 查询当前转账。
// acknowledge 为 true 时补写历史并确认已完成的转账。
func (d *Dispatcher) Interrogate(acknowledge bool) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return Record{}, false
	}

	if acknowledge {
		d.commitLocked()
		if d.state == StateCompletedUnacknowledged {
			d.state = StateIdle
			d.logger.Debug("主机已确认转账", zap.String("transaction_id", d.current.TransactionID))
		}
	}

	return *d.current, true
}

// buildCommonRules 所有转账类型共用的前置条件，按顺序求值
func (d *Dispatcher) buildCommonRules() []Rule {
	deps := d.deps
	return []Rule{
		{
			Name: "transaction_id_not_unique",
			Violated: func(in *ruleInput) bool {
				id := in.record.TransactionID
				return (in.previous != nil && in.previous.TransactionID == id) ||
					d.history.ContainsTransactionID(id)
			},
			Status:  StatusTransactionIDNotUnique,
			Message: "交易号与之前的转账重复",
		},
		{
			Name:     "transaction_index_not_zero",
			Violated: func(in *ruleInput) bool { return in.record.TransactionIndex != 0 },
			Status:   StatusNotAValidTransferFunction,
			Message:  "新转账的交易索引必须为0",
		},
		{
			Name:     "aft_disabled",
			Violated: func(in *ruleInput) bool { return !deps.Features.AFTEnabled() },
			Status:   StatusNotAValidTransferFunction,
			Message:  "AFT功能已关闭",
		},
		{
			Name: "asset_number_mismatch",
			Violated: func(in *ruleInput) bool {
				return in.record.AssetNumber == 0 || in.record.AssetNumber != deps.Features.AssetNumber()
			},
			Status:  StatusAssetNumberMismatch,
			Message: "资产编号为0或与机台不符",
		},
		{
			Name: "not_locked",
			Violated: func(in *ruleInput) bool {
				return in.record.Flags.Has(FlagLockAfterTransfer) && (d.lock == nil || !d.lock.IsLocked())
			},
			Status:  StatusNotLocked,
			Message: "转账要求锁机但机台未锁定",
		},
		{
			Name:     "transaction_id_not_valid",
			Violated: func(in *ruleInput) bool { return !ValidTransactionID(in.record.TransactionID) },
			Status:   StatusTransactionIDNotValid,
			Message:  "交易号格式无效",
		},
		{
			Name:     "auto_play_active",
			Violated: func(in *ruleInput) bool { return in.autoPlayWasActive },
			Status:   StatusUnableToPerformTransfer,
			Message:  "自动游戏进行中不允许转账",
		},
		{
			Name: "receipt_device_unavailable",
			Violated: func(in *ruleInput) bool {
				return in.record.ReceiptRequested() &&
					!(deps.Features.ReceiptsSupported() && deps.Printer.CanPrint())
			},
			Status:  StatusReceiptDeviceNotAvailable,
			Message: "请求收据但打印机不可用",
		},
		{
			Name: "partial_not_allowed",
			Violated: func(in *ruleInput) bool {
				return in.record.IsPartialAllowed() && !deps.Features.PartialTransfersAllowed()
			},
			Status:  StatusUnableToPerformPartial,
			Message: "配置不允许部分转账",
		},
		{
			Name:     "insufficient_receipt_data",
			Violated: func(in *ruleInput) bool { return in.record.ReceiptRequested() && !receiptDataComplete(in.record) },
			Status:   StatusInsufficientReceiptData,
			Message:  "收据缺少账号信息",
		},
		{
			Name: "key_without_registration",
			Violated: func(in *ruleInput) bool {
				return !in.record.RegistrationKey.IsZero() && !deps.Registration.IsRegistered()
			},
			Status:  StatusNotRegistered,
			Message: "提供了注册密钥但机台未注册",
		},
		{
			Name: "key_mismatch",
			Violated: func(in *ruleInput) bool {
				return !in.record.RegistrationKey.IsZero() && !deps.Registration.KeyMatches(in.record.RegistrationKey)
			},
			Status:  StatusRegistrationKeyMismatch,
			Message: "注册密钥与机台不符",
		},
		{
			Name: "host_cashout_pending",
			Violated: func(in *ruleInput) bool {
				return in.record.TransferType.IsTransferIn() && deps.HostCashOut.WinPending()
			},
			Status:  StatusUnableToPerformTransfer,
			Message: "主机兑现待处理，只接受转出",
		},
		{
			Name: "transfer_in_blocked",
			Violated: func(in *ruleInput) bool {
				if !in.record.TransferType.IsTransferIn() {
					return false
				}
				inGame := deps.Disable.InGame() && !in.record.TransferType.IsBonus()
				return inGame || deps.Disable.Tilt() || deps.Disable.Overlay()
			},
			Status:  StatusUnableToPerformTransfer,
			Message: "机台处于游戏中、故障或覆盖层状态，不能转入",
		},
		{
			Name: "transfer_out_blocked",
			Violated: func(in *ruleInput) bool {
				return in.record.TransferType.IsTransferOut() && deps.Disable.TransferOutDisabled()
			},
			Status:  StatusUnableToPerformTransfer,
			Message: "存在无法兑现的故障，不能转出",
		},
	}
}

// ValidTransactionID 交易号为1到20个可打印ASCII字符
func ValidTransactionID(id string) bool {
	if len(id) == 0 || len(id) > MaxTransactionIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}

// MaxTransactionIDLength 交易号最大长度
const MaxTransactionIDLength = 20

// receiptDataComplete 收据所需的账号字段是否齐全
func receiptDataComplete(record *Record) bool {
	data := record.ReceiptData
	switch {
	case record.TransferType.IsDebit():
		return data.DebitCardNumber != ""
	case record.TransferType == TransferTypeInHouseIn ||
		record.TransferType == TransferTypeInHouseOut ||
		record.TransferType == TransferTypeInHouseToTicket:
		return data.PatronAccountNumber != ""
	default:
		return true
	}
}
