package aft

import (
	"context"
)

// Outcome 资金移动的最终结果
type Outcome struct {
	Status      TransferStatus
	Transferred Amounts
	Err         error
}

// TransferProcessor 单一转账类型的处理器：有序前置条件 + 一个异步完成动作
type TransferProcessor interface {
	Type() TransferType
	Rules() []Rule
	// Execute 在后台任务中执行资金移动
	Execute(ctx context.Context, record Record) Outcome
}

// processor 声明式处理器
type processor struct {
	transferType TransferType
	rules        []Rule
	execute      func(ctx context.Context, record Record) Outcome
}

func (p *processor) Type() TransferType { return p.transferType }

func (p *processor) Rules() []Rule { return p.rules }

func (p *processor) Execute(ctx context.Context, record Record) Outcome {
	return p.execute(ctx, record)
}

// failed 执行失败的结果
func failed(status TransferStatus, err error) Outcome {
	return Outcome{Status: status, Err: err}
}

// succeeded 根据是否截取返回全额或部分成功
func succeeded(amounts Amounts, partial bool) Outcome {
	status := StatusFullTransferSuccessful
	if partial {
		status = StatusPartialTransferSuccessful
	}
	return Outcome{Status: status, Transferred: amounts}
}

// NewProcessorRegistry 按转账类型构建处理器注册表
func NewProcessorRegistry(deps *Collaborators) map[TransferType]TransferProcessor {
	processors := []TransferProcessor{
		newDebitInProcessor(deps),
		newBonusProcessor(deps, TransferTypeBonusCoinIn),
		newBonusProcessor(deps, TransferTypeBonusJackpotIn),
		newInHouseInProcessor(deps),
		newInHouseOutProcessor(deps),
		newInHouseToTicketProcessor(deps),
		newDebitToTicketProcessor(deps),
		newWinToHostProcessor(deps),
	}

	registry := make(map[TransferType]TransferProcessor, len(processors))
	for _, p := range processors {
		registry[p.Type()] = p
	}
	return registry
}

// inAmounts 转入金额：允许部分转账时截取到转账上限
func inAmounts(record *Record, limit uint64) (Amounts, bool) {
	if record.IsPartialAllowed() {
		return clipAmounts(record.Amounts, limit)
	}
	return record.Amounts, false
}

// debitRules 借记类转账共用的前置条件
func debitRules(deps *Collaborators) []Rule {
	return []Rule{
		{
			Name: "debit_disabled",
			Violated: func(in *ruleInput) bool {
				return !deps.Features.DebitTransfersEnabled() || !deps.Registration.DebitTransfersEnabled()
			},
			Status:  StatusNotAValidTransferFunction,
			Message: "借记转账未启用",
		},
		{
			Name:     "not_registered",
			Violated: func(in *ruleInput) bool { return !deps.Registration.IsRegistered() },
			Status:   StatusNotRegistered,
			Message:  "机台未注册，不能进行借记转账",
		},
		{
			Name: "registration_key_mismatch",
			Violated: func(in *ruleInput) bool {
				return !deps.Registration.KeyMatches(in.record.RegistrationKey)
			},
			Status:  StatusRegistrationKeyMismatch,
			Message: "注册密钥不匹配",
		},
		{
			Name:     "no_pos_id",
			Violated: func(in *ruleInput) bool { return deps.Registration.POSID() == 0 },
			Status:   StatusNoPOSID,
			Message:  "未设置POS ID",
		},
		{
			Name: "debit_not_cashable",
			Violated: func(in *ruleInput) bool {
				return in.record.Amounts.Restricted > 0 || in.record.Amounts.NonRestricted > 0
			},
			Status:  StatusNotAValidTransferFunction,
			Message: "借记转账只允许可兑现金额",
		},
	}
}

// newDebitInProcessor 借记 -> 机台
func newDebitInProcessor(deps *Collaborators) TransferProcessor {
	rules := append(debitRules(deps), Rule{
		Name:     "exceeds_transfer_limit",
		Violated: exceedsTransferLimit(deps.Features),
		Status:   StatusAmountExceedsLimit,
		Message:  "借记金额超过转账上限",
	})

	return &processor{
		transferType: TransferTypeDebitIn,
		rules:        rules,
		execute: func(ctx context.Context, record Record) Outcome {
			amounts, partial := inAmounts(&record, deps.Features.TransferLimit())
			if err := deps.Ledger.Credit(ctx, record.TransactionID, amounts, 0, 0); err != nil {
				return failed(StatusUnexpectedError, err)
			}
			return succeeded(amounts, partial)
		},
	}
}

// newDebitToTicketProcessor 借记 -> 彩票
func newDebitToTicketProcessor(deps *Collaborators) TransferProcessor {
	rules := append(debitRules(deps),
		Rule{
			Name:     "ticket_device_unavailable",
			Violated: func(in *ruleInput) bool { return !deps.Printer.CanPrint() },
			Status:   StatusTicketDeviceNotAvailable,
			Message:  "彩票打印机不可用",
		},
		Rule{
			Name:     "exceeds_transfer_limit",
			Violated: exceedsTransferLimit(deps.Features),
			Status:   StatusAmountExceedsLimit,
			Message:  "借记金额超过转账上限",
		},
	)

	return &processor{
		transferType: TransferTypeDebitToTicket,
		rules:        rules,
		execute:      printTicket(deps),
	}
}

// newBonusProcessor 奖励 -> 机台（赢分或头奖）
func newBonusProcessor(deps *Collaborators, transferType TransferType) TransferProcessor {
	return &processor{
		transferType: transferType,
		rules: []Rule{
			{
				Name:     "bonus_disabled",
				Violated: func(in *ruleInput) bool { return !deps.Features.BonusTransfersEnabled() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "奖励转账未启用",
			},
			{
				Name:     "bonus_partial",
				Violated: func(in *ruleInput) bool { return in.record.IsPartialAllowed() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "奖励转账必须为全额",
			},
			{
				Name: "bonus_restricted",
				Violated: func(in *ruleInput) bool {
					return in.record.IsFullOnly() && in.record.Amounts.Restricted > 0
				},
				Status:  StatusNotAValidTransferFunction,
				Message: "奖励转账不允许限制性金额",
			},
			{
				Name:     "bonus_receipt",
				Violated: func(in *ruleInput) bool { return in.record.ReceiptRequested() },
				Status:   StatusReceiptNotAllowedForType,
				Message:  "奖励转账不支持收据",
			},
			{
				Name:     "bonus_not_allowed",
				Violated: func(in *ruleInput) bool { return !deps.Bonus.BonusAllowed() },
				Status:   StatusUnableToPerformTransfer,
				Message:  "奖励子系统当前不允许发放",
			},
		},
		execute: func(ctx context.Context, record Record) Outcome {
			if err := deps.Bonus.AwardBonus(ctx, record.TransactionID, record.TransferType, record.Amounts); err != nil {
				return failed(StatusUnexpectedError, err)
			}
			return succeeded(record.Amounts, false)
		},
	}
}

// newInHouseInProcessor 主机 -> 机台
func newInHouseInProcessor(deps *Collaborators) TransferProcessor {
	return &processor{
		transferType: TransferTypeInHouseIn,
		rules: []Rule{
			{
				Name: "exceeds_credit_limit",
				Violated: func(in *ruleInput) bool {
					return in.balances.Total()+in.record.Amounts.Total() > deps.Ledger.CreditLimit()
				},
				Status:  StatusAmountExceedsLimit,
				Message: "转入后余额超过信用上限",
			},
			{
				Name: "restricted_pool_mismatch",
				Violated: func(in *ruleInput) bool {
					return in.record.Amounts.Restricted > 0 &&
						in.balances.Restricted > 0 &&
						in.balances.RestrictedPoolID != in.record.PoolID
				},
				Status:  StatusRestrictedPoolMismatch,
				Message: "已有其他奖池的限制性信用",
			},
			{
				Name:     "transfer_in_disabled",
				Violated: func(in *ruleInput) bool { return !deps.Features.TransferInEnabled() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "转入未启用",
			},
			{
				Name:     "exceeds_transfer_limit",
				Violated: exceedsTransferLimit(deps.Features),
				Status:   StatusAmountExceedsLimit,
				Message:  "转入金额超过转账上限",
			},
		},
		execute: func(ctx context.Context, record Record) Outcome {
			amounts, partial := inAmounts(&record, deps.Features.TransferLimit())
			if err := deps.Ledger.Credit(ctx, record.TransactionID, amounts, record.PoolID, record.Expiration); err != nil {
				return failed(StatusUnexpectedError, err)
			}
			return succeeded(amounts, partial)
		},
	}
}

// newInHouseToTicketProcessor 主机 -> 彩票
func newInHouseToTicketProcessor(deps *Collaborators) TransferProcessor {
	return &processor{
		transferType: TransferTypeInHouseToTicket,
		rules: []Rule{
			{
				Name:     "ticket_transfers_disabled",
				Violated: func(in *ruleInput) bool { return !deps.Features.TicketTransfersEnabled() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "转彩票未启用",
			},
			{
				Name:     "ticket_device_unavailable",
				Violated: func(in *ruleInput) bool { return !deps.Printer.CanPrint() },
				Status:   StatusTicketDeviceNotAvailable,
				Message:  "彩票打印机不可用",
			},
			{
				Name: "restricted_without_expiration",
				Violated: func(in *ruleInput) bool {
					return in.record.Amounts.Restricted > 0 && in.record.Expiration == 0
				},
				Status:  StatusExpirationNotValidForTicket,
				Message: "限制性彩票缺少有效期",
			},
			{
				Name:     "exceeds_transfer_limit",
				Violated: exceedsTransferLimit(deps.Features),
				Status:   StatusAmountExceedsLimit,
				Message:  "彩票金额超过转账上限",
			},
		},
		execute: printTicket(deps),
	}
}

// printTicket 打印彩票的完成动作
func printTicket(deps *Collaborators) func(ctx context.Context, record Record) Outcome {
	return func(ctx context.Context, record Record) Outcome {
		amounts, partial := inAmounts(&record, deps.Features.TransferLimit())
		record.Transferred = amounts
		if err := deps.Printer.PrintTicket(ctx, record); err != nil {
			return failed(StatusTicketDeviceNotAvailable, err)
		}
		return succeeded(amounts, partial)
	}
}

// newInHouseOutProcessor 机台 -> 主机
func newInHouseOutProcessor(deps *Collaborators) TransferProcessor {
	return &processor{
		transferType: TransferTypeInHouseOut,
		rules: []Rule{
			{
				Name: "no_balance",
				Violated: func(in *ruleInput) bool {
					if in.record.IsFullOnly() {
						return in.balances.Total() == 0
					}
					clipped, _ := clipToBalances(in.record.Amounts, in.balances.Amounts)
					return clipped.IsZero()
				},
				Status:  StatusNotAValidTransferAmount,
				Message: "机台无可转出余额",
			},
			{
				Name:     "transfer_out_disabled",
				Violated: func(in *ruleInput) bool { return !deps.Features.TransferOutEnabled() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "转出未启用",
			},
			{
				Name:     "exceeds_transfer_limit",
				Violated: exceedsTransferLimit(deps.Features),
				Status:   StatusAmountExceedsLimit,
				Message:  "转出金额超过转账上限",
			},
			{
				Name: "insufficient_balance",
				Violated: func(in *ruleInput) bool {
					requested, balance := in.record.Amounts, in.balances
					return in.record.IsFullOnly() &&
						(requested.Cashable > balance.Cashable ||
							requested.Restricted > balance.Restricted ||
							requested.NonRestricted > balance.NonRestricted)
				},
				Status:  StatusNotAValidTransferFunction,
				Message: "余额不足以全额转出",
			},
			{
				Name:     "win_pending",
				Violated: func(in *ruleInput) bool { return deps.HostCashOut.WinPending() },
				Status:   StatusUnableToPerformTransfer,
				Message:  "有待兑现赢分，须使用赢分转出",
			},
		},
		execute: func(ctx context.Context, record Record) Outcome {
			amounts, partial := record.Amounts, false
			if record.IsPartialAllowed() {
				balances, err := deps.Ledger.Balances(ctx)
				if err != nil {
					return failed(StatusUnexpectedError, err)
				}
				var clippedBalance, clippedLimit bool
				amounts, clippedBalance = clipToBalances(amounts, balances.Amounts)
				amounts, clippedLimit = clipAmounts(amounts, deps.Features.TransferLimit())
				partial = clippedBalance || clippedLimit
				// 余额在受理后被扣光
				if amounts.IsZero() {
					return failed(StatusNotAValidTransferAmount, nil)
				}
			}
			if err := deps.Ledger.Debit(ctx, record.TransactionID, amounts); err != nil {
				return failed(StatusUnexpectedError, err)
			}
			return succeeded(amounts, partial)
		},
	}
}

// newWinToHostProcessor 赢分 -> 主机
func newWinToHostProcessor(deps *Collaborators) TransferProcessor {
	return &processor{
		transferType: TransferTypeWinToHostOut,
		rules: []Rule{
			{
				Name:     "win_transfer_disabled",
				Violated: func(in *ruleInput) bool { return !deps.Features.WinToHostEnabled() },
				Status:   StatusNotAValidTransferFunction,
				Message:  "赢分转出未启用",
			},
			{
				Name:     "no_win_pending",
				Violated: func(in *ruleInput) bool { return !deps.HostCashOut.WinPending() },
				Status:   StatusNoWonCreditsAvailable,
				Message:  "没有待兑现的赢分",
			},
			{
				Name:     "exceeds_transfer_limit",
				Violated: exceedsTransferLimit(deps.Features),
				Status:   StatusAmountExceedsLimit,
				Message:  "赢分转出超过转账上限",
			},
			{
				Name: "exceeds_pending_win",
				Violated: func(in *ruleInput) bool {
					requested, win := in.record.Amounts, deps.HostCashOut.PendingWin()
					return in.record.IsFullOnly() &&
						(requested.Cashable > win.Cashable ||
							requested.Restricted > win.Restricted ||
							requested.NonRestricted > win.NonRestricted)
				},
				Status:  StatusNotAValidTransferFunction,
				Message: "请求金额超过待兑现赢分",
			},
		},
		execute: func(ctx context.Context, record Record) Outcome {
			amounts, partial := record.Amounts, false
			if record.IsPartialAllowed() {
				var clippedWin, clippedLimit bool
				amounts, clippedWin = clipToBalances(amounts, deps.HostCashOut.PendingWin())
				amounts, clippedLimit = clipAmounts(amounts, deps.Features.TransferLimit())
				partial = clippedWin || clippedLimit
			}
			if err := deps.Ledger.Debit(ctx, record.TransactionID, amounts); err != nil {
				return failed(StatusUnexpectedError, err)
			}
			deps.HostCashOut.CompleteWinCashOut(record.TransactionID)
			return succeeded(amounts, partial)
		},
	}
}
