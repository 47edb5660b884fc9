package aft

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDispatcher_InHouseInScenario 主机转入全流程：受理、完成、查询确认、历史
func TestDispatcher_InHouseInScenario(t *testing.T) {
	h := newHarness(t)

	response := h.transfer(inHouseIn("TXA", 5000))
	assert.Equal(t, StatusTransferPending, response.Status)

	current, ok := h.engine.Dispatcher.Current()
	require.True(t, ok)
	assert.Equal(t, StatusFullTransferSuccessful, current.Status)
	assert.Equal(t, Amounts{Cashable: 5000}, current.Transferred)
	assert.Equal(t, StateCompletedUnacknowledged, h.engine.Dispatcher.State())

	ack := h.interrogate(0)
	assert.Equal(t, StatusFullTransferSuccessful, ack.Status)
	assert.Equal(t, byte(1), ack.Position)
	assert.Equal(t, StateIdle, h.engine.Dispatcher.State())

	entry := h.interrogate(ack.Position)
	assert.Equal(t, StatusFullTransferSuccessful, entry.Status)
	assert.Equal(t, uint64(5000), entry.Transferred.Cashable)
	assert.Equal(t, "TXA", entry.TransactionID)
	assert.Equal(t, "TXA", h.interrogate(255).TransactionID)

	balances, err := h.ledger.Balances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), balances.Cashable)
	assert.Equal(t, Amounts{Cashable: 5000}, current.Cumulative)
	assert.Len(t, h.observer.records, 1)
	assert.Equal(t, 1, h.hostCash.timerResets)
}

// TestDispatcher_DebitRestrictedRejected 借记转账只允许可兑现金额
func TestDispatcher_DebitRestrictedRejected(t *testing.T) {
	h := newHarness(t)

	response := h.transfer(Request{
		TransferCode:    TransferCodeFullOnly,
		TransferType:    TransferTypeDebitIn,
		Amounts:         Amounts{Cashable: 100, Restricted: 100},
		AssetNumber:     testAssetNumber,
		RegistrationKey: testKey(),
		TransactionID:   "TXB",
	})

	assert.Equal(t, StatusNotAValidTransferFunction, response.Status)
	assert.Equal(t, StateIdle, h.engine.Dispatcher.State())
	assert.Zero(t, h.ledger.creditCount())
	assert.Empty(t, h.observer.records)
}

// TestDispatcher_AFTDisabledRejectsTransfers AFT关闭时不受理转账也不入账
func TestDispatcher_AFTDisabledRejectsTransfers(t *testing.T) {
	h := newHarness(t)
	h.features.aftEnabled = false
	assert.Zero(t, h.engine.Capabilities.AvailableTransfers().Bits())

	response := h.transfer(inHouseIn("TXOFF", 5000))
	assert.Equal(t, StatusNotAValidTransferFunction, response.Status)
	assert.Equal(t, StateIdle, h.engine.Dispatcher.State())

	current, ok := h.engine.Dispatcher.Current()
	require.True(t, ok)
	assert.Equal(t, StatusNotAValidTransferFunction, current.Status)
	assert.Zero(t, h.ledger.creditCount())
	balances, err := h.ledger.Balances(context.Background())
	require.NoError(t, err)
	assert.Zero(t, balances.Cashable)
}

// TestDispatcher_RetransmissionIsIdempotent 重发相同请求不会重复入账
func TestDispatcher_RetransmissionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.ledger.gate = make(chan struct{})
	request := inHouseIn("TXI", 1000)

	first := h.engine.TransferFunds(request)
	second := h.engine.TransferFunds(request)
	assert.Equal(t, first, second)
	assert.Equal(t, StatusTransferPending, second.Status)

	close(h.ledger.gate)
	h.engine.Dispatcher.Wait()

	third := h.engine.TransferFunds(request)
	assert.Equal(t, StatusFullTransferSuccessful, third.Status)
	assert.Equal(t, 1, h.ledger.creditCount())
	assert.Equal(t, StateCompletedUnacknowledged, h.engine.Dispatcher.State(), "重发不确认转账")
}

// TestDispatcher_MutualExclusion 未确认前的新请求返回当前转账和0xC0
func TestDispatcher_MutualExclusion(t *testing.T) {
	h := newHarness(t)
	h.ledger.gate = make(chan struct{})

	first := h.engine.TransferFunds(inHouseIn("TX1", 1000))
	require.Equal(t, StatusTransferPending, first.Status)

	second := h.engine.TransferFunds(inHouseIn("TX2", 2000))
	assert.Equal(t, StatusNotCompatibleWithCurrentTransfer, second.Status)
	assert.Equal(t, "TX1", second.TransactionID)
	assert.Equal(t, Amounts{Cashable: 1000}, second.Amounts)

	current, _ := h.engine.Dispatcher.Current()
	assert.Equal(t, StatusTransferPending, current.Status, "当前转账不受影响")

	close(h.ledger.gate)
	h.engine.Dispatcher.Wait()

	third := h.engine.TransferFunds(inHouseIn("TX2", 2000))
	assert.Equal(t, StatusNotCompatibleWithCurrentTransfer, third.Status, "完成但未确认时仍然互斥")
	current, _ = h.engine.Dispatcher.Current()
	assert.Equal(t, StatusFullTransferSuccessful, current.Status)

	h.interrogate(0)
	fourth := h.transfer(inHouseIn("TX2", 2000))
	assert.Equal(t, StatusTransferPending, fourth.Status)
	assert.Equal(t, 2, h.ledger.creditCount())
}

// TestDispatcher_RuleOrderIsDeterministic 同时违反两条规则时总是返回先求值的那条
func TestDispatcher_RuleOrderIsDeterministic(t *testing.T) {
	h := newHarness(t)
	h.transfer(inHouseIn("DUP", 100))
	h.interrogate(0)

	for i := 0; i < 20; i++ {
		request := inHouseIn("DUP", 200+uint64(i))
		request.AssetNumber = 999
		response := h.transfer(request)
		assert.Equal(t, StatusTransactionIDNotUnique, response.Status)
	}

	request := inHouseIn("FRESH", 200)
	request.AssetNumber = 999
	assert.Equal(t, StatusAssetNumberMismatch, h.transfer(request).Status)
}

// TestDispatcher_CommonRules 公共前置条件
func TestDispatcher_CommonRules(t *testing.T) {
	otherKey := testKey()
	otherKey[0] = 0xEE

	tests := []struct {
		name    string
		setup   func(h *harness)
		request func() Request
		want    TransferStatus
	}{
		{
			name:    "交易索引非零",
			request: func() Request { r := inHouseIn("T", 10); r.TransactionIndex = 3; return r },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "AFT功能关闭",
			setup:   func(h *harness) { h.features.aftEnabled = false },
			request: func() Request { return inHouseIn("T", 10) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "资产编号为零",
			request: func() Request { r := inHouseIn("T", 10); r.AssetNumber = 0; return r },
			want:    StatusAssetNumberMismatch,
		},
		{
			name:    "要求锁机但未锁定",
			request: func() Request { r := inHouseIn("T", 10); r.Flags = FlagLockAfterTransfer; return r },
			want:    StatusNotLocked,
		},
		{
			name:    "交易号为空",
			request: func() Request { return inHouseIn("", 10) },
			want:    StatusTransactionIDNotValid,
		},
		{
			name:    "交易号超长",
			request: func() Request { return inHouseIn(strings.Repeat("X", 21), 10) },
			want:    StatusTransactionIDNotValid,
		},
		{
			name:    "交易号含控制字符",
			request: func() Request { return inHouseIn("AB\x01", 10) },
			want:    StatusTransactionIDNotValid,
		},
		{
			name:    "自动游戏进行中",
			setup:   func(h *harness) { h.autoPlay.active = true },
			request: func() Request { return inHouseIn("T", 10) },
			want:    StatusUnableToPerformTransfer,
		},
		{
			name:  "收据打印机不可用",
			setup: func(h *harness) { h.printer.available = false },
			request: func() Request {
				r := inHouseIn("T", 10)
				r.Flags = FlagReceiptRequest
				r.ReceiptData.PatronAccountNumber = "123"
				return r
			},
			want: StatusReceiptDeviceNotAvailable,
		},
		{
			name:    "配置不允许部分转账",
			setup:   func(h *harness) { h.features.partial = false },
			request: func() Request { r := inHouseIn("T", 10); r.TransferCode = TransferCodePartialAllowed; return r },
			want:    StatusUnableToPerformPartial,
		},
		{
			name:    "收据缺少账号",
			request: func() Request { r := inHouseIn("T", 10); r.Flags = FlagReceiptRequest; return r },
			want:    StatusInsufficientReceiptData,
		},
		{
			name:    "提供密钥但未注册",
			setup:   func(h *harness) { h.registration.registered = false },
			request: func() Request { r := inHouseIn("T", 10); r.RegistrationKey = testKey(); return r },
			want:    StatusNotRegistered,
		},
		{
			name:    "密钥不匹配",
			request: func() Request { r := inHouseIn("T", 10); r.RegistrationKey = otherKey; return r },
			want:    StatusRegistrationKeyMismatch,
		},
		{
			name:    "主机兑现待处理时转入",
			setup:   func(h *harness) { h.hostCash.winPending = true },
			request: func() Request { return inHouseIn("T", 10) },
			want:    StatusUnableToPerformTransfer,
		},
		{
			name:    "游戏中转入",
			setup:   func(h *harness) { h.disable.inGame = true },
			request: func() Request { return inHouseIn("T", 10) },
			want:    StatusUnableToPerformTransfer,
		},
		{
			name:  "游戏中奖励不受限制",
			setup: func(h *harness) { h.disable.inGame = true },
			request: func() Request {
				r := inHouseIn("T", 10)
				r.TransferType = TransferTypeBonusCoinIn
				return r
			},
			want: StatusTransferPending,
		},
		{
			name:  "故障时奖励也被拒绝",
			setup: func(h *harness) { h.disable.tilt = true },
			request: func() Request {
				r := inHouseIn("T", 10)
				r.TransferType = TransferTypeBonusJackpotIn
				return r
			},
			want: StatusUnableToPerformTransfer,
		},
		{
			name: "无法兑现的故障时转出",
			setup: func(h *harness) {
				h.disable.outDisabled = true
				h.ledger.balances.Cashable = 100
			},
			request: func() Request {
				r := inHouseIn("T", 10)
				r.TransferType = TransferTypeInHouseOut
				return r
			},
			want: StatusUnableToPerformTransfer,
		},
		{
			name:    "未知转账类型",
			request: func() Request { r := inHouseIn("T", 10); r.TransferType = 0x30; return r },
			want:    StatusUnsupportedTransferCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			response := h.engine.TransferFunds(tt.request())
			assert.Equal(t, tt.want, response.Status)
			if tt.want != StatusTransferPending {
				assert.Equal(t, StateIdle, h.engine.Dispatcher.State())
			}
		})
	}
}

// TestDispatcher_AutoPlayResumedOnRejection 被拒绝时恢复自动游戏
func TestDispatcher_AutoPlayResumedOnRejection(t *testing.T) {
	h := newHarness(t)
	h.autoPlay.active = true

	response := h.transfer(inHouseIn("TXP", 100))
	assert.Equal(t, StatusUnableToPerformTransfer, response.Status)
	assert.Equal(t, 1, h.autoPlay.ended)
	assert.Equal(t, 1, h.autoPlay.resumed)
	assert.True(t, h.autoPlay.active)
}

// TestDispatcher_ProcessorRules 各转账类型的前置条件
func TestDispatcher_ProcessorRules(t *testing.T) {
	request := func(transferType TransferType, amounts Amounts) Request {
		return Request{
			TransferCode:  TransferCodeFullOnly,
			TransferType:  transferType,
			Amounts:       amounts,
			AssetNumber:   testAssetNumber,
			TransactionID: "TXR",
		}
	}

	tests := []struct {
		name    string
		setup   func(h *harness)
		request func() Request
		want    TransferStatus
	}{
		{
			name:    "转入超过信用上限",
			setup:   func(h *harness) { h.ledger.creditLimit = 1000 },
			request: func() Request { return request(TransferTypeInHouseIn, Amounts{Cashable: 5000}) },
			want:    StatusAmountExceedsLimit,
		},
		{
			name: "限制性信用奖池不同",
			setup: func(h *harness) {
				h.ledger.balances.Restricted = 10
				h.ledger.balances.RestrictedPoolID = 1
			},
			request: func() Request {
				r := request(TransferTypeInHouseIn, Amounts{Restricted: 5})
				r.PoolID = 2
				return r
			},
			want: StatusRestrictedPoolMismatch,
		},
		{
			name:    "转入未启用",
			setup:   func(h *harness) { h.features.transferIn = false },
			request: func() Request { return request(TransferTypeInHouseIn, Amounts{Cashable: 5}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "全额转入超过转账上限",
			request: func() Request { return request(TransferTypeInHouseIn, Amounts{Cashable: 2_000_000}) },
			want:    StatusAmountExceedsLimit,
		},
		{
			name: "奖励要求全额",
			request: func() Request {
				r := request(TransferTypeBonusCoinIn, Amounts{Cashable: 5})
				r.TransferCode = TransferCodePartialAllowed
				return r
			},
			want: StatusNotAValidTransferFunction,
		},
		{
			name:    "奖励不允许限制性金额",
			request: func() Request { return request(TransferTypeBonusCoinIn, Amounts{Restricted: 5}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name: "奖励不支持收据",
			request: func() Request {
				r := request(TransferTypeBonusJackpotIn, Amounts{Cashable: 5})
				r.Flags = FlagReceiptRequest
				return r
			},
			want: StatusReceiptNotAllowedForType,
		},
		{
			name:    "奖励子系统不允许",
			setup:   func(h *harness) { h.bonus.allowed = false },
			request: func() Request { return request(TransferTypeBonusCoinIn, Amounts{Cashable: 5}) },
			want:    StatusUnableToPerformTransfer,
		},
		{
			name:    "全额转出时无余额",
			request: func() Request { return request(TransferTypeInHouseOut, Amounts{Cashable: 5}) },
			want:    StatusNotAValidTransferAmount,
		},
		{
			name: "转出未启用",
			setup: func(h *harness) {
				h.features.transferOut = false
				h.ledger.balances.Cashable = 100
			},
			request: func() Request { return request(TransferTypeInHouseOut, Amounts{Cashable: 5}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "余额不足以全额转出",
			setup:   func(h *harness) { h.ledger.balances.Cashable = 100 },
			request: func() Request { return request(TransferTypeInHouseOut, Amounts{Cashable: 500}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name: "有待兑现赢分时须走赢分转出",
			setup: func(h *harness) {
				h.ledger.balances.Cashable = 100
				h.hostCash.winPending = true
			},
			request: func() Request { return request(TransferTypeInHouseOut, Amounts{Cashable: 50}) },
			want:    StatusUnableToPerformTransfer,
		},
		{
			name:    "赢分转出未启用",
			setup:   func(h *harness) { h.features.winToHost = false },
			request: func() Request { return request(TransferTypeWinToHostOut, Amounts{Cashable: 50}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "没有待兑现赢分",
			request: func() Request { return request(TransferTypeWinToHostOut, Amounts{Cashable: 50}) },
			want:    StatusNoWonCreditsAvailable,
		},
		{
			name: "请求超过待兑现赢分",
			setup: func(h *harness) {
				h.hostCash.winPending = true
				h.hostCash.pendingWin = Amounts{Cashable: 40}
			},
			request: func() Request { return request(TransferTypeWinToHostOut, Amounts{Cashable: 50}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "借记未启用",
			setup:   func(h *harness) { h.features.debit = false },
			request: func() Request { return request(TransferTypeDebitIn, Amounts{Cashable: 50}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "借记未注册",
			setup:   func(h *harness) { h.registration.registered = false },
			request: func() Request { return request(TransferTypeDebitIn, Amounts{Cashable: 50}) },
			want:    StatusNotRegistered,
		},
		{
			name:    "借记缺少密钥",
			request: func() Request { return request(TransferTypeDebitIn, Amounts{Cashable: 50}) },
			want:    StatusRegistrationKeyMismatch,
		},
		{
			name:  "借记没有POS ID",
			setup: func(h *harness) { h.registration.posID = 0 },
			request: func() Request {
				r := request(TransferTypeDebitIn, Amounts{Cashable: 50})
				r.RegistrationKey = testKey()
				return r
			},
			want: StatusNoPOSID,
		},
		{
			name:  "借记转彩票打印机不可用",
			setup: func(h *harness) { h.printer.available = false },
			request: func() Request {
				r := request(TransferTypeDebitToTicket, Amounts{Cashable: 50})
				r.RegistrationKey = testKey()
				return r
			},
			want: StatusTicketDeviceNotAvailable,
		},
		{
			name:    "转彩票未启用",
			setup:   func(h *harness) { h.features.tickets = false },
			request: func() Request { return request(TransferTypeInHouseToTicket, Amounts{Cashable: 50}) },
			want:    StatusNotAValidTransferFunction,
		},
		{
			name:    "限制性彩票缺少有效期",
			request: func() Request { return request(TransferTypeInHouseToTicket, Amounts{Restricted: 50}) },
			want:    StatusExpirationNotValidForTicket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			response := h.transfer(tt.request())
			assert.Equal(t, tt.want, response.Status)
			assert.Equal(t, StateIdle, h.engine.Dispatcher.State())
			assert.Zero(t, h.ledger.creditCount())
		})
	}
}

// TestDispatcher_PartialTransfers 部分转账按上限或余额截取
func TestDispatcher_PartialTransfers(t *testing.T) {
	t.Run("转入截取到转账上限", func(t *testing.T) {
		h := newHarness(t)
		request := inHouseIn("TXP", 2_000_000)
		request.TransferCode = TransferCodePartialAllowed

		h.transfer(request)
		record := h.interrogate(0)
		assert.Equal(t, StatusPartialTransferSuccessful, record.Status)
		assert.Equal(t, Amounts{Cashable: 1_000_000}, record.Transferred)
	})

	t.Run("转出截取到余额", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.balances.Cashable = 300
		request := Request{
			TransferCode:  TransferCodePartialAllowed,
			TransferType:  TransferTypeInHouseOut,
			Amounts:       Amounts{Cashable: 500},
			AssetNumber:   testAssetNumber,
			TransactionID: "TXO",
		}

		h.transfer(request)
		record := h.interrogate(0)
		assert.Equal(t, StatusPartialTransferSuccessful, record.Status)
		assert.Equal(t, Amounts{Cashable: 300}, record.Transferred)
		assert.Equal(t, byte(1), record.Position)
	})

	t.Run("部分转出但余额为零被拒绝", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.balances.Restricted = 200
		request := Request{
			TransferCode:  TransferCodePartialAllowed,
			TransferType:  TransferTypeInHouseOut,
			Amounts:       Amounts{Cashable: 500},
			AssetNumber:   testAssetNumber,
			TransactionID: "TXZ",
		}

		response := h.transfer(request)
		assert.Equal(t, StatusNotAValidTransferAmount, response.Status)
		assert.Equal(t, StateIdle, h.engine.Dispatcher.State())
		assert.Zero(t, h.ledger.debitCount())
		assert.Equal(t, byte(1), h.engine.History.Cursor())
	})

	t.Run("零金额成功不写入历史", func(t *testing.T) {
		h := newHarness(t)

		h.transfer(inHouseIn("TXE", 0))
		record := h.interrogate(0)
		assert.True(t, record.Status.IsSuccess())
		assert.True(t, record.Transferred.IsZero())
		assert.Equal(t, byte(0), record.Position)
		assert.Equal(t, byte(1), h.engine.History.Cursor())
	})
}

// TestDispatcher_Completions 各类型的完成动作
func TestDispatcher_Completions(t *testing.T) {
	t.Run("赢分转出", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.balances.Cashable = 500
		h.hostCash.winPending = true
		h.hostCash.pendingWin = Amounts{Cashable: 500}

		h.transfer(Request{
			TransferCode:  TransferCodeFullOnly,
			TransferType:  TransferTypeWinToHostOut,
			Amounts:       Amounts{Cashable: 500},
			AssetNumber:   testAssetNumber,
			TransactionID: "TXW",
		})
		record := h.interrogate(0)
		assert.Equal(t, StatusFullTransferSuccessful, record.Status)
		assert.Equal(t, []string{"TXW"}, h.hostCash.completed)
		assert.False(t, h.hostCash.WinPending())
	})

	t.Run("奖励", func(t *testing.T) {
		h := newHarness(t)
		h.transfer(Request{
			TransferCode:  TransferCodeFullOnly,
			TransferType:  TransferTypeBonusJackpotIn,
			Amounts:       Amounts{Cashable: 800},
			AssetNumber:   testAssetNumber,
			TransactionID: "TXJ",
		})
		assert.Equal(t, StatusFullTransferSuccessful, h.interrogate(0).Status)
		assert.Equal(t, []Amounts{{Cashable: 800}}, h.bonus.awarded)
		assert.Zero(t, h.ledger.creditCount())
	})

	t.Run("借记转彩票", func(t *testing.T) {
		h := newHarness(t)
		h.transfer(Request{
			TransferCode:    TransferCodeFullOnly,
			TransferType:    TransferTypeDebitToTicket,
			Amounts:         Amounts{Cashable: 250},
			AssetNumber:     testAssetNumber,
			RegistrationKey: testKey(),
			TransactionID:   "TXT",
		})
		assert.Equal(t, StatusFullTransferSuccessful, h.interrogate(0).Status)
		require.Len(t, h.printer.tickets, 1)
		assert.Equal(t, Amounts{Cashable: 250}, h.printer.tickets[0].Transferred)
	})

	t.Run("打印收据", func(t *testing.T) {
		h := newHarness(t)
		request := inHouseIn("TXR", 100)
		request.Flags = FlagReceiptRequest
		request.ReceiptData.PatronAccountNumber = "ACC-1"

		response := h.transfer(request)
		assert.Equal(t, ReceiptPending, response.ReceiptStatus)

		record := h.interrogate(0)
		assert.Equal(t, ReceiptPrinted, record.ReceiptStatus)
		assert.Len(t, h.printer.receipts, 1)
	})
}

// TestDispatcher_BackgroundFailures 后台失败必须写回当前转账
func TestDispatcher_BackgroundFailures(t *testing.T) {
	t.Run("账本错误", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.moveErr = errLedgerOffline

		h.transfer(inHouseIn("TXE", 100))
		record := h.interrogate(0)
		assert.Equal(t, StatusUnexpectedError, record.Status)
		assert.Equal(t, byte(0), record.Position)
		assert.Equal(t, byte(1), h.engine.History.Cursor())
	})

	t.Run("panic", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.panicOnMove = true

		h.transfer(inHouseIn("TXX", 100))
		current, _ := h.engine.Dispatcher.Current()
		assert.Equal(t, StatusUnexpectedError, current.Status)
		assert.Equal(t, StateCompletedUnacknowledged, h.engine.Dispatcher.State())
	})

	t.Run("查询余额失败", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.balanceErr = errLedgerOffline

		response := h.transfer(inHouseIn("TXQ", 100))
		assert.Equal(t, StatusUnexpectedError, response.Status)
		assert.Equal(t, StateIdle, h.engine.Dispatcher.State())
	})
}

// TestDispatcher_HistoryCommitExactlyOnce 写入历史失败后由确认查询补写，且只写一次
func TestDispatcher_HistoryCommitExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.historyStore.FailNextSave(errors.New("disk full"))

	h.transfer(inHouseIn("TXC", 700))
	current, _ := h.engine.Dispatcher.Current()
	assert.Equal(t, StatusFullTransferSuccessful, current.Status)
	assert.Equal(t, byte(0), current.Position)

	statusOnly := h.engine.TransferFunds(Request{TransferCode: TransferCodeInterrogateStatusOnly})
	assert.Equal(t, byte(0), statusOnly.Position)
	assert.Equal(t, 0, h.historyStore.Saves())

	ack := h.interrogate(0)
	assert.Equal(t, byte(1), ack.Position)
	assert.Equal(t, 1, h.historyStore.Saves())

	again := h.interrogate(0)
	assert.Equal(t, byte(1), again.Position)
	assert.Equal(t, 1, h.historyStore.Saves())

	entry := h.interrogate(1)
	assert.Equal(t, "TXC", entry.TransactionID)
	assert.Equal(t, uint64(700), entry.Transferred.Cashable)
}

// TestDispatcher_LockAfterTransfer 标志位6要求锁机，完成后保持锁定
func TestDispatcher_LockAfterTransfer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	lock := h.engine.GameLockAndStatus(ctx, LockRequest{
		AssetNumber: testAssetNumber,
		Code:        LockCodeRequest,
		Conditions:  ConditionToMachine,
		Timeout:     6000,
	})
	require.Equal(t, LockStatusLocked, lock.LockStatus)

	request := inHouseIn("TXL1", 100)
	request.Flags = FlagLockAfterTransfer
	h.transfer(request)
	assert.Equal(t, StatusFullTransferSuccessful, h.interrogate(0).Status)
	assert.True(t, h.engine.Lock.IsLocked())

	h.transfer(inHouseIn("TXL2", 100))
	assert.Equal(t, StatusFullTransferSuccessful, h.interrogate(0).Status)
	assert.False(t, h.engine.Lock.IsLocked())
}

func TestValidTransactionID(t *testing.T) {
	assert.True(t, ValidTransactionID("A"))
	assert.True(t, ValidTransactionID(strings.Repeat("9", MaxTransactionIDLength)))
	assert.True(t, ValidTransactionID("tx 01~"))
	assert.False(t, ValidTransactionID(""))
	assert.False(t, ValidTransactionID(strings.Repeat("9", MaxTransactionIDLength+1)))
	assert.False(t, ValidTransactionID("tx\x7f"))
	assert.False(t, ValidTransactionID("交易"))
}
