package aft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRouter_InterrogateWithoutTransfer 没有任何转账时返回无信息
func TestRouter_InterrogateWithoutTransfer(t *testing.T) {
	h := newHarness(t)

	for _, code := range []TransferCode{TransferCodeInterrogate, TransferCodeInterrogateStatusOnly, TransferCodeCancel} {
		record := h.engine.TransferFunds(Request{TransferCode: code})
		assert.Equal(t, StatusNoTransferInfoAvailable, record.Status, "code 0x%02X", byte(code))
	}
}

// TestRouter_UnwrittenHistoryIndex 查询未写入的历史位置回填索引
func TestRouter_UnwrittenHistoryIndex(t *testing.T) {
	h := newHarness(t)

	record := h.interrogate(42)
	assert.Equal(t, StatusNoTransferInfoAvailable, record.Status)
	assert.Equal(t, byte(42), record.TransactionIndex)
	assert.Equal(t, ReceiptNotRequested, record.ReceiptStatus)
}

// TestRouter_CancelReportsStatus 取消请求只报告当前状态，不确认
func TestRouter_CancelReportsStatus(t *testing.T) {
	h := newHarness(t)
	h.transfer(inHouseIn("TXC", 100))

	record := h.engine.TransferFunds(Request{TransferCode: TransferCodeCancel, TransactionID: "TXC"})
	assert.Equal(t, StatusFullTransferSuccessful, record.Status)
	assert.Equal(t, StateCompletedUnacknowledged, h.engine.Dispatcher.State())
	assert.Equal(t, 1, h.ledger.creditCount())
}

// TestRouter_UnsupportedTransferCode 未知转账码
func TestRouter_UnsupportedTransferCode(t *testing.T) {
	h := newHarness(t)

	record := h.engine.TransferFunds(Request{TransferCode: 0x55, TransactionID: "TXU"})
	assert.Equal(t, StatusUnsupportedTransferCode, record.Status)
	assert.Equal(t, ReceiptNotRequested, record.ReceiptStatus)
	_, ok := h.engine.Dispatcher.Current()
	assert.False(t, ok)
}

// TestRouter_HostCashOutFlags 新请求按标志位更新主机兑现设置
func TestRouter_HostCashOutFlags(t *testing.T) {
	h := newHarness(t)

	request := inHouseIn("TXH", 100)
	request.Flags = FlagHostCashOutEnableControl | FlagHostCashOutEnable | FlagHostCashOutModeHard
	h.transfer(request)
	assert.True(t, h.hostCash.HostCashOutEnabled())
	assert.True(t, h.hostCash.HostCashOutHardMode())

	// 未确认时的新请求被拒绝，不改变设置
	rejected := inHouseIn("TXH2", 100)
	rejected.Flags = FlagHostCashOutEnableControl
	assert.Equal(t, StatusNotCompatibleWithCurrentTransfer, h.engine.TransferFunds(rejected).Status)
	assert.True(t, h.hostCash.HostCashOutEnabled())

	h.interrogate(0)
	h.transfer(rejected)
	assert.False(t, h.hostCash.HostCashOutEnabled())
	assert.False(t, h.hostCash.HostCashOutHardMode())
}
