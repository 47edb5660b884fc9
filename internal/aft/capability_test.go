package aft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityResolver_AvailableTransfers(t *testing.T) {
	h := newHarness(t)
	resolver := h.engine.Capabilities

	all := resolver.AvailableTransfers()
	assert.Equal(t, CapabilityFlags{ToMachine: true, FromMachine: true, ToPrinter: true, BonusToMachine: true}, all)
	assert.Equal(t, byte(0x17), all.Bits())

	h.disable.inGame = true
	inGame := resolver.AvailableTransfers()
	assert.False(t, inGame.ToMachine)
	assert.False(t, inGame.ToPrinter)
	assert.True(t, inGame.BonusToMachine)
	assert.True(t, inGame.FromMachine)

	h.disable.inGame = false
	h.hostCash.winPending = true
	win := resolver.AvailableTransfers()
	assert.False(t, win.FromMachine)
	assert.True(t, win.WinPendingCashOutToHost)
}

func TestCapabilityResolver_FastPaths(t *testing.T) {
	t.Run("AFT未启用", func(t *testing.T) {
		h := newHarness(t)
		h.features.aftEnabled = false
		assert.Zero(t, h.engine.Capabilities.AvailableTransfers().Bits())
	})

	t.Run("转入转出都未启用", func(t *testing.T) {
		h := newHarness(t)
		h.features.transferIn = false
		h.features.transferOut = false
		assert.Zero(t, h.engine.Capabilities.AvailableTransfers().Bits())
	})

	t.Run("转账进行中", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.gate = make(chan struct{})
		h.engine.TransferFunds(inHouseIn("TXG", 10))

		assert.Zero(t, h.engine.Capabilities.AvailableTransfers().Bits())
		close(h.ledger.gate)
		h.engine.Dispatcher.Wait()
		assert.NotZero(t, h.engine.Capabilities.AvailableTransfers().Bits())
	})
}

func TestCapabilityResolver_TransferAllowedUnderLock(t *testing.T) {
	h := newHarness(t)
	resolver := h.engine.Capabilities

	assert.True(t, resolver.TransferAllowedUnderLock(ConditionToMachine|ConditionFromMachine|ConditionBonus))
	assert.True(t, resolver.TransferAllowedUnderLock(0))

	h.printer.available = false
	assert.False(t, resolver.TransferAllowedUnderLock(ConditionToPrinter))
	assert.True(t, resolver.TransferAllowedUnderLock(ConditionToMachine))
}

func TestCapabilityResolver_Status(t *testing.T) {
	h := newHarness(t)

	status := h.engine.Capabilities.Status()
	assert.True(t, status.PrinterAvailableForReceipts)
	assert.True(t, status.PartialTransfersAllowed)
	assert.False(t, status.CustomTicketDataSupported)
	assert.True(t, status.Registered)
	assert.Equal(t, byte(0xFB), status.Bits())

	h.features.aftEnabled = false
	status = h.engine.Capabilities.Status()
	assert.False(t, status.AnyTransferEnabled)
	assert.False(t, status.BonusTransfersEnabled)
}

func TestCapabilityResolver_HostCashOutBits(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, byte(0x01), h.engine.Capabilities.HostCashOutBits())

	h.hostCash.ApplyHostCashOutFlags(true, true)
	assert.Equal(t, byte(0x07), h.engine.Capabilities.HostCashOutBits())
}
