package machine

import (
	"context"

	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/logger"
	"go.uber.org/zap"
)

// BonusAwarder 奖励发放（实现 aft.BonusAwarder），奖励直接记入机台信用
type BonusAwarder struct {
	state  *State
	ledger aft.Ledger
}

// NewBonusAwarder 创建奖励发放器
func NewBonusAwarder(state *State, ledger aft.Ledger) *BonusAwarder {
	return &BonusAwarder{state: state, ledger: ledger}
}

// BonusAllowed 当前是否允许发放奖励
func (b *BonusAwarder) BonusAllowed() bool {
	return b.state.BonusAllowed()
}

// AwardBonus 发放奖励
func (b *BonusAwarder) AwardBonus(ctx context.Context, transactionID string, transferType aft.TransferType, amounts aft.Amounts) error {
	if err := b.ledger.Credit(ctx, transactionID, amounts, 0, 0); err != nil {
		return err
	}
	logger.LogTransferEvent("bonus_awarded", transactionID,
		zap.String("transfer_type", transferType.String()),
		zap.Uint64("total", amounts.Total()))
	return nil
}
