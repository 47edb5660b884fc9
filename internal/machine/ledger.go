package machine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/logger"
	"github.com/wfunc/egm-aft/internal/models"
	"github.com/wfunc/egm-aft/internal/repository"
	"go.uber.org/zap"
)

// CreditLimiter 信用上限来源
type CreditLimiter interface {
	CreditLimit() uint64
}

// Ledger 数据库信用账本（实现 aft.Ledger），内存余额只在事务提交后更新
type Ledger struct {
	writeMu  sync.Mutex // 串行化账本写入
	mu       sync.RWMutex
	balances aft.Balances
	repo     *repository.CreditRepository
	limits   CreditLimiter
	logger   *zap.Logger
}

// NewLedger 创建账本并加载余额
func NewLedger(ctx context.Context, repo *repository.CreditRepository, limits CreditLimiter, log *zap.Logger) (*Ledger, error) {
	row, err := repo.Balance(ctx)
	if err != nil {
		return nil, err
	}

	l := &Ledger{repo: repo, limits: limits, logger: log}
	l.balances = toBalances(row)
	log.Info("信用余额已加载",
		zap.Uint64("cashable", l.balances.Cashable),
		zap.Uint64("restricted", l.balances.Restricted),
		zap.Uint64("non_restricted", l.balances.NonRestricted))
	return l, nil
}

// Balances 当前余额
func (l *Ledger) Balances(ctx context.Context) (aft.Balances, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances, nil
}

// CreditLimit 机台信用上限
func (l *Ledger) CreditLimit() uint64 {
	return l.limits.CreditLimit()
}

// Credit 入账
func (l *Ledger) Credit(ctx context.Context, transactionID string, amounts aft.Amounts, poolID uint16, expiration uint32) error {
	entry := newLedgerEntry(transactionID, models.LedgerCredit, amounts)
	entry.PoolID = poolID
	return l.apply(ctx, entry, expiration)
}

// Debit 出账
func (l *Ledger) Debit(ctx context.Context, transactionID string, amounts aft.Amounts) error {
	return l.apply(ctx, newLedgerEntry(transactionID, models.LedgerDebit, amounts), 0)
}

func (l *Ledger) apply(ctx context.Context, entry *models.LedgerEntry, expiration uint32) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	row, err := l.repo.Apply(ctx, entry, expiration)
	if err != nil {
		l.logger.Error("账本写入失败",
			zap.String("transaction_id", entry.TransactionID),
			zap.String("direction", string(entry.Direction)),
			zap.Error(err))
		return err
	}

	l.mu.Lock()
	l.balances = toBalances(row)
	l.mu.Unlock()

	logger.LogTransferEvent("ledger_"+string(entry.Direction), entry.TransactionID,
		zap.String("ledger_id", entry.LedgerID),
		zap.Int64("cashable", entry.Cashable),
		zap.Int64("restricted", entry.Restricted),
		zap.Int64("non_restricted", entry.NonRestricted),
		zap.Int64("balance_after", entry.BalanceAfter))
	return nil
}

func newLedgerEntry(transactionID string, direction models.LedgerDirection, amounts aft.Amounts) *models.LedgerEntry {
	return &models.LedgerEntry{
		LedgerID:      uuid.NewString(),
		TransactionID: transactionID,
		Direction:     direction,
		Cashable:      int64(amounts.Cashable),
		Restricted:    int64(amounts.Restricted),
		NonRestricted: int64(amounts.NonRestricted),
	}
}

func toBalances(row *models.CreditBalance) aft.Balances {
	return aft.Balances{
		Amounts: aft.Amounts{
			Cashable:      uint64(row.Cashable),
			Restricted:    uint64(row.Restricted),
			NonRestricted: uint64(row.NonRestricted),
		},
		RestrictedPoolID:     row.RestrictedPoolID,
		RestrictedExpiration: row.RestrictedExpiration,
	}
}
