package machine

import (
	"context"
	"time"

	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/models"
	"github.com/wfunc/egm-aft/internal/repository"
	"go.uber.org/zap"
)

// journalTimeout 单条审计记录写入超时
const journalTimeout = 5 * time.Second

// Journal 转账审计记录（实现 aft.TransferObserver）
type Journal struct {
	repo   *repository.TransferLogRepository
	logger *zap.Logger
}

// NewJournal 创建审计记录器
func NewJournal(repo *repository.TransferLogRepository, logger *zap.Logger) *Journal {
	return &Journal{repo: repo, logger: logger}
}

// OnTransferCompleted 记录已完成的转账
func (j *Journal) OnTransferCompleted(record aft.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	completedAt := record.Timestamp
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	err := j.repo.Create(ctx, &models.TransferLog{
		TransactionID: record.TransactionID,
		TransferType:  uint8(record.TransferType),
		TransferCode:  uint8(record.TransferCode),
		Status:        uint8(record.Status),
		ReceiptStatus: uint8(record.ReceiptStatus),
		Flags:         uint8(record.Flags),
		AssetNumber:   record.AssetNumber,
		Position:      record.Position,
		POSID:         record.POSID,
		Cashable:      int64(record.Transferred.Cashable),
		Restricted:    int64(record.Transferred.Restricted),
		NonRestricted: int64(record.Transferred.NonRestricted),
		Requested:     int64(record.Amounts.Total()),
		CompletedAt:   completedAt,
	})
	if err != nil {
		j.logger.Error("写入转账审计记录失败",
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err))
	}
}
