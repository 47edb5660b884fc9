package machine

import (
	"context"

	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/models"
	"github.com/wfunc/egm-aft/internal/repository"
)

// Meters AFT累计计数器（实现 aft.MeterRecorder）
type Meters struct {
	repo *repository.MeterRepository
}

// NewMeters 创建计数器
func NewMeters(repo *repository.MeterRepository) *Meters {
	return &Meters{repo: repo}
}

// Increment 累加并返回该转账类型的累计金额
func (m *Meters) Increment(ctx context.Context, transferType aft.TransferType, amounts aft.Amounts) (aft.Amounts, error) {
	meter, err := m.repo.Increment(ctx, models.TransferMeter{
		TransferType:  uint8(transferType),
		Cashable:      int64(amounts.Cashable),
		Restricted:    int64(amounts.Restricted),
		NonRestricted: int64(amounts.NonRestricted),
	})
	if err != nil {
		return aft.Amounts{}, err
	}
	return aft.Amounts{
		Cashable:      uint64(meter.Cashable),
		Restricted:    uint64(meter.Restricted),
		NonRestricted: uint64(meter.NonRestricted),
	}, nil
}
