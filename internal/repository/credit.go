package repository

import (
	"context"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository 信用余额与流水仓储
type CreditRepository struct {
	*BaseRepo
}

// NewCreditRepository 创建信用仓储
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{BaseRepo: NewBaseRepo(db)}
}

// Balance 读取当前余额，记录不存在时创建
func (r *CreditRepository) Balance(ctx context.Context) (*models.CreditBalance, error) {
	balance := models.NewCreditBalance()
	if err := r.db.WithContext(ctx).FirstOrCreate(balance, models.CreditBalance{ID: balance.ID}).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "读取余额失败")
	}
	return balance, nil
}

// Apply 在一个事务内更新余额并写入流水，返回更新后的余额
func (r *CreditRepository) Apply(ctx context.Context, entry *models.LedgerEntry, expiration uint32) (*models.CreditBalance, error) {
	var result *models.CreditBalance
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		balance := models.NewCreditBalance()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			FirstOrCreate(balance, models.CreditBalance{ID: balance.ID}).Error
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "锁定余额失败")
		}

		switch entry.Direction {
		case models.LedgerCredit:
			balance.Cashable += entry.Cashable
			balance.Restricted += entry.Restricted
			balance.NonRestricted += entry.NonRestricted
			if entry.Restricted > 0 {
				balance.RestrictedPoolID = entry.PoolID
				balance.RestrictedExpiration = expiration
			}
		case models.LedgerDebit:
			if balance.Cashable < entry.Cashable ||
				balance.Restricted < entry.Restricted ||
				balance.NonRestricted < entry.NonRestricted {
				return apperrors.Newf(apperrors.ErrInsufficientCredits, "交易 %s", entry.TransactionID)
			}
			balance.Cashable -= entry.Cashable
			balance.Restricted -= entry.Restricted
			balance.NonRestricted -= entry.NonRestricted
			if balance.Restricted == 0 {
				balance.RestrictedPoolID = 0
				balance.RestrictedExpiration = 0
			}
		default:
			return apperrors.Newf(apperrors.ErrInvalidParam, "未知账本方向: %s", entry.Direction)
		}

		if err := tx.Save(balance).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新余额失败")
		}

		entry.BalanceAfter = balance.Cashable + balance.Restricted + balance.NonRestricted
		if err := tx.Create(entry).Error; err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "写入账本流水失败")
		}

		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Entries 按交易号查询流水
func (r *CreditRepository) Entries(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return entries, nil
}
