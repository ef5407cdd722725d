package repository

import (
	"context"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create appends one ledger transaction. Rows are immutable once committed;
// there is deliberately no Update or Delete on this repository.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerTransaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&LedgerTransactionEntity{})

	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Kind != nil {
		q = q.Where("kind = ?", string(*f.Kind))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*LedgerTransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// SumByClient re-derives a client's balance from the transaction log. The
// result must always equal the wallet balance; reconciliation jobs and the
// test suite use it to detect drift.
func (r *TransactionRepository) SumByClient(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	var raw *string
	err := r.Read(ctx).WithContext(ctx).
		Model(&LedgerTransactionEntity{}).
		Where("client_id = ?", clientID).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Scan(&raw).
		Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
