package repository

import (
	"context"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
)

type WalletRepository struct {
	*pg.DB
}

func NewWalletRepository(db *pg.DB) *WalletRepository {
	return &WalletRepository{
		db,
	}
}

// Create provisions a zero-balance wallet for a client. Called once when the
// client account is created; the wallet lives as long as the client does.
func (r *WalletRepository) Create(ctx context.Context, clientID int64, currency string) (*model.Wallet, error) {
	entity := &WalletEntity{
		ClientID: clientID,
		Balance:  decimal.Zero,
		Currency: currency,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toWalletModel(entity), nil
}

func (r *WalletRepository) GetByClientID(ctx context.Context, clientID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

// GetForUpdate loads the wallet row under a SELECT FOR UPDATE lock. Must be
// called inside WithinTransaction; the lock serializes concurrent balance
// mutations for the same client without ever blocking other clients.
func (r *WalletRepository) GetForUpdate(ctx context.Context, clientID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("client_id = ?", clientID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

// AdjustBalance applies a signed delta to the wallet balance. Callers hold
// the row lock from GetForUpdate and commit the compensating ledger row in
// the same transaction.
func (r *WalletRepository) AdjustBalance(ctx context.Context, clientID int64, delta decimal.Decimal) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&WalletEntity{}).
		Where("client_id = ?", clientID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
