package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type WalletEntity struct {
	ID        int64           `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ClientID  int64           `db:"client_id"  gorm:"column:client_id;not null;uniqueIndex"`
	Balance   decimal.Decimal `db:"balance"    gorm:"column:balance;type:numeric(14,4);not null;default:0"`
	Currency  string          `db:"currency"   gorm:"column:currency;not null;default:USD"`
	UpdatedAt time.Time       `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (WalletEntity) TableName() string {
	return "wallets"
}

func toWalletEntity(m *model.Wallet) *WalletEntity {
	if m == nil {
		return nil
	}
	return &WalletEntity{
		ID:        m.ID,
		ClientID:  m.ClientID,
		Balance:   m.Balance,
		Currency:  m.Currency,
		UpdatedAt: m.UpdatedAt,
	}
}

func toWalletModel(e *WalletEntity) *model.Wallet {
	if e == nil {
		return nil
	}
	return &model.Wallet{
		ID:        e.ID,
		ClientID:  e.ClientID,
		Balance:   e.Balance,
		Currency:  e.Currency,
		UpdatedAt: e.UpdatedAt,
	}
}
