package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type LedgerTransactionEntity struct {
	ID           int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	ClientID     int64           `db:"client_id"      gorm:"column:client_id;not null;index"`
	CampaignID   *int64          `db:"campaign_id"    gorm:"column:campaign_id;index"`
	MessageLogID *int64          `db:"message_log_id" gorm:"column:message_log_id;index"`
	Kind         string          `db:"kind"           gorm:"column:kind;not null;index"`
	Amount       decimal.Decimal `db:"amount"         gorm:"column:amount;type:numeric(14,4);not null"`
	Currency     string          `db:"currency"       gorm:"column:currency;not null"`
	Description  string          `db:"description"    gorm:"column:description"`
	ReferenceID  string          `db:"reference_id"   gorm:"column:reference_id"`
	CreatedAt    time.Time       `db:"created_at"     gorm:"column:created_at;autoCreateTime;index"`
}

func (LedgerTransactionEntity) TableName() string {
	return "ledger_transactions"
}

func toTransactionEntity(m *model.LedgerTransaction) *LedgerTransactionEntity {
	if m == nil {
		return nil
	}
	return &LedgerTransactionEntity{
		ID:           m.ID,
		ClientID:     m.ClientID,
		CampaignID:   m.CampaignID,
		MessageLogID: m.MessageLogID,
		Kind:         string(m.Kind),
		Amount:       m.Amount,
		Currency:     m.Currency,
		Description:  m.Description,
		ReferenceID:  m.ReferenceID,
		CreatedAt:    m.CreatedAt,
	}
}

func toTransactionModel(e *LedgerTransactionEntity) *model.LedgerTransaction {
	if e == nil {
		return nil
	}
	return &model.LedgerTransaction{
		ID:           e.ID,
		ClientID:     e.ClientID,
		CampaignID:   e.CampaignID,
		MessageLogID: e.MessageLogID,
		Kind:         model.TransactionKind(e.Kind),
		Amount:       e.Amount,
		Currency:     e.Currency,
		Description:  e.Description,
		ReferenceID:  e.ReferenceID,
		CreatedAt:    e.CreatedAt,
	}
}

func toTransactionModels(entities []*LedgerTransactionEntity) []*model.LedgerTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.LedgerTransaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
