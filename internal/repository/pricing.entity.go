package repository

import (
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type PricingRuleEntity struct {
	ID              int64           `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	ClientID        int64           `db:"client_id"         gorm:"column:client_id;not null;uniqueIndex"`
	PricePerMessage decimal.Decimal `db:"price_per_message" gorm:"column:price_per_message;type:numeric(10,4);not null"`
	Currency        string          `db:"currency"          gorm:"column:currency;not null;default:USD"`
	Notes           string          `db:"notes"             gorm:"column:notes"`
	CreatedAt       time.Time       `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (PricingRuleEntity) TableName() string {
	return "pricing_rules"
}

func toPricingRuleEntity(m *model.PricingRule) *PricingRuleEntity {
	if m == nil {
		return nil
	}
	return &PricingRuleEntity{
		ID:              m.ID,
		ClientID:        m.ClientID,
		PricePerMessage: m.PricePerMessage,
		Currency:        m.Currency,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toPricingRuleModel(e *PricingRuleEntity) *model.PricingRule {
	if e == nil {
		return nil
	}
	return &model.PricingRule{
		ID:              e.ID,
		ClientID:        e.ClientID,
		PricePerMessage: e.PricePerMessage,
		Currency:        e.Currency,
		Notes:           e.Notes,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toPricingRuleModels(entities []*PricingRuleEntity) []*model.PricingRule {
	if entities == nil {
		return nil
	}
	models := make([]*model.PricingRule, len(entities))
	for i, e := range entities {
		models[i] = toPricingRuleModel(e)
	}
	return models
}
