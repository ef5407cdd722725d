package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingRule is a per-client override of the price charged per message.
// Absence of a rule means the system default applies; that is not an error.
type PricingRule struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	PricePerMessage decimal.Decimal `json:"price_per_message"`
	Currency        string          `json:"currency"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (PricingRule) TableName() string { return "pricing_rules" }
