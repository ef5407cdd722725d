package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-client prepaid balance. The balance is mutated only by
// the ledger service, atomically with the transaction row that explains the
// change, so it always equals the signed sum of committed transactions.
type Wallet struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"client_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

// TransactionKind classifies a ledger transaction and fixes its polarity.
type TransactionKind string

const (
	KindTopUp        TransactionKind = "TOP_UP"
	KindMessageCost  TransactionKind = "MESSAGE_COST"
	KindCampaignCost TransactionKind = "CAMPAIGN_COST"
	KindRefund       TransactionKind = "REFUND"
	KindServiceFee   TransactionKind = "SERVICE_FEE"
	KindOther        TransactionKind = "OTHER"
)

// Polarity returns -1 for debit kinds, +1 for credit kinds and 0 for OTHER,
// which keeps the caller's sign.
func (k TransactionKind) Polarity() int {
	switch k {
	case KindMessageCost, KindCampaignCost, KindServiceFee:
		return -1
	case KindTopUp, KindRefund:
		return 1
	default:
		return 0
	}
}

// NormalizeAmount applies the kind's polarity convention: debit kinds store
// -abs(amount), credit kinds +abs(amount), OTHER passes through unchanged.
func (k TransactionKind) NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	switch k.Polarity() {
	case -1:
		return amount.Abs().Neg()
	case 1:
		return amount.Abs()
	default:
		return amount
	}
}

// LedgerTransaction is one immutable entry in the append-only wallet ledger.
type LedgerTransaction struct {
	ID           int64           `json:"id"`
	ClientID     int64           `json:"client_id"`
	CampaignID   *int64          `json:"campaign_id,omitempty"`
	MessageLogID *int64          `json:"message_log_id,omitempty"`
	Kind         TransactionKind `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Description  string          `json:"description"`
	ReferenceID  string          `json:"reference_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (LedgerTransaction) TableName() string { return "ledger_transactions" }

// LedgerFilter controls transaction list queries for the reporting surface.
type LedgerFilter struct {
	ClientID *int64
	Kind     *TransactionKind
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	Desc     bool
}
