package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound indicates the client has no wallet row.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrLedgerPersistence wraps storage failures during a ledger write.
	// A charge that fails with this error means the message may have been
	// sent without being billed; callers must surface it for reconciliation.
	ErrLedgerPersistence = errors.New("ledger persistence failure")
)

type WalletRepository interface {
	Create(ctx context.Context, clientID int64, currency string) (*model.Wallet, error)
	GetByClientID(ctx context.Context, clientID int64) (*model.Wallet, error)
	GetForUpdate(ctx context.Context, clientID int64) (*model.Wallet, error)
	AdjustBalance(ctx context.Context, clientID int64, delta decimal.Decimal) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.LedgerTransaction) (*model.LedgerTransaction, error)
	List(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerTransaction, int64, error)
	SumByClient(ctx context.Context, clientID int64) (decimal.Decimal, error)
}

type PriceResolver interface {
	Resolve(ctx context.Context, clientID int64) (decimal.Decimal, string, error)
}

// RecordParams describes a single ledger entry to be written.
type RecordParams struct {
	ClientID     int64
	Amount       decimal.Decimal
	Kind         model.TransactionKind
	Description  string
	Currency     string
	CampaignID   *int64
	MessageLogID *int64
	ReferenceID  string
}

// LedgerService is the single writer of wallet balances. Every balance
// change goes through Record, which stores an immutable transaction row
// and adjusts the wallet inside one database transaction.
type LedgerService struct {
	wallets WalletRepository
	txns    TransactionRepository
	pricing PriceResolver
}

func NewLedgerService(wallets WalletRepository, txns TransactionRepository, pricing PriceResolver) *LedgerService {
	return &LedgerService{
		wallets: wallets,
		txns:    txns,
		pricing: pricing,
	}
}

// Record normalizes the amount sign for the transaction kind, then atomically
// appends the ledger row and applies the delta to the wallet balance. The
// wallet row is locked for the duration so concurrent charges serialize.
func (s *LedgerService) Record(ctx context.Context, params RecordParams) (*model.LedgerTransaction, error) {
	normalized := params.Kind.NormalizeAmount(params.Amount)

	var created *model.LedgerTransaction
	err := s.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetForUpdate(ctx, params.ClientID)
		if err != nil {
			if errors.Is(err, repository.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("%w: lock wallet: %v", ErrLedgerPersistence, err)
		}

		currency := params.Currency
		if currency == "" {
			currency = wallet.Currency
		}

		created, err = s.txns.Create(ctx, &model.LedgerTransaction{
			ClientID:     params.ClientID,
			Amount:       normalized,
			Currency:     currency,
			Kind:         params.Kind,
			Description:  params.Description,
			CampaignID:   params.CampaignID,
			MessageLogID: params.MessageLogID,
			ReferenceID:  params.ReferenceID,
		})
		if err != nil {
			return fmt.Errorf("%w: append transaction: %v", ErrLedgerPersistence, err)
		}

		if err := s.wallets.AdjustBalance(ctx, params.ClientID, normalized); err != nil {
			return fmt.Errorf("%w: adjust balance: %v", ErrLedgerPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ChargeForMessage resolves the client's per-message price and records a
// MESSAGE_COST debit referencing the message log. This is the only path
// that charges for an individual send.
func (s *LedgerService) ChargeForMessage(ctx context.Context, clientID, messageLogID int64, campaignID *int64) (*model.LedgerTransaction, error) {
	price, currency, err := s.pricing.Resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Cost for message ID %d", messageLogID)
	if campaignID != nil {
		description = fmt.Sprintf("Cost for message ID %d (campaign %d)", messageLogID, *campaignID)
	}

	return s.Record(ctx, RecordParams{
		ClientID:     clientID,
		Amount:       price,
		Kind:         model.KindMessageCost,
		Description:  description,
		Currency:     currency,
		CampaignID:   campaignID,
		MessageLogID: &messageLogID,
	})
}

// TopUp credits the wallet. referenceID carries the external payment id.
func (s *LedgerService) TopUp(ctx context.Context, clientID int64, amount decimal.Decimal, description, referenceID string) (*model.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, errors.New("top-up amount must be positive")
	}
	if description == "" {
		description = "Wallet top-up"
	}
	return s.Record(ctx, RecordParams{
		ClientID:    clientID,
		Amount:      amount,
		Kind:        model.KindTopUp,
		Description: description,
		ReferenceID: referenceID,
	})
}

// RefundMessage credits back the amount previously charged for a message.
func (s *LedgerService) RefundMessage(ctx context.Context, clientID, messageLogID int64, amount decimal.Decimal, reason string) (*model.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, errors.New("refund amount must be positive")
	}
	description := fmt.Sprintf("Refund for message ID %d", messageLogID)
	if reason != "" {
		description = fmt.Sprintf("%s: %s", description, reason)
	}
	return s.Record(ctx, RecordParams{
		ClientID:     clientID,
		Amount:       amount,
		Kind:         model.KindRefund,
		Description:  description,
		MessageLogID: &messageLogID,
	})
}

// Balance returns the wallet's stored balance and currency.
func (s *LedgerService) Balance(ctx context.Context, clientID int64) (decimal.Decimal, string, error) {
	wallet, err := s.wallets.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return decimal.Zero, "", ErrWalletNotFound
		}
		return decimal.Zero, "", err
	}
	return wallet.Balance, wallet.Currency, nil
}

// ListTransactions returns a page of the client's ledger history,
// newest first, with the total count for pagination.
func (s *LedgerService) ListTransactions(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerTransaction, int64, error) {
	return s.txns.List(ctx, filter)
}

// AuditBalance re-derives the balance from the transaction history and
// compares it with the stored wallet balance. A drift means a balance
// write happened outside the ledger and needs manual investigation.
func (s *LedgerService) AuditBalance(ctx context.Context, clientID int64) (stored, derived decimal.Decimal, err error) {
	wallet, err := s.wallets.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return decimal.Zero, decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, decimal.Zero, err
	}
	derived, err = s.txns.SumByClient(ctx, clientID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !wallet.Balance.Equal(derived) {
		logger.Warn("wallet balance drift detected",
			"client_id", clientID,
			"stored", wallet.Balance.String(),
			"derived", derived.String())
	}
	return wallet.Balance, derived, nil
}
