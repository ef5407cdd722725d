package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/shopspring/decimal"
)

type PricingRepository interface {
	GetByClientID(ctx context.Context, clientID int64) (*model.PricingRule, error)
	Upsert(ctx context.Context, rule *model.PricingRule) (*model.PricingRule, error)
	Delete(ctx context.Context, clientID int64) error
	List(ctx context.Context) ([]*model.PricingRule, error)
}

// PricingConfig carries the system-wide fallback used when a client has no
// pricing rule. Injected at construction; never read from process globals.
type PricingConfig struct {
	DefaultPricePerMessage decimal.Decimal
	DefaultCurrency        string
}

// PricingService resolves the effective per-message price for a client.
type PricingService struct {
	repo PricingRepository
	cfg  PricingConfig
}

func NewPricingService(repo PricingRepository, cfg PricingConfig) *PricingService {
	return &PricingService{
		repo: repo,
		cfg:  cfg,
	}
}

// Resolve returns the client's price per message and currency. A missing
// rule falls back to the configured default and is not an error.
func (s *PricingService) Resolve(ctx context.Context, clientID int64) (decimal.Decimal, string, error) {
	rule, err := s.repo.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrPricingRuleNotFound) {
			return s.cfg.DefaultPricePerMessage, s.cfg.DefaultCurrency, nil
		}
		return decimal.Zero, "", fmt.Errorf("resolve pricing: %w", err)
	}
	return rule.PricePerMessage, rule.Currency, nil
}

// SetRule upserts a client's pricing override. Admin surface only.
func (s *PricingService) SetRule(ctx context.Context, rule *model.PricingRule) (*model.PricingRule, error) {
	if rule.ClientID == 0 {
		return nil, errors.New("client_id is required")
	}
	if rule.PricePerMessage.IsNegative() {
		return nil, errors.New("price_per_message cannot be negative")
	}
	if rule.Currency == "" {
		rule.Currency = s.cfg.DefaultCurrency
	}
	return s.repo.Upsert(ctx, rule)
}

func (s *PricingService) DeleteRule(ctx context.Context, clientID int64) error {
	return s.repo.Delete(ctx, clientID)
}

func (s *PricingService) ListRules(ctx context.Context) ([]*model.PricingRule, error) {
	return s.repo.List(ctx)
}
