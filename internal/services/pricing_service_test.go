package services

import (
	"context"
	"errors"
	"testing"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPricingRepository struct {
	mock.Mock
}

func (m *MockPricingRepository) GetByClientID(ctx context.Context, clientID int64) (*model.PricingRule, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PricingRule), args.Error(1)
}

func (m *MockPricingRepository) Upsert(ctx context.Context, rule *model.PricingRule) (*model.PricingRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PricingRule), args.Error(1)
}

func (m *MockPricingRepository) Delete(ctx context.Context, clientID int64) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *MockPricingRepository) List(ctx context.Context) ([]*model.PricingRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PricingRule), args.Error(1)
}

func defaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultPricePerMessage: decimal.RequireFromString("0.05"),
		DefaultCurrency:        "USD",
	}
}

func TestPricingService_Resolve_ClientOverride(t *testing.T) {
	repo := new(MockPricingRepository)
	service := NewPricingService(repo, defaultPricingConfig())
	ctx := context.Background()

	repo.On("GetByClientID", ctx, int64(1)).Return(&model.PricingRule{
		ClientID:        1,
		PricePerMessage: decimal.RequireFromString("0.03"),
		Currency:        "EUR",
	}, nil)

	price, currency, err := service.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.03")))
	assert.Equal(t, "EUR", currency)
}

func TestPricingService_Resolve_MissingRuleFallsBack(t *testing.T) {
	repo := new(MockPricingRepository)
	service := NewPricingService(repo, defaultPricingConfig())
	ctx := context.Background()

	repo.On("GetByClientID", ctx, int64(2)).Return(nil, repository.ErrPricingRuleNotFound)

	price, currency, err := service.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "USD", currency)
}

func TestPricingService_Resolve_RepositoryError(t *testing.T) {
	repo := new(MockPricingRepository)
	service := NewPricingService(repo, defaultPricingConfig())
	ctx := context.Background()

	dbErr := errors.New("connection reset")
	repo.On("GetByClientID", ctx, int64(3)).Return(nil, dbErr)

	_, _, err := service.Resolve(ctx, 3)
	assert.ErrorIs(t, err, dbErr)
}

func TestPricingService_SetRule(t *testing.T) {
	ctx := context.Background()

	t.Run("requires client id", func(t *testing.T) {
		service := NewPricingService(new(MockPricingRepository), defaultPricingConfig())
		_, err := service.SetRule(ctx, &model.PricingRule{
			PricePerMessage: decimal.RequireFromString("0.02"),
		})
		assert.Error(t, err)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		service := NewPricingService(new(MockPricingRepository), defaultPricingConfig())
		_, err := service.SetRule(ctx, &model.PricingRule{
			ClientID:        1,
			PricePerMessage: decimal.RequireFromString("-0.02"),
		})
		assert.Error(t, err)
	})

	t.Run("defaults currency", func(t *testing.T) {
		repo := new(MockPricingRepository)
		service := NewPricingService(repo, defaultPricingConfig())

		repo.On("Upsert", ctx, mock.MatchedBy(func(rule *model.PricingRule) bool {
			return rule.Currency == "USD"
		})).Return(&model.PricingRule{ClientID: 1, Currency: "USD"}, nil)

		created, err := service.SetRule(ctx, &model.PricingRule{
			ClientID:        1,
			PricePerMessage: decimal.RequireFromString("0.02"),
		})
		require.NoError(t, err)
		assert.Equal(t, "USD", created.Currency)
	})

	t.Run("zero price allowed", func(t *testing.T) {
		repo := new(MockPricingRepository)
		service := NewPricingService(repo, defaultPricingConfig())

		repo.On("Upsert", ctx, mock.Anything).Return(&model.PricingRule{ClientID: 1}, nil)

		_, err := service.SetRule(ctx, &model.PricingRule{
			ClientID:        1,
			PricePerMessage: decimal.Zero,
			Currency:        "USD",
		})
		assert.NoError(t, err)
	})
}
