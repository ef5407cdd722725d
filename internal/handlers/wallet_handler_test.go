package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Balance(ctx context.Context, clientID int64) (decimal.Decimal, string, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(decimal.Decimal), args.String(1), args.Error(2)
}

func (m *MockWalletService) TopUp(ctx context.Context, clientID int64, amount decimal.Decimal, description, referenceID string) (*model.LedgerTransaction, error) {
	args := m.Called(ctx, clientID, amount, description, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerTransaction), args.Error(1)
}

func (m *MockWalletService) ListTransactions(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerTransaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.LedgerTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) AuditBalance(ctx context.Context, clientID int64) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func TestWalletHandler_GetBalance(t *testing.T) {
	t.Run("returns the balance", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		svc.On("Balance", mock.Anything, int64(1)).
			Return(decimal.RequireFromString("9.95"), "USD", nil)

		ctx := setupTenantContext("GET", "/api/v1/wallet/balance", nil)
		handler.GetBalance(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"balance": "9.95", "currency": "USD"}`, string(ctx.Response.Body()))
	})

	t.Run("missing client header", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		ctx := setupTestContext("GET", "/api/v1/wallet/balance", nil)
		handler.GetBalance(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
	})

	t.Run("unknown wallet maps to 404", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		svc.On("Balance", mock.Anything, int64(1)).
			Return(decimal.Zero, "", services.ErrWalletNotFound)

		ctx := setupTenantContext("GET", "/api/v1/wallet/balance", nil)
		handler.GetBalance(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestWalletHandler_TopUp(t *testing.T) {
	t.Run("successful top-up", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		txn := &model.LedgerTransaction{
			ID:       5,
			ClientID: 1,
			Kind:     model.KindTopUp,
			Amount:   decimal.RequireFromString("25"),
		}
		svc.On("TopUp", mock.Anything, int64(1), decimal.RequireFromString("25"), "promo credit", "inv-42").
			Return(txn, nil)

		body := []byte(`{"amount": "25", "description": "promo credit", "reference_id": "inv-42"}`)
		ctx := setupTenantContext("POST", "/api/v1/wallet/topup", body)
		handler.TopUp(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.LedgerTransaction
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(5), response.ID)
		svc.AssertExpectations(t)
	})

	t.Run("non-decimal amount rejected", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		body := []byte(`{"amount": "lots"}`)
		ctx := setupTenantContext("POST", "/api/v1/wallet/topup", body)
		handler.TopUp(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "TopUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("service rejection surfaces as 400", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		svc.On("TopUp", mock.Anything, int64(1), mock.Anything, "", "").
			Return(nil, errors.New("top-up amount must be positive"))

		body := []byte(`{"amount": "-5"}`)
		ctx := setupTenantContext("POST", "/api/v1/wallet/topup", body)
		handler.TopUp(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestWalletHandler_ListTransactions(t *testing.T) {
	svc := new(MockWalletService)
	handler := NewWalletHandler(svc)

	clientID := int64(1)
	kind := model.KindMessageCost
	svc.On("ListTransactions", mock.Anything, mock.MatchedBy(func(f model.LedgerFilter) bool {
		return f.ClientID != nil && *f.ClientID == clientID &&
			f.Kind != nil && *f.Kind == kind &&
			f.Limit == 10 && f.Desc
	})).Return([]*model.LedgerTransaction{{ID: 1}, {ID: 2}}, int64(8), nil)

	ctx := setupTenantContext("GET", "/api/v1/wallet/transactions?kind=message_cost&limit=10", nil)
	handler.ListTransactions(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response transactionListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(8), response.Total)
	assert.Len(t, response.Items, 2)
	svc.AssertExpectations(t)
}

func TestWalletHandler_AuditBalance(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		svc.On("AuditBalance", mock.Anything, int64(1)).
			Return(decimal.RequireFromString("9.9"), decimal.RequireFromString("9.9"), nil)

		ctx := setupTenantContext("GET", "/api/v1/wallet/audit", nil)
		handler.AuditBalance(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response auditResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.True(t, response.Consistent)
		assert.Equal(t, "9.9", response.StoredBalance)
	})

	t.Run("drift reported", func(t *testing.T) {
		svc := new(MockWalletService)
		handler := NewWalletHandler(svc)

		svc.On("AuditBalance", mock.Anything, int64(1)).
			Return(decimal.RequireFromString("10"), decimal.RequireFromString("9.9"), nil)

		ctx := setupTenantContext("GET", "/api/v1/wallet/audit", nil)
		handler.AuditBalance(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response auditResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.False(t, response.Consistent)
		assert.Equal(t, "9.9", response.DerivedBalance)
	})
}
