package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, clientID int64, req *model.CampaignCreateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, clientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignService) Update(ctx context.Context, id, clientID int64, req *model.CampaignUpdateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, id, clientID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Delete(ctx context.Context, id, clientID int64) error {
	args := m.Called(ctx, id, clientID)
	return args.Error(0)
}

func (m *MockCampaignService) Cancel(ctx context.Context, id, clientID int64) (*model.Campaign, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) SendNow(ctx context.Context, id, clientID int64) (*services.SendReport, error) {
	args := m.Called(ctx, id, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SendReport), args.Error(1)
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Create", mock.Anything, int64(1), mock.MatchedBy(func(req *model.CampaignCreateRequest) bool {
			return req.Name == "Autumn Sale" && req.TemplateID == 3 &&
				req.AudienceJSON == `["+14155550100"]`
		})).Return(&model.Campaign{ID: 10, ClientID: 1, Status: model.CampaignPendingSend}, nil)

		body := []byte(`{"campaign_name": "Autumn Sale", "template_id": 3, "audience_json": "[\"+14155550100\"]"}`)
		ctx := setupTenantContext("POST", "/api/v1/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Campaign
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(10), response.ID)
		assert.Equal(t, model.CampaignPendingSend, response.Status)
		svc.AssertExpectations(t)
	})

	t.Run("unknown template maps to 404", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Create", mock.Anything, int64(1), mock.Anything).
			Return(nil, repository.ErrTemplateNotFound)

		body := []byte(`{"campaign_name": "Autumn Sale", "template_id": 99, "audience_json": "[]"}`)
		ctx := setupTenantContext("POST", "/api/v1/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("missing client header", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		ctx := setupTestContext("POST", "/api/v1/campaigns", []byte(`{}`))
		handler.CreateCampaign(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCampaignHandler_SendCampaign(t *testing.T) {
	t.Run("send report returned", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("SendNow", mock.Anything, int64(10), int64(1)).Return(&services.SendReport{
			CampaignID: 10,
			Status:     model.CampaignCompleted,
			Sent:       2,
			Total:      2,
		}, nil)

		ctx := setupTenantContext("POST", "/api/v1/campaigns/10/send", nil)
		ctx.SetUserValue("id", "10")
		handler.SendCampaign(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var report services.SendReport
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &report))
		assert.Equal(t, 2, report.Sent)
		assert.Equal(t, model.CampaignCompleted, report.Status)
	})

	t.Run("state conflict maps to 409", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("SendNow", mock.Anything, int64(10), int64(1)).
			Return(nil, services.ErrCampaignStateConflict)

		ctx := setupTenantContext("POST", "/api/v1/campaigns/10/send", nil)
		ctx.SetUserValue("id", "10")
		handler.SendCampaign(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("missing credentials maps to 412", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("SendNow", mock.Anything, int64(10), int64(1)).
			Return(nil, services.ErrCredentialsUnset)

		ctx := setupTenantContext("POST", "/api/v1/campaigns/10/send", nil)
		ctx.SetUserValue("id", "10")
		handler.SendCampaign(ctx)

		assert.Equal(t, 412, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		ctx := setupTenantContext("POST", "/api/v1/campaigns/abc/send", nil)
		ctx.SetUserValue("id", "abc")
		handler.SendCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_CancelCampaign(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)

	svc.On("Cancel", mock.Anything, int64(10), int64(1)).
		Return(&model.Campaign{ID: 10, Status: model.CampaignCancelled}, nil)

	ctx := setupTenantContext("POST", "/api/v1/campaigns/10/cancel", nil)
	ctx.SetUserValue("id", "10")
	handler.CancelCampaign(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response model.Campaign
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, model.CampaignCancelled, response.Status)
}

func TestCampaignHandler_DeleteCampaign(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Delete", mock.Anything, int64(10), int64(1)).Return(nil)

		ctx := setupTenantContext("DELETE", "/api/v1/campaigns/10", nil)
		ctx.SetUserValue("id", "10")
		handler.DeleteCampaign(ctx)

		assert.Equal(t, 204, ctx.Response.StatusCode())
	})

	t.Run("sending campaign refused", func(t *testing.T) {
		svc := new(MockCampaignService)
		handler := NewCampaignHandler(svc)

		svc.On("Delete", mock.Anything, int64(10), int64(1)).
			Return(services.ErrCampaignStateConflict)

		ctx := setupTenantContext("DELETE", "/api/v1/campaigns/10", nil)
		ctx.SetUserValue("id", "10")
		handler.DeleteCampaign(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_ListCampaigns(t *testing.T) {
	svc := new(MockCampaignService)
	handler := NewCampaignHandler(svc)

	svc.On("List", mock.Anything, int64(1), 2, 0).
		Return([]*model.Campaign{{ID: 1}, {ID: 2}}, int64(5), nil)

	ctx := setupTenantContext("GET", "/api/v1/campaigns?limit=2", nil)
	handler.ListCampaigns(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response campaignListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(5), response.Total)
	assert.Len(t, response.Items, 2)
	svc.AssertExpectations(t)
}
