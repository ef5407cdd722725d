package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/services"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
)

type CampaignService interface {
	Create(ctx context.Context, clientID int64, req *model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id, clientID int64) (*model.Campaign, error)
	List(ctx context.Context, clientID int64, limit, offset int) ([]*model.Campaign, int64, error)
	Update(ctx context.Context, id, clientID int64, req *model.CampaignUpdateRequest) (*model.Campaign, error)
	Delete(ctx context.Context, id, clientID int64) error
	Cancel(ctx context.Context, id, clientID int64) (*model.Campaign, error)
	SendNow(ctx context.Context, id, clientID int64) (*services.SendReport, error)
}

type CampaignHandler struct {
	svc CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.GET("/campaigns", h.ListCampaigns)
	e.GET("/campaigns/{id}", h.GetCampaign)
	e.PUT("/campaigns/{id}", h.UpdateCampaign)
	e.DELETE("/campaigns/{id}", h.DeleteCampaign)
	e.POST("/campaigns/{id}/send", h.SendCampaign)
	e.POST("/campaigns/{id}/cancel", h.CancelCampaign)
}

func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		svc: campaignService,
	}
}

type createCampaignRequest struct {
	Name                string     `json:"campaign_name"`
	TemplateID          int64      `json:"template_id"`
	AudienceJSON        string     `json:"audience_json"`
	PersonalizationJSON string     `json:"personalization_data_json"`
	ScheduledAt         *time.Time `json:"scheduled_at"`
}

type updateCampaignRequest struct {
	Name                *string    `json:"campaign_name"`
	TemplateID          *int64     `json:"template_id"`
	AudienceJSON        *string    `json:"audience_json"`
	PersonalizationJSON *string    `json:"personalization_data_json"`
	ScheduledAt         *time.Time `json:"scheduled_at"`
	ClearSchedule       bool       `json:"clear_schedule"`
}

type campaignListResponse struct {
	Items []*model.Campaign `json:"items"`
	Total int64             `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Create(ctx, cid, &model.CampaignCreateRequest{
		Name:                req.Name,
		TemplateID:          req.TemplateID,
		AudienceJSON:        req.AudienceJSON,
		PersonalizationJSON: req.PersonalizationJSON,
		ScheduledAt:         req.ScheduledAt,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, c)
}

func (h *CampaignHandler) ListCampaigns(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	items, total, err := h.svc.List(ctx, cid, queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, campaignListResponse{Items: items, Total: total})
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	c, err := h.svc.Get(ctx, id, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, c)
}

func (h *CampaignHandler) UpdateCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	var req updateCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.svc.Update(ctx, id, cid, &model.CampaignUpdateRequest{
		Name:                req.Name,
		TemplateID:          req.TemplateID,
		AudienceJSON:        req.AudienceJSON,
		PersonalizationJSON: req.PersonalizationJSON,
		ScheduledAt:         req.ScheduledAt,
		ClearSchedule:       req.ClearSchedule,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, c)
}

func (h *CampaignHandler) DeleteCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	if err := h.svc.Delete(ctx, id, cid); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *CampaignHandler) SendCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	report, err := h.svc.SendNow(ctx, id, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, report)
}

func (h *CampaignHandler) CancelCampaign(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	c, err := h.svc.Cancel(ctx, id, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, c)
}
