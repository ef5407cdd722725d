package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/oneclick/wa-gateway/internal/model"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type ClientService interface {
	Register(ctx context.Context, c *model.Client) (*model.Client, error)
	Get(ctx context.Context, id int64) (*model.Client, error)
}

type PricingAdminService interface {
	SetRule(ctx context.Context, rule *model.PricingRule) (*model.PricingRule, error)
	DeleteRule(ctx context.Context, clientID int64) error
	ListRules(ctx context.Context) ([]*model.PricingRule, error)
}

// AdminHandler exposes the operator-facing surface: tenant provisioning
// and pricing overrides. It sits behind a separate ingress rule; there is
// no per-client identity here.
type AdminHandler struct {
	clients ClientService
	pricing PricingAdminService
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler) {
	e.POST("/admin/clients", h.CreateClient)
	e.GET("/admin/clients/{id}", h.GetClient)
	e.PUT("/admin/pricing/{client_id}", h.SetPricingRule)
	e.DELETE("/admin/pricing/{client_id}", h.DeletePricingRule)
	e.GET("/admin/pricing", h.ListPricingRules)
}

func NewAdminHandler(clients ClientService, pricing PricingAdminService) *AdminHandler {
	return &AdminHandler{
		clients: clients,
		pricing: pricing,
	}
}

type createClientRequest struct {
	Name          string `json:"name"`
	WabaID        string `json:"waba_id"`
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
	Currency      string `json:"currency"`
}

type setPricingRequest struct {
	PricePerMessage string `json:"price_per_message"`
	Currency        string `json:"currency"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *AdminHandler) CreateClient(ctx *xhttp.RequestCtx) {
	var req createClientRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	c, err := h.clients.Register(ctx, &model.Client{
		Name:          req.Name,
		WabaID:        req.WabaID,
		PhoneNumberID: req.PhoneNumberID,
		AccessToken:   req.AccessToken,
		Currency:      req.Currency,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, c)
}

func (h *AdminHandler) GetClient(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}

	c, err := h.clients.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, c)
}

func (h *AdminHandler) SetPricingRule(ctx *xhttp.RequestCtx) {
	cid, err := pathInt64(ctx, "client_id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}

	var req setPricingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	price, err := decimal.NewFromString(req.PricePerMessage)
	if err != nil {
		writeError(ctx, 400, "price_per_message must be a decimal string")
		return
	}

	rule, err := h.pricing.SetRule(ctx, &model.PricingRule{
		ClientID:        cid,
		PricePerMessage: price,
		Currency:        req.Currency,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, rule)
}

func (h *AdminHandler) DeletePricingRule(ctx *xhttp.RequestCtx) {
	cid, err := pathInt64(ctx, "client_id")
	if err != nil {
		writeError(ctx, 400, "invalid client id")
		return
	}

	if err := h.pricing.DeleteRule(ctx, cid); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.SetStatusCode(204)
}

func (h *AdminHandler) ListPricingRules(ctx *xhttp.RequestCtx) {
	rules, err := h.pricing.ListRules(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, rules)
}
