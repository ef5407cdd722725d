package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/oneclick/wa-gateway/internal/model"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
)

type TemplateService interface {
	Register(ctx context.Context, t *model.MessageTemplate) (*model.MessageTemplate, error)
	Get(ctx context.Context, id, clientID int64) (*model.MessageTemplate, error)
	List(ctx context.Context, clientID int64) ([]*model.MessageTemplate, error)
}

type TemplateHandler struct {
	svc TemplateService
}

func RegisterTemplateRoutes(e *router.Group, h *TemplateHandler) {
	e.POST("/templates", h.CreateTemplate)
	e.GET("/templates", h.ListTemplates)
	e.GET("/templates/{id}", h.GetTemplate)
}

func NewTemplateHandler(templateService TemplateService) *TemplateHandler {
	return &TemplateHandler{
		svc: templateService,
	}
}

type createTemplateRequest struct {
	Name          string `json:"template_name"`
	LanguageCode  string `json:"language_code"`
	VariablesJSON string `json:"variables_expected_json"`
	Status        string `json:"status"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TemplateHandler) CreateTemplate(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	var req createTemplateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	t, err := h.svc.Register(ctx, &model.MessageTemplate{
		ClientID:      cid,
		Name:          req.Name,
		LanguageCode:  req.LanguageCode,
		VariablesJSON: req.VariablesJSON,
		Status:        req.Status,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, t)
}

func (h *TemplateHandler) ListTemplates(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	items, err := h.svc.List(ctx, cid)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *TemplateHandler) GetTemplate(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}

	t, err := h.svc.Get(ctx, id, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}
