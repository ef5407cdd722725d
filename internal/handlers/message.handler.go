package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/services"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
)

type MessageService interface {
	SendTemplate(ctx context.Context, req services.TemplateDispatch) (*model.MessageLog, error)
	SendText(ctx context.Context, req services.TextDispatch) (*model.MessageLog, error)
	GetMessage(ctx context.Context, id, clientID int64) (*model.MessageLog, error)
	ListMessages(ctx context.Context, filter model.MessageLogFilter) ([]*model.MessageLog, int64, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages/template", h.SendTemplateMessage)
	e.POST("/messages/text", h.SendTextMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/{id}", h.GetMessage)
	e.GET("/inbox", h.ListInbox)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type sendTemplateRequest struct {
	Recipient    string   `json:"recipient_phone_number"`
	TemplateName string   `json:"template_name"`
	Language     string   `json:"language_code"`
	BodyParams   []string `json:"body_params"`
}

type sendTextRequest struct {
	Recipient string `json:"recipient_phone_number"`
	Body      string `json:"body"`
}

type messageListResponse struct {
	Items []*model.MessageLog `json:"items"`
	Total int64               `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) SendTemplateMessage(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	var req sendTemplateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Recipient == "" || req.TemplateName == "" {
		writeError(ctx, 400, "recipient_phone_number and template_name are required")
		return
	}
	if req.Language == "" {
		req.Language = "en_US"
	}

	log, err := h.svc.SendTemplate(ctx, services.TemplateDispatch{
		ClientID:     cid,
		Recipient:    req.Recipient,
		TemplateName: req.TemplateName,
		Language:     req.Language,
		BodyParams:   req.BodyParams,
	})
	if err != nil {
		if log != nil {
			// The send failed but the attempt is on record.
			writeJSON(ctx, 502, log)
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, log)
}

func (h *MessageHandler) SendTextMessage(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	var req sendTextRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Recipient == "" || req.Body == "" {
		writeError(ctx, 400, "recipient_phone_number and body are required")
		return
	}

	log, err := h.svc.SendText(ctx, services.TextDispatch{
		ClientID:  cid,
		Recipient: req.Recipient,
		Body:      req.Body,
	})
	if err != nil {
		if log != nil {
			writeJSON(ctx, 502, log)
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, log)
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid message id")
		return
	}

	log, err := h.svc.GetMessage(ctx, id, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, log)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	f := h.parseFilter(ctx)
	f.ClientID = &cid

	items, total, err := h.svc.ListMessages(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, messageListResponse{Items: items, Total: total})
}

// ListInbox is ListMessages restricted to incoming traffic.
func (h *MessageHandler) ListInbox(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	f := h.parseFilter(ctx)
	f.ClientID = &cid
	incoming := model.DirectionIncoming
	f.Direction = &incoming

	items, total, err := h.svc.ListMessages(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, messageListResponse{Items: items, Total: total})
}

func (h *MessageHandler) parseFilter(ctx *xhttp.RequestCtx) model.MessageLogFilter {
	var f model.MessageLogFilter

	if v := query(ctx, "campaign_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CampaignID = &id
		}
	}
	if v := query(ctx, "recipient"); v != "" {
		f.Recipient = &v
	}
	if v := query(ctx, "direction"); v != "" {
		d := model.Direction(v)
		f.Direction = &d
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if n := queryInt(ctx, "limit"); n > 0 {
		f.Limit = n
	}
	if n := queryInt(ctx, "offset"); n > 0 {
		f.Offset = n
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}
	return f
}
