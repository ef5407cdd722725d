package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
)

type WebhookService interface {
	Verify(mode, token, challenge string) (string, bool)
	Ingest(ctx context.Context, payload []byte) error
}

// WebhookHandler receives callbacks from Meta. POST must answer fast and
// almost always with 200: the heavy lifting happens asynchronously after
// the payload is on the queue.
type WebhookHandler struct {
	svc WebhookService
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.GET("/webhook", h.VerifyWebhook)
	e.POST("/webhook", h.ReceiveWebhook)
}

func NewWebhookHandler(webhookService WebhookService) *WebhookHandler {
	return &WebhookHandler{
		svc: webhookService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *WebhookHandler) VerifyWebhook(ctx *xhttp.RequestCtx) {
	mode := query(ctx, "hub.mode")
	token := query(ctx, "hub.verify_token")
	challenge := query(ctx, "hub.challenge")

	echo, ok := h.svc.Verify(mode, token, challenge)
	if !ok {
		writeError(ctx, 403, "verification failed")
		return
	}
	ctx.Response.SetStatusCode(200)
	ctx.Response.SetBodyString(echo)
}

func (h *WebhookHandler) ReceiveWebhook(ctx *xhttp.RequestCtx) {
	if err := h.svc.Ingest(ctx, ctx.PostBody()); err != nil {
		// Only queue publish failures reach here; Meta will redeliver.
		writeError(ctx, 500, "failed to accept webhook")
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "received"})
}
