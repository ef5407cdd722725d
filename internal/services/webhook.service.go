package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/prom"
)

type EventPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type ClientResolver interface {
	ResolveByWabaID(ctx context.Context, wabaID string) (*model.Client, error)
}

// WebhookService turns raw Graph webhook payloads into EventBatch messages
// on the queue. Parsing is deliberately forgiving: a malformed or unknown
// entry is logged and skipped so the webhook endpoint can always return
// 200 and Meta never retries a payload we cannot use.
type WebhookService struct {
	clients     ClientResolver
	publisher   EventPublisher
	verifyToken string
}

func NewWebhookService(clients ClientResolver, publisher EventPublisher, verifyToken string) *WebhookService {
	return &WebhookService{
		clients:     clients,
		publisher:   publisher,
		verifyToken: verifyToken,
	}
}

// Verify implements the subscription handshake: echo the challenge when
// the mode and token match.
func (s *WebhookService) Verify(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == s.verifyToken && s.verifyToken != "" {
		return challenge, true
	}
	return "", false
}

// Graph webhook payload shapes. Only the fields we consume are declared.
type graphWebhookPayload struct {
	Object string              `json:"object"`
	Entry  []graphWebhookEntry `json:"entry"`
}

type graphWebhookEntry struct {
	ID      string               `json:"id"`
	Changes []graphWebhookChange `json:"changes"`
}

type graphWebhookChange struct {
	Field string            `json:"field"`
	Value graphWebhookValue `json:"value"`
}

type graphWebhookValue struct {
	Metadata struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Statuses []graphStatus         `json:"statuses"`
	Messages []graphInboundMessage `json:"messages"`
}

type graphStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Errors    []struct {
		Title string `json:"title"`
	} `json:"errors"`
}

type graphInboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *struct {
		ID string `json:"id"`
	} `json:"image"`
}

// Ingest parses the payload, groups events per tenant and publishes one
// EventBatch per entry. Entries for unknown WABA ids are dropped.
func (s *WebhookService) Ingest(ctx context.Context, payload []byte) error {
	var parsed graphWebhookPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		logger.Warn("unparseable webhook payload dropped", "error", err)
		prom.IncWebhookEvent("unparseable")
		return nil
	}

	for _, entry := range parsed.Entry {
		client, err := s.clients.ResolveByWabaID(ctx, entry.ID)
		if err != nil {
			logger.Warn("webhook entry for unknown waba dropped", "waba_id", entry.ID)
			prom.IncWebhookEvent("unknown_waba")
			continue
		}

		batch := model.EventBatch{
			BatchID:  uuid.NewString(),
			ClientID: client.ID,
		}

		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, st := range change.Value.Statuses {
				ev, ok := toStatusEvent(st)
				if !ok {
					prom.IncWebhookEvent("unknown_status")
					continue
				}
				batch.Statuses = append(batch.Statuses, ev)
			}
			for _, msg := range change.Value.Messages {
				batch.Inbound = append(batch.Inbound, toInboundEvent(msg, change.Value.Metadata.PhoneNumberID))
			}
		}

		if len(batch.Statuses) == 0 && len(batch.Inbound) == 0 {
			continue
		}

		if _, err := s.publisher.PublishJSON(ctx, batch, map[string]string{"batch_id": batch.BatchID}); err != nil {
			// Losing the batch here means lost delivery states, so this
			// is the one failure the endpoint surfaces as a 5xx.
			logger.Error("failed to enqueue webhook batch", "batch_id", batch.BatchID, "error", err)
			return err
		}

		logger.Debug("webhook batch enqueued", "batch_id", batch.BatchID, "client_id", client.ID,
			"statuses", len(batch.Statuses), "inbound", len(batch.Inbound))
	}

	return nil
}

func toStatusEvent(st graphStatus) (model.StatusEvent, bool) {
	var status model.MessageStatus
	switch st.Status {
	case "sent":
		status = model.StatusSent
	case "delivered":
		status = model.StatusDelivered
	case "read":
		status = model.StatusRead
	case "failed":
		status = model.StatusFailed
	default:
		return model.StatusEvent{}, false
	}

	ev := model.StatusEvent{
		ExternalID: st.ID,
		Status:     status,
		Timestamp:  parseGraphTimestamp(st.Timestamp),
	}
	if len(st.Errors) > 0 {
		ev.FailureReason = st.Errors[0].Title
	}
	return ev, true
}

func toInboundEvent(msg graphInboundMessage, phoneNumberID string) model.InboundMessageEvent {
	var content string
	switch {
	case msg.Type == "text" && msg.Text != nil:
		content = msg.Text.Body
	case msg.Type == "image" && msg.Image != nil:
		// Media bodies are not fetched; keep the media id so the message
		// can be retrieved from the Graph API later.
		content = fmt.Sprintf("Image received (ID: %s)", msg.Image.ID)
	default:
		content = fmt.Sprintf("Unsupported message type: %s", msg.Type)
	}
	return model.InboundMessageEvent{
		ExternalID:  msg.ID,
		From:        msg.From,
		ToPhoneID:   phoneNumberID,
		Timestamp:   parseGraphTimestamp(msg.Timestamp),
		MessageType: msg.Type,
		Content:     content,
	}
}

// parseGraphTimestamp converts the webhook's unix-seconds string. A bad
// value falls back to now so ordering guards still work.
func parseGraphTimestamp(raw string) time.Time {
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
