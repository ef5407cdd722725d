package services

import (
	"context"
	"errors"
	"time"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/prom"
)

type ReconcilerLogRepository interface {
	Create(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error)
	Update(ctx context.Context, log *model.MessageLog) (*model.MessageLog, error)
	FindByExternalID(ctx context.Context, externalID string, clientID int64) (*model.MessageLog, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CampaignCounterRepository interface {
	IncrementCounter(ctx context.Context, id int64, column string) error
}

// ReconcilerService applies webhook event batches to message logs. One
// batch is one database transaction: either every event in it lands or
// none do, so a redelivered batch can always be replayed safely.
type ReconcilerService struct {
	logs      ReconcilerLogRepository
	campaigns CampaignCounterRepository
}

func NewReconcilerService(logs ReconcilerLogRepository, campaigns CampaignCounterRepository) *ReconcilerService {
	return &ReconcilerService{
		logs:      logs,
		campaigns: campaigns,
	}
}

// ApplyBatch processes every event in the batch inside one transaction.
// Status events for unknown message ids are dropped with a warning, not
// an error: webhooks routinely reference messages sent outside this
// system. Inbound events are deduplicated on the provider message id.
func (s *ReconcilerService) ApplyBatch(ctx context.Context, batch model.EventBatch) error {
	err := s.logs.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, ev := range batch.Statuses {
			if err := s.applyStatus(ctx, batch.ClientID, ev); err != nil {
				return err
			}
		}
		for _, ev := range batch.Inbound {
			if err := s.applyInbound(ctx, batch.ClientID, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("event batch rolled back", "batch_id", batch.BatchID, "client_id", batch.ClientID, "error", err)
		return err
	}

	prom.IncWebhookBatch()
	return nil
}

func (s *ReconcilerService) applyStatus(ctx context.Context, clientID int64, ev model.StatusEvent) error {
	log, err := s.logs.FindByExternalID(ctx, ev.ExternalID, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageLogNotFound) {
			logger.Warn("status event for unknown message dropped", "external_id", ev.ExternalID, "status", string(ev.Status))
			prom.IncWebhookEvent("dropped_unknown")
			return nil
		}
		return err
	}

	if !ev.Status.Supersedes(log.Status) {
		prom.IncWebhookEvent("superseded")
		return nil
	}

	previous := log.Status
	log.Status = ev.Status
	log.StatusUpdatedAt = time.Now().UTC()

	ts := ev.Timestamp
	switch ev.Status {
	case model.StatusSent:
		if log.SentAt == nil {
			log.SentAt = &ts
		}
	case model.StatusDelivered:
		log.DeliveredAt = &ts
	case model.StatusRead:
		log.ReadAt = &ts
		if log.DeliveredAt == nil {
			log.DeliveredAt = &ts
		}
	case model.StatusFailed:
		log.FailureReason = ev.FailureReason
	}

	if _, err := s.logs.Update(ctx, log); err != nil {
		return err
	}

	if log.CampaignID != nil {
		if err := s.bumpCampaignCounter(ctx, *log.CampaignID, previous, ev.Status); err != nil {
			return err
		}
	}

	prom.IncWebhookEvent("applied")
	return nil
}

// bumpCampaignCounter tallies the first genuine transition into each
// aggregate state. The precedence guard upstream already filtered
// replays, so every call here is a real advance.
func (s *ReconcilerService) bumpCampaignCounter(ctx context.Context, campaignID int64, previous, next model.MessageStatus) error {
	var column string
	switch next {
	case model.StatusDelivered:
		column = "messages_delivered_count"
	case model.StatusRead:
		column = "messages_read_count"
	case model.StatusFailed:
		column = "messages_failed_count"
	default:
		return nil
	}

	err := s.campaigns.IncrementCounter(ctx, campaignID, column)
	if err != nil && errors.Is(err, repository.ErrCampaignNotFound) {
		// The campaign may have been deleted after its messages went out.
		logger.Warn("counter update for missing campaign skipped", "campaign_id", campaignID, "from", string(previous), "to", string(next))
		return nil
	}
	return err
}

func (s *ReconcilerService) applyInbound(ctx context.Context, clientID int64, ev model.InboundMessageEvent) error {
	if ev.ExternalID != "" {
		if _, err := s.logs.FindByExternalID(ctx, ev.ExternalID, clientID); err == nil {
			prom.IncWebhookEvent("inbound_duplicate")
			return nil
		} else if !errors.Is(err, repository.ErrMessageLogNotFound) {
			return err
		}
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.logs.Create(ctx, &model.MessageLog{
		ClientID:        clientID,
		ExternalID:      ev.ExternalID,
		Recipient:       ev.From,
		SenderPhoneID:   ev.ToPhoneID,
		MessageType:     "incoming_" + ev.MessageType,
		Direction:       model.DirectionIncoming,
		IncomingContent: ev.Content,
		Status:          model.StatusReceived,
		CreatedAt:       ts,
		StatusUpdatedAt: ts,
	})
	if err != nil {
		return err
	}

	prom.IncWebhookEvent("inbound_stored")
	return nil
}
