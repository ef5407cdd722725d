package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oneclick/wa-gateway/internal/model"
	"github.com/oneclick/wa-gateway/internal/queue"
	"github.com/oneclick/wa-gateway/pkg/logger"
)

type BatchReconciler interface {
	ApplyBatch(ctx context.Context, batch model.EventBatch) error
}

// EventBatchProcessor applies one queued webhook batch through the
// reconciler. The redis lock prevents two consumers from reconciling the
// same batch concurrently; the reconciler's own precedence guards make a
// replay after a crash harmless.
type EventBatchProcessor struct {
	reconciler  BatchReconciler
	idempotency *IdempotencyService
}

func NewEventBatchProcessor(reconciler BatchReconciler, idempotency *IdempotencyService) *EventBatchProcessor {
	return &EventBatchProcessor{
		reconciler:  reconciler,
		idempotency: idempotency,
	}
}

func (p *EventBatchProcessor) GetType() string {
	return "webhook_event_batch"
}

func (p *EventBatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var batch model.EventBatch
	if err := json.Unmarshal(queueMessage.Data, &batch); err != nil {
		logger.Error("unparseable event batch, moving on", "queue_message_id", queueMessage.ID, "error", err)
		// Malformed payloads never become valid on retry.
		return nil
	}
	if batch.BatchID == "" {
		batch.BatchID = queueMessage.ID
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, batch.BatchID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Debug("batch already reconciled, skipping", "batch_id", batch.BatchID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("batch exceeded max retries, giving up", "batch_id", batch.BatchID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("batch locked by another consumer")
		}
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Debug("reconciling event batch",
		"batch_id", batch.BatchID,
		"client_id", batch.ClientID,
		"statuses", len(batch.Statuses),
		"inbound", len(batch.Inbound),
		"retry_count", procCtx.RetryCount)

	if err := p.reconciler.ApplyBatch(ctx, batch); err != nil {
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("failed to mark batch failure", "batch_id", batch.BatchID, "error", markErr)
		}
		return err
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("failed to mark batch processed", "batch_id", batch.BatchID, "error", markErr)
		// The batch did commit; replays are filtered by the precedence guards.
	}

	return nil
}
