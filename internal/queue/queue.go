package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/redis"
)

// Message is one entry read from the stream. Attempts counts reclaims, so
// a value above zero means at least one earlier consumer gave up on it.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
}

// MessageHandler processes one message. A nil return acknowledges the
// message; an error leaves it pending so the reclaim pass retries it.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a redis-streams work queue with consumer groups. The webhook
// receiver publishes event batches to it and the processor consumes them;
// messages that stay pending past the visibility timeout are reclaimed,
// and batches that exhaust MaxRetries land in the dead letter stream.
type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on an existing group is fine.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

// Publish appends a message to the stream and trims it to the configured
// approximate max length.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}

	return id, nil
}

// PublishJSON marshals data and publishes it.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume starts the poll loop. Each tick reads new messages for this
// consumer and then reclaims messages other consumers left pending too long.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)

	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNewMessages()
			q.reclaimStuckMessages()
		}
	}
}

func (q *Queue) processNewMessages() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		q.handleMessage(q.decodeMessage(streamMsg))
	}
}

// reclaimStuckMessages takes over messages whose consumer stopped mid-way,
// detected by pending idle time exceeding the visibility timeout.
func (q *Queue) reclaimStuckMessages() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(
		q.config.Name,
		q.config.ConsumerGroup,
		"-",
		"+",
		100,
	)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var idsToReclaim []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			idsToReclaim = append(idsToReclaim, msg.ID)
		}
	}
	if len(idsToReclaim) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		idsToReclaim...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		msg := q.decodeMessage(streamMsg)
		msg.Attempts++
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	if msg.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetterQueue(msg)
		q.ackMessage(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// Leave it pending; the reclaim pass retries it.
		return
	}

	q.ackMessage(msg.ID)
}

func (q *Queue) ackMessage(messageID string) {
	if err := q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, messageID); err != nil {
		logger.Error("queue ack failed", "queue", q.config.Name, "message_id", messageID, "error", err)
	}
}

func (q *Queue) moveToDeadLetterQueue(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	dlqName := q.config.Name + ":dlq"

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(dlqName, values); err != nil {
		logger.Error("dead letter publish failed", "queue", dlqName, "message_id", msg.ID, "error", err)
		return
	}
	logger.Warn("message moved to dead letter queue", "queue", q.config.Name, "message_id", msg.ID, "attempts", msg.Attempts)
}

func (q *Queue) decodeMessage(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			if data, ok := v.(string); ok {
				msg.Data = []byte(data)
			}
		case "timestamp":
			if ts, ok := v.(string); ok {
				if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
					msg.Timestamp = time.Unix(unix, 0)
				}
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					msg.Metadata[k[5:]] = val
				}
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

// Stop cancels the consume loop and waits for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*QueueStats, error) {
	totalMessages, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{
		TotalMessages: totalMessages,
	}

	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}

	return stats, nil
}
