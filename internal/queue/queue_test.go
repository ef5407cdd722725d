package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oneclick/wa-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testConfig(name string) QueueConfig {
	return QueueConfig{
		Name:              name,
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := testConfig("webhook:events")
	config.MaxLen = 1000
	config.EnableDLQ = true

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)

	ctx := context.Background()
	batch := map[string]string{"batch_id": "batch-1", "client_id": "42"}

	_, err = queue.PublishJSON(ctx, batch, map[string]string{"batch_id": "batch-1"})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var data map[string]string
		err := json.Unmarshal(msg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, "batch-1", data["batch_id"])
		assert.Equal(t, "batch-1", msg.Metadata["batch_id"])
		received <- true
		return nil
	}

	err = queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	queue.Stop(time.Second)
}

func TestQueue_FailedHandlerLeavesMessagePending(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := testConfig("webhook:events:retry")
	config.EnableDLQ = true

	queue, err := NewQueue(adapter, config)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.PublishJSON(ctx, map[string]string{"batch_id": "batch-err"}, nil)
	require.NoError(t, err)

	handled := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		handled <- true
		return assert.AnError
	}

	err = queue.Consume(handler)
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message not handled")
	}

	// The handler failed, so the message must still be pending for the group.
	require.Eventually(t, func() bool {
		stats, err := queue.GetStats()
		return err == nil && stats.PendingMessages >= 1
	}, 2*time.Second, 50*time.Millisecond)
}

func TestQueue_TimestampSurvivesRoundTrip(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("webhook:events:ts"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	before := time.Now().Add(-time.Second)
	_, err = queue.Publish(context.Background(), []byte(`{}`), nil)
	require.NoError(t, err)

	received := make(chan *Message, 1)
	err = queue.Consume(func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.False(t, msg.Timestamp.Before(before))
		assert.False(t, msg.Timestamp.After(time.Now().Add(time.Second)))
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("webhook:events:stats"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := queue.PublishJSON(ctx, map[string]int{"count": i}, nil)
		require.NoError(t, err)
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(5))
}

func TestQueue_NameRequired(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewQueue(adapter, QueueConfig{})
	assert.Error(t, err)
}

func TestQueue_ConcurrentPublish(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("webhook:events:concurrent"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := queue.PublishJSON(ctx, map[string]int{"id": id}, nil)
			assert.NoError(t, err)
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(numGoroutines))
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("webhook:events:stop"))
	require.NoError(t, err)

	handler := func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}

	err = queue.Consume(handler)
	require.NoError(t, err)

	err = queue.Stop(2 * time.Second)
	assert.NoError(t, err)
}
