package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage is one entry read from a redis stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// RedisAdapter is the slice of redis this service relies on: plain
// keys for locks and idempotency markers, streams for the event queue.
type RedisAdapter interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Get(key string) ([]byte, error)
	Del(key string) error
	Exist(key string) (int64, error)
	Client() goredis.UniversalClient

	XAdd(key string, values map[string]interface{}) (string, error)
	XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(key, group string, ids ...string) error
	XGroupCreateMkStream(key, group, start string) error
	XLen(key string) (int64, error)
	XTrimApprox(key string, maxLen int64) error
	XPending(key, group string) (*goredis.XPending, error)
	XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type redisAdapter struct {
	prefix   string
	Conn     goredis.UniversalClient
	ConnName string
}

var (
	adaptersMu sync.Mutex
	adapters   map[string]RedisAdapter
)

// NewRedisAdapter connects (or returns the already-open connection
// registered under connName). Every key the adapter touches is
// namespaced with keysPrefix.
func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	adaptersMu.Lock()
	if adapters == nil {
		adapters = make(map[string]RedisAdapter)
	}
	if adapter, ok := adapters[connName]; ok {
		adaptersMu.Unlock()
		return adapter, nil
	}
	adaptersMu.Unlock()

	c := goredis.NewUniversalClient(opts)
	if cmd := c.Ping(context.Background()); cmd.Err() != nil {
		return nil, cmd.Err()
	}

	adapter := &redisAdapter{
		Conn:     c,
		prefix:   keysPrefix,
		ConnName: connName,
	}

	adaptersMu.Lock()
	adapters[connName] = adapter
	adaptersMu.Unlock()

	return adapter, nil
}

func (r *redisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	return r.Conn.Set(context.Background(), r.prefix+key, value, ttl).Err()
}

func (r *redisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := r.Conn.SetNX(context.Background(), r.prefix+key, value, ttl)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) Get(key string) ([]byte, error) {
	st := r.Conn.Get(context.Background(), r.prefix+key)
	if err := st.Err(); err != nil {
		return nil, err
	}
	return st.Bytes()
}

func (r *redisAdapter) Del(key string) error {
	return r.Conn.Del(context.Background(), r.prefix+key).Err()
}

func (r *redisAdapter) Exist(key string) (int64, error) {
	return r.Conn.Exists(context.Background(), r.prefix+key).Result()
}

func (r *redisAdapter) Client() goredis.UniversalClient {
	return r.Conn
}

/* ----------------------------- Stream operations ----------------------------- */

func (r *redisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	cmd := r.Conn.XAdd(context.Background(), &goredis.XAddArgs{
		Stream: r.prefix + key,
		ID:     "*",
		Values: values,
	})
	if cmd.Err() != nil {
		return "", cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	streams := r.Conn.XReadGroup(context.Background(), &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.prefix + key, id},
		Count:    count,
		Block:    0,
	})
	if streams.Err() != nil {
		return nil, streams.Err()
	}

	var messages []StreamMessage
	for _, stream := range streams.Val() {
		messages = append(messages, collectMessages(stream.Messages)...)
	}
	return messages, nil
}

func (r *redisAdapter) XAck(key, group string, ids ...string) error {
	return r.Conn.XAck(context.Background(), r.prefix+key, group, ids...).Err()
}

func (r *redisAdapter) XGroupCreateMkStream(key, group, start string) error {
	return r.Conn.XGroupCreateMkStream(context.Background(), r.prefix+key, group, start).Err()
}

func (r *redisAdapter) XLen(key string) (int64, error) {
	cmd := r.Conn.XLen(context.Background(), r.prefix+key)
	if cmd.Err() != nil {
		return 0, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XTrimApprox(key string, maxLen int64) error {
	return r.Conn.XTrimMaxLenApprox(context.Background(), r.prefix+key, maxLen, 0).Err()
}

func (r *redisAdapter) XPending(key, group string) (*goredis.XPending, error) {
	cmd := r.Conn.XPending(context.Background(), r.prefix+key, group)
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	cmd := r.Conn.XPendingExt(context.Background(), &goredis.XPendingExtArgs{
		Stream: r.prefix + key,
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	})
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return cmd.Val(), nil
}

func (r *redisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	cmd := r.Conn.XClaim(context.Background(), &goredis.XClaimArgs{
		Stream:   r.prefix + key,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	})
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return collectMessages(cmd.Val()), nil
}

func collectMessages(in []goredis.XMessage) []StreamMessage {
	out := make([]StreamMessage, 0, len(in))
	for _, msg := range in {
		out = append(out, StreamMessage{ID: msg.ID, Values: msg.Values})
	}
	return out
}
