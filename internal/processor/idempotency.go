package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("batch already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "batch:retry:",
		LockKeyPrefix:      "batch:lock:",
		ProcessedKeyPrefix: "batch:processed:",
	}
}

// IdempotencyService tracks per-batch processing state in redis so a
// redelivered webhook batch is reconciled at most once per retention
// window and never by two consumers at the same time.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	BatchID      string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, batchID string) (*ProcessingContext, error) {
	processedKey := s.config.ProcessedKeyPrefix + batchID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		logger.Warn("failed to check processed marker", "batch_id", batchID, "error", err)
		// Continue even if the check fails. A duplicate reconcile is
		// filtered downstream; a blocked queue is not.
	} else if exists > 0 {
		return nil, ErrAlreadyProcessed
	}

	retryKey := s.config.RetryKeyPrefix + batchID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: batch_id=%s, retries=%d", ErrMaxRetriesExceeded, batchID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + batchID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	return &ProcessingContext{
		BatchID:      batchID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	batchID := pc.BatchID

	processedKey := s.config.ProcessedKeyPrefix + batchID
	if err := s.redis.Set(processedKey, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	s.cleanup(ctx, pc)
	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	batchID := pc.BatchID

	retryKey := s.config.RetryKeyPrefix + batchID
	newRetryCount := pc.RetryCount + 1
	if err := s.redis.Set(retryKey, []byte(fmt.Sprintf("%d", newRetryCount)), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "batch_id", batchID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + batchID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to remove lock", "batch_id", batchID, "error", err)
	}

	logger.Warn("batch reconcile failed, will retry",
		"batch_id", batchID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + pc.BatchID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to release lock", "batch_id", pc.BatchID, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, pc *ProcessingContext) {
	batchID := pc.BatchID

	lockKey := s.config.LockKeyPrefix + batchID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to cleanup lock", "batch_id", batchID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + batchID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("failed to cleanup retry counter", "batch_id", batchID, "error", err)
	}

	pc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, batchID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + batchID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, batchID string) (bool, error) {
	processedKey := s.config.ProcessedKeyPrefix + batchID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
