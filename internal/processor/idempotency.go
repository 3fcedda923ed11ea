package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("job already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	// LockTTL bounds how long a crashed worker can hold a job.
	LockTTL time.Duration

	// ProcessedTTL is how long a finished job is remembered.
	ProcessedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         5,
		RetryKeyPrefix:     "sync:retry:",
		LockKeyPrefix:      "sync:lock:",
		ProcessedKeyPrefix: "sync:processed:",
	}
}

// IdempotencyService makes sure a settlement sync job is applied by one
// worker at a time and never twice.
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
	JobID        string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

// AcquireProcessingLock checks the processed marker and the retry budget of
// jobID and then takes its lock.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, jobID string) (*ProcessingContext, error) {
	processed, err := s.IsProcessed(ctx, jobID)
	if err != nil {
		// a failed check must not block the job; replays are guarded downstream
		logger.Warn("failed to check processed marker", "job_id", jobID, "error", err)
	} else if processed {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, jobID)
	if err != nil {
		logger.Warn("failed to read retry counter", "job_id", jobID, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: job_id=%s, retries=%d", ErrMaxRetriesExceeded, jobID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+jobID, lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "job_id", jobID, "retry_count", retryCount)

	return &ProcessingContext{
		JobID:        jobID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

// MarkSuccess remembers the job as done and drops its lock and counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.JobID, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.JobID, s.config.RetryKeyPrefix+pc.JobID); err != nil {
		logger.Warn("failed to clean up job keys", "job_id", pc.JobID, "error", err)
	}
	pc.lockAcquired = false
	return nil
}

// MarkFailure counts a failed attempt and releases the lock so the job can
// be retried.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	count, err := s.redis.Incr(ctx, s.config.RetryKeyPrefix+pc.JobID, s.config.ProcessedTTL)
	if err != nil {
		logger.Error("failed to increment retry counter", "job_id", pc.JobID, "error", err)
	}

	if err := s.ReleaseLock(ctx, pc); err != nil {
		return err
	}

	logger.Warn("settlement sync failed, will retry",
		"job_id", pc.JobID,
		"retry_count", count,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.JobID); err != nil {
		logger.Warn("failed to release lock", "job_id", pc.JobID, "error", err)
		return err
	}

	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, jobID string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+jobID)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(string(raw))
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, jobID string) (bool, error) {
	exists, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+jobID)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
