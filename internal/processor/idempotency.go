package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("job already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// KeyValueStore is the part of the redis adapter the processors need.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	DelIfValue(ctx context.Context, key string, value []byte) (bool, error)
	Exist(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type IdempotencyConfig struct {
	LockTTL            time.Duration
	ProcessedTTL       time.Duration
	MaxRetries         int
	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            2 * time.Minute,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "erp_sync:retry:",
		LockKeyPrefix:      "erp_sync:lock:",
		ProcessedKeyPrefix: "erp_sync:done:",
	}
}

// IdempotencyService guards a unit of work identified by a job id: one
// holder at a time, a retry budget, and a marker once it succeeded.
type IdempotencyService struct {
	store  KeyValueStore
	config IdempotencyConfig
}

func NewIdempotencyService(store KeyValueStore, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		store:  store,
		config: config,
	}
}

type ProcessingContext struct {
	JobID      string
	RetryCount int
	IsRetry    bool

	lockToken    []byte
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, jobID string) (*ProcessingContext, error) {
	processed, err := s.IsProcessed(ctx, jobID)
	if err != nil {
		// a duplicate push is caught later by the order's sync status
		logger.Warn("failed to check processed status", "job_id", jobID, "error", err)
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

	token := []byte(uuid.NewString())
	acquired, err := s.store.SetNX(ctx, s.config.LockKeyPrefix+jobID, token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "job_id", jobID, "retry_count", retryCount, "lock_ttl", s.config.LockTTL)

	return &ProcessingContext{
		JobID:        jobID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockToken:    token,
		lockAcquired: true,
	}, nil
}

// MarkSuccess records the job as done and clears its retry budget.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.store.Set(ctx, s.config.ProcessedKeyPrefix+pc.JobID, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	s.ResetRetries(ctx, pc.JobID)
	return s.ReleaseLock(ctx, pc)
}

// MarkFailure spends one retry and frees the lock for the next attempt.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next, err := s.store.Incr(ctx, s.config.RetryKeyPrefix+pc.JobID, s.config.ProcessedTTL)
	if err != nil {
		logger.Error("failed to increment retry counter", "job_id", pc.JobID, "error", err)
		next = int64(pc.RetryCount) + 1
	}

	logger.Warn("job failed, will retry",
		"job_id", pc.JobID,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return s.ReleaseLock(ctx, pc)
}

// ReleaseLock drops the lock only if this holder still owns it.
func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	pc.lockAcquired = false

	if _, err := s.store.DelIfValue(ctx, s.config.LockKeyPrefix+pc.JobID, pc.lockToken); err != nil {
		logger.Warn("failed to release lock", "job_id", pc.JobID, "error", err)
		return err
	}
	return nil
}

func (s *IdempotencyService) ResetRetries(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, s.config.RetryKeyPrefix+jobID); err != nil {
		logger.Warn("failed to reset retry counter", "job_id", jobID, "error", err)
	}
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, jobID string) (int, error) {
	raw, err := s.store.Get(ctx, s.config.RetryKeyPrefix+jobID)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	return strconv.Atoi(string(raw))
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, jobID string) (bool, error) {
	exists, err := s.store.Exist(ctx, s.config.ProcessedKeyPrefix+jobID)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
