package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// JobStoreRedis is the subset of *redis.Client the Job Store Gateway needs.
type JobStoreRedis interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// JobStore is a thin accessor over the external TTL key-value store keyed
// by "{userId}:{jobId}" (C5, §4.5).
type JobStore struct {
	redis      JobStoreRedis
	defaultTTL time.Duration
}

// NewJobStore wraps a redis client with the Job Store Gateway contract.
// defaultTTL backs Update's TTL() fallback when a key somehow reports no
// expiry (Config.JobTTLSeconds, §4.5); a non-positive value falls back to
// DefaultJobTTL.
func NewJobStore(redisClient JobStoreRedis, defaultTTL time.Duration) *JobStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultJobTTL
	}
	return &JobStore{redis: redisClient, defaultTTL: defaultTTL}
}

// withRetry runs op with bounded exponential-backoff retry: 3 attempts,
// 0.5s -> 1.0s, per §4.5. On exhausting retries the original error
// propagates, replacing the original's hand-rolled _with_retry sleep loop.
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.Multiplier = 2
	bo.MaxInterval = time.Second
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx))
}

// FindByJobID scans for key pattern "*:{jobId}" and returns the first match.
func (s *JobStore) FindByJobID(ctx context.Context, jobID string) (*Job, error) {
	pattern := fmt.Sprintf("*:%s", jobID)
	var found *Job
	err := withRetry(ctx, func() error {
		iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			val, err := s.redis.Get(ctx, iter.Val()).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return err
			}
			var job Job
			if err := json.Unmarshal([]byte(val), &job); err != nil {
				return fmt.Errorf("core: decode job at %s: %w", iter.Val(), err)
			}
			found = &job
			return nil
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindByUserAndJob looks up the job directly by its exact store key.
func (s *JobStore) FindByUserAndJob(ctx context.Context, userID int64, jobID string) (*Job, error) {
	key := fmt.Sprintf("%d:%s", userID, jobID)
	var job *Job
	err := withRetry(ctx, func() error {
		val, err := s.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		var j Job
		if err := json.Unmarshal([]byte(val), &j); err != nil {
			return fmt.Errorf("core: decode job at %s: %w", key, err)
		}
		job = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Save persists job under its store key with the given TTL, overwriting any
// existing record. Returns true once the write succeeded.
func (s *JobStore) Save(ctx context.Context, job Job, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("core: marshal job %s: %w", job.JobID, err)
	}
	saved := false
	err = withRetry(ctx, func() error {
		if err := s.redis.Set(ctx, job.StoreKey(), data, ttl).Err(); err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, err
}

// JobPatch carries the fields Update may change on an existing job.
type JobPatch struct {
	StopFlag          *bool
	LastTestCaseIndex *int
	Verdicts          []Verdict
}

// Update reads the current TTL, applies patches, and writes back preserving
// that TTL (§4.5). Returns ErrJobVanished if the job no longer exists.
func (s *JobStore) Update(ctx context.Context, userID int64, jobID string, patch JobPatch) error {
	key := fmt.Sprintf("%d:%s", userID, jobID)
	return withRetry(ctx, func() error {
		ttl, err := s.redis.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		val, err := s.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrJobVanished
		}
		if err != nil {
			return err
		}
		var job Job
		if err := json.Unmarshal([]byte(val), &job); err != nil {
			return fmt.Errorf("core: decode job at %s: %w", key, err)
		}
		if patch.StopFlag != nil {
			job.StopFlag = *patch.StopFlag
		}
		if patch.LastTestCaseIndex != nil {
			job.LastTestCaseIndex = *patch.LastTestCaseIndex
		}
		if patch.Verdicts != nil {
			job.Verdicts = patch.Verdicts
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("core: marshal job %s: %w", jobID, err)
		}
		if ttl <= 0 {
			ttl = s.defaultTTL
		}
		return s.redis.Set(ctx, key, data, ttl).Err()
	})
}

// Delete removes the job record; a no-op on an already-missing key is not
// an error (§6.1's idempotency requirement).
func (s *JobStore) Delete(ctx context.Context, userID int64, jobID string) (int64, error) {
	key := fmt.Sprintf("%d:%s", userID, jobID)
	var count int64
	err := withRetry(ctx, func() error {
		n, err := s.redis.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	return count, err
}

// DefaultJobTTL is NewJobStore's fallback when called with a non-positive
// defaultTTL.
const DefaultJobTTL = 1 * time.Hour
