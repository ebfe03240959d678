package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hirewise/api/internal/model"
)

const (
	DefaultJobTTL = 24 * time.Hour

	jobKeyPrefix   = "job:"
	ownerKeyPrefix = "jobs:owner:"
	activeKey      = "jobs:active"

	maxTxAttempts = 8
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrExists            = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrContention        = errors.New("job update contention")
)

// TransitionError reports a refused status change along with the job as it
// was when the change was refused.
type TransitionError struct {
	From model.JobStatus
	To   model.JobStatus
	Job  *model.Job
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move job from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// JobStore keeps job records in Redis. Status changes run inside WATCH/MULTI
// so two writers racing on the same job cannot both win.
type JobStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewJobStore(rdb *redis.Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStore{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string      { return jobKeyPrefix + id }
func ownerKey(owner string) string { return ownerKeyPrefix + owner }

func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	if !ok {
		return ErrExists
	}

	if job.OwnerID != "" {
		pipe := s.rdb.Pipeline()
		pipe.ZAdd(ctx, ownerKey(job.OwnerID), redis.Z{Score: float64(job.CreatedAt.Unix()), Member: job.ID})
		pipe.Expire(ctx, ownerKey(job.OwnerID), s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("index job: %w", err)
		}
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Transition moves a job to next and applies mutate to it in the same
// transaction. A disallowed move returns a *TransitionError.
func (s *JobStore) Transition(ctx context.Context, id string, next model.JobStatus, mutate func(*model.Job)) (*model.Job, error) {
	key := jobKey(id)
	var updated *model.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}
		if !job.Status.CanTransitionTo(next) {
			return &TransitionError{From: job.Status, To: next, Job: &job}
		}

		job.Status = next
		if mutate != nil {
			mutate(&job)
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			switch {
			case next == model.JobStatusProcessing:
				pipe.ZAdd(ctx, activeKey, redis.Z{Score: float64(time.Now().Unix()), Member: id})
			case next.IsTerminal():
				pipe.ZRem(ctx, activeKey, id)
			}
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrContention
}

// Delete removes a job record and its index entries.
func (s *JobStore) Delete(ctx context.Context, job *model.Job) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, jobKey(job.ID))
	pipe.ZRem(ctx, activeKey, job.ID)
	if job.OwnerID != "" {
		pipe.ZRem(ctx, ownerKey(job.OwnerID), job.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ListByOwner returns the owner's most recent jobs, newest first. Ids whose
// records already expired are skipped.
func (s *JobStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.rdb.ZRevRange(ctx, ownerKey(ownerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// StuckSince returns ids of jobs that entered processing before cutoff.
func (s *JobStore) StuckSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, activeKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
}

// ForgetActive drops an id from the processing index without touching the record.
func (s *JobStore) ForgetActive(ctx context.Context, id string) error {
	return s.rdb.ZRem(ctx, activeKey, id).Err()
}

// PruneOwnerIndexes drops index entries older than the job TTL, since their
// records are gone. It returns how many entries were removed.
func (s *JobStore) PruneOwnerIndexes(ctx context.Context, now time.Time) (int64, error) {
	cutoff := strconv.FormatInt(now.Add(-s.ttl).Unix(), 10)
	var removed int64
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, ownerKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan owner indexes: %w", err)
		}
		for _, key := range keys {
			n, err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", cutoff).Result()
			if err != nil {
				return removed, fmt.Errorf("prune %s: %w", key, err)
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
