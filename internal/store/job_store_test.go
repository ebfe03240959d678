package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/api/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func newJob(id, owner string) *model.Job {
	return &model.Job{
		ID:        id,
		Type:      model.JobTypeResume,
		Priority:  model.PriorityMedium,
		Status:    model.JobStatusQueued,
		OwnerID:   owner,
		CreatedAt: time.Now(),
	}
}

func TestJobStore_CreateGet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newJob("j1", "u1")))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, time.Hour, mr.TTL("job:j1"))

	assert.ErrorIs(t, s.Create(ctx, newJob("j1", "u1")), ErrExists)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobStore_TransitionFollowsLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("j1", "u1")))

	job, err := s.Transition(ctx, "j1", model.JobStatusProcessing, func(j *model.Job) {
		now := time.Now()
		j.StartedAt = &now
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.NotNil(t, job.StartedAt)
	ids, err := s.StuckSince(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, ids)

	_, err = s.Transition(ctx, "j1", model.JobStatusCompleted, nil)
	require.NoError(t, err)
	ids, err = s.StuckSince(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, ids)

	// terminal: nothing moves it anymore
	_, err = s.Transition(ctx, "j1", model.JobStatusCancelled, nil)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.JobStatusCompleted, terr.From)
	assert.Equal(t, model.JobStatusCompleted, terr.Job.Status)

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)

	// the record keeps its original expiry
	assert.Equal(t, time.Hour, mr.TTL("job:j1"))
}

func TestJobStore_TransitionNotFound(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)

	_, err := s.Transition(context.Background(), "nope", model.JobStatusProcessing, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobStore_ConcurrentClaimHasSingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newJob("j1", "u1")))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transition(ctx, "j1", model.JobStatusProcessing, nil)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrContention) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestJobStore_ListByOwner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"a", "b", "c"} {
		j := newJob(id, "u1")
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Create(ctx, j))
	}
	require.NoError(t, s.Create(ctx, newJob("other", "u2")))
	mr.Del("job:b")

	jobs, err := s.ListByOwner(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "a", jobs[1].ID)
}

func TestJobStore_PruneOwnerIndexes(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewJobStore(rdb, time.Hour)
	ctx := context.Background()

	old := newJob("old", "u1")
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Create(ctx, old))
	require.NoError(t, s.Create(ctx, newJob("fresh", "u1")))

	removed, err := s.PruneOwnerIndexes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	members, err := rdb.ZRange(ctx, "jobs:owner:u1", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, members)
}

func TestRedisBlobStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisBlobStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("payload"), "application/pdf"))
	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
