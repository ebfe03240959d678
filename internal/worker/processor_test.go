package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/queue"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/internal/store"
)

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, *model.Job) error { return nil }
func (nopQueue) Remove(context.Context, *model.Job) error  { return nil }

type runnerFunc func(ctx context.Context, req *ai.Request) (interface{}, error)

func (f runnerFunc) Run(ctx context.Context, req *ai.Request) (interface{}, error) {
	return f(ctx, req)
}

var owner = &auth.Principal{UserID: "u1", Roles: []string{"candidate"}}

func setup(t *testing.T, run runnerFunc) (*Processor, *service.JobService) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	jobs := service.NewJobService(
		store.NewJobStore(rdb, time.Hour),
		store.NewRedisBlobStore(rdb, time.Hour),
		nopQueue{}, nil, nil, nil,
	)
	return NewProcessor(jobs, run), jobs
}

func submit(t *testing.T, jobs *service.JobService) (*model.Job, *asynq.Task) {
	t.Helper()
	job, err := jobs.Submit(context.Background(), &service.Submission{
		Type:     model.JobTypeResume,
		Priority: model.PriorityMedium,
		Owner:    owner,
		FileName: "cv.pdf",
		MIMEType: "application/pdf",
		Data:     []byte("%PDF-1.4"),
		Input:    map[string]string{"note": "x"},
	})
	require.NoError(t, err)
	task, err := queue.NewTask(job)
	require.NoError(t, err)
	return job, task
}

func TestProcessTask_Completes(t *testing.T) {
	var got *ai.Request
	p, jobs := setup(t, func(_ context.Context, req *ai.Request) (interface{}, error) {
		got = req
		return &model.ResumeResult{Summary: "ok", Skills: []string{"Go"}}, nil
	})
	job, task := submit(t, jobs)

	require.NoError(t, p.ProcessTask(context.Background(), task))

	require.NotNil(t, got)
	assert.Equal(t, model.JobTypeResume, got.Type)
	require.NotNil(t, got.Document)
	assert.Equal(t, "cv.pdf", got.Document.Name)
	assert.JSONEq(t, `{"note":"x"}`, string(got.Input))

	done, err := jobs.Status(context.Background(), job.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
	assert.Contains(t, string(done.Result), `"summary":"ok"`)
}

func TestProcessTask_FailureIsTerminal(t *testing.T) {
	p, jobs := setup(t, func(context.Context, *ai.Request) (interface{}, error) {
		return nil, fmt.Errorf("process resume: %w: boom", ai.ErrProviderUnavailable)
	})
	job, task := submit(t, jobs)

	err := p.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	failed, err := jobs.Status(context.Background(), job.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Equal(t, "ai provider unavailable", failed.Error)
}

func TestProcessTask_SkipsCancelledJob(t *testing.T) {
	called := false
	p, jobs := setup(t, func(context.Context, *ai.Request) (interface{}, error) {
		called = true
		return nil, nil
	})
	job, task := submit(t, jobs)
	_, err := jobs.Cancel(context.Background(), job.ID, owner)
	require.NoError(t, err)

	require.NoError(t, p.ProcessTask(context.Background(), task))
	assert.False(t, called)
}

func TestProcessTask_CancelledWhileRunning(t *testing.T) {
	var jobs *service.JobService
	var jobID string
	p, js := setup(t, func(ctx context.Context, _ *ai.Request) (interface{}, error) {
		_, err := jobs.Cancel(ctx, jobID, owner)
		return map[string]string{"late": "result"}, err
	})
	jobs = js
	job, task := submit(t, jobs)
	jobID = job.ID

	require.NoError(t, p.ProcessTask(context.Background(), task))

	got, err := jobs.Status(context.Background(), job.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	assert.Empty(t, got.Result)
}

func TestProcessTask_DuplicateDeliveryRunsOnce(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	p, jobs := setup(t, func(context.Context, *ai.Request) (interface{}, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		<-release
		return map[string]int{"ok": 1}, nil
	})
	_, task := submit(t, jobs)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.ProcessTask(context.Background(), task))
		}()
	}
	// losers return without blocking; give them time before releasing the winner
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, 1, runs)
}

func TestProcessTask_BadPayload(t *testing.T) {
	p, _ := setup(t, nil)
	err := p.ProcessTask(context.Background(), asynq.NewTask(queue.TaskType(model.JobTypeResume), []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "ai provider rate limited", FailureReason(fmt.Errorf("x: %w", ai.ErrRateLimited)))
	assert.Equal(t, "invalid input", FailureReason(ai.ErrInvalidInput))
	assert.Equal(t, "processing failed", FailureReason(errors.New("other")))
}
