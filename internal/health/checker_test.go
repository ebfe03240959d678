package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/model"
)

type provider struct {
	configured bool
	err        error
}

func (p provider) Ping(context.Context) error { return p.err }
func (p provider) IsConfigured() bool         { return p.configured }

type videoService struct {
	key bool
	err error
}

func (v videoService) HasAPIKey() bool                   { return v.key }
func (v videoService) HealthCheck(context.Context) error { return v.err }

type backlog int

func (b backlog) Backlog(context.Context) (int, error) { return int(b), nil }

var up = PingFunc(func(context.Context) error { return nil })

func TestReport_AllHealthy(t *testing.T) {
	c := NewChecker(time.Second,
		Redis(up),
		AI(provider{configured: true}),
		VideoAnalysis(videoService{key: true}),
		Caches(cache.New[string, int]("jobs", 10, time.Minute)),
		Backlog(backlog(3), 500),
		Storage(bucket{}),
	)

	r := c.Report(context.Background())
	assert.Equal(t, model.HealthHealthy, r.Status)
	assert.Len(t, r.Checks, 6)
	assert.Equal(t, "3 jobs pending", r.Checks["queue"].Message)
}

type bucket struct{}

func (bucket) HealthCheck(context.Context) error { return nil }

func TestReport_MissingVideoKeyDegrades(t *testing.T) {
	r := NewChecker(0, Redis(up), AI(provider{configured: true}), VideoAnalysis(videoService{})).Report(context.Background())
	assert.Equal(t, model.HealthDegraded, r.Status)
	assert.Equal(t, model.HealthDegraded, r.Checks["video_analysis"].Status)
}

func TestReport_UnreachableVideoServiceDegrades(t *testing.T) {
	r := NewChecker(0, Redis(up), VideoAnalysis(videoService{key: true, err: errors.New("video service unhealthy: status 503")})).Report(context.Background())
	assert.Equal(t, model.HealthDegraded, r.Status)
	assert.Equal(t, "video service unhealthy: status 503", r.Checks["video_analysis"].Message)
}

func TestReport_CriticalFailureIsUnhealthy(t *testing.T) {
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })
	r := NewChecker(0, Redis(down), VideoAnalysis(videoService{})).Report(context.Background())
	assert.Equal(t, model.HealthUnhealthy, r.Status)
	assert.Equal(t, "connection refused", r.Checks["redis"].Message)

	r = NewChecker(0, Redis(up), AI(provider{})).Report(context.Background())
	assert.Equal(t, model.HealthUnhealthy, r.Status)
	assert.Equal(t, "api key not configured", r.Checks["ai"].Message)
}

func TestReport_CacheNearlyFullDegrades(t *testing.T) {
	store := cache.New[string, int]("tokens", 10, time.Minute)
	for i := 0; i < 9; i++ {
		store.Set(string(rune('a'+i)), i)
	}
	r := NewChecker(0, Caches(store)).Report(context.Background())
	assert.Equal(t, model.HealthDegraded, r.Status)
	assert.Equal(t, "tokens cache 9/10", r.Checks["cache"].Message)
}

func TestReport_BacklogAndStorage(t *testing.T) {
	r := NewChecker(0, Backlog(backlog(501), 500), Storage(nil)).Report(context.Background())
	assert.Equal(t, model.HealthDegraded, r.Status)
	assert.Equal(t, model.HealthDegraded, r.Checks["queue"].Status)
	assert.Equal(t, "object storage not configured", r.Checks["storage"].Message)
}

func TestReport_ChecksRunWithTimeout(t *testing.T) {
	slow := PingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	start := time.Now()
	r := NewChecker(50*time.Millisecond, Redis(slow)).Report(context.Background())
	require.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.HealthUnhealthy, r.Status)
}
