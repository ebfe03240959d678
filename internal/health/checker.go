// Package health aggregates dependency checks into one report.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/model"
)

const (
	defaultTimeout = 3 * time.Second
	cacheFullRatio = 0.9
)

// Check is one named probe. A failing critical check makes the whole report
// unhealthy; any other non-healthy result only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) (model.HealthStatus, string)
}

type Checker struct {
	checks  []Check
	timeout time.Duration
}

func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{checks: checks, timeout: timeout}
}

// Report runs every check concurrently.
func (c *Checker) Report(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{
		Status:    model.HealthHealthy,
		Checks:    make(map[string]model.CheckResult, len(c.checks)),
		Timestamp: time.Now().UTC(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, check := range c.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			start := time.Now()
			status, msg := check.Run(cctx)
			result := model.CheckResult{Status: status, Message: msg, DurationMs: time.Since(start).Milliseconds()}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[check.Name] = result
			report.Status = worst(report.Status, effective(check, status))
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func effective(check Check, status model.HealthStatus) model.HealthStatus {
	if status == model.HealthUnhealthy && !check.Critical {
		return model.HealthDegraded
	}
	return status
}

func worst(a, b model.HealthStatus) model.HealthStatus {
	rank := map[model.HealthStatus]int{model.HealthHealthy: 0, model.HealthDegraded: 1, model.HealthUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Pinger is anything with a context-aware liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

func Redis(p Pinger) Check {
	return Check{
		Name:     "redis",
		Critical: true,
		Run: func(ctx context.Context) (model.HealthStatus, string) {
			if err := p.Ping(ctx); err != nil {
				return model.HealthUnhealthy, err.Error()
			}
			return model.HealthHealthy, "connected"
		},
	}
}

// Provider is an AI backend that can report configuration and reachability.
type Provider interface {
	Pinger
	IsConfigured() bool
}

func AI(p Provider) Check {
	return Check{
		Name:     "ai",
		Critical: true,
		Run: func(ctx context.Context) (model.HealthStatus, string) {
			if p == nil || !p.IsConfigured() {
				return model.HealthUnhealthy, "api key not configured"
			}
			if err := p.Ping(ctx); err != nil {
				return model.HealthUnhealthy, err.Error()
			}
			return model.HealthHealthy, "reachable"
		},
	}
}

// VideoService is the external transcription service.
type VideoService interface {
	HasAPIKey() bool
	HealthCheck(ctx context.Context) error
}

func VideoAnalysis(v VideoService) Check {
	return Check{
		Name: "video_analysis",
		Run: func(ctx context.Context) (model.HealthStatus, string) {
			if v == nil || !v.HasAPIKey() {
				return model.HealthDegraded, "api key not configured"
			}
			if err := v.HealthCheck(ctx); err != nil {
				return model.HealthDegraded, err.Error()
			}
			return model.HealthHealthy, "reachable"
		},
	}
}

func Caches(stores ...cache.StatsProvider) Check {
	return Check{
		Name: "cache",
		Run: func(context.Context) (model.HealthStatus, string) {
			for _, s := range stores {
				st := s.Stats()
				if st.Fill() >= cacheFullRatio {
					return model.HealthDegraded, fmt.Sprintf("%s cache %d/%d", st.Name, st.Size, st.Capacity)
				}
			}
			return model.HealthHealthy, fmt.Sprintf("%d caches", len(stores))
		},
	}
}

// BacklogSource reports how many jobs wait to be picked up.
type BacklogSource interface {
	Backlog(ctx context.Context) (int, error)
}

func Backlog(src BacklogSource, threshold int) Check {
	return Check{
		Name: "queue",
		Run: func(ctx context.Context) (model.HealthStatus, string) {
			n, err := src.Backlog(ctx)
			if err != nil {
				return model.HealthDegraded, err.Error()
			}
			if threshold > 0 && n > threshold {
				return model.HealthDegraded, fmt.Sprintf("%d jobs pending", n)
			}
			return model.HealthHealthy, fmt.Sprintf("%d jobs pending", n)
		},
	}
}

// StorageProber checks the object storage bucket.
type StorageProber interface {
	HealthCheck(ctx context.Context) error
}

// Storage degrades the report when object storage is missing or unreachable.
// A nil prober means storage is not configured.
func Storage(p StorageProber) Check {
	return Check{
		Name: "storage",
		Run: func(ctx context.Context) (model.HealthStatus, string) {
			if p == nil {
				return model.HealthDegraded, "object storage not configured"
			}
			if err := p.HealthCheck(ctx); err != nil {
				return model.HealthDegraded, err.Error()
			}
			return model.HealthHealthy, "reachable"
		},
	}
}
