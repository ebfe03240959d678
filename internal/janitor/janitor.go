// Package janitor runs periodic maintenance on the job store.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/logger"
)

// Maintainer is the part of the job service the janitor drives.
type Maintainer interface {
	FailStuck(ctx context.Context, cutoff time.Time) (int, error)
	PruneIndexes(ctx context.Context) (int64, error)
}

// Janitor wraps robfig/cron and fails jobs whose worker disappeared.
type Janitor struct {
	cron       *cron.Cron
	jobs       Maintainer
	schedule   string
	stuckAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func New(jobs Maintainer, schedule string, stuckAfter time.Duration) *Janitor {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if stuckAfter <= 0 {
		stuckAfter = 30 * time.Minute
	}
	return &Janitor{
		cron:       cron.New(),
		jobs:       jobs,
		schedule:   schedule,
		stuckAfter: stuckAfter,
		now:        time.Now,
		log:        logger.With("janitor"),
	}
}

// Start registers the sweep and starts the scheduler.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.Sweep(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	j.cron.Start()
	j.log.Info().Str("schedule", j.schedule).Dur("stuckAfter", j.stuckAfter).Msg("janitor started")
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep runs one maintenance pass.
func (j *Janitor) Sweep(ctx context.Context) {
	failed, err := j.jobs.FailStuck(ctx, j.now().Add(-j.stuckAfter))
	if err != nil {
		j.log.Error().Err(err).Msg("stuck job sweep failed")
	} else if failed > 0 {
		j.log.Warn().Int("count", failed).Msg("failed stuck jobs")
	}

	pruned, err := j.jobs.PruneIndexes(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("index prune failed")
	} else if pruned > 0 {
		j.log.Debug().Int64("count", pruned).Msg("pruned expired index entries")
	}
}
