package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/queue"
	"github.com/hirewise/api/internal/service"
)

// Processor runs queued AI jobs. One instance serves every job type.
type Processor struct {
	jobs   *service.JobService
	runner service.Runner
	log    zerolog.Logger
}

func NewProcessor(jobs *service.JobService, runner service.Runner) *Processor {
	return &Processor{
		jobs:   jobs,
		runner: runner,
		log:    logger.With("worker"),
	}
}

// Register binds the processor to every job type on mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	for _, t := range []model.JobType{
		model.JobTypeResume,
		model.JobTypeVideoAnalysis,
		model.JobTypeEmbedding,
		model.JobTypeBiasDetection,
	} {
		mux.HandleFunc(queue.TaskType(t), p.ProcessTask)
	}
}

// ProcessTask handles one queued job. Jobs that were cancelled or already
// picked up by another worker are skipped without error.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	jobID, err := queue.ParseTask(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log := p.log.With().Str("jobId", jobID).Str("task", t.Type()).Logger()

	job, err := p.jobs.Claim(ctx, jobID)
	switch {
	case errors.Is(err, service.ErrJobCancelled),
		errors.Is(err, service.ErrNotClaimable),
		errors.Is(err, service.ErrJobNotFound):
		log.Info().Err(err).Msg("skipping task")
		return nil
	case err != nil:
		return fmt.Errorf("failed to claim job: %w", err)
	}
	log.Info().Str("type", string(job.Type)).Msg("job started")

	data, err := p.jobs.LoadPayload(ctx, job)
	if err != nil {
		return p.fail(ctx, log, jobID, "payload unavailable", err)
	}
	defer intake.Scrub(data)

	if err := p.jobs.Checkpoint(ctx, jobID); err != nil {
		return p.stopped(log, err)
	}

	req := &ai.Request{Type: job.Type, Input: job.Input}
	if job.PayloadKey != "" {
		req.Document = &ai.Document{Name: job.FileName, MIMEType: job.MIMEType, Data: data}
	}

	result, err := p.runner.Run(ctx, req)
	if err != nil {
		return p.fail(ctx, log, jobID, FailureReason(err), err)
	}

	if err := p.jobs.Checkpoint(ctx, jobID); err != nil {
		return p.stopped(log, err)
	}

	if _, err := p.jobs.Complete(ctx, jobID, result); err != nil {
		return p.stopped(log, err)
	}
	log.Info().Msg("job completed")
	return nil
}

// stopped handles a job that left processing while the worker held it.
func (p *Processor) stopped(log zerolog.Logger, err error) error {
	if errors.Is(err, service.ErrJobCancelled) {
		log.Info().Msg("job cancelled, result discarded")
		return nil
	}
	if errors.Is(err, service.ErrNotClaimable) || errors.Is(err, service.ErrJobNotFound) {
		log.Warn().Err(err).Msg("job no longer processing, result discarded")
		return nil
	}
	return err
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, jobID, reason string, cause error) error {
	log.Error().Err(cause).Str("reason", reason).Msg("job failed")
	if _, err := p.jobs.Fail(ctx, jobID, reason); err != nil {
		if serr := p.stopped(log, err); serr != nil {
			log.Error().Err(serr).Msg("failed to record job failure")
		}
	}
	return fmt.Errorf("%w: %w", cause, asynq.SkipRetry)
}

// FailureReason is the caller-safe text stored on a failed job.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return "ai provider rate limited"
	case errors.Is(err, ai.ErrProviderUnavailable):
		return "ai provider unavailable"
	case errors.Is(err, ai.ErrInvalidResponseShape):
		return "ai provider returned an unusable response"
	case errors.Is(err, ai.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	}
	return "processing failed"
}
