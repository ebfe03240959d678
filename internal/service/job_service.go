package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/store"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrAlreadyTerminal = errors.New("job already in a terminal state")
	ErrForbidden       = errors.New("access denied")
	// ErrNotClaimable means a worker found the job in a state it cannot run from.
	ErrNotClaimable = errors.New("job not claimable")
	// ErrJobCancelled is returned to workers whose job was cancelled under them.
	ErrJobCancelled = errors.New("job cancelled")
	ErrInlineOnly   = errors.New("high priority work is not queued")
)

// Enqueuer puts jobs on the worker queue and takes pending ones off it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *model.Job) error
	Remove(ctx context.Context, job *model.Job) error
}

// Notifier is told about every status change.
type Notifier interface {
	JobUpdated(ctx context.Context, job *model.Job)
}

// Archiver keeps terminal jobs beyond the Redis TTL. Get returns nil, nil
// for unknown ids.
type Archiver interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}

// Submission is a request to run a job through the queue.
type Submission struct {
	Type        model.JobType
	Priority    model.Priority
	Owner       *auth.Principal
	CandidateID string
	FileName    string
	MIMEType    string
	Data        []byte
	Input       interface{}
}

// JobService owns the job lifecycle: submit, claim, complete, fail, cancel.
type JobService struct {
	store    *store.JobStore
	blobs    store.BlobStore
	queue    Enqueuer
	notifier Notifier
	archive  Archiver
	terminal *cache.Store[string, *model.Job]
	log      zerolog.Logger
}

// NewJobService wires the lifecycle. notifier, archive and terminal may be nil.
func NewJobService(st *store.JobStore, blobs store.BlobStore, queue Enqueuer, notifier Notifier, archive Archiver, terminal *cache.Store[string, *model.Job]) *JobService {
	return &JobService{
		store:    st,
		blobs:    blobs,
		queue:    queue,
		notifier: notifier,
		archive:  archive,
		terminal: terminal,
		log:      logger.With("jobs"),
	}
}

// Submit records a queued job, stores its payload and enqueues it.
func (s *JobService) Submit(ctx context.Context, sub *Submission) (*model.Job, error) {
	if sub.Priority == model.PriorityHigh {
		return nil, ErrInlineOnly
	}
	if sub.Owner == nil {
		return nil, ErrForbidden
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		Type:        sub.Type,
		Priority:    model.ParsePriority(string(sub.Priority)),
		Status:      model.JobStatusQueued,
		OwnerID:     sub.Owner.UserID,
		CompanyID:   sub.Owner.CompanyID,
		CandidateID: sub.CandidateID,
		FileName:    sub.FileName,
		MIMEType:    sub.MIMEType,
		Size:        int64(len(sub.Data)),
		CreatedAt:   time.Now().UTC(),
	}

	if sub.Input != nil {
		raw, err := json.Marshal(sub.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		job.Input = raw
	}

	if len(sub.Data) > 0 {
		job.PayloadKey = "payload/" + job.ID + "/" + intake.StoredName(sub.FileName, sub.MIMEType)
		if err := s.blobs.Put(ctx, job.PayloadKey, sub.Data, sub.MIMEType); err != nil {
			return nil, fmt.Errorf("failed to store payload: %w", err)
		}
	}

	if err := s.store.Create(ctx, job); err != nil {
		s.dropPayload(ctx, job)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		if derr := s.store.Delete(ctx, job); derr != nil {
			s.log.Error().Err(derr).Str("jobId", job.ID).Msg("failed to drop unqueued job")
		}
		s.dropPayload(ctx, job)
		return nil, err
	}

	s.log.Info().Str("jobId", job.ID).Str("type", string(job.Type)).Str("priority", string(job.Priority)).Msg("job queued")
	s.notify(ctx, job)
	return job, nil
}

// Status returns a job the principal may see.
func (s *JobService) Status(ctx context.Context, id string, p *auth.Principal) (*model.Job, error) {
	job, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAccessJob(p, job) {
		return nil, ErrForbidden
	}
	return job, nil
}

func (s *JobService) lookup(ctx context.Context, id string) (*model.Job, error) {
	if s.terminal != nil {
		if job, ok := s.terminal.Get(id); ok {
			return job, nil
		}
	}

	job, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return s.fromArchive(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() && s.terminal != nil {
		s.terminal.Set(id, job)
	}
	return job, nil
}

func (s *JobService) fromArchive(ctx context.Context, id string) (*model.Job, error) {
	if s.archive == nil {
		return nil, ErrJobNotFound
	}
	job, err := s.archive.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns the principal's recent jobs.
func (s *JobService) List(ctx context.Context, p *auth.Principal, limit int) ([]*model.Job, error) {
	return s.store.ListByOwner(ctx, p.UserID, limit)
}

// Cancel moves a queued or processing job to cancelled. A terminal job is
// returned unchanged together with ErrAlreadyTerminal.
func (s *JobService) Cancel(ctx context.Context, id string, p *auth.Principal) (*model.Job, error) {
	job, err := s.Status(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, ErrAlreadyTerminal
	}

	updated, err := s.store.Transition(ctx, id, model.JobStatusCancelled, func(j *model.Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		j.Error = "cancelled by user"
	})
	var terr *store.TransitionError
	if errors.As(err, &terr) {
		return terr.Job, ErrAlreadyTerminal
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusQueued {
		if err := s.queue.Remove(ctx, updated); err != nil {
			s.log.Warn().Err(err).Str("jobId", id).Msg("queued task not removed; worker will skip it")
		}
	}

	s.log.Info().Str("jobId", id).Str("by", p.UserID).Msg("job cancelled")
	s.finish(ctx, updated)
	return updated, nil
}

// Claim moves a queued job to processing. Exactly one caller wins.
func (s *JobService) Claim(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Transition(ctx, id, model.JobStatusProcessing, func(j *model.Job) {
		now := time.Now().UTC()
		j.StartedAt = &now
	})
	if err != nil {
		return nil, s.workerError(err)
	}
	s.notify(ctx, job)
	return job, nil
}

// Checkpoint tells a worker whether it should keep going.
func (s *JobService) Checkpoint(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrJobNotFound
	}
	if err != nil {
		return err
	}
	switch job.Status {
	case model.JobStatusProcessing:
		return nil
	case model.JobStatusCancelled:
		return ErrJobCancelled
	default:
		return fmt.Errorf("%w: status %s", ErrNotClaimable, job.Status)
	}
}

// LoadPayload reads the uploaded file of a job, if it has one.
func (s *JobService) LoadPayload(ctx context.Context, job *model.Job) ([]byte, error) {
	if job.PayloadKey == "" {
		return nil, nil
	}
	data, err := s.blobs.Get(ctx, job.PayloadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load payload: %w", err)
	}
	return data, nil
}

// Complete stores the result of a processing job.
func (s *JobService) Complete(ctx context.Context, id string, result interface{}) (*model.Job, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	job, err := s.store.Transition(ctx, id, model.JobStatusCompleted, func(j *model.Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		j.Result = raw
	})
	if err != nil {
		return nil, s.workerError(err)
	}
	s.finish(ctx, job)
	return job, nil
}

// Fail records a worker failure.
func (s *JobService) Fail(ctx context.Context, id, reason string) (*model.Job, error) {
	job, err := s.store.Transition(ctx, id, model.JobStatusFailed, func(j *model.Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		j.Error = reason
	})
	if err != nil {
		return nil, s.workerError(err)
	}
	s.finish(ctx, job)
	return job, nil
}

// FailStuck fails jobs that have been processing since before cutoff.
func (s *JobService) FailStuck(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.store.StuckSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, id := range ids {
		_, err := s.Fail(ctx, id, "worker lost")
		switch {
		case err == nil:
			failed++
		case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrJobCancelled), errors.Is(err, ErrNotClaimable):
			if ferr := s.store.ForgetActive(ctx, id); ferr != nil {
				return failed, ferr
			}
		default:
			return failed, err
		}
	}
	return failed, nil
}

// PruneIndexes drops owner index entries for expired jobs.
func (s *JobService) PruneIndexes(ctx context.Context) (int64, error) {
	return s.store.PruneOwnerIndexes(ctx, time.Now())
}

func (s *JobService) workerError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrJobNotFound
	}
	var terr *store.TransitionError
	if errors.As(err, &terr) {
		if terr.From == model.JobStatusCancelled {
			return ErrJobCancelled
		}
		return fmt.Errorf("%w: status %s", ErrNotClaimable, terr.From)
	}
	return err
}

// finish runs the side effects of reaching a terminal state. None of them
// can change the outcome, so failures are only logged.
func (s *JobService) finish(ctx context.Context, job *model.Job) {
	s.dropPayload(ctx, job)
	if s.terminal != nil {
		s.terminal.Set(job.ID, job)
	}
	if s.archive != nil {
		if err := s.archive.Save(ctx, job); err != nil {
			s.log.Warn().Err(err).Str("jobId", job.ID).Msg("failed to archive job")
		}
	}
	s.notify(ctx, job)
}

func (s *JobService) dropPayload(ctx context.Context, job *model.Job) {
	if job.PayloadKey == "" {
		return
	}
	if err := s.blobs.Delete(ctx, job.PayloadKey); err != nil {
		s.log.Warn().Err(err).Str("jobId", job.ID).Msg("failed to delete payload")
	}
}

func (s *JobService) notify(ctx context.Context, job *model.Job) {
	if s.notifier != nil {
		s.notifier.JobUpdated(ctx, job)
	}
}
