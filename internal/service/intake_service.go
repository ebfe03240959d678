package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirewise/api/internal/ai"
	"github.com/hirewise/api/internal/auth"
	"github.com/hirewise/api/internal/client"
	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/logger"
	"github.com/hirewise/api/internal/model"
)

var ErrStorageUnavailable = errors.New("object storage not configured")

// Runner executes AI work inline.
type Runner interface {
	Run(ctx context.Context, req *ai.Request) (interface{}, error)
}

// Upload is a validated multipart upload handed over by the HTTP layer.
// IntakeService owns Data from here on and zeroes it when done.
type Upload struct {
	Purpose     string
	SubPurpose  string
	Priority    string
	FileName    string
	ContentType string
	Data        []byte
	CandidateID string
	Context     *model.InterviewInput
	Owner       *auth.Principal
}

// Outcome is exactly one of: a queued job, an inline result, or a stored file.
type Outcome struct {
	Job    *model.Job
	Sync   *model.SyncResponse
	Stored *model.UploadResult
}

// IntakeService routes accepted uploads and text requests by priority.
type IntakeService struct {
	rules        *intake.Rules
	jobs         *JobService
	runner       Runner
	storage      client.StorageClient
	intentExpiry time.Duration
	log          zerolog.Logger
}

// NewIntakeService wires intake. storage may be nil when object storage is not configured.
func NewIntakeService(rules *intake.Rules, jobs *JobService, runner Runner, storage client.StorageClient, intentExpiry time.Duration) *IntakeService {
	if intentExpiry <= 0 {
		intentExpiry = 15 * time.Minute
	}
	return &IntakeService{
		rules:        rules,
		jobs:         jobs,
		runner:       runner,
		storage:      storage,
		intentExpiry: intentExpiry,
		log:          logger.With("intake"),
	}
}

// Rule exposes the allow-list lookup so the HTTP layer can reject uploads
// before reading their bodies.
func (s *IntakeService) Rule(purpose, subPurpose string) (intake.Rule, error) {
	return s.rules.Lookup(purpose, subPurpose)
}

func (s *IntakeService) Accept(ctx context.Context, u *Upload) (*Outcome, error) {
	defer intake.Scrub(u.Data)

	rule, err := s.rules.Lookup(u.Purpose, u.SubPurpose)
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(len(u.Data) > 0, int64(len(u.Data)), u.ContentType); err != nil {
		return nil, err
	}
	if err := rule.CheckContent(u.Data); err != nil {
		return nil, err
	}
	mimeType := intake.NormalizeMIME(u.ContentType)

	if rule.JobType == "" {
		stored, err := s.storeFile(ctx, rule, u, mimeType)
		if err != nil {
			return nil, err
		}
		return &Outcome{Stored: stored}, nil
	}

	var input interface{}
	if u.Context != nil {
		input = u.Context
	}

	priority := model.ParsePriority(u.Priority)
	if priority == model.PriorityHigh {
		req := &ai.Request{
			Type:     rule.JobType,
			Document: &ai.Document{Name: u.FileName, MIMEType: mimeType, Data: u.Data},
		}
		if input != nil {
			raw, err := json.Marshal(input)
			if err != nil {
				return nil, err
			}
			req.Input = raw
		}
		result, err := s.runner.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Outcome{Sync: &model.SyncResponse{Type: rule.JobType, Result: result}}, nil
	}

	job, err := s.jobs.Submit(ctx, &Submission{
		Type:        rule.JobType,
		Priority:    priority,
		Owner:       u.Owner,
		CandidateID: u.CandidateID,
		FileName:    u.FileName,
		MIMEType:    mimeType,
		Data:        u.Data,
		Input:       input,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Job: job}, nil
}

// SubmitText handles JSON-only AI requests (bias detection, embeddings).
func (s *IntakeService) SubmitText(ctx context.Context, jobType model.JobType, priority string, input interface{}, owner *auth.Principal) (*Outcome, error) {
	p := model.ParsePriority(priority)
	if p == model.PriorityHigh {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, err
		}
		result, err := s.runner.Run(ctx, &ai.Request{Type: jobType, Input: raw})
		if err != nil {
			return nil, err
		}
		return &Outcome{Sync: &model.SyncResponse{Type: jobType, Result: result}}, nil
	}

	job, err := s.jobs.Submit(ctx, &Submission{
		Type:     jobType,
		Priority: p,
		Owner:    owner,
		Input:    input,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Job: job}, nil
}

// Intent validates an upload before any bytes move and returns a presigned
// PUT for direct upload to object storage.
func (s *IntakeService) Intent(ctx context.Context, req *model.UploadIntentRequest, owner *auth.Principal) (*model.UploadIntentResponse, error) {
	rule, err := s.rules.Lookup(req.Purpose, req.SubPurpose)
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(true, req.Size, req.ContentType); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	mimeType := intake.NormalizeMIME(req.ContentType)
	key := fmt.Sprintf("uploads/%s/%s/%s", rule.Purpose, owner.UserID, intake.StoredName(req.FileName, mimeType))
	signed, err := s.storage.PresignUpload(ctx, key, mimeType, req.Size, s.intentExpiry)
	if err != nil {
		return nil, err
	}

	return &model.UploadIntentResponse{
		StorageKey: key,
		UploadURL:  signed.URL,
		Method:     signed.Method,
		Headers:    signed.Headers,
		ExpiresAt:  signed.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *IntakeService) storeFile(ctx context.Context, rule intake.Rule, u *Upload, mimeType string) (*model.UploadResult, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	name := intake.StoredName(u.FileName, mimeType)
	key := fmt.Sprintf("%ss/%s/%s", rule.Purpose, u.Owner.UserID, name)
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(u.Data), mimeType)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("key", key).Int("size", len(u.Data)).Msg("file stored")
	return &model.UploadResult{
		FileName:    name,
		StorageKey:  key,
		URL:         url,
		ContentType: mimeType,
		Size:        int64(len(u.Data)),
	}, nil
}
