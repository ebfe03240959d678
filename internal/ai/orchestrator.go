// Package ai is the single entry point for every AI operation. Each method
// builds a prompt, calls a provider and returns a validated, clamped result
// or one of the typed errors.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hirewise/api/internal/client"
	"github.com/hirewise/api/internal/extract"
	"github.com/hirewise/api/internal/model"
)

type ChatCompleter interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) (*client.EmbeddingResponse, error)
	IsConfigured() bool
}

type Transcriber interface {
	Transcribe(ctx context.Context, req *client.TranscribeRequest) (*client.TranscribeResponse, error)
	IsConfigured() bool
}

// Document is an uploaded file handed to the orchestrator.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Request describes one unit of work for Run.
type Request struct {
	Type     model.JobType
	Document *Document
	Input    json.RawMessage
}

type Orchestrator struct {
	chat        ChatCompleter
	embedder    Embedder
	transcriber Transcriber
	extractor   extract.Extractor
	validate    *validator.Validate
}

func NewOrchestrator(chat ChatCompleter, embedder Embedder, transcriber Transcriber, extractor extract.Extractor, validate *validator.Validate) *Orchestrator {
	if validate == nil {
		validate = validator.New()
	}
	return &Orchestrator{
		chat:        chat,
		embedder:    embedder,
		transcriber: transcriber,
		extractor:   extractor,
		validate:    validate,
	}
}

// ChatConfigured reports whether the chat provider has credentials.
func (o *Orchestrator) ChatConfigured() bool {
	return o.chat != nil && o.chat.IsConfigured()
}

// Run dispatches a request to the matching operation. Both the inline
// high-priority path and the queue workers go through here.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (interface{}, error) {
	switch req.Type {
	case model.JobTypeResume:
		if req.Document == nil {
			return nil, fmt.Errorf("%w: resume job without document", ErrInvalidInput)
		}
		return o.ProcessResume(ctx, req.Document)

	case model.JobTypeEmbedding:
		if req.Document != nil {
			return o.EmbedDocument(ctx, req.Document)
		}
		var in model.EmbeddingInput
		if err := json.Unmarshal(req.Input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return o.GenerateEmbedding(ctx, in.Text)

	case model.JobTypeBiasDetection:
		var in model.BiasInput
		if err := json.Unmarshal(req.Input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return o.DetectBias(ctx, in)

	case model.JobTypeVideoAnalysis:
		if req.Document == nil {
			return nil, fmt.Errorf("%w: video job without recording", ErrInvalidInput)
		}
		var in model.InterviewInput
		if len(req.Input) > 0 {
			if err := json.Unmarshal(req.Input, &in); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
		}
		return o.AnalyzeVideoInterview(ctx, req.Document, in)
	}
	return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, req.Type)
}

func (o *Orchestrator) ProcessResume(ctx context.Context, doc *Document) (*model.ResumeResult, error) {
	const op = "process resume"

	text, err := o.documentText(ctx, op, doc)
	if err != nil {
		return nil, err
	}
	if !o.ChatConfigured() {
		return nil, fmt.Errorf("%s: %w: chat provider not configured", op, ErrProviderUnavailable)
	}

	raw, err := o.chat.ChatCompletion(ctx, resumeSystemPrompt, buildResumePrompt(text))
	if err != nil {
		return nil, classify(op, err)
	}

	shape, err := decode(o.validate, op, raw, fixResume)
	if err != nil {
		return nil, err
	}

	result := &model.ResumeResult{
		Text:              text,
		Skills:            shape.Skills,
		Experience:        shape.Experience,
		Education:         shape.Education,
		Summary:           strings.TrimSpace(shape.Summary),
		YearsOfExperience: *shape.YearsOfExperience,
	}
	if result.Experience == nil {
		result.Experience = []model.ExperienceEntry{}
	}
	if result.Education == nil {
		result.Education = []model.EducationEntry{}
	}
	return result, nil
}

func (o *Orchestrator) GenerateEmbedding(ctx context.Context, text string) (*model.EmbeddingResult, error) {
	const op = "generate embedding"

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%s: %w: empty text", op, ErrInvalidInput)
	}
	if o.embedder == nil || !o.embedder.IsConfigured() {
		return nil, fmt.Errorf("%s: %w: embedding provider not configured", op, ErrProviderUnavailable)
	}

	resp, err := o.embedder.CreateEmbedding(ctx, clip(text))
	if err != nil {
		return nil, classify(op, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, shapeError(op, "empty embedding")
	}

	vec := resp.Data[0].Embedding
	return &model.EmbeddingResult{
		Vector:     vec,
		Model:      resp.Model,
		Dimensions: len(vec),
	}, nil
}

// EmbedDocument extracts a document's text and embeds it.
func (o *Orchestrator) EmbedDocument(ctx context.Context, doc *Document) (*model.EmbeddingResult, error) {
	text, err := o.documentText(ctx, "embed document", doc)
	if err != nil {
		return nil, err
	}
	return o.GenerateEmbedding(ctx, text)
}

func (o *Orchestrator) DetectBias(ctx context.Context, in model.BiasInput) (*model.BiasReport, error) {
	const op = "detect bias"

	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%s: %w: empty content", op, ErrInvalidInput)
	}
	if !o.ChatConfigured() {
		return nil, fmt.Errorf("%s: %w: chat provider not configured", op, ErrProviderUnavailable)
	}

	raw, err := o.chat.ChatCompletion(ctx, biasSystemPrompt, buildBiasPrompt(in))
	if err != nil {
		return nil, classify(op, err)
	}

	shape, err := decode(o.validate, op, raw, fixBias)
	if err != nil {
		return nil, err
	}

	report := &model.BiasReport{
		Flags:           make([]model.BiasFlag, 0, len(shape.Flags)),
		FairnessScore:   *shape.FairnessScore,
		Summary:         strings.TrimSpace(shape.Summary),
		Recommendations: cleanList(shape.Recommendations),
	}
	for _, f := range shape.Flags {
		report.Flags = append(report.Flags, model.BiasFlag{
			Category:    model.BiasCategory(f.Category),
			Severity:    model.Severity(f.Severity),
			Confidence:  *f.Confidence,
			Description: strings.TrimSpace(f.Description),
		})
	}
	return report, nil
}

func (o *Orchestrator) AnalyzeVideoInterview(ctx context.Context, video *Document, in model.InterviewInput) (*model.InterviewAnalysis, error) {
	const op = "analyze interview"

	if !o.ChatConfigured() {
		return nil, fmt.Errorf("%s: %w: chat provider not configured", op, ErrProviderUnavailable)
	}
	if o.transcriber == nil || !o.transcriber.IsConfigured() {
		return nil, fmt.Errorf("%s: %w: video analysis service not configured", op, ErrProviderUnavailable)
	}

	tr, err := o.transcriber.Transcribe(ctx, &client.TranscribeRequest{
		FileName: video.Name,
		MIMEType: video.MIMEType,
		Data:     video.Data,
	})
	if err != nil {
		return nil, classify(op, err)
	}
	transcript := strings.TrimSpace(tr.Transcript)
	if transcript == "" {
		return nil, shapeError(op, "empty transcript")
	}

	raw, err := o.chat.ChatCompletion(ctx, interviewSystemPrompt, buildInterviewPrompt(in, transcript))
	if err != nil {
		return nil, classify(op, err)
	}

	shape, err := decode(o.validate, op, raw, fixInterview)
	if err != nil {
		return nil, err
	}

	out := &model.InterviewAnalysis{
		Competencies:   make([]model.CompetencyScore, 0, len(shape.Competencies)),
		OverallScore:   *shape.OverallScore,
		Strengths:      cleanList(shape.Strengths),
		Concerns:       cleanList(shape.Concerns),
		Summary:        strings.TrimSpace(shape.Summary),
		Recommendation: model.Recommendation(shape.Recommendation),
		Transcript:     transcript,
	}
	for _, c := range shape.Competencies {
		out.Competencies = append(out.Competencies, model.CompetencyScore{
			Name:     strings.TrimSpace(c.Name),
			Score:    *c.Score,
			Evidence: strings.TrimSpace(c.Evidence),
		})
	}
	return out, nil
}

func (o *Orchestrator) documentText(ctx context.Context, op string, doc *Document) (string, error) {
	if o.extractor == nil {
		return "", fmt.Errorf("%s: %w: no text extractor", op, ErrProviderUnavailable)
	}
	text, err := o.extractor.Extract(ctx, doc.Data, doc.MIMEType, doc.Name)
	if errors.Is(err, extract.ErrNoText) {
		return "", shapeError(op, "no extractable text")
	}
	if errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrTooLarge) {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
	}
	if err != nil {
		return "", shapeError(op, "document unreadable: "+err.Error())
	}
	return text, nil
}
