package model

import (
	"encoding/json"
	"time"
)

// Job is a unit of AI work tracked from intake to a terminal state.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Priority    Priority        `json:"priority"`
	Status      JobStatus       `json:"status"`
	OwnerID     string          `json:"ownerId"`
	CompanyID   string          `json:"companyId,omitempty"`
	CandidateID string          `json:"candidateId,omitempty"`
	PayloadKey  string          `json:"payloadKey,omitempty"`
	FileName    string          `json:"fileName,omitempty"`
	MIMEType    string          `json:"mimeType,omitempty"`
	Size        int64           `json:"size,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

// JobView is the client-facing shape of a job. Results are only present
// once the job completed.
type JobView struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Priority    Priority        `json:"priority"`
	Status      JobStatus       `json:"status"`
	CandidateID string          `json:"candidateId,omitempty"`
	FileName    string          `json:"fileName,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
}

func (j *Job) View() JobView {
	v := JobView{
		ID:          j.ID,
		Type:        j.Type,
		Priority:    j.Priority,
		Status:      j.Status,
		CandidateID: j.CandidateID,
		FileName:    j.FileName,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
	}
	if j.Status == JobStatusCompleted {
		v.Result = j.Result
	}
	return v
}

// BiasInput is the inline input of a bias-detection job.
type BiasInput struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// EmbeddingInput is the inline input of an embedding job submitted as text.
type EmbeddingInput struct {
	Text string `json:"text"`
}

// InterviewInput carries interview context for video analysis.
type InterviewInput struct {
	Role      string   `json:"role,omitempty"`
	Questions []string `json:"questions,omitempty"`
}
