package model

// UploadResult is returned for stored files that need no AI step.
type UploadResult struct {
	FileName    string `json:"fileName"`
	StorageKey  string `json:"storageKey"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// UploadIntentRequest asks for permission to upload directly to object storage.
type UploadIntentRequest struct {
	Purpose     string `json:"purpose" validate:"required,oneof=resume document image video"`
	SubPurpose  string `json:"subPurpose,omitempty"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

type UploadIntentResponse struct {
	StorageKey string            `json:"storageKey"`
	UploadURL  string            `json:"uploadUrl"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ExpiresAt  string            `json:"expiresAt"`
}

// QueuedResponse is the body of a 202 for enqueued work.
type QueuedResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// SyncResponse is the body returned when work ran inline.
type SyncResponse struct {
	Type   JobType     `json:"type"`
	Result interface{} `json:"result"`
}

type CancelResponse struct {
	ProcessingID string `json:"processingId"`
	Message      string `json:"message"`
}
