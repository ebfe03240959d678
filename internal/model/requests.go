package model

// BiasRequest is the body of POST /api/ai/bias.
type BiasRequest struct {
	Content     string `json:"content" validate:"required,max=50000"`
	ContentType string `json:"contentType" validate:"omitempty,oneof=job_description resume interview_feedback evaluation"`
	Priority    string `json:"priority" validate:"omitempty,oneof=high medium low"`
}

// EmbeddingRequest is the body of POST /api/ai/embedding.
type EmbeddingRequest struct {
	Text     string `json:"text" validate:"required,max=50000"`
	Priority string `json:"priority" validate:"omitempty,oneof=high medium low"`
}

// NotificationCount is returned by GET /api/notifications.
type NotificationCount struct {
	ConnectedClients int `json:"connectedClients"`
}
