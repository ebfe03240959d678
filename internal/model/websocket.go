package model

import "time"

// WebSocket message types
const (
	WSMessageTypeJob          = "job"
	WSMessageTypeNotification = "notification"
	WSMessageTypePing         = "ping"
	WSMessageTypePong         = "pong"
)

// Notification target kinds
type TargetType string

const (
	TargetUser      TargetType = "user"
	TargetCompany   TargetType = "company"
	TargetRole      TargetType = "role"
	TargetBroadcast TargetType = "broadcast"
	TargetJob       TargetType = "job"
)

// Notification is a push message routed to connected clients.
type Notification struct {
	Type      TargetType  `json:"type"`
	Target    string      `json:"target,omitempty"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SendNotificationRequest is the body of POST /api/notifications.
type SendNotificationRequest struct {
	Type   TargetType  `json:"type" validate:"required,oneof=user company role broadcast"`
	Target string      `json:"target" validate:"required_unless=Type broadcast"`
	Event  string      `json:"event" validate:"required,max=100"`
	Data   interface{} `json:"data"`
}

// WSJobMessage is pushed whenever a job changes state.
type WSJobMessage struct {
	Type  string  `json:"type"`
	Event string  `json:"event"`
	Job   JobView `json:"job"`
}

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSNotificationMessage carries a Notification to a connected client.
type WSNotificationMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
