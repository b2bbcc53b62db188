package model

import "time"

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a status transition
type WSProgressMessage struct {
	Type       string    `json:"type"`
	JobID      string    `json:"jobId"`
	StorageKey string    `json:"storageKey"`
	Status     JobStatus `json:"status"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId"`
	Result *Analysis `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusEvent is published by workers on every status transition and
// relayed to websocket subscribers by the API process.
type StatusEvent struct {
	JobID      string    `json:"jobId"`
	StorageKey string    `json:"storageKey"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	At         time.Time `json:"at"`
}
