package model

import "time"

// UploadURLRequest represents the query of GET /api/videos/upload-url
type UploadURLRequest struct {
	Filename string `query:"filename" validate:"required,max=255"`
}

// UploadURLResponse carries the presigned destination for the client upload
type UploadURLResponse struct {
	JobID     string    `json:"jobId"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadEvent is the upload-completion webhook body
type UploadEvent struct {
	Status string `json:"status" validate:"required"`
	Bucket string `json:"bucket" validate:"required"`
	Key    string `json:"key" validate:"required"`
}

// WebhookResponse acknowledges an upload event
type WebhookResponse struct {
	Message string    `json:"message"`
	Key     string    `json:"key"`
	Status  JobStatus `json:"status"`
	TaskID  string    `json:"taskId,omitempty"`
}

// VideoListResponse lists recent jobs
type VideoListResponse struct {
	Videos []VideoJob `json:"videos"`
	Count  int        `json:"count"`
}
