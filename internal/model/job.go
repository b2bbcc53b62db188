package model

import "time"

// VideoJob is the job record kept for every uploaded performance video
type VideoJob struct {
	ID               string    `bson:"_id" json:"id"`
	OriginalFilename string    `bson:"original_filename" json:"originalFilename"`
	StorageKey       string    `bson:"storage_key" json:"storageKey"`
	Status           JobStatus `bson:"status" json:"status"`
	FailureReason    string    `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updatedAt"`
	Analysis         *Analysis `bson:"analysis,omitempty" json:"analysis,omitempty"`
}

// Task types
const (
	TaskTypeAnalyze = "video:analyze"
)

// AnalyzeTaskPayload is the only data carried by an analysis task
type AnalyzeTaskPayload struct {
	StorageKey string `json:"storageKey"`
}

// AnalyzeTaskResult is written to the task result on success
type AnalyzeTaskResult struct {
	StorageKey string `json:"storage_key"`
	Status     string `json:"status"`
}

const TaskStatusCompleted = "completed"
