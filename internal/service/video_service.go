package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
	"github.com/pickperfect/api/internal/repository"
)

// Listing bounds for GET /api/videos
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// How long asynq keeps a finished task and its result
const taskRetention = 24 * time.Hour

// TaskEnqueuer is the slice of asynq.Client used to dispatch jobs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// VideoService handles upload completion events and job queries
type VideoService struct {
	jobs   repository.JobRepository
	queue  TaskEnqueuer
	bucket string
	worker config.WorkerConfig
	log    *logger.Logger
}

func NewVideoService(jobs repository.JobRepository, queue TaskEnqueuer, bucket string, worker config.WorkerConfig, log *logger.Logger) *VideoService {
	return &VideoService{
		jobs:   jobs,
		queue:  queue,
		bucket: bucket,
		worker: worker,
		log:    log,
	}
}

// NewAnalyzeTask builds the analysis task; it carries only the storage key
func NewAnalyzeTask(storageKey string) (*asynq.Task, error) {
	payload, err := json.Marshal(model.AnalyzeTaskPayload{StorageKey: storageKey})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(model.TaskTypeAnalyze, payload), nil
}

// HandleUploadEvent records the reported status and enqueues the analysis.
// It returns as soon as the task is queued; analysis outcomes are only
// visible through the job record and status events.
func (s *VideoService) HandleUploadEvent(ctx context.Context, event *model.UploadEvent) (*model.WebhookResponse, error) {
	status, ok := model.ParseJobStatus(event.Status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidStatus, event.Status)
	}

	log := s.log.ForKey(event.Key)
	if s.bucket != "" && event.Bucket != s.bucket {
		log.WithField("bucket", event.Bucket).Warnf("Upload event for unexpected bucket, configured %s", s.bucket)
	}

	if _, err := s.jobs.UpdateStatus(ctx, event.Key, status); err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	task, err := NewAnalyzeTask(event.Key)
	if err != nil {
		return nil, err
	}

	info, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.worker.Queue),
		asynq.MaxRetry(s.worker.MaxRetry),
		asynq.Retention(taskRetention),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	log.WithField("task_id", info.ID).Info("Analysis task enqueued")

	return &model.WebhookResponse{
		Message: "Status updated and processing queued",
		Key:     event.Key,
		Status:  status,
		TaskID:  info.ID,
	}, nil
}

// GetVideo returns one job with its analysis, if any
func (s *VideoService) GetVideo(ctx context.Context, id string) (*model.VideoJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ListVideos returns the most recent jobs. limit is clamped to
// [1, MaxListLimit]; zero selects DefaultListLimit.
func (s *VideoService) ListVideos(ctx context.Context, limit int) (*model.VideoListResponse, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &model.VideoListResponse{Videos: jobs, Count: len(jobs)}, nil
}
