package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
	"github.com/pickperfect/api/internal/repository"
)

// Content type the client must upload with
const uploadContentType = "video/mp4"

// UploadPresigner issues presigned upload destinations
type UploadPresigner interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// UploadService issues upload destinations and creates the matching job
type UploadService struct {
	storage UploadPresigner
	jobs    repository.JobRepository
	ttl     time.Duration
	log     *logger.Logger
	newID   func() string
}

// NewUploadService creates a new upload service. ttl bounds the validity
// of every issued URL.
func NewUploadService(storage UploadPresigner, jobs repository.JobRepository, ttl time.Duration, log *logger.Logger) *UploadService {
	return &UploadService{
		storage: storage,
		jobs:    jobs,
		ttl:     ttl,
		log:     log,
		newID:   newVideoID,
	}
}

// IssueUploadURL creates a PENDING_UPLOAD job and returns a presigned PUT
// URL for its storage key.
func (s *UploadService) IssueUploadURL(ctx context.Context, filename string) (*model.UploadURLResponse, error) {
	id := s.newID()
	key := StorageKeyFor(id)

	url, err := s.storage.PresignUpload(ctx, key, uploadContentType, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	job := &model.VideoJob{
		ID:               id,
		OriginalFilename: filename,
		StorageKey:       key,
		Status:           model.JobStatusPendingUpload,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.log.ForKey(key).WithField("job_id", id).Info("Upload URL issued")

	return &model.UploadURLResponse{
		JobID:     id,
		Key:       key,
		URL:       url,
		ExpiresAt: job.CreatedAt.Add(s.ttl),
	}, nil
}

// StorageKeyFor returns the object key a job's video is uploaded under
func StorageKeyFor(id string) string {
	return fmt.Sprintf("videos/%s.mp4", id)
}

func newVideoID() string {
	u := uuid.New()
	return fmt.Sprintf("vid_%x", u[:])
}
