package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/model"
)

// MemoryJobRepository keeps jobs in process memory. It follows the same
// contract as MongoJobRepository and backs tests.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.VideoJob // by storage key
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*model.VideoJob)}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *model.VideoJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.StorageKey]; ok {
		return common.WrapPersistence("insert job", fmt.Errorf("duplicate storage key %s", job.StorageKey))
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	stored := *job
	r.jobs[job.StorageKey] = &stored
	return nil
}

func (r *MemoryJobRepository) GetByID(ctx context.Context, id string) (*model.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.ID == id {
			out := *job
			return &out, nil
		}
	}
	return nil, common.ErrJobNotFound
}

func (r *MemoryJobRepository) GetByStorageKey(ctx context.Context, storageKey string) (*model.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[storageKey]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	out := *job
	return &out, nil
}

func (r *MemoryJobRepository) List(ctx context.Context, limit int) ([]model.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]model.VideoJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *MemoryJobRepository) UpdateStatus(ctx context.Context, storageKey string, status model.JobStatus) (*model.VideoJob, error) {
	return r.update(storageKey, func(job *model.VideoJob) {
		job.Status = status
		job.FailureReason = ""
	})
}

func (r *MemoryJobRepository) SaveAnalysis(ctx context.Context, storageKey string, analysis *model.Analysis) (*model.VideoJob, error) {
	return r.update(storageKey, func(job *model.VideoJob) {
		a := *analysis
		job.Analysis = &a
		job.Status = model.JobStatusAnalyzed
		job.FailureReason = ""
	})
}

func (r *MemoryJobRepository) MarkFailed(ctx context.Context, storageKey, reason string) (*model.VideoJob, error) {
	return r.update(storageKey, func(job *model.VideoJob) {
		job.Status = model.JobStatusFailed
		job.FailureReason = reason
	})
}

// Len returns the number of stored jobs
func (r *MemoryJobRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *MemoryJobRepository) update(storageKey string, apply func(*model.VideoJob)) (*model.VideoJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[storageKey]
	if !ok {
		return nil, nil
	}
	apply(job)
	job.UpdatedAt = time.Now().UTC()
	out := *job
	return &out, nil
}
