package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/model"
)

// Pipeline runs the analysis for one storage key
type Pipeline interface {
	Run(ctx context.Context, key string) (*model.Analysis, error)
}

// AnalysisWorker processes analysis tasks
type AnalysisWorker struct {
	pipeline Pipeline
	log      *logger.Logger
}

// NewAnalysisWorker creates a new analysis worker
func NewAnalysisWorker(pipeline Pipeline, log *logger.Logger) *AnalysisWorker {
	return &AnalysisWorker{pipeline: pipeline, log: log}
}

// Register binds the worker to its task type
func (w *AnalysisWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(model.TaskTypeAnalyze, w.ProcessTask)
}

// ProcessTask handles analysis task processing. Failures that a retry
// cannot fix skip the retry budget.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.AnalyzeTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.StorageKey == "" {
		return fmt.Errorf("task payload has no storage key: %w", asynq.SkipRetry)
	}

	log := w.log.ForKey(payload.StorageKey)
	if id, ok := asynq.GetTaskID(ctx); ok {
		log = log.WithField("task_id", id)
	}

	if _, err := w.pipeline.Run(ctx, payload.StorageKey); err != nil {
		if common.IsPermanent(err) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}

	result, err := json.Marshal(model.AnalyzeTaskResult{
		StorageKey: payload.StorageKey,
		Status:     model.TaskStatusCompleted,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal task result: %w", err)
	}
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(result); err != nil {
			log.WithError(err).Warn("Failed to write task result")
		}
	}
	return nil
}

// NewServer builds the asynq server for the analysis queue. Each server
// runs cfg.Concurrency jobs at a time; scale out by running more workers.
func NewServer(redisOpt asynq.RedisClientOpt, cfg config.WorkerConfig, log *logger.Logger) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      log.Entry,
		LogLevel:    asynqLogLevel(log.Logger.GetLevel()),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.WithField("task_type", task.Type()).
				WithField("retry", fmt.Sprintf("%d/%d", retried, maxRetry)).
				WithError(err).
				Error("Task failed")
		}),
	})
}
