package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pickperfect/api/internal/analysis"
	"github.com/pickperfect/api/internal/events"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/media"
	"github.com/pickperfect/api/internal/model"
	"github.com/pickperfect/api/internal/repository"
)

// MediaRetriever pulls an uploaded object into local scratch storage
type MediaRetriever interface {
	Retrieve(ctx context.Context, key string) (*media.Retrieval, error)
}

// AudioExtractor turns a video file into a mono PCM WAV next to it
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// FeatureExtractor computes the descriptor set of a WAV file
type FeatureExtractor interface {
	Extract(path string) (model.Features, error)
}

// Pipeline stage names, used in logs and failure reasons
const (
	StageRetrieve = "retrieve"
	StageExtract  = "extract_audio"
	StageFeatures = "extract_features"
	StageProgress = "mark_processed"
	StagePersist  = "persist_analysis"
)

// AnalysisService runs the analysis pipeline for one storage key at a
// time. Stages run strictly in sequence; the only suspension points are
// the blocking download, the transcoder and the database writes.
type AnalysisService struct {
	retriever  MediaRetriever
	extractor  AudioExtractor
	features   FeatureExtractor
	jobs       repository.JobRepository
	publisher  events.Publisher
	log        *logger.Logger
	markFailed bool
	now        func() time.Time
}

// AnalysisDeps are the collaborators of the pipeline, built once per process
type AnalysisDeps struct {
	Retriever MediaRetriever
	Extractor AudioExtractor
	Features  FeatureExtractor
	Jobs      repository.JobRepository
	Publisher events.Publisher // optional
	Logger    *logger.Logger
}

func NewAnalysisService(deps AnalysisDeps, markFailed bool) *AnalysisService {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &AnalysisService{
		retriever:  deps.Retriever,
		extractor:  deps.Extractor,
		features:   deps.Features,
		jobs:       deps.Jobs,
		publisher:  deps.Publisher,
		log:        log,
		markFailed: markFailed,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run analyzes the media stored under key and persists the result.
// Re-running for the same key replaces the previous analysis.
func (s *AnalysisService) Run(ctx context.Context, key string) (*model.Analysis, error) {
	log := s.log.ForKey(key)
	started := time.Now()
	log.Info("Starting analysis")

	retrieval, err := s.retriever.Retrieve(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, log, key, StageRetrieve, err)
	}
	defer func() {
		if err := retrieval.Cleanup(); err != nil {
			log.WithField("dir", retrieval.Dir).Warnf("Failed to remove scratch dir: %v", err)
		}
	}()
	log.WithField("bytes", retrieval.Bytes).Debug("Media retrieved")

	audioPath, err := s.extractor.Extract(ctx, retrieval.Path)
	if err != nil {
		return nil, s.fail(ctx, log, key, StageExtract, err)
	}
	log.WithField("audio", audioPath).Debug("Audio extracted")

	features, err := s.features.Extract(audioPath)
	if err != nil {
		return nil, s.fail(ctx, log, key, StageFeatures, err)
	}
	log.WithFields(logrus.Fields{
		"duration_sec": features.DurationSec,
		"tempo_bpm":    features.TempoBPM,
		"onset_count":  features.OnsetCount,
	}).Debug("Features extracted")

	job, err := s.jobs.UpdateStatus(ctx, key, model.JobStatusProcessed)
	if err != nil {
		return nil, s.fail(ctx, log, key, StageProgress, err)
	}
	s.publish(ctx, job, "", nil)

	result := Analyze(features, s.now())
	if result.Chords.Error != "" {
		log.Warnf("Chord detection degraded: %s", result.Chords.Error)
	}
	if result.Rhythm.Error != "" {
		log.Warnf("Rhythm evaluation degraded: %s", result.Rhythm.Error)
	}

	job, err = s.jobs.SaveAnalysis(ctx, key, result)
	if err != nil {
		return nil, s.fail(ctx, log, key, StagePersist, err)
	}
	s.publish(ctx, job, "", result)

	log.WithFields(logrus.Fields{
		"score":    result.Performance.Score,
		"grade":    result.Performance.Grade,
		"duration": time.Since(started).String(),
	}).Info("Analysis completed")

	return result, nil
}

// Analyze derives the chord, rhythm and performance results from one
// descriptor set.
func Analyze(f model.Features, at time.Time) *model.Analysis {
	chords := analysis.DetectChords(f.ChromaMean[:])
	rhythm := analysis.EvaluateRhythm(f)
	snapshot := f

	return &model.Analysis{
		Chords:      chords,
		Rhythm:      rhythm,
		Performance: analysis.ScorePerformance(chords, rhythm),
		Features:    &snapshot,
		AnalyzedAt:  at,
	}
}

// fail records a stage failure on the job when enabled and returns the
// stage error for the dispatcher.
func (s *AnalysisService) fail(ctx context.Context, log *logrus.Entry, key, stage string, err error) error {
	stageErr := fmt.Errorf("%s: %w", stage, err)
	log.WithField("stage", stage).WithError(err).Error("Analysis failed")

	if !s.markFailed {
		return stageErr
	}

	// the job context may already be cancelled; the failure must still land
	ctx = context.WithoutCancel(ctx)
	job, markErr := s.jobs.MarkFailed(ctx, key, stageErr.Error())
	if markErr != nil {
		log.WithError(markErr).Error("Failed to mark job as failed")
		return stageErr
	}
	s.publish(ctx, job, stageErr.Error(), nil)
	return stageErr
}

func (s *AnalysisService) publish(ctx context.Context, job *model.VideoJob, reason string, result *model.Analysis) {
	if s.publisher == nil || job == nil {
		return
	}
	event := model.StatusEvent{
		JobID:      job.ID,
		StorageKey: job.StorageKey,
		Status:     job.Status,
		Error:      reason,
		Analysis:   result,
		At:         s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.ForKey(job.StorageKey).WithError(err).Warn("Failed to publish status event")
	}
}
