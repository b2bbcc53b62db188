package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pickperfect/api/internal/audio"
	"github.com/pickperfect/api/internal/audio/audiotest"
	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/media"
	"github.com/pickperfect/api/internal/model"
	"github.com/pickperfect/api/internal/repository"
)

type memoryStorage struct {
	bucket  string
	objects map[string][]byte
}

func (m *memoryStorage) Bucket() string { return m.bucket }

func (m *memoryStorage) Download(ctx context.Context, key string, dst io.Writer) (int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return 0, fmt.Errorf("%s: %w", key, common.ErrRetrievalNotFound)
	}
	return io.Copy(dst, bytes.NewReader(data))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.StatusEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event model.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) statuses() []model.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.JobStatus, len(p.events))
	for i, e := range p.events {
		out[i] = e.Status
	}
	return out
}

// copyRunner stands in for ffmpeg when the stored object already is a WAV
func copyRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var in string
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			in = args[i+1]
		}
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return []byte(err.Error()), err
	}
	return nil, os.WriteFile(args[len(args)-1], data, 0o600)
}

func clickTrackBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "click.wav")
	audiotest.WriteWAV(t, path, audiotest.ClickTrack(120, 4, audiotest.SampleRate), audiotest.SampleRate)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type pipelineFixture struct {
	service   *AnalysisService
	jobs      *repository.MemoryJobRepository
	publisher *recordingPublisher
	scratch   string
	key       string
}

func newPipelineFixture(t *testing.T, objects map[string][]byte, runner media.CommandRunner) *pipelineFixture {
	t.Helper()
	scratch := t.TempDir()
	jobs := repository.NewMemoryJobRepository()
	publisher := &recordingPublisher{}

	key := "videos/vid_e2e.mp4"
	if err := jobs.Create(context.Background(), &model.VideoJob{
		ID:         "vid_e2e",
		StorageKey: key,
		Status:     model.JobStatusUploaded,
	}); err != nil {
		t.Fatal(err)
	}

	svc := NewAnalysisService(AnalysisDeps{
		Retriever: media.NewRetriever(&memoryStorage{bucket: "performances", objects: objects}, scratch, 0),
		Extractor: media.NewAudioExtractor("ffmpeg", 0).WithRunner(runner),
		Features:  audio.NewExtractor(),
		Jobs:      jobs,
		Publisher: publisher,
		Logger:    logger.Discard(),
	}, true)

	return &pipelineFixture{service: svc, jobs: jobs, publisher: publisher, scratch: scratch, key: key}
}

func TestAnalysisService_EndToEnd(t *testing.T) {
	f := newPipelineFixture(t, nil, copyRunner)
	f.service.retriever = media.NewRetriever(&memoryStorage{
		bucket:  "performances",
		objects: map[string][]byte{f.key: clickTrackBytes(t)},
	}, f.scratch, 0)

	result, err := f.service.Run(context.Background(), f.key)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Rhythm.StrumsPerSecond != 2.0 {
		t.Errorf("expected 2.0 strums per second, got %v", result.Rhythm.StrumsPerSecond)
	}
	if result.Rhythm.TempoScore != 1.0 {
		t.Errorf("expected tempo score 1.0, got %v (tempo %v)", result.Rhythm.TempoScore, result.Rhythm.TempoBPM)
	}
	if result.Features == nil || result.Features.OnsetCount != 8 {
		t.Errorf("expected descriptor snapshot with 8 onsets, got %+v", result.Features)
	}
	if result.Chords.TopChord == nil || len(result.Chords.Alternatives) != 5 {
		t.Errorf("expected chord result with 5 alternatives, got %+v", result.Chords)
	}

	job, err := f.jobs.GetByStorageKey(context.Background(), f.key)
	if err != nil {
		t.Fatalf("GetByStorageKey failed: %v", err)
	}
	if job.Status != model.JobStatusAnalyzed {
		t.Errorf("expected ANALYZED, got %s", job.Status)
	}
	if job.Analysis == nil || job.Analysis.Rhythm.RhythmScore != result.Rhythm.RhythmScore {
		t.Errorf("expected persisted analysis to match result, got %+v", job.Analysis)
	}

	got := f.publisher.statuses()
	want := []model.JobStatus{model.JobStatusProcessed, model.JobStatusAnalyzed}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected status events %v, got %v", want, got)
	}

	entries, _ := os.ReadDir(f.scratch)
	if len(entries) != 0 {
		t.Errorf("expected scratch space to be cleaned, found %d entries", len(entries))
	}

	// a redelivered job produces the same rhythm score and still one record
	again, err := f.service.Run(context.Background(), f.key)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if again.Rhythm.RhythmScore != result.Rhythm.RhythmScore {
		t.Errorf("expected deterministic rhythm score, got %v then %v", result.Rhythm.RhythmScore, again.Rhythm.RhythmScore)
	}
	if f.jobs.Len() != 1 {
		t.Errorf("expected one job record, got %d", f.jobs.Len())
	}
}

func TestAnalysisService_MissingObjectMarksFailed(t *testing.T) {
	f := newPipelineFixture(t, map[string][]byte{}, copyRunner)

	_, err := f.service.Run(context.Background(), f.key)
	if !errors.Is(err, common.ErrRetrievalNotFound) {
		t.Fatalf("expected retrieval not found, got %v", err)
	}
	if !common.IsPermanent(err) {
		t.Errorf("expected not-found to be permanent")
	}

	job, _ := f.jobs.GetByStorageKey(context.Background(), f.key)
	if job.Status != model.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", job.Status)
	}
	if job.FailureReason == "" {
		t.Error("expected failure reason")
	}
	if got := f.publisher.statuses(); len(got) != 1 || got[0] != model.JobStatusFailed {
		t.Errorf("expected one FAILED event, got %v", got)
	}
}

func TestAnalysisService_TranscodeFailure(t *testing.T) {
	failing := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}
	f := newPipelineFixture(t, nil, failing)
	f.service.retriever = media.NewRetriever(&memoryStorage{
		bucket:  "performances",
		objects: map[string][]byte{f.key: clickTrackBytes(t)},
	}, f.scratch, 0)

	_, err := f.service.Run(context.Background(), f.key)
	var tErr *common.TranscodeError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TranscodeError, got %v", err)
	}
	if tErr.Output != "Invalid data found when processing input" {
		t.Errorf("expected diagnostic output, got %q", tErr.Output)
	}

	entries, _ := os.ReadDir(f.scratch)
	if len(entries) != 0 {
		t.Errorf("expected scratch space to be cleaned after failure, found %d entries", len(entries))
	}
}

func TestAnalysisService_KeepsStatusWhenMarkFailedDisabled(t *testing.T) {
	f := newPipelineFixture(t, map[string][]byte{}, copyRunner)
	f.service.markFailed = false

	if _, err := f.service.Run(context.Background(), f.key); err == nil {
		t.Fatal("expected error")
	}

	job, _ := f.jobs.GetByStorageKey(context.Background(), f.key)
	if job.Status != model.JobStatusUploaded {
		t.Errorf("expected status to stay UPLOADED, got %s", job.Status)
	}
	if len(f.publisher.statuses()) != 0 {
		t.Errorf("expected no events, got %v", f.publisher.statuses())
	}
}

func TestAnalysisService_UnknownJobStillAnalyzes(t *testing.T) {
	f := newPipelineFixture(t, nil, copyRunner)
	orphan := "videos/vid_deleted.mp4"
	f.service.retriever = media.NewRetriever(&memoryStorage{
		bucket:  "performances",
		objects: map[string][]byte{orphan: clickTrackBytes(t)},
	}, f.scratch, 0)

	if _, err := f.service.Run(context.Background(), orphan); err != nil {
		t.Fatalf("expected re-delivery for a deleted job to succeed, got %v", err)
	}
	if len(f.publisher.statuses()) != 0 {
		t.Errorf("expected no events without a job, got %v", f.publisher.statuses())
	}
}

func TestAnalyze_MalformedChromaDegrades(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	result := Analyze(model.Features{DurationSec: 0}, at)

	if result.Rhythm.Error == "" {
		t.Error("expected structured rhythm error for zero duration")
	}
	if result.Performance.Grade != model.GradeNeedsPractice {
		t.Errorf("expected degraded grade, got %s", result.Performance.Grade)
	}
	if !result.AnalyzedAt.Equal(at) {
		t.Errorf("expected analyzed_at %v, got %v", at, result.AnalyzedAt)
	}
}
