package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pickperfect/api/internal/common"
)

// Fixed transcoding parameters for the analysis waveform
const (
	SampleRate = 44100
	Channels   = 1
	AudioCodec = "pcm_s16le"
	AudioExt   = ".wav"
)

// CommandRunner runs an external process and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// AudioExtractor turns an uploaded video into a mono 16-bit PCM waveform
// by shelling out to ffmpeg.
type AudioExtractor struct {
	binary  string
	timeout time.Duration
	run     CommandRunner
}

// NewAudioExtractor creates an extractor. A zero timeout lets ffmpeg run
// until it exits.
func NewAudioExtractor(binary string, timeout time.Duration) *AudioExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &AudioExtractor{binary: binary, timeout: timeout, run: execRunner}
}

// WithRunner replaces the process runner
func (e *AudioExtractor) WithRunner(run CommandRunner) *AudioExtractor {
	e.run = run
	return e
}

// AudioPath derives the waveform path from the video path: same directory
// and base name, audio extension.
func AudioPath(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	if strings.EqualFold(filepath.Ext(videoPath), AudioExt) {
		// ffmpeg cannot write over its own input
		return base + ".mono" + AudioExt
	}
	return base + AudioExt
}

// Args returns the ffmpeg arguments used for one extraction
func Args(videoPath, audioPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-acodec", AudioCodec,
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", fmt.Sprintf("%d", Channels),
		audioPath,
	}
}

// Extract runs the transcoder and returns the waveform path
func (e *AudioExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if videoPath == "" {
		return "", &common.TranscodeError{Input: videoPath, Err: errors.New("video path is missing")}
	}
	if _, err := os.Stat(videoPath); err != nil {
		return "", &common.TranscodeError{Input: videoPath, Err: fmt.Errorf("video file does not exist: %w", err)}
	}
	if err := checkContainer(videoPath); err != nil {
		return "", &common.TranscodeError{Input: videoPath, Err: err}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	audioPath := AudioPath(videoPath)
	output, err := e.run(ctx, e.binary, Args(videoPath, audioPath)...)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		return "", &common.TranscodeError{
			Input:  videoPath,
			Output: strings.TrimSpace(string(output)),
			Err:    err,
		}
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", &common.TranscodeError{
			Input:  videoPath,
			Output: strings.TrimSpace(string(output)),
			Err:    errors.New("audio extraction failed, output file not found"),
		}
	}

	return audioPath, nil
}

// checkContainer rejects files that are clearly not media. Unknown binary
// content is left for ffmpeg to judge.
func checkContainer(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}
	name := mtype.String()
	if strings.HasPrefix(name, "video/") || strings.HasPrefix(name, "audio/") || mtype.Is("application/octet-stream") {
		return nil
	}
	return fmt.Errorf("unsupported content type %s", name)
}
