package media

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pickperfect/api/internal/common"
)

// minimal ISO BMFF header, enough for content sniffing to see video/mp4
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '2',
}

func writeVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, mp4Header, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAudioPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/tmp/x/vid_1.mp4", "/tmp/x/vid_1.wav"},
		{"/tmp/x/clip.MOV", "/tmp/x/clip.wav"},
		{"/tmp/x/noext", "/tmp/x/noext.wav"},
		{"/tmp/x/take.wav", "/tmp/x/take.mono.wav"},
	}
	for _, tt := range tests {
		if got := AudioPath(tt.in); got != tt.want {
			t.Errorf("AudioPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract_UsesFixedParameters(t *testing.T) {
	video := writeVideo(t, "vid_1.mp4")

	var gotName string
	var gotArgs []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o600)
	}

	e := NewAudioExtractor("ffmpeg", 0).WithRunner(runner)
	audio, err := e.Extract(context.Background(), video)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if audio != AudioPath(video) {
		t.Errorf("expected %s, got %s", AudioPath(video), audio)
	}
	if gotName != "ffmpeg" {
		t.Errorf("expected ffmpeg binary, got %s", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-vn", "-acodec pcm_s16le", "-ar 44100", "-ac 1", "-i " + video} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
}

func TestExtract_ProcessFailureCarriesOutput(t *testing.T) {
	video := writeVideo(t, "vid_2.mp4")
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("moov atom not found\n"), errors.New("exit status 1")
	}

	_, err := NewAudioExtractor("ffmpeg", 0).WithRunner(runner).Extract(context.Background(), video)
	if !errors.Is(err, common.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	var tErr *common.TranscodeError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TranscodeError, got %T", err)
	}
	if tErr.Output != "moov atom not found" {
		t.Errorf("expected diagnostic output, got %q", tErr.Output)
	}
}

func TestExtract_MissingOutput(t *testing.T) {
	video := writeVideo(t, "vid_3.mp4")
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}

	_, err := NewAudioExtractor("ffmpeg", 0).WithRunner(runner).Extract(context.Background(), video)
	if !errors.Is(err, common.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	if !strings.Contains(err.Error(), "output file not found") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestExtract_RejectsNonMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.mp4")
	if err := os.WriteFile(path, []byte("just some text, not a video\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	called := false
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	}

	_, err := NewAudioExtractor("ffmpeg", 0).WithRunner(runner).Extract(context.Background(), path)
	if !errors.Is(err, common.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	if called {
		t.Error("expected ffmpeg not to run for a text file")
	}
}

func TestExtract_MissingInput(t *testing.T) {
	_, err := NewAudioExtractor("ffmpeg", 0).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if !errors.Is(err, common.ErrTranscode) {
		t.Errorf("expected transcode error, got %v", err)
	}
}

func TestExtract_Timeout(t *testing.T) {
	video := writeVideo(t, "vid_4.mp4")
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := NewAudioExtractor("ffmpeg", 20*time.Millisecond).WithRunner(runner).Extract(context.Background(), video)
	if !errors.Is(err, common.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestExtract_RealFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ffmpeg integration test in short mode")
	}
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	video := filepath.Join(dir, "tone.mp4")
	gen := exec.Command(bin, "-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=1",
		"-shortest", video)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg cannot generate fixture: %v: %s", err, out)
	}

	audio, err := NewAudioExtractor(bin, time.Minute).Extract(context.Background(), video)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := os.Stat(audio); err != nil {
		t.Errorf("expected audio file, got %v", err)
	}
}
