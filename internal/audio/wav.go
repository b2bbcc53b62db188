package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/pickperfect/api/internal/common"
)

// Waveform is a mono signal in [-1, 1] at its native rate
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length in seconds
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// LoadWAV decodes a PCM WAV file. Multi-channel input is averaged down
// to mono; samples are not resampled.
func LoadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapFeatureExtraction(path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, common.WrapFeatureExtraction(path, errors.New("not a valid WAV file"))
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, common.WrapFeatureExtraction(path, fmt.Errorf("decode PCM: %w", err))
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, common.WrapFeatureExtraction(path, errors.New("missing sample rate"))
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, common.WrapFeatureExtraction(path, errors.New("waveform is empty"))
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale, offset := pcmScale(bitDepth)

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return &Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// pcmScale returns the divisor and offset mapping integer PCM to [-1, 1].
// 8-bit WAV is unsigned.
func pcmScale(bitDepth int) (float64, float64) {
	switch {
	case bitDepth == 8:
		return 128, 128
	case bitDepth > 0:
		return float64(int64(1) << uint(bitDepth-1)), 0
	default:
		return 32768, 0
	}
}
