// Package audiotest synthesizes waveforms and WAV fixtures for tests.
package audiotest

import (
	"math"
	"os"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const SampleRate = 44100

// WriteWAV encodes samples in [-1, 1] as 16-bit mono PCM
func WriteWAV(t testing.TB, path string, samples []float64, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

// ClickTrack returns seconds of silence with a plucked burst every
// 60/bpm seconds, starting half a beat in. Each burst decays to silence
// well before the next one.
func ClickTrack(bpm float64, seconds float64, sampleRate int) []float64 {
	y := make([]float64, int(seconds*float64(sampleRate)))
	period := 60 / bpm
	burst := int(0.25 * float64(sampleRate))
	for start := period / 2; start < seconds; start += period {
		s0 := int(start * float64(sampleRate))
		for i := 0; i < burst && s0+i < len(y); i++ {
			tt := float64(i) / float64(sampleRate)
			env := math.Exp(-tt / 0.02)
			y[s0+i] += 0.4 * env * (math.Sin(2*math.Pi*440*tt) + math.Sin(2*math.Pi*660*tt))
		}
	}
	return y
}

// Chord returns a sustained sum of sine tones at the given frequencies
func Chord(freqs []float64, seconds float64, sampleRate int) []float64 {
	y := make([]float64, int(seconds*float64(sampleRate)))
	if len(freqs) == 0 {
		return y
	}
	amp := 0.9 / float64(len(freqs))
	for i := range y {
		tt := float64(i) / float64(sampleRate)
		for _, f := range freqs {
			y[i] += amp * math.Sin(2*math.Pi*f*tt)
		}
	}
	return y
}

// CMajorTriad is C4, E4, G4 in Hz
var CMajorTriad = []float64{261.63, 329.63, 392.00}

// AMinorTriad is A3, C4, E4 in Hz
var AMinorTriad = []float64{220.00, 261.63, 329.63}
