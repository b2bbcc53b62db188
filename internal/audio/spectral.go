package audio

import (
	"math"

	"github.com/pickperfect/api/internal/model"
)

const (
	rolloffPercent = 0.85

	// chroma is folded from C2 up to C8; lower bins are too coarse to
	// resolve semitones at this frame length.
	chromaFMin = 65.406
	chromaFMax = 4186.0
	tuningA4   = 440.0
)

// rms returns the root-mean-square energy of each centered frame
func rms(y []float64, frameLen, hop int) []float64 {
	n := frameCount(len(y), hop)
	out := make([]float64, n)
	buf := make([]float64, frameLen)
	for t := 0; t < n; t++ {
		frame(buf, y, t, hop)
		var sum float64
		for _, v := range buf {
			sum += v * v
		}
		out[t] = math.Sqrt(sum / float64(frameLen))
	}
	return out
}

// zeroCrossingRate returns the fraction of sign changes per frame.
// Zero counts as positive.
func zeroCrossingRate(y []float64, frameLen, hop int) []float64 {
	n := frameCount(len(y), hop)
	out := make([]float64, n)
	buf := make([]float64, frameLen)
	for t := 0; t < n; t++ {
		frame(buf, y, t, hop)
		crossings := 0
		for i := 1; i < len(buf); i++ {
			if (buf[i] < 0) != (buf[i-1] < 0) {
				crossings++
			}
		}
		out[t] = float64(crossings) / float64(frameLen)
	}
	return out
}

// spectralCentroid returns the magnitude-weighted mean frequency per frame
func spectralCentroid(s *spectrogram) []float64 {
	out := make([]float64, s.frames())
	for t, row := range s.mag {
		var num, den float64
		for k, m := range row {
			num += s.freqs[k] * m
			den += m
		}
		if den > 0 {
			out[t] = num / den
		}
	}
	return out
}

// spectralRolloff returns, per frame, the lowest frequency below which
// rolloffPercent of the magnitude lies.
func spectralRolloff(s *spectrogram) []float64 {
	out := make([]float64, s.frames())
	for t, row := range s.mag {
		var total float64
		for _, m := range row {
			total += m
		}
		threshold := rolloffPercent * total
		var cum float64
		for k, m := range row {
			cum += m
			if cum >= threshold {
				out[t] = s.freqs[k]
				break
			}
		}
	}
	return out
}

// pitchClassOf maps a frequency to its nearest pitch class, C = 0
func pitchClassOf(freq float64) int {
	midi := 69 + 12*math.Log2(freq/tuningA4)
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}

// chromaMean folds each frame's power spectrum onto the 12 pitch classes,
// normalizes every frame by its loudest class and averages over time.
func chromaMean(s *spectrogram) model.Chroma {
	classes := make([]int, s.bins())
	for k, f := range s.freqs {
		classes[k] = -1
		if f >= chromaFMin && f <= chromaFMax {
			classes[k] = pitchClassOf(f)
		}
	}

	var mean model.Chroma
	if s.frames() == 0 {
		return mean
	}
	for t := 0; t < s.frames(); t++ {
		var c model.Chroma
		for k, pc := range classes {
			if pc >= 0 {
				c[pc] += s.power(t, k)
			}
		}
		peak := 0.0
		for _, v := range c {
			peak = math.Max(peak, v)
		}
		if peak <= 0 {
			continue
		}
		for i := range c {
			mean[i] += c[i] / peak
		}
	}
	for i := range mean {
		mean[i] /= float64(s.frames())
	}
	return mean
}

// meanStd returns the mean and population standard deviation
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
