package audio

import "math"

const (
	// power floor and dynamic range of the log spectrogram
	amin      = 1e-10
	topDB     = 80.0
	preMax    = 3
	postMax   = 3
	avgWindow = 10
	delta     = 0.07

	// minimum distance between onsets, ~93ms at 44.1kHz
	wait = 8
)

// onsetStrength returns the spectral flux of the log-power spectrogram:
// for each frame, the mean positive dB increase over the previous frame.
func onsetStrength(s *spectrogram) []float64 {
	n := s.frames()
	env := make([]float64, n)
	if n < 2 {
		return env
	}

	peak := amin
	for t := 0; t < n; t++ {
		for k := 0; k < s.bins(); k++ {
			peak = math.Max(peak, s.power(t, k))
		}
	}
	ref := 10 * math.Log10(peak)

	db := func(t, k int) float64 {
		v := 10*math.Log10(math.Max(s.power(t, k), amin)) - ref
		return math.Max(v, -topDB)
	}

	prev := make([]float64, s.bins())
	for k := range prev {
		prev[k] = db(0, k)
	}
	cur := make([]float64, s.bins())
	for t := 1; t < n; t++ {
		var flux float64
		for k := range cur {
			cur[k] = db(t, k)
			if d := cur[k] - prev[k]; d > 0 {
				flux += d
			}
		}
		env[t] = flux / float64(len(cur))
		prev, cur = cur, prev
	}
	return env
}

// pickOnsets returns the frame indices of onset peaks in env. A frame is
// an onset when it is a local maximum, stands delta above the local mean
// of the normalized envelope and is at least wait frames after the last.
func pickOnsets(env []float64) []int {
	top := 0.0
	for _, v := range env {
		top = math.Max(top, v)
	}
	if top <= 0 {
		return nil
	}
	norm := make([]float64, len(env))
	for i, v := range env {
		norm[i] = v / top
	}

	var onsets []int
	last := -wait - 1
	for t, v := range norm {
		if v <= 0 {
			continue
		}
		if v <= windowMax(norm, t-preMax, t-1) {
			continue
		}
		if v < windowMax(norm, t+1, t+postMax) {
			continue
		}
		if v < windowMean(norm, t-avgWindow, t+avgWindow)+delta {
			continue
		}
		if t-last < wait {
			continue
		}
		onsets = append(onsets, t)
		last = t
	}
	return onsets
}

func windowMax(xs []float64, lo, hi int) float64 {
	lo, hi = clampRange(lo, hi, len(xs))
	m := math.Inf(-1)
	for i := lo; i <= hi; i++ {
		m = math.Max(m, xs[i])
	}
	return m
}

func windowMean(xs []float64, lo, hi int) float64 {
	lo, hi = clampRange(lo, hi, len(xs))
	if hi < lo {
		return 0
	}
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += xs[i]
	}
	return sum / float64(hi-lo+1)
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
