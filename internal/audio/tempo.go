package audio

import "math"

const (
	minBPM   = 30.0
	maxBPM   = 300.0
	priorBPM = 120.0
)

// estimateTempo returns the global tempo in BPM from the autocorrelation
// of the onset envelope, weighted by a log-normal prior centered on
// priorBPM. Returns 0 when the envelope is too short or silent.
func estimateTempo(env []float64, frameRate float64) float64 {
	if len(env) == 0 || frameRate <= 0 {
		return 0
	}
	minLag := int(math.Floor(60 * frameRate / maxBPM))
	if minLag < 1 {
		minLag = 1
	}
	maxLag := int(math.Ceil(60 * frameRate / minBPM))
	if maxLag > len(env)-1 {
		maxLag = len(env) - 1
	}
	if maxLag <= minLag {
		return 0
	}

	weighted := make([]float64, maxLag+1)
	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := lag; i < len(env); i++ {
			ac += env[i] * env[i-lag]
		}
		bpm := 60 * frameRate / float64(lag)
		prior := math.Exp(-0.5 * math.Pow(math.Log2(bpm/priorBPM), 2))
		weighted[lag] = ac * prior
		if weighted[lag] > 0 && (best < 0 || weighted[lag] > weighted[best]) {
			best = lag
		}
	}
	if best < 0 {
		return 0
	}

	lag := float64(best)
	if best > minLag && best < maxLag {
		a, b, c := weighted[best-1], weighted[best], weighted[best+1]
		if denom := a - 2*b + c; denom < 0 {
			lag += 0.5 * (a - c) / denom
		}
	}
	return 60 * frameRate / lag
}
