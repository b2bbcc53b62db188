package analysis

import (
	"math"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/model"
)

// Tempo range considered playable, inclusive
const (
	MinSteadyTempo = 60.0
	MaxSteadyTempo = 180.0
)

// Strumming rate that earns the full rate component
const targetStrumsPerSecond = 4.0

// EvaluateRhythm scores the steadiness of the performance from its
// energy envelope, tempo and strum rate. A non-positive duration yields
// a result carrying only Error.
func EvaluateRhythm(f model.Features) model.RhythmResult {
	if !(f.DurationSec > 0) {
		err := &common.MalformedFeatureError{Feature: "duration_sec", Reason: "audio duration must be positive"}
		return model.RhythmResult{Error: err.Error()}
	}

	strums := float64(f.OnsetCount) / f.DurationSec

	consistency := 0.0
	if f.RMSEnergyMean > 0 {
		consistency = 1 - math.Min(f.RMSEnergyStd/f.RMSEnergyMean, 1)
	}

	tempoScore := 0.5
	if f.TempoBPM >= MinSteadyTempo && f.TempoBPM <= MaxSteadyTempo {
		tempoScore = 1.0
	}

	score := roundTo(0.4*consistency+0.3*tempoScore+0.3*math.Min(strums/targetStrumsPerSecond, 1), 3)

	return model.RhythmResult{
		TempoBPM:          roundTo(f.TempoBPM, 2),
		StrumsPerSecond:   roundTo(strums, 2),
		EnergyConsistency: roundTo(consistency, 3),
		TempoScore:        tempoScore,
		RhythmScore:       score,
		RhythmQuality:     ClassifyRhythm(score),
	}
}

// ClassifyRhythm maps a rhythm score to its label. Lower bounds are inclusive.
func ClassifyRhythm(score float64) model.RhythmQuality {
	switch {
	case score >= 0.8:
		return model.RhythmSteady
	case score >= 0.5:
		return model.RhythmModerate
	default:
		return model.RhythmUnstable
	}
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
