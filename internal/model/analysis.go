package model

import "time"

// ChordCandidate is one (root, quality) hypothesis
type ChordCandidate struct {
	Chord      string       `bson:"chord" json:"chord"`
	Root       string       `bson:"root" json:"root"`
	Quality    ChordQuality `bson:"quality" json:"quality"`
	Confidence float64      `bson:"confidence" json:"confidence"`
}

// ChordResult holds the best match and the ranked alternatives.
// Error is set instead of the matches when the chroma vector is malformed.
type ChordResult struct {
	TopChord     *ChordCandidate  `bson:"top_chord,omitempty" json:"topChord,omitempty"`
	Alternatives []ChordCandidate `bson:"alternatives,omitempty" json:"alternatives,omitempty"`
	Error        string           `bson:"error,omitempty" json:"error,omitempty"`

	// Ranked holds every candidate; it is not persisted.
	Ranked []ChordCandidate `bson:"-" json:"-"`
}

// RhythmResult summarises rhythmic steadiness
type RhythmResult struct {
	TempoBPM          float64       `bson:"tempo_bpm" json:"tempoBpm"`
	StrumsPerSecond   float64       `bson:"strums_per_second" json:"strumsPerSecond"`
	EnergyConsistency float64       `bson:"energy_consistency" json:"energyConsistency"`
	TempoScore        float64       `bson:"tempo_score" json:"tempoScore"`
	RhythmScore       float64       `bson:"rhythm_score" json:"rhythmScore"`
	RhythmQuality     RhythmQuality `bson:"rhythm_quality,omitempty" json:"rhythmQuality,omitempty"`
	Error             string        `bson:"error,omitempty" json:"error,omitempty"`
}

// PerformanceDetails records the clamped inputs of the final score
type PerformanceDetails struct {
	ChordConfidence float64 `bson:"chord_confidence" json:"chordConfidence"`
	RhythmScore     float64 `bson:"rhythm_score" json:"rhythmScore"`
}

// PerformanceResult is the graded outcome shown to the user
type PerformanceResult struct {
	Score    float64            `bson:"score" json:"score"`
	Grade    Grade              `bson:"grade" json:"grade"`
	Feedback string             `bson:"feedback" json:"feedback"`
	Details  PerformanceDetails `bson:"details" json:"details"`
}

// Analysis is embedded in the job once the pipeline succeeds.
// It is always written as a whole.
type Analysis struct {
	Chords      ChordResult       `bson:"chords" json:"chords"`
	Rhythm      RhythmResult      `bson:"rhythm" json:"rhythm"`
	Performance PerformanceResult `bson:"performance_score" json:"performanceScore"`
	Features    *Features         `bson:"features,omitempty" json:"features,omitempty"`
	AnalyzedAt  time.Time         `bson:"analyzed_at" json:"analyzedAt"`
}
