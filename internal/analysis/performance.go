package analysis

import "github.com/pickperfect/api/internal/model"

const (
	chordWeight  = 0.6
	rhythmWeight = 0.4
)

type gradeBand struct {
	min      float64
	grade    model.Grade
	feedback string
}

// gradeBands is ordered from the highest threshold down
var gradeBands = []gradeBand{
	{85, model.GradeExcellent, "Strong chord accuracy with very steady rhythm."},
	{70, model.GradeGood, "Mostly correct chords with decent rhythm stability."},
	{50, model.GradeFair, "Chords are recognizable but rhythm needs improvement."},
	{0, model.GradeNeedsPractice, "Work on both chord accuracy and rhythmic consistency."},
}

// ScorePerformance combines the top chord confidence and the rhythm score,
// both clamped to [0, 1], into a percentage with a grade and feedback.
// A missing top chord counts as zero confidence.
func ScorePerformance(chords model.ChordResult, rhythm model.RhythmResult) model.PerformanceResult {
	confidence := 0.0
	if chords.TopChord != nil {
		confidence = chords.TopChord.Confidence
	}
	confidence = clamp01(confidence)
	rhythmScore := clamp01(rhythm.RhythmScore)

	score := roundTo(100*(chordWeight*confidence+rhythmWeight*rhythmScore), 1)
	grade, feedback := GradeFor(score)

	return model.PerformanceResult{
		Score:    score,
		Grade:    grade,
		Feedback: feedback,
		Details: model.PerformanceDetails{
			ChordConfidence: roundTo(confidence, 3),
			RhythmScore:     roundTo(rhythmScore, 3),
		},
	}
}

// GradeFor returns the grade and feedback sentence for a percentage score
func GradeFor(score float64) (model.Grade, string) {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade, b.feedback
		}
	}
	last := gradeBands[len(gradeBands)-1]
	return last.grade, last.feedback
}
