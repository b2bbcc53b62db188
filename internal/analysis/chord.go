// Package analysis turns a descriptor set into chord, rhythm and
// performance results. Everything here is pure and deterministic.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/model"
)

// AlternativeCount is how many ranked candidates are reported
const AlternativeCount = 5

const chromaEpsilon = 1e-6

// ChordTemplate is a chord quality expressed as semitone offsets from the root
type ChordTemplate struct {
	Quality   model.ChordQuality
	Intervals []int
}

// ChordTemplates is matched for every root, in this order. Ties keep
// the order: root ascending, then template order.
var ChordTemplates = []ChordTemplate{
	{Quality: model.ChordQualityMajor, Intervals: []int{0, 4, 7}},
	{Quality: model.ChordQualityMinor, Intervals: []int{0, 3, 7}},
}

// DetectChords scores the chroma vector against every root/template pair
// and ranks the candidates by descending confidence. A vector that is not
// 12 long yields a result carrying only Error.
func DetectChords(chroma []float64) model.ChordResult {
	if len(chroma) != len(model.PitchClasses) {
		err := &common.MalformedFeatureError{
			Feature: "chroma_mean",
			Reason:  fmt.Sprintf("expected %d pitch classes, got %d", len(model.PitchClasses), len(chroma)),
		}
		return model.ChordResult{Error: err.Error()}
	}

	var norm float64
	for _, v := range chroma {
		norm += v * v
	}
	norm = math.Sqrt(norm) + chromaEpsilon

	normalized := make([]float64, len(chroma))
	for i, v := range chroma {
		normalized[i] = v / norm
	}

	candidates := make([]model.ChordCandidate, 0, len(model.PitchClasses)*len(ChordTemplates))
	for root, name := range model.PitchClasses {
		for _, tpl := range ChordTemplates {
			candidates = append(candidates, model.ChordCandidate{
				Chord:      fmt.Sprintf("%s %s", name, tpl.Quality),
				Root:       name,
				Quality:    tpl.Quality,
				Confidence: roundTo(tpl.score(normalized, root), 4),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	top := candidates[0]
	alternatives := make([]model.ChordCandidate, AlternativeCount)
	copy(alternatives, candidates[:AlternativeCount])

	return model.ChordResult{
		TopChord:     &top,
		Alternatives: alternatives,
		Ranked:       candidates,
	}
}

// score is the dot product of the chroma vector with the template rotated to root
func (t ChordTemplate) score(chroma []float64, root int) float64 {
	var s float64
	for _, interval := range t.Intervals {
		s += chroma[(root+interval)%len(chroma)]
	}
	return s
}
