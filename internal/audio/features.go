package audio

import (
	"errors"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/model"
)

// Extractor computes the descriptor set of a mono PCM waveform
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract loads the WAV file at path and computes its descriptors
func (e *Extractor) Extract(path string) (model.Features, error) {
	w, err := LoadWAV(path)
	if err != nil {
		return model.Features{}, err
	}
	f, err := FromWaveform(w)
	if err != nil {
		return model.Features{}, common.WrapFeatureExtraction(path, err)
	}
	return f, nil
}

// FromWaveform computes the descriptor set of an in-memory waveform.
// Identical samples always produce identical descriptors.
func FromWaveform(w *Waveform) (model.Features, error) {
	if w == nil || len(w.Samples) == 0 {
		return model.Features{}, errors.New("waveform is empty")
	}
	if w.SampleRate <= 0 {
		return model.Features{}, errors.New("invalid sample rate")
	}

	spec := stft(w.Samples, w.SampleRate, FrameLength, HopLength)

	rmsMean, rmsStd := meanStd(rms(w.Samples, FrameLength, HopLength))
	centroid, _ := meanStd(spectralCentroid(spec))
	rolloff, _ := meanStd(spectralRolloff(spec))
	zcr, _ := meanStd(zeroCrossingRate(w.Samples, FrameLength, HopLength))

	env := onsetStrength(spec)
	frameRate := float64(w.SampleRate) / float64(HopLength)

	return model.Features{
		DurationSec:          w.Duration(),
		TempoBPM:             estimateTempo(env, frameRate),
		OnsetCount:           len(pickOnsets(env)),
		RMSEnergyMean:        rmsMean,
		RMSEnergyStd:         rmsStd,
		SpectralCentroidMean: centroid,
		SpectralRolloffMean:  rolloff,
		ZeroCrossingRateMean: zcr,
		ChromaMean:           chromaMean(spec),
	}, nil
}
