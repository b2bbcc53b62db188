package model

// Chroma holds one energy value per pitch class, C first
type Chroma [12]float64

// Features is the descriptor bag computed once per audio file and
// shared by the chord and rhythm stages.
type Features struct {
	DurationSec          float64 `bson:"duration_sec" json:"durationSec"`
	TempoBPM             float64 `bson:"tempo_bpm" json:"tempoBpm"`
	OnsetCount           int     `bson:"onset_count" json:"onsetCount"`
	RMSEnergyMean        float64 `bson:"rms_energy_mean" json:"rmsEnergyMean"`
	RMSEnergyStd         float64 `bson:"rms_energy_std" json:"rmsEnergyStd"`
	SpectralCentroidMean float64 `bson:"spectral_centroid_mean" json:"spectralCentroidMean"`
	SpectralRolloffMean  float64 `bson:"spectral_rolloff_mean" json:"spectralRolloffMean"`
	ZeroCrossingRateMean float64 `bson:"zero_crossing_rate_mean" json:"zeroCrossingRateMean"`
	ChromaMean           Chroma  `bson:"chroma_mean" json:"chromaMean"`
}
