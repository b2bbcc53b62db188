package model

import "strings"

// Job status
type JobStatus string

const (
	JobStatusPendingUpload JobStatus = "PENDING_UPLOAD"
	JobStatusUploaded      JobStatus = "UPLOADED"
	JobStatusProcessed     JobStatus = "PROCESSED"
	JobStatusAnalyzed      JobStatus = "ANALYZED"
	JobStatusFailed        JobStatus = "FAILED"
)

var ValidJobStatuses = []JobStatus{
	JobStatusPendingUpload, JobStatusUploaded, JobStatusProcessed,
	JobStatusAnalyzed, JobStatusFailed,
}

// ParseJobStatus matches s case-insensitively against the known statuses
func ParseJobStatus(s string) (JobStatus, bool) {
	for _, status := range ValidJobStatuses {
		if strings.EqualFold(string(status), strings.TrimSpace(s)) {
			return status, true
		}
	}
	return "", false
}

// Chord qualities
type ChordQuality string

const (
	ChordQualityMajor ChordQuality = "major"
	ChordQualityMinor ChordQuality = "minor"
)

// Rhythm qualities
type RhythmQuality string

const (
	RhythmSteady   RhythmQuality = "steady"
	RhythmModerate RhythmQuality = "moderate"
	RhythmUnstable RhythmQuality = "unstable"
)

// Performance grades
type Grade string

const (
	GradeExcellent     Grade = "Excellent"
	GradeGood          Grade = "Good"
	GradeFair          Grade = "Fair"
	GradeNeedsPractice Grade = "Needs Practice"
)

// Pitch classes in chromatic order starting at C
var PitchClasses = [12]string{
	"C", "C#", "D", "D#", "E", "F",
	"F#", "G", "G#", "A", "A#", "B",
}
