package common

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - use errors.Is() to check
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrRetrievalNotFound = errors.New("object not found in storage")
	ErrTranscode         = errors.New("transcode failed")
	ErrFeatureExtraction = errors.New("feature extraction failed")
	ErrMalformedFeature  = errors.New("malformed feature")
	ErrPersistence       = errors.New("persistence failed")

	ErrNotFound      = errors.New("not found")
	ErrJobNotFound   = fmt.Errorf("job %w", ErrNotFound)
	ErrInvalidStatus = errors.New("invalid job status")
)

// ConfigurationError names the settings that are missing or invalid
type ConfigurationError struct {
	Settings []string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = "missing required setting"
	}
	if len(e.Settings) == 0 {
		return fmt.Sprintf("configuration error: %s", msg)
	}
	return fmt.Sprintf("configuration error: %s: %s", msg, strings.Join(e.Settings, ", "))
}

// Is implements errors.Is for ConfigurationError
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError builds a ConfigurationError for the given settings
func NewConfigurationError(reason string, settings ...string) *ConfigurationError {
	return &ConfigurationError{Settings: settings, Reason: reason}
}

// TranscodeError carries the diagnostic output of a failed transcoding run
type TranscodeError struct {
	Input  string
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("transcode %s", e.Input)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Is implements errors.Is for TranscodeError
func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscode
}

// MalformedFeatureError reports a descriptor with the wrong shape.
// It is returned as a value inside analysis results, never raised.
type MalformedFeatureError struct {
	Feature string
	Reason  string
}

func (e *MalformedFeatureError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Feature, e.Reason)
}

// Is implements errors.Is for MalformedFeatureError
func (e *MalformedFeatureError) Is(target error) bool {
	return target == ErrMalformedFeature
}

// WrapPersistence wraps a database error with the failed operation
func WrapPersistence(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrPersistence, err))
}

// WrapFeatureExtraction wraps an audio decoding/analysis error
func WrapFeatureExtraction(path string, err error) error {
	return fmt.Errorf("%s: %w", path, errors.Join(ErrFeatureExtraction, err))
}

// IsPermanent reports whether retrying the job cannot change the outcome
func IsPermanent(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrRetrievalNotFound) ||
		errors.Is(err, ErrFeatureExtraction)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
