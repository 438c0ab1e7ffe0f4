package estimation

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientMatches is returned when too few correspondences survive the ratio test.
	ErrInsufficientMatches = errors.New("insufficient matches")
	// ErrZeroElapsedTime is returned when two frames carry the same whole-second timestamp.
	ErrZeroElapsedTime = errors.New("zero elapsed time")
	// ErrNegativeElapsedTime is returned when the newer frame is older than the previous one.
	ErrNegativeElapsedTime = errors.New("negative elapsed time")
	// ErrNonFiniteElapsedTime is returned for NaN or infinite elapsed time.
	ErrNonFiniteElapsedTime = errors.New("non-finite elapsed time")
	// ErrEmptyImage is returned when an image has no pixels.
	ErrEmptyImage = errors.New("empty image")
	// ErrDecodeFailure is returned when bytes cannot be decoded into a pixel grid.
	ErrDecodeFailure = errors.New("image decode failure")
	// ErrInvalidOptions is returned by NewEstimator for unusable configuration.
	ErrInvalidOptions = errors.New("invalid estimation options")
)

// InsufficientMatchesError carries how many correspondences were found.
//
// errors.Is(err, ErrInsufficientMatches) reports true for it.
type InsufficientMatchesError struct {
	Found    int
	Required int
}

func (e *InsufficientMatchesError) Error() string {
	return fmt.Sprintf("insufficient matches: found %d, need at least %d", e.Found, e.Required)
}

func (e *InsufficientMatchesError) Unwrap() error { return ErrInsufficientMatches }

// ElapsedTimeError describes malformed timing input.
type ElapsedTimeError struct {
	Seconds float64
	cause   error
}

func (e *ElapsedTimeError) Error() string {
	return fmt.Sprintf("%v: %g s", e.cause, e.Seconds)
}

func (e *ElapsedTimeError) Unwrap() error { return e.cause }

// ImageError describes an image that could not be used as a pixel grid.
type ImageError struct {
	Source string
	cause  error
	err    error
}

func (e *ImageError) Error() string {
	msg := e.cause.Error()
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

// Unwrap exposes both the taxonomy sentinel and the underlying decoder error.
func (e *ImageError) Unwrap() []error {
	if e.err == nil {
		return []error{e.cause}
	}
	return []error{e.cause, e.err}
}

func newImageError(source string, cause, err error) error {
	return &ImageError{Source: source, cause: cause, err: err}
}

// IsTransient reports whether err is a per-pair failure after which the host
// should discard the pair and try the next one.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInsufficientMatches) ||
		errors.Is(err, ErrZeroElapsedTime) ||
		errors.Is(err, ErrNegativeElapsedTime) ||
		errors.Is(err, ErrNonFiniteElapsedTime) ||
		errors.Is(err, ErrEmptyImage) ||
		errors.Is(err, ErrDecodeFailure)
}
