package estimation

import (
	"fmt"
	"math"
	"strings"
)

// MatcherKind selects the nearest-neighbour back end used by the correspondence filter.
type MatcherKind string

const (
	// MatcherFLANN uses OpenCV's approximate FLANN index.
	MatcherFLANN MatcherKind = "flann"
	// MatcherBruteForce uses OpenCV's exhaustive L2 matcher.
	MatcherBruteForce MatcherKind = "bruteforce"
	// MatcherExact uses an exhaustive pure-Go L2 search. Fully deterministic.
	MatcherExact MatcherKind = "exact"
)

const (
	DefaultGroundSampleDistance = 12648.0 // cm per pixel
	DefaultMinMatches           = 4
	DefaultRatioThreshold       = 0.75
	DefaultModeResolution       = 0.5 // pixels
)

// Options configures an Estimator.
type Options struct {
	// GroundSampleDistance is the ground distance covered by one pixel, in centimeters.
	GroundSampleDistance float64
	// MinMatches is the floor below which ErrInsufficientMatches is returned.
	MinMatches int
	// RatioThreshold is the Lowe ratio; a match is kept when nearest < ratio*second.
	RatioThreshold float64
	// ModeResolution groups displacement values before taking the mode. Zero means exact equality.
	ModeResolution float64
	Matcher        MatcherKind
	// CheckHomography fits a RANSAC homography to the kept matches and reports the
	// inlier ratio. The speed is never corrected with it.
	CheckHomography bool
}

// DefaultOptions returns the options used on the ISS with the HQ camera.
func DefaultOptions() Options {
	return Options{
		GroundSampleDistance: DefaultGroundSampleDistance,
		MinMatches:           DefaultMinMatches,
		RatioThreshold:       DefaultRatioThreshold,
		ModeResolution:       DefaultModeResolution,
		Matcher:              MatcherFLANN,
	}
}

// ParseMatcherKind accepts the names used in configuration files and flags.
func ParseMatcherKind(s string) (MatcherKind, error) {
	switch MatcherKind(strings.ToLower(strings.TrimSpace(s))) {
	case MatcherFLANN, "":
		return MatcherFLANN, nil
	case MatcherBruteForce, "bf":
		return MatcherBruteForce, nil
	case MatcherExact:
		return MatcherExact, nil
	default:
		return "", fmt.Errorf("%w: unknown matcher %q", ErrInvalidOptions, s)
	}
}

// Validate reports the first unusable option.
func (o Options) Validate() error {
	if !(o.GroundSampleDistance > 0) || math.IsInf(o.GroundSampleDistance, 1) {
		return fmt.Errorf("%w: ground sample distance must be positive and finite, got %g", ErrInvalidOptions, o.GroundSampleDistance)
	}
	if o.MinMatches < 1 {
		return fmt.Errorf("%w: min matches must be at least 1, got %d", ErrInvalidOptions, o.MinMatches)
	}
	if !(o.RatioThreshold > 0 && o.RatioThreshold <= 1) {
		return fmt.Errorf("%w: ratio threshold must be in (0, 1], got %g", ErrInvalidOptions, o.RatioThreshold)
	}
	if !(o.ModeResolution >= 0) || math.IsInf(o.ModeResolution, 1) {
		return fmt.Errorf("%w: mode resolution must be finite and not negative, got %g", ErrInvalidOptions, o.ModeResolution)
	}
	if _, err := ParseMatcherKind(string(o.Matcher)); err != nil {
		return err
	}
	return nil
}
