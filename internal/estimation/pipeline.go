// Package estimation turns two overlapping downward-facing photographs into a
// ground speed estimate.
//
// The pipeline detects SIFT keypoints in both images, pairs them with a
// two-nearest-neighbour search and Lowe's ratio test, reduces the matched
// pixel displacements to one robust value and scales it with the ground
// sample distance and the time between the captures.
//
// An Estimator keeps no mutable state, so independent image pairs may be
// estimated concurrently.
package estimation

import (
	"fmt"

	"gocv.io/x/gocv"

	"orbitspeed/internal/timeline"
)

// Result is the outcome of one pipeline run. SpeedKmps is the speed sample.
type Result struct {
	SpeedKmps      float64          `json:"speedKmps"`
	DistanceKm     float64          `json:"distanceKm"`
	ElapsedSeconds float64          `json:"elapsedSeconds"`
	Displacement   Displacement     `json:"displacement"`
	KeypointsA     int              `json:"keypointsA"`
	KeypointsB     int              `json:"keypointsB"`
	Matches        int              `json:"matches"`
	Homography     *HomographyCheck `json:"homography,omitempty"`
}

// Estimator runs the speed estimation pipeline with fixed options.
type Estimator struct {
	opts Options
}

// NewEstimator validates opts and returns an Estimator.
func NewEstimator(opts Options) (*Estimator, error) {
	if opts.Matcher == "" {
		opts.Matcher = MatcherFLANN
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{opts: opts}, nil
}

func (e *Estimator) Options() Options { return e.opts }

// Estimate compares two captured frames, older first. The elapsed time is
// taken from the frame timestamps in whole seconds.
func (e *Estimator) Estimate(older, newer timeline.Frame) (Result, error) {
	if raw := newer.Timestamp.Sub(older.Timestamp); raw < 0 {
		return Result{}, &ElapsedTimeError{Seconds: raw.Seconds(), cause: ErrNegativeElapsedTime}
	}
	return e.EstimatePair(older.Image, newer.Image, timeline.Elapsed(older, newer).Seconds())
}

// EstimatePair compares image a (query) with image b (train) captured
// elapsedSeconds apart.
func (e *Estimator) EstimatePair(a, b gocv.Mat, elapsedSeconds float64) (Result, error) {
	// Reject bad timing before spending time on feature detection.
	if _, err := SpeedKmps(0, e.opts.GroundSampleDistance, elapsedSeconds); err != nil {
		return Result{}, err
	}

	fa, err := DetectAndDescribe(a)
	if err != nil {
		return Result{}, fmt.Errorf("first image: %w", err)
	}
	defer fa.Close()

	fb, err := DetectAndDescribe(b)
	if err != nil {
		return Result{}, fmt.Errorf("second image: %w", err)
	}
	defer fb.Close()

	return e.estimateFeatures(fa, fb, elapsedSeconds)
}

func (e *Estimator) estimateFeatures(fa, fb *Features, elapsedSeconds float64) (Result, error) {
	result := Result{
		ElapsedSeconds: elapsedSeconds,
		KeypointsA:     fa.Len(),
		KeypointsB:     fb.Len(),
	}

	matches, err := MatchFeatures(fa, fb, e.opts.Matcher, e.opts.RatioThreshold)
	if err != nil {
		return result, fmt.Errorf("failed to match features: %w", err)
	}
	result.Matches = len(matches)

	pairs := MatchedCoordinates(fa, fb, matches)
	displacement, err := EstimateDisplacement(pairs, e.opts.MinMatches, e.opts.ModeResolution)
	if err != nil {
		return result, err
	}
	result.Displacement = displacement

	speed, err := SpeedKmps(displacement.Pixels, e.opts.GroundSampleDistance, elapsedSeconds)
	if err != nil {
		return result, err
	}
	result.SpeedKmps = speed
	result.DistanceKm = displacement.Pixels * e.opts.GroundSampleDistance / cmPerKm

	if e.opts.CheckHomography {
		result.Homography = CheckHomography(pairs)
	}
	return result, nil
}
