package estimation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedKmps(t *testing.T) {
	speed, err := SpeedKmps(10, 12648, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.25296, speed, 1e-9)

	speed, err = SpeedKmps(0, 12648, 5)
	require.NoError(t, err)
	assert.Zero(t, speed)
}

func TestSpeedKmps_InverseInElapsed(t *testing.T) {
	for _, elapsed := range []float64{1, 2, 3.5, 7, 60} {
		single, err := SpeedKmps(123.4, 14000, elapsed)
		require.NoError(t, err)
		double, err := SpeedKmps(123.4, 14000, 2*elapsed)
		require.NoError(t, err)
		assert.InDelta(t, single/2, double, 1e-12, "elapsed=%g", elapsed)
	}
}

func TestSpeedKmps_BadElapsed(t *testing.T) {
	tests := []struct {
		name    string
		elapsed float64
		want    error
	}{
		{"Zero", 0, ErrZeroElapsedTime},
		{"NaN", math.NaN(), ErrNonFiniteElapsedTime},
		{"Inf", math.Inf(1), ErrNonFiniteElapsedTime},
		{"NegativeInf", math.Inf(-1), ErrNonFiniteElapsedTime},
		{"Negative", -3, ErrNegativeElapsedTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speed, err := SpeedKmps(10, 12648, tt.elapsed)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, speed)
			assert.True(t, IsTransient(err))

			var elapsedErr *ElapsedTimeError
			require.ErrorAs(t, err, &elapsedErr)
		})
	}
}

func TestEstimateDisplacement_NoMatches(t *testing.T) {
	_, err := EstimateDisplacement(nil, 1, DefaultModeResolution)
	require.ErrorIs(t, err, ErrInsufficientMatches)

	var insufficient *InsufficientMatchesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Found)
	assert.Equal(t, 1, insufficient.Required)
}

func TestEstimateDisplacement_BelowFloor(t *testing.T) {
	pairs := []CoordinatePair{{X2: 1}, {X2: 2}, {X2: 3}}
	_, err := EstimateDisplacement(pairs, 4, 0)
	require.ErrorIs(t, err, ErrInsufficientMatches)
	assert.Contains(t, err.Error(), "found 3")
}

func TestEstimateDisplacement_MedianAndMode(t *testing.T) {
	pairs := []CoordinatePair{
		{X1: 0, Y1: 0, X2: 3, Y2: 4},
		{X1: 0, Y1: 0, X2: 0, Y2: 5},
		{X1: 1, Y1: 1, X2: 4, Y2: 5},
		{X1: 10, Y1: 0, X2: 10, Y2: 5},
		{X1: 0, Y1: 0, X2: 3, Y2: 0},
		{X1: 0, Y1: 0, X2: 5, Y2: 12},
		{X1: 0, Y1: 0, X2: 100, Y2: 0},
	}
	// sorted distances: 3, 5, 5, 5, 5, 13, 100
	d, err := EstimateDisplacement(pairs, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, d.Pairs)
	assert.InDelta(t, 5, d.Median, 1e-12)
	assert.InDelta(t, 5, d.Mode, 1e-12)
	assert.InDelta(t, 5, d.Pixels, 1e-12)
}

func TestEstimateDisplacement_EvenMedian(t *testing.T) {
	pairs := []CoordinatePair{{X2: 2}, {X2: 4}, {X2: 6}, {X2: 8}}
	d, err := EstimateDisplacement(pairs, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5, d.Median, 1e-12)
	// No repeats: the mode is the smallest distance.
	assert.InDelta(t, 2, d.Mode, 1e-12)
	assert.InDelta(t, 3.5, d.Pixels, 1e-12)
}

func TestEstimateDisplacement_ModeResolution(t *testing.T) {
	pairs := []CoordinatePair{
		{X2: 1.0},
		{X2: 9.9}, {X2: 10.05}, {X2: 10.1},
		{X2: 30},
	}
	exact, err := EstimateDisplacement(pairs, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, exact.Mode, 1e-12)

	grouped, err := EstimateDisplacement(pairs, 1, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, grouped.Mode, 1e-12)
	assert.InDelta(t, 10.05, grouped.Median, 1e-12)
	assert.InDelta(t, 10.025, grouped.Pixels, 1e-12)
}

func TestEstimateDisplacement_ModeTieTakesSmallest(t *testing.T) {
	pairs := []CoordinatePair{{X2: 7}, {X2: 7}, {X2: 3}, {X2: 3}, {X2: 9}}
	d, err := EstimateDisplacement(pairs, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3, d.Mode, 1e-12)
}

func TestEstimateDisplacement_NeverNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n < 50; n++ {
		pairs := make([]CoordinatePair, n)
		for i := range pairs {
			pairs[i] = CoordinatePair{X1: rng.Float64() * 500, Y1: rng.Float64() * 500, X2: rng.Float64() * 500, Y2: rng.Float64() * 500}
		}
		d, err := EstimateDisplacement(pairs, 1, DefaultModeResolution)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(d.Pixels))
		assert.GreaterOrEqual(t, d.Pixels, 0.0)
	}
}

func TestRatioTest(t *testing.T) {
	candidates := [][]Match{
		{{QueryIndex: 0, TrainIndex: 4, Distance: 10}, {QueryIndex: 0, TrainIndex: 2, Distance: 100}},
		{{QueryIndex: 1, TrainIndex: 1, Distance: 75}, {QueryIndex: 1, TrainIndex: 3, Distance: 100}},
		{{QueryIndex: 2, TrainIndex: 0, Distance: 74.9}, {QueryIndex: 2, TrainIndex: 3, Distance: 100}},
		{{QueryIndex: 3, TrainIndex: 0, Distance: 1}},
		{},
		{{QueryIndex: 5, TrainIndex: 0, Distance: 0}, {QueryIndex: 5, TrainIndex: 1, Distance: 0}},
	}

	got := RatioTest(candidates, DefaultRatioThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, Match{QueryIndex: 0, TrainIndex: 4, Distance: 10}, got[0])
	assert.Equal(t, Match{QueryIndex: 2, TrainIndex: 0, Distance: 74.9}, got[1])
}

func TestRatioTest_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	candidates := make([][]Match, 2000)
	for i := range candidates {
		a, b := rng.Float64()*300, rng.Float64()*300
		if a > b {
			a, b = b, a
		}
		candidates[i] = []Match{
			{QueryIndex: i, TrainIndex: rng.Intn(100), Distance: a},
			{QueryIndex: i, TrainIndex: rng.Intn(100), Distance: b},
		}
	}

	seconds := make(map[int]float64, len(candidates))
	for _, c := range candidates {
		seconds[c[0].QueryIndex] = c[1].Distance
	}

	for _, m := range RatioTest(candidates, DefaultRatioThreshold) {
		assert.Less(t, m.Distance, DefaultRatioThreshold*seconds[m.QueryIndex])
	}
}

func randomFeatures(rng *rand.Rand, n, dim int) *Features {
	f := &Features{Keypoints: make([]Keypoint, n)}
	for i := range f.Keypoints {
		desc := make([]float32, dim)
		for j := range desc {
			desc[j] = rng.Float32() * 255
		}
		f.Keypoints[i] = Keypoint{X: rng.Float64() * 640, Y: rng.Float64() * 480, Descriptor: desc}
	}
	return f
}

func TestMatchFeatures_Exact(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := randomFeatures(rng, 60, 128)

	// b holds a's descriptors with small noise, in reverse order, shifted by (10, 0).
	b := &Features{Keypoints: make([]Keypoint, len(a.Keypoints))}
	for i, kp := range a.Keypoints {
		desc := make([]float32, len(kp.Descriptor))
		for j, v := range kp.Descriptor {
			desc[j] = v + rng.Float32()
		}
		b.Keypoints[len(a.Keypoints)-1-i] = Keypoint{X: kp.X + 10, Y: kp.Y, Descriptor: desc}
	}

	matches, err := MatchFeatures(a, b, MatcherExact, DefaultRatioThreshold)
	require.NoError(t, err)
	require.Len(t, matches, len(a.Keypoints))
	for i, m := range matches {
		assert.Equal(t, i, m.QueryIndex)
		assert.Equal(t, len(a.Keypoints)-1-i, m.TrainIndex)
	}

	d, err := EstimateDisplacement(MatchedCoordinates(a, b, matches), DefaultMinMatches, DefaultModeResolution)
	require.NoError(t, err)
	assert.InDelta(t, 10, d.Pixels, 1e-9)
}

func TestMatchFeatures_Empty(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomFeatures(rng, 5, 8)

	matches, err := MatchFeatures(a, &Features{}, MatcherExact, DefaultRatioThreshold)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = MatchFeatures(&Features{}, a, MatcherFLANN, DefaultRatioThreshold)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = MatchFeatures(nil, a, MatcherExact, DefaultRatioThreshold)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchFeatures_SingleTrainDescriptor(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomFeatures(rng, 5, 8)
	b := randomFeatures(rng, 1, 8)

	// b carries no descriptor Mat, so the OpenCV matchers only pass when the
	// short-circuit runs before them.
	for _, kind := range []MatcherKind{MatcherExact, MatcherFLANN, MatcherBruteForce} {
		t.Run(string(kind), func(t *testing.T) {
			matches, err := MatchFeatures(a, b, kind, DefaultRatioThreshold)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestMatchFeatures_DimensionMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	_, err := MatchFeatures(randomFeatures(rng, 3, 8), randomFeatures(rng, 3, 16), MatcherExact, DefaultRatioThreshold)
	require.Error(t, err)
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"ZeroGSD", func(o *Options) { o.GroundSampleDistance = 0 }},
		{"NaNGSD", func(o *Options) { o.GroundSampleDistance = math.NaN() }},
		{"InfGSD", func(o *Options) { o.GroundSampleDistance = math.Inf(1) }},
		{"ZeroMinMatches", func(o *Options) { o.MinMatches = 0 }},
		{"RatioAboveOne", func(o *Options) { o.RatioThreshold = 1.5 }},
		{"ZeroRatio", func(o *Options) { o.RatioThreshold = 0 }},
		{"NegativeResolution", func(o *Options) { o.ModeResolution = -1 }},
		{"NaNResolution", func(o *Options) { o.ModeResolution = math.NaN() }},
		{"InfResolution", func(o *Options) { o.ModeResolution = math.Inf(1) }},
		{"UnknownMatcher", func(o *Options) { o.Matcher = "kdtree" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			require.ErrorIs(t, err, ErrInvalidOptions)

			_, err = NewEstimator(opts)
			require.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestParseMatcherKind(t *testing.T) {
	tests := map[string]MatcherKind{
		"":           MatcherFLANN,
		"FLANN":      MatcherFLANN,
		"bf":         MatcherBruteForce,
		"bruteforce": MatcherBruteForce,
		" exact ":    MatcherExact,
	}
	for in, want := range tests {
		got, err := ParseMatcherKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&InsufficientMatchesError{Found: 1, Required: 4}))
	assert.True(t, IsTransient(newImageError("a.jpg", ErrDecodeFailure, errors.New("bad huffman table"))))
	assert.True(t, IsTransient(newImageError("", ErrEmptyImage, nil)))
	assert.True(t, IsTransient(&ElapsedTimeError{Seconds: math.Inf(1), cause: ErrNonFiniteElapsedTime}))
	assert.False(t, IsTransient(ErrInvalidOptions))
	assert.False(t, IsTransient(errors.New("camera unplugged")))
}

func TestImageError_Message(t *testing.T) {
	err := newImageError("a.jpg", ErrDecodeFailure, errors.New("truncated"))
	assert.Equal(t, "a.jpg: image decode failure: truncated", err.Error())
	assert.ErrorIs(t, err, ErrDecodeFailure)
}
