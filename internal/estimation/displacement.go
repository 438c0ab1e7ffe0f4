package estimation

import (
	"math"
	"slices"
)

// CoordinatePair holds the positions of one matched keypoint in both images.
type CoordinatePair struct {
	X1, Y1 float64
	X2, Y2 float64
}

// Distance is the straight-line pixel displacement between the two positions.
func (p CoordinatePair) Distance() float64 {
	return math.Hypot(p.X1-p.X2, p.Y1-p.Y2)
}

// MatchedCoordinates resolves matches into coordinate pairs, A-side first.
func MatchedCoordinates(a, b *Features, matches []Match) []CoordinatePair {
	pairs := make([]CoordinatePair, 0, len(matches))
	for _, m := range matches {
		ka := a.Keypoints[m.QueryIndex]
		kb := b.Keypoints[m.TrainIndex]
		pairs = append(pairs, CoordinatePair{X1: ka.X, Y1: ka.Y, X2: kb.X, Y2: kb.Y})
	}
	return pairs
}

// Displacement is the robust per-pair pixel displacement and its two components.
type Displacement struct {
	Pixels float64 `json:"pixels"`
	Median float64 `json:"median"`
	Mode   float64 `json:"mode"`
	Pairs  int     `json:"pairs"`
}

// EstimateDisplacement blends the median and the mode of the per-pair
// distances: (median + mode) / 2. Values are grouped to modeResolution pixels
// before counting; zero groups by exact equality.
//
// The blend is kept for compatibility with earlier results. With few repeated
// values the mode degrades to the smallest distance and adds noise.
func EstimateDisplacement(pairs []CoordinatePair, minMatches int, modeResolution float64) (Displacement, error) {
	if minMatches < 1 {
		minMatches = 1
	}
	if len(pairs) < minMatches {
		return Displacement{}, &InsufficientMatchesError{Found: len(pairs), Required: minMatches}
	}

	distances := make([]float64, len(pairs))
	for i, p := range pairs {
		distances[i] = p.Distance()
	}
	slices.Sort(distances)

	median := sortedMedian(distances)
	mode := sortedMode(distances, modeResolution)
	return Displacement{
		Pixels: (median + mode) / 2,
		Median: median,
		Mode:   mode,
		Pairs:  len(pairs),
	}, nil
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sortedMode returns the most frequent value, the smallest one on ties.
func sortedMode(sorted []float64, resolution float64) float64 {
	bucket := func(v float64) float64 {
		if resolution <= 0 {
			return v
		}
		return math.Round(v/resolution) * resolution
	}

	best, bestCount := bucket(sorted[0]), 0
	current, count := best, 0
	for _, v := range sorted {
		b := bucket(v)
		if b != current {
			current, count = b, 0
		}
		count++
		if count > bestCount {
			best, bestCount = current, count
		}
	}
	return best
}
