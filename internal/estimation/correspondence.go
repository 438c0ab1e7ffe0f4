package estimation

import (
	"fmt"
	"math"

	"github.com/hupe1980/vecgo/distance"
	"gocv.io/x/gocv"
)

// Match links keypoint QueryIndex of image A to keypoint TrainIndex of image B.
// Distance is the L2 distance between their descriptors.
type Match struct {
	QueryIndex int
	TrainIndex int
	Distance   float64
}

// neighbourSearch returns, for every query descriptor, up to two nearest train
// descriptors ordered by ascending distance.
type neighbourSearch interface {
	knn2(query, train *Features) ([][]Match, error)
}

func newNeighbourSearch(kind MatcherKind) neighbourSearch {
	switch kind {
	case MatcherExact:
		return exactSearch{}
	case MatcherBruteForce:
		return bruteForceSearch{}
	default:
		return flannSearch{}
	}
}

// MatchFeatures finds two nearest neighbours in b for every keypoint of a and
// keeps only matches passing the ratio test. Empty input, or a b with a
// single keypoint, yields no matches.
func MatchFeatures(a, b *Features, kind MatcherKind, ratio float64) ([]Match, error) {
	// The ratio test needs a second neighbour, and FLANN rejects k above the
	// index size.
	if a.Len() == 0 || b.Len() < 2 {
		return nil, nil
	}
	candidates, err := newNeighbourSearch(kind).knn2(a, b)
	if err != nil {
		return nil, err
	}
	return RatioTest(candidates, ratio), nil
}

// RatioTest keeps the nearest candidate of each query when it is strictly
// closer than ratio times the second nearest. Queries with fewer than two
// candidates are dropped.
func RatioTest(candidates [][]Match, ratio float64) []Match {
	good := make([]Match, 0, len(candidates))
	for _, pair := range candidates {
		if len(pair) < 2 {
			continue
		}
		nearest, second := pair[0], pair[1]
		if nearest.Distance < ratio*second.Distance {
			good = append(good, nearest)
		}
	}
	return good
}

type exactSearch struct{}

func (exactSearch) knn2(query, train *Features) ([][]Match, error) {
	dim := len(query.Keypoints[0].Descriptor)
	if got := len(train.Keypoints[0].Descriptor); got != dim {
		return nil, fmt.Errorf("descriptor dimension mismatch: %d vs %d", dim, got)
	}

	out := make([][]Match, len(query.Keypoints))
	for qi, q := range query.Keypoints {
		best := Match{QueryIndex: qi, TrainIndex: -1, Distance: math.Inf(1)}
		second := best
		for ti, t := range train.Keypoints {
			d := float64(distance.SquaredL2(q.Descriptor, t.Descriptor))
			switch {
			case d < best.Distance:
				second = best
				best = Match{QueryIndex: qi, TrainIndex: ti, Distance: d}
			case d < second.Distance:
				second = Match{QueryIndex: qi, TrainIndex: ti, Distance: d}
			}
		}

		neighbours := make([]Match, 0, 2)
		for _, m := range []Match{best, second} {
			if m.TrainIndex < 0 {
				continue
			}
			m.Distance = math.Sqrt(m.Distance)
			neighbours = append(neighbours, m)
		}
		out[qi] = neighbours
	}
	return out, nil
}

type flannSearch struct{}

func (flannSearch) knn2(query, train *Features) ([][]Match, error) {
	matcher := gocv.NewFlannBasedMatcher()
	defer matcher.Close()
	return fromDMatches(matcher.KnnMatch(query.descriptors, train.descriptors, 2)), nil
}

type bruteForceSearch struct{}

func (bruteForceSearch) knn2(query, train *Features) ([][]Match, error) {
	matcher := gocv.NewBFMatcherWithParams(gocv.NormL2, false)
	defer matcher.Close()
	return fromDMatches(matcher.KnnMatch(query.descriptors, train.descriptors, 2)), nil
}

func fromDMatches(knn [][]gocv.DMatch) [][]Match {
	out := make([][]Match, len(knn))
	for i, row := range knn {
		out[i] = make([]Match, len(row))
		for j, m := range row {
			out[i][j] = Match{QueryIndex: m.QueryIdx, TrainIndex: m.TrainIdx, Distance: m.Distance}
		}
	}
	return out
}
