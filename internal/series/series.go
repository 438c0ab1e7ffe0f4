// Package series accumulates speed samples and reports the running estimate.
package series

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Point is one speed sample in the series.
type Point struct {
	SpeedKmps float64   `json:"speedKmps"`
	At        time.Time `json:"at"`
}

// Summary describes the series so far.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Series is a goroutine-safe, append-only list of speed samples.
type Series struct {
	mu     sync.RWMutex
	points []Point
}

func New() *Series {
	return &Series{}
}

// Add appends a sample. Non-finite values are rejected.
func (s *Series) Add(speedKmps float64, at time.Time) error {
	if math.IsNaN(speedKmps) || math.IsInf(speedKmps, 0) {
		return fmt.Errorf("refusing non-finite speed sample %v", speedKmps)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, Point{SpeedKmps: speedKmps, At: at})
	return nil
}

func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Points returns a copy of the samples in insertion order.
func (s *Series) Points() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Mean is the running estimate. ok is false for an empty series.
func (s *Series) Mean() (mean float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return 0, false
	}
	return stat.Mean(s.speeds(), nil), true
}

// Summary returns count, mean, sample standard deviation and range.
func (s *Series) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.speeds())
}

func (s *Series) speeds() []float64 {
	speeds := make([]float64, len(s.points))
	for i, p := range s.points {
		speeds[i] = p.SpeedKmps
	}
	return speeds
}

// Summarize computes a Summary of arbitrary speeds.
func Summarize(speeds []float64) Summary {
	sum := Summary{Count: len(speeds)}
	if len(speeds) == 0 {
		return sum
	}
	sum.Mean = stat.Mean(speeds, nil)
	if len(speeds) > 1 {
		sum.StdDev = stat.StdDev(speeds, nil)
	}
	sum.Min, sum.Max = speeds[0], speeds[0]
	for _, v := range speeds[1:] {
		sum.Min = math.Min(sum.Min, v)
		sum.Max = math.Max(sum.Max, v)
	}
	return sum
}

// FormatEstimate renders a speed the way the result file stores it.
func FormatEstimate(speedKmps float64) string {
	return fmt.Sprintf("%.4f", speedKmps)
}

// WriteResult writes the series mean to path. An empty series writes nothing
// and returns an error.
func (s *Series) WriteResult(path string) error {
	mean, ok := s.Mean()
	if !ok {
		return fmt.Errorf("no speed samples to write to %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create result directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(FormatEstimate(mean)), 0644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
