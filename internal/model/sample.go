package model

import "time"

// Sample is one speed estimate produced from a pair of frames.
type Sample struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	Camera         string    `json:"camera"`
	SpeedKmps      float64   `json:"speed_kmps"`
	DisplacementPx float64   `json:"displacement_px"`
	MedianPx       float64   `json:"median_px"`
	ModePx         float64   `json:"mode_px"`
	Matches        int       `json:"matches"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CapturedAt     time.Time `json:"captured_at"`
}

// SampleFilter contains filtering options for querying samples.
type SampleFilter struct {
	RunID  string
	Camera string
	After  time.Time
	Before time.Time
	Limit  int
	Offset int
}

// SampleStats aggregates stored samples.
type SampleStats struct {
	Count     int            `json:"count"`
	Mean      float64        `json:"mean_kmps"`
	StdDev    float64        `json:"stddev_kmps"`
	Min       float64        `json:"min_kmps"`
	Max       float64        `json:"max_kmps"`
	PerCamera map[string]int `json:"per_camera"`
}
