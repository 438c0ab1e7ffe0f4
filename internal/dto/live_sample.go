package dto

import (
	"encoding/json"
	"time"
)

// LiveSample is pushed to dashboard viewers after each successful estimate.
type LiveSample struct {
	Type           string    `json:"type"`
	Camera         string    `json:"camera"`
	SpeedKmps      float64   `json:"speedKmps"`
	MeanKmps       float64   `json:"meanKmps"`
	Samples        int       `json:"samples"`
	Matches        int       `json:"matches"`
	DisplacementPx float64   `json:"displacementPx"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// MarshalJSON formats the capture time the way the dashboard shows it.
func (s LiveSample) MarshalJSON() ([]byte, error) {
	type Alias LiveSample
	return json.Marshal(&struct {
		CapturedAt string `json:"capturedAt"`
		Alias
	}{
		CapturedAt: s.CapturedAt.UTC().Format("15:04:05"),
		Alias:      (Alias)(s),
	})
}

// LiveFrame carries a base64 JPEG preview for one camera.
type LiveFrame struct {
	Type   string `json:"type"`
	Camera string `json:"camera"`
	Image  string `json:"image"`
}

// EstimateResponse is returned by the ad-hoc pair estimation endpoint.
type EstimateResponse struct {
	SpeedKmps      float64  `json:"speedKmps"`
	Formatted      string   `json:"formatted"`
	DistanceKm     float64  `json:"distanceKm"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	DisplacementPx float64  `json:"displacementPx"`
	MedianPx       float64  `json:"medianPx"`
	ModePx         float64  `json:"modePx"`
	Matches        int      `json:"matches"`
	KeypointsA     int      `json:"keypointsA"`
	KeypointsB     int      `json:"keypointsB"`
	InlierRatio    *float64 `json:"inlierRatio,omitempty"`
}

// ErrorResponse is the JSON body of failed API calls.
type ErrorResponse struct {
	Error     string `json:"error"`
	Transient bool   `json:"transient,omitempty"`
}
