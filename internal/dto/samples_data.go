// SamplesData is a paginated response payload for stored speed samples.
package dto

import "orbitspeed/internal/model"

type SamplesData struct {
	Samples     []model.Sample `json:"samples"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// FramesData is a paginated response payload for stored frames.
type FramesData struct {
	Frames      []model.Frame `json:"frames"`
	ImagesDir   string        `json:"imagesDir"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
