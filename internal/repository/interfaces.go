package repository

import (
	"orbitspeed/internal/model"
)

// SampleRepository defines the interface for speed sample operations.
type SampleRepository interface {
	// Create operations
	Insert(s *model.Sample) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Sample, error)
	GetAll(filter *model.SampleFilter) ([]model.Sample, error)
	GetTotalCount(filter *model.SampleFilter) (int, error)
	GetStats(filter *model.SampleFilter) (*model.SampleStats, error)
	GetRuns() ([]string, error)

	// Delete operations
	DeleteRun(runID string) error
	DeleteAll() error
}

// FrameRepository defines the interface for stored frame operations.
type FrameRepository interface {
	// Create operations
	Insert(f *model.Frame) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Frame, error)
	GetAll(camera string, limit, offset int) ([]model.Frame, error)
	GetTotalCount(camera string) (int, error)

	// Delete operations
	DeleteByFilename(filename string) error
}
