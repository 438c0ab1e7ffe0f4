package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"orbitspeed/internal/config"
	"orbitspeed/internal/dto"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository"
)

const filenameLayout = "2006-01-02_15-04-05.000"

// BufferService buffers frames in memory and periodically flushes them to disk.
type BufferService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	frames        []dto.BufferedFrame
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	frameRepo     repository.FrameRepository
}

// NewBufferService creates a new BufferService. frameRepo may be nil.
func NewBufferService(config *config.Config, logger *logger.Logger, frameRepo repository.FrameRepository) *BufferService {
	interval := time.Duration(config.ImageBufferFlushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BufferService{
		imagesDir:     config.ImageDirectory,
		limit:         config.ImageBufferLimit,
		flushInterval: interval,
		frames:        make([]dto.BufferedFrame, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		frameRepo:     frameRepo,
	}
}

// Run flushes on a ticker until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushFrames()
			return
		case <-ticker.C:
			s.FlushFrames()
		}
	}
}

// AddFrame appends an encoded frame to the buffer. Frames beyond the
// per-camera limit are dropped until the next flush.
func (s *BufferService) AddFrame(data []byte, camera string, capturedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[camera] >= s.limit {
		return false
	}

	s.frames = append(s.frames, dto.BufferedFrame{
		Timestamp: capturedAt,
		Camera:    camera,
		Data:      data,
	})
	s.bufferCount[camera]++
	return true
}

// Pending returns the number of buffered frames.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// FlushFrames writes buffered frames to disk and resets the buffer and per-camera counters.
func (s *BufferService) FlushFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, frame := range s.frames {
		filename := fmt.Sprintf("%s_%s.jpg", frame.Camera, frame.Timestamp.UTC().Format(filenameLayout))
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, frame.Data, 0644); err != nil {
			s.logger.Error("Error saving frame %s: %v", filename, err)
			continue
		}

		if s.frameRepo != nil {
			_, err := s.frameRepo.Insert(&model.Frame{
				Filename:  filename,
				Camera:    frame.Camera,
				Timestamp: frame.Timestamp,
				FilePath:  fullpath,
				FileSize:  int64(len(frame.Data)),
			})
			if err != nil {
				s.logger.Error("Error saving frame to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d frames to disk", savedCount)
	s.frames = s.frames[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

// ImagesDir returns the directory frames are flushed to.
func (s *BufferService) ImagesDir() string {
	return s.imagesDir
}
