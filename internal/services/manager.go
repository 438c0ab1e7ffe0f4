package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"orbitspeed/internal/config"
	"orbitspeed/internal/dto"
	"orbitspeed/internal/estimation"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository"
	"orbitspeed/internal/series"
	"orbitspeed/internal/services/storage"
	"orbitspeed/internal/services/websocket"
	"orbitspeed/internal/timeline"
)

const processingQueueSize = 100

var (
	// ErrFrameThrottled is returned for frames arriving faster than the capture interval.
	ErrFrameThrottled = errors.New("frame arrived before capture interval elapsed")
	// ErrManagerStopped is returned for frames handed in after Stop.
	ErrManagerStopped = errors.New("manager stopped")
)

// PairTask is one pair of consecutive frames from a camera waiting for
// estimation. The task owns its images.
type PairTask struct {
	Camera string
	Older  timeline.Frame
	Newer  timeline.Frame
}

func (t PairTask) close() {
	t.Older.Image.Close()
	t.Newer.Image.Close()
}

type cameraState struct {
	timeline *timeline.Timeline
	limiter  *rate.Limiter
}

// Manager turns incoming camera frames into speed samples.
type Manager struct {
	estimator        *estimation.Estimator
	bufferService    *storage.BufferService
	websocketService *websocket.HubService
	sampleRepo       repository.SampleRepository
	series           *series.Series
	logger           *logger.Logger
	clock            timeline.Clock

	runID           string
	resultPath      string
	captureInterval time.Duration
	numWorkers      int
	processingQueue chan PairTask

	camerasMu sync.Mutex
	cameras   map[string]*cameraState

	stateMu sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used to timestamp frames.
func WithClock(clock timeline.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager starts the processing workers. sampleRepo and bufferService may be nil.
func NewManager(estimator *estimation.Estimator, bufferService *storage.BufferService, websocketService *websocket.HubService, sampleRepo repository.SampleRepository, config *config.Config, logger *logger.Logger, opts ...Option) *Manager {
	manager := &Manager{
		estimator:        estimator,
		bufferService:    bufferService,
		websocketService: websocketService,
		sampleRepo:       sampleRepo,
		series:           series.New(),
		logger:           logger,
		clock:            timeline.RealClock{},
		runID:            uuid.NewString(),
		resultPath:       config.ResultPath,
		captureInterval:  config.CaptureInterval,
		numWorkers:       config.ProcessingWorkers,
		processingQueue:  make(chan PairTask, processingQueueSize),
		cameras:          make(map[string]*cameraState),
	}
	for _, opt := range opts {
		opt(manager)
	}
	if manager.numWorkers < 1 {
		manager.numWorkers = 1
	}

	for i := 0; i < manager.numWorkers; i++ {
		manager.wg.Add(1)
		go manager.processingWorker(i)
	}

	manager.logger.Info("🛰️  Manager started - run %s, capture interval %s, %d worker(s)", manager.runID, manager.captureInterval, manager.numWorkers)
	return manager
}

func (m *Manager) camera(name string) *cameraState {
	m.camerasMu.Lock()
	defer m.camerasMu.Unlock()

	cs, ok := m.cameras[name]
	if !ok {
		limit := rate.Inf
		if m.captureInterval > 0 {
			limit = rate.Every(m.captureInterval)
		}
		cs = &cameraState{
			timeline: timeline.New(m.clock),
			limiter:  rate.NewLimiter(limit, 1),
		}
		m.cameras[name] = cs
	}
	return cs
}

// HandleCameraImage accepts one encoded frame from a camera. Once the
// camera has two frames, the pair is queued for estimation.
func (m *Manager) HandleCameraImage(image []byte, camera string) error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.stopped {
		return ErrManagerStopped
	}

	m.SendToViewers(image, camera)

	now := m.clock.Now()
	cs := m.camera(camera)
	if !cs.limiter.AllowN(now, 1) {
		return ErrFrameThrottled
	}

	mat, err := estimation.Decode(image)
	if err != nil {
		mat.Close()
		return fmt.Errorf("camera %s: %w", camera, err)
	}

	if m.bufferService != nil {
		m.bufferService.AddFrame(image, camera, now)
	}

	m.camerasMu.Lock()
	if evicted, ok := cs.timeline.Push(timeline.Frame{Image: mat, Timestamp: now}); ok {
		evicted.Image.Close()
	}
	older, newer, full := cs.timeline.Pair()
	var task PairTask
	if full {
		task = PairTask{
			Camera: camera,
			Older:  timeline.Frame{Image: older.Image.Clone(), Timestamp: older.Timestamp},
			Newer:  timeline.Frame{Image: newer.Image.Clone(), Timestamp: newer.Timestamp},
		}
	}
	m.camerasMu.Unlock()

	if !full {
		return nil
	}

	select {
	case m.processingQueue <- task:
		m.logger.Info("📷 Camera %s: pair queued for estimation", camera)
	default:
		task.close()
		m.logger.Warning("⚠️  Processing queue full for camera %s - skipping pair", camera)
	}
	return nil
}

// SendToViewers pushes a frame preview to the dashboard.
func (m *Manager) SendToViewers(image []byte, camera string) {
	if m.websocketService == nil {
		return
	}
	msg, err := json.Marshal(dto.LiveFrame{
		Type:   "frame",
		Camera: camera,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return
	}
	m.websocketService.Broadcast(msg)
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetBufferService() *storage.BufferService {
	return m.bufferService
}

func (m *Manager) Estimator() *estimation.Estimator {
	return m.estimator
}

func (m *Manager) Series() *series.Series {
	return m.series
}

func (m *Manager) RunID() string {
	return m.runID
}

// processingWorker estimates queued pairs until the queue is closed.
func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("🔧 Processing worker %d started", workerID)

	for task := range m.processingQueue {
		m.processPair(task, workerID)
	}

	m.logger.Info("🔧 Processing worker %d stopped", workerID)
}

func (m *Manager) processPair(task PairTask, workerID int) {
	defer task.close()

	result, err := m.estimator.Estimate(task.Older, task.Newer)
	if err != nil {
		if estimation.IsTransient(err) {
			m.logger.Warning("Worker %d: camera %s pair skipped: %v", workerID, task.Camera, err)
		} else {
			m.logger.Error("Worker %d: camera %s estimation failed: %v", workerID, task.Camera, err)
		}
		return
	}

	if err := m.series.Add(result.SpeedKmps, task.Newer.Timestamp); err != nil {
		m.logger.Error("Worker %d: %v", workerID, err)
		return
	}
	m.logger.Info("🚀 Camera %s: %s km/s from %d matches over %.0fs", task.Camera, series.FormatEstimate(result.SpeedKmps), result.Matches, result.ElapsedSeconds)

	if m.sampleRepo != nil {
		_, err := m.sampleRepo.Insert(&model.Sample{
			RunID:          m.runID,
			Camera:         task.Camera,
			SpeedKmps:      result.SpeedKmps,
			DisplacementPx: result.Displacement.Pixels,
			MedianPx:       result.Displacement.Median,
			ModePx:         result.Displacement.Mode,
			Matches:        result.Matches,
			ElapsedSeconds: result.ElapsedSeconds,
			CapturedAt:     task.Newer.Timestamp,
		})
		if err != nil {
			m.logger.Error("Error saving sample: %v", err)
		}
	}

	m.broadcastSample(task, result)
}

func (m *Manager) broadcastSample(task PairTask, result estimation.Result) {
	if m.websocketService == nil {
		return
	}
	mean, _ := m.series.Mean()
	msg, err := json.Marshal(dto.LiveSample{
		Type:           "sample",
		Camera:         task.Camera,
		SpeedKmps:      result.SpeedKmps,
		MeanKmps:       mean,
		Samples:        m.series.Len(),
		Matches:        result.Matches,
		DisplacementPx: result.Displacement.Pixels,
		CapturedAt:     task.Newer.Timestamp,
	})
	if err != nil {
		m.logger.Error("Error encoding sample: %v", err)
		return
	}
	m.websocketService.Broadcast(msg)
}

// Stop drains the queue, stops the workers, releases buffered frames and
// writes the run average to the result file.
func (m *Manager) Stop() error {
	m.stateMu.Lock()
	if m.stopped {
		m.stateMu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.processingQueue)
	m.stateMu.Unlock()

	m.wg.Wait()
	m.logger.Info("🛑 All processing workers stopped")

	m.camerasMu.Lock()
	for _, cs := range m.cameras {
		cs.timeline.Close()
	}
	m.camerasMu.Unlock()

	if m.series.Len() == 0 {
		m.logger.Warning("No speed samples collected in run %s - result file not written", m.runID)
		return nil
	}
	if err := m.series.WriteResult(m.resultPath); err != nil {
		m.logger.Error("Error writing result: %v", err)
		return err
	}
	mean, _ := m.series.Mean()
	m.logger.Info("📝 Run %s: %s km/s from %d samples written to %s", m.runID, series.FormatEstimate(mean), m.series.Len(), m.resultPath)
	return nil
}
