package routes

import (
	"net/http"

	"orbitspeed/internal/config"
	"orbitspeed/internal/handlers"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/middleware"
	"orbitspeed/internal/repository"
	"orbitspeed/internal/services"
)

// Repositories groups the stores the API reads from.
type Repositories struct {
	Samples repository.SampleRepository
	Frames  repository.FrameRepository
}

// SetupRoutes registers camera ingestion, dashboard API and log endpoints
// and wraps the mux with the ingest and logging middleware.
func SetupRoutes(manager *services.Manager, repos Repositories, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Camera ingestion
	mux.HandleFunc("/camera", handlers.CameraWebsocketHandler(manager, logger))
	mux.HandleFunc("/upload", handlers.UploadHandler(manager, logger))

	// API endpoints
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(manager.GetWebsocketService(), logger))
	mux.HandleFunc("/api/estimate", handlers.EstimateHandler(manager.Estimator(), logger))
	mux.HandleFunc("GET /api/samples", handlers.GetSamplesHandler(repos.Samples, logger))
	mux.HandleFunc("GET /api/samples/stats", handlers.GetSampleStatsHandler(repos.Samples, logger))
	mux.HandleFunc("GET /api/samples/runs", handlers.GetRunsHandler(repos.Samples, logger))
	mux.HandleFunc("/api/samples/clear", handlers.ClearSamplesHandler(repos.Samples, logger))
	mux.HandleFunc("GET /api/frames", handlers.GetFramesHandler(repos.Frames, cfg.ImageDirectory, logger))
	mux.HandleFunc("GET /api/frames/view", handlers.ViewFrameHandler(cfg.ImageDirectory))
	mux.HandleFunc("GET /charts/speed", handlers.SpeedChartHandler(repos.Samples, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handlers.ShowLogsHandler(logger))
	mux.HandleFunc("/logs/{level}/clear", handlers.ClearLogsHandler(logger))

	// Apply middleware
	return middleware.LoggingMiddleware(logger, middleware.IngestMiddleware(cfg.IngestToken, mux))
}
