package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"orbitspeed/internal/config"
	"orbitspeed/internal/estimation"
	"orbitspeed/internal/handlers"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/repository/sqlite"
	"orbitspeed/internal/routes"
	"orbitspeed/internal/services"
	"orbitspeed/internal/services/storage"
	"orbitspeed/internal/services/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager
	repos         routes.Repositories
}

func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	opts, err := cfg.EstimationOptions()
	if err != nil {
		return nil, err
	}
	estimator, err := estimation.NewEstimator(opts)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	repos := routes.Repositories{
		Samples: sqlite.NewSampleRepository(db),
		Frames:  sqlite.NewFrameRepository(db),
	}

	buffer := storage.NewBufferService(cfg, log, repos.Frames)
	hub := websocket.NewHubService(log)
	mng := services.NewManager(estimator, buffer, hub, repos.Samples, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
		repos:         repos,
	}, nil
}

// Run serves until ctx is cancelled or RUN_DURATION elapses, then shuts
// down and writes the run result.
func (a *App) Run(ctx context.Context) error {
	if a.config.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RunDuration)
		defer cancel()
	}

	// Start background services
	go a.bufferService.Run(ctx)
	go a.hubService.Run(ctx)
	go func() {
		if err := handlers.UDPCameraHandler(ctx, a.manager, a.logger, a.config); err != nil {
			a.logger.Error("UDP camera handler: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.repos, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🛰️  Orbit speed station\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 UDP cameras: :%d\n", a.config.CamerasPort)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)
	fmt.Printf("🧮 Matcher: %s, GSD %.0f cm/px\n", a.manager.Estimator().Options().Matcher, a.config.GroundSampleDistance)
	if a.config.RunDuration > 0 {
		fmt.Printf("⏱️  Run duration: %s\n", a.config.RunDuration)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			a.logger.Info("Run duration of %s reached", a.config.RunDuration)
		}
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	return errors.Join(runErr, a.shutdown(server))
}

func (a *App) shutdown(server *http.Server) error {
	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if err := a.manager.Stop(); err != nil {
		errs = append(errs, err)
	}
	a.bufferService.FlushFrames()

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
