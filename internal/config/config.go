package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"orbitspeed/internal/estimation"
)

type Config struct {
	Port        int
	CamerasPort int
	CameraNames map[string]string // camera IP -> name for UDP frames
	IngestToken string            // required on /camera and /upload when set

	ImageDirectory           string
	DatabasePath             string
	LogDirectory             string
	ResultPath               string
	ImageBufferLimit         int
	ImageBufferFlushInterval int // seconds

	ProcessingWorkers int
	CaptureInterval   time.Duration // minimum spacing between frames of one camera
	RunDuration       time.Duration // zero runs until interrupted

	GroundSampleDistance float64 // cm per pixel
	MinMatches           int
	RatioThreshold       float64
	ModeResolution       float64
	Matcher              string
	CheckHomography      bool
}

// Load reads a .env file when present and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		CamerasPort: getEnvAsInt("CAMERAS_PORT", 9000),
		CameraNames: parseCameraNames(getEnv("CAMERA_NAMES", "")),
		IngestToken: getEnv("INGEST_TOKEN", ""),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "samples.db")),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ResultPath:               getEnv("RESULT_PATH", filepath.Join(".", "result.txt")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 42),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),

		ProcessingWorkers: getEnvAsInt("PROCESSING_WORKERS", 2),
		CaptureInterval:   getEnvAsDuration("CAPTURE_INTERVAL", 5*time.Second),
		RunDuration:       getEnvAsDuration("RUN_DURATION", 0),

		GroundSampleDistance: getEnvAsFloat("GSD_CM_PER_PIXEL", estimation.DefaultGroundSampleDistance),
		MinMatches:           getEnvAsInt("MIN_MATCHES", estimation.DefaultMinMatches),
		RatioThreshold:       getEnvAsFloat("RATIO_THRESHOLD", estimation.DefaultRatioThreshold),
		ModeResolution:       getEnvAsFloat("MODE_RESOLUTION", estimation.DefaultModeResolution),
		Matcher:              getEnv("MATCHER", string(estimation.MatcherFLANN)),
		CheckHomography:      getEnvAsBool("CHECK_HOMOGRAPHY", false),
	}
}

// EstimationOptions builds the pipeline options from the configuration.
func (c *Config) EstimationOptions() (estimation.Options, error) {
	matcher, err := estimation.ParseMatcherKind(c.Matcher)
	if err != nil {
		return estimation.Options{}, err
	}
	opts := estimation.Options{
		GroundSampleDistance: c.GroundSampleDistance,
		MinMatches:           c.MinMatches,
		RatioThreshold:       c.RatioThreshold,
		ModeResolution:       c.ModeResolution,
		Matcher:              matcher,
		CheckHomography:      c.CheckHomography,
	}
	return opts, opts.Validate()
}

// parseCameraNames reads "10.0.0.5=nadir,10.0.0.6=aft".
func parseCameraNames(value string) map[string]string {
	names := make(map[string]string)
	for _, entry := range strings.Split(value, ",") {
		ip, name, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || ip == "" || name == "" {
			continue
		}
		names[strings.TrimSpace(ip)] = strings.TrimSpace(name)
	}
	return names
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "9m") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
