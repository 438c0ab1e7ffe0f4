// Command estimate replays a directory of recorded photos through the speed
// pipeline and writes the average ground speed.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"orbitspeed/internal/capture"
	"orbitspeed/internal/config"
	"orbitspeed/internal/estimation"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository/sqlite"
	"orbitspeed/internal/series"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("estimate: %v", err)
	}
}

func run() error {
	cfg := config.Load()

	dir := flag.String("dir", ".", "Directory containing the photo sequence")
	gsd := flag.Float64("gsd", cfg.GroundSampleDistance, "Ground sample distance in cm per pixel")
	matcher := flag.String("matcher", cfg.Matcher, "Neighbour search: flann, bruteforce or exact")
	minMatches := flag.Int("min-matches", cfg.MinMatches, "Minimum correspondences per pair")
	ratio := flag.Float64("ratio", cfg.RatioThreshold, "Lowe ratio threshold")
	homography := flag.Bool("homography", cfg.CheckHomography, "Compute the RANSAC homography diagnostic")
	workers := flag.Int("workers", cfg.ProcessingWorkers, "Pairs estimated in parallel")
	resize := flag.String("resize", "", "Resize frames before detection, WIDTHxHEIGHT (e.g. 4056x3040)")
	result := flag.String("result", cfg.ResultPath, "Result file receiving the average speed")
	plotPath := flag.String("plot", "", "Save a PNG chart of the samples to this path")
	dbPath := flag.String("db", "", "Store samples in this SQLite database")
	flag.Parse()

	appLogger, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return err
	}
	defer appLogger.Close()

	kind, err := estimation.ParseMatcherKind(*matcher)
	if err != nil {
		return err
	}
	size, err := parseSize(*resize)
	if err != nil {
		return err
	}
	opts := estimation.Options{
		GroundSampleDistance: *gsd,
		MinMatches:           *minMatches,
		RatioThreshold:       *ratio,
		ModeResolution:       cfg.ModeResolution,
		Matcher:              kind,
		CheckHomography:      *homography,
	}
	estimator, err := estimation.NewEstimator(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := capture.DirectorySource{Dir: *dir, Size: size}
	report, err := capture.ProcessPairs(ctx, src, estimator, *workers, appLogger)
	if err != nil {
		return err
	}

	var running float64
	n := 0
	for _, pair := range report.Pairs {
		if pair.Err != nil {
			fmt.Printf("%s -> %s: skipped (%v)\n", filepath.Base(pair.First), filepath.Base(pair.Second), pair.Err)
			continue
		}
		n++
		running += pair.Result.SpeedKmps
		fmt.Printf("%s -> %s: %s km/s (%d matches, %.0fs), running mean %s\n",
			filepath.Base(pair.First), filepath.Base(pair.Second),
			series.FormatEstimate(pair.Result.SpeedKmps), pair.Result.Matches, pair.Result.ElapsedSeconds,
			series.FormatEstimate(running/float64(n)))
	}

	if report.Series.Len() == 0 {
		return fmt.Errorf("no pair of %d produced a speed sample", len(report.Pairs))
	}
	summary := report.Series.Summary()
	fmt.Printf("Average speed: %s km/s over %d samples (std dev %.4f, %d skipped)\n",
		series.FormatEstimate(summary.Mean), summary.Count, summary.StdDev, report.Skipped())

	if err := report.Series.WriteResult(*result); err != nil {
		return err
	}
	appLogger.Info("Result %s km/s written to %s", series.FormatEstimate(summary.Mean), *result)

	if *plotPath != "" {
		if err := report.Series.SavePlot(*plotPath, "Ground speed - "+filepath.Base(*dir)); err != nil {
			return err
		}
	}

	if *dbPath != "" {
		if err := storeReport(*dbPath, *dir, report); err != nil {
			return err
		}
	}
	return nil
}

// storeReport records the successful pairs as one run.
func storeReport(dbPath, dir string, report *capture.Report) error {
	db, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := sqlite.NewSampleRepository(db)
	runID := uuid.NewString()
	points := report.Series.Points()
	i := 0
	for _, pair := range report.Pairs {
		if pair.Err != nil {
			continue
		}
		_, err := repo.Insert(&model.Sample{
			RunID:          runID,
			Camera:         filepath.Base(dir),
			SpeedKmps:      pair.Result.SpeedKmps,
			DisplacementPx: pair.Result.Displacement.Pixels,
			MedianPx:       pair.Result.Displacement.Median,
			ModePx:         pair.Result.Displacement.Mode,
			Matches:        pair.Result.Matches,
			ElapsedSeconds: pair.Result.ElapsedSeconds,
			CapturedAt:     points[i].At,
		})
		if err != nil {
			return err
		}
		i++
	}
	fmt.Printf("Stored %d samples as run %s in %s\n", i, runID, dbPath)
	return nil
}

func parseSize(v string) (image.Point, error) {
	if v == "" {
		return image.Point{}, nil
	}
	var w, h int
	if _, err := fmt.Sscanf(v, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return image.Point{}, fmt.Errorf("invalid -resize %q, want WIDTHxHEIGHT", v)
	}
	return image.Pt(w, h), nil
}
