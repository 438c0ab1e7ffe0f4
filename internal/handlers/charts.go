package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository"
	"orbitspeed/internal/series"
)

// SpeedChartHandler renders the speed samples of a run (?run=, default the
// latest) and their running mean as an HTML line chart.
func SpeedChartHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := sampleFilter(r)
		if filter.RunID == "" {
			runs, err := repo.GetRuns()
			if err != nil {
				logger.Error("Error listing runs: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if len(runs) > 0 {
				filter.RunID = runs[0]
			}
		}

		samples, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying samples: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		if err := renderSpeedChart(&buf, filter.RunID, samples); err != nil {
			logger.Error("Failed to render chart: %v", err)
			http.Error(w, "failed to render chart", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}

func renderSpeedChart(buf *bytes.Buffer, runID string, samples []model.Sample) error {
	x := make([]string, 0, len(samples))
	speeds := make([]opts.LineData, 0, len(samples))
	running := make([]opts.LineData, 0, len(samples))

	var total float64
	for i, s := range samples {
		total += s.SpeedKmps
		x = append(x, s.CapturedAt.UTC().Format("15:04:05"))
		speeds = append(speeds, opts.LineData{Value: s.SpeedKmps})
		running = append(running, opts.LineData{Value: total / float64(i+1)})
	}

	subtitle := "no samples yet"
	if len(samples) > 0 {
		subtitle = fmt.Sprintf("run=%s samples=%d mean=%s km/s", runID, len(samples), series.FormatEstimate(total/float64(len(samples))))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Ground speed", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Ground speed (km/s)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/s"}),
	)
	line.SetXAxis(x).
		AddSeries("sample", speeds).
		AddSeries("running mean", running)

	return line.Render(buf)
}
