package series

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SavePlot renders the samples and their running mean as a PNG (or any
// format gonum/plot infers from the extension of path).
func (s *Series) SavePlot(path, title string) error {
	points := s.Points()
	if len(points) == 0 {
		return fmt.Errorf("no speed samples to plot")
	}

	samples := make(plotter.XYs, len(points))
	running := make(plotter.XYs, len(points))
	var total float64
	for i, p := range points {
		total += p.SpeedKmps
		samples[i] = plotter.XY{X: float64(i + 1), Y: p.SpeedKmps}
		running[i] = plotter.XY{X: float64(i + 1), Y: total / float64(i+1)}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Pair"
	p.Y.Label.Text = "Speed (km/s)"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(samples)
	if err != nil {
		return fmt.Errorf("failed to build sample scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)
	p.Legend.Add("sample", scatter)

	line, err := plotter.NewLine(running)
	if err != nil {
		return fmt.Errorf("failed to build running mean line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("running mean", line)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
