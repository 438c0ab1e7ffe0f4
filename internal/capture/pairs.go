package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"orbitspeed/internal/estimation"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/series"
)

// ErrTooFewPhotos is returned when a sequence holds fewer than two photos.
var ErrTooFewPhotos = errors.New("need at least two photos")

// PairOutcome is the estimate, or the transient failure, of one consecutive pair.
type PairOutcome struct {
	Index  int
	First  string
	Second string
	Result estimation.Result
	Err    error
}

// Report collects the outcomes of a batch run in sequence order.
type Report struct {
	Pairs  []PairOutcome
	Series *series.Series
}

// Skipped counts pairs that produced no sample.
func (r *Report) Skipped() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// ProcessPairs estimates every consecutive pair of photos with up to
// workers pairs in flight. Transient failures are recorded per pair; any
// other failure cancels the run.
func ProcessPairs(ctx context.Context, src DirectorySource, estimator *estimation.Estimator, workers int, log *logger.Logger) (*Report, error) {
	photos, err := src.Photos()
	if err != nil {
		return nil, err
	}
	if len(photos) < 2 {
		return nil, fmt.Errorf("%w in %s, found %d", ErrTooFewPhotos, src.Dir, len(photos))
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]PairOutcome, len(photos)-1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range outcomes {
		first, second := photos[i], photos[i+1]
		outcomes[i] = PairOutcome{Index: i, First: first.Path, Second: second.Path}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := estimatePhotos(src, estimator, first, second)
			if err != nil {
				if !estimation.IsTransient(err) {
					return fmt.Errorf("pair %s/%s: %w", filepath.Base(first.Path), filepath.Base(second.Path), err)
				}
				log.Warning("Pair %d (%s, %s) skipped: %v", i, filepath.Base(first.Path), filepath.Base(second.Path), err)
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Result = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Pairs: outcomes, Series: series.New()}
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		if err := report.Series.Add(o.Result.SpeedKmps, photos[o.Index+1].CapturedAt); err != nil {
			return nil, err
		}
	}
	log.Info("Estimated %d of %d pairs from %s", report.Series.Len(), len(outcomes), src.Dir)
	return report, nil
}

func estimatePhotos(src DirectorySource, estimator *estimation.Estimator, first, second Photo) (estimation.Result, error) {
	older, err := src.Load(first)
	if err != nil {
		return estimation.Result{}, err
	}
	defer older.Image.Close()

	newer, err := src.Load(second)
	if err != nil {
		return estimation.Result{}, err
	}
	defer newer.Image.Close()

	return estimator.Estimate(older, newer)
}
