package sqlite

import (
	"database/sql"
	"fmt"

	"orbitspeed/internal/model"
	"orbitspeed/internal/series"
)

// SampleRepository implements repository.SampleRepository for SQLite.
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite sample repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

const sampleColumns = `id, run_id, camera, speed_kmps, displacement_px, median_px, mode_px, matches, elapsed_seconds, captured_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(row scanner) (model.Sample, error) {
	var s model.Sample
	err := row.Scan(&s.ID, &s.RunID, &s.Camera, &s.SpeedKmps, &s.DisplacementPx,
		&s.MedianPx, &s.ModePx, &s.Matches, &s.ElapsedSeconds, &s.CapturedAt)
	return s, err
}

// Insert adds a new sample record to the database.
func (r *SampleRepository) Insert(s *model.Sample) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO samples (run_id, camera, speed_kmps, displacement_px, median_px, mode_px, matches, elapsed_seconds, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Camera, s.SpeedKmps, s.DisplacementPx, s.MedianPx, s.ModePx, s.Matches, s.ElapsedSeconds, s.CapturedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a sample by its ID.
func (r *SampleRepository) GetByID(id int64) (*model.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	s, err := scanSample(r.db.Conn().QueryRow(`SELECT `+sampleColumns+` FROM samples WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return &s, nil
}

// where builds the WHERE clause shared by the filtered queries.
func where(filter *model.SampleFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	if filter.Camera != "" {
		query += " AND camera = ?"
		args = append(args, filter.Camera)
	}

	if !filter.After.IsZero() {
		query += " AND captured_at >= ?"
		args = append(args, filter.After.UTC())
	}

	if !filter.Before.IsZero() {
		query += " AND captured_at <= ?"
		args = append(args, filter.Before.UTC())
	}

	return query, args
}

// GetAll retrieves samples in capture order based on filter criteria.
func (r *SampleRepository) GetAll(filter *model.SampleFilter) ([]model.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	clause, args := where(filter)
	query := `SELECT ` + sampleColumns + ` FROM samples` + clause + ` ORDER BY captured_at ASC, id ASC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// GetTotalCount returns the total count of samples matching the filter.
func (r *SampleRepository) GetTotalCount(filter *model.SampleFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	clause, args := where(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM samples`+clause, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}

	return count, nil
}

// GetStats returns statistics about the samples matching the filter.
func (r *SampleRepository) GetStats(filter *model.SampleFilter) (*model.SampleStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	clause, args := where(filter)
	stats := &model.SampleStats{PerCamera: make(map[string]int)}

	rows, err := r.db.Conn().Query(`SELECT camera, speed_kmps FROM samples`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query speeds: %w", err)
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var camera string
		var speed float64
		if err := rows.Scan(&camera, &speed); err != nil {
			return nil, fmt.Errorf("failed to scan speed: %w", err)
		}
		speeds = append(speeds, speed)
		stats.PerCamera[camera]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sum := series.Summarize(speeds)
	stats.Count = sum.Count
	stats.Mean = sum.Mean
	stats.StdDev = sum.StdDev
	stats.Min = sum.Min
	stats.Max = sum.Max
	return stats, nil
}

// GetRuns returns run identifiers, most recent first.
func (r *SampleRepository) GetRuns() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT run_id FROM samples GROUP BY run_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes every sample of one run.
func (r *SampleRepository) DeleteRun(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM samples WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// DeleteAll removes all samples.
func (r *SampleRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}
