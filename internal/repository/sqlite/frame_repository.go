package sqlite

import (
	"database/sql"
	"fmt"

	"orbitspeed/internal/model"
)

// FrameRepository implements repository.FrameRepository for SQLite.
type FrameRepository struct {
	db *DB
}

// NewFrameRepository creates a new SQLite frame repository.
func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// Insert adds a new frame record to the database.
func (r *FrameRepository) Insert(f *model.Frame) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO frames (filename, camera, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
	`, f.Filename, f.Camera, f.Timestamp.UTC(), f.FilePath, f.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename retrieves a frame by its filename.
func (r *FrameRepository) GetByFilename(filename string) (*model.Frame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var f model.Frame
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, camera, timestamp, filepath, filesize
		FROM frames WHERE filename = ?
	`, filename).Scan(&f.ID, &f.Filename, &f.Camera, &f.Timestamp, &f.FilePath, &f.FileSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return &f, nil
}

// GetAll retrieves frames newest first, optionally for a single camera.
func (r *FrameRepository) GetAll(camera string, limit, offset int) ([]model.Frame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT id, filename, camera, timestamp, filepath, filesize FROM frames WHERE 1=1`
	args := []interface{}{}

	if camera != "" {
		query += " AND camera = ?"
		args = append(args, camera)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []model.Frame
	for rows.Next() {
		var f model.Frame
		if err := rows.Scan(&f.ID, &f.Filename, &f.Camera, &f.Timestamp, &f.FilePath, &f.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// GetTotalCount returns the number of stored frames, optionally for one camera.
func (r *FrameRepository) GetTotalCount(camera string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM frames`
	args := []interface{}{}
	if camera != "" {
		query += " WHERE camera = ?"
		args = append(args, camera)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}

// DeleteByFilename removes a frame record by its filename.
func (r *FrameRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM frames WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete frame: %w", err)
	}
	return nil
}
