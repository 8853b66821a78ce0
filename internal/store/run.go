package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is one processing session over a video source.
type Run struct {
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	OutputPath      string     `json:"output_path"`
	FrameWidth      int        `json:"frame_width"`
	FrameHeight     int        `json:"frame_height"`
	EntranceLineX   int        `json:"entrance_line_x"`
	FrameSkip       int        `json:"frame_skip"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	FramesTotal     int        `json:"frames_total"`
	FramesProcessed int        `json:"frames_processed"`
	EntryCount      int        `json:"entry_count"`
}

// RunTotals are the counters written when a run finishes.
type RunTotals struct {
	FramesTotal     int
	FramesProcessed int
	EntryCount      int
}

// RunRepository provides access to runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

const runColumns = `id, source, output_path, frame_width, frame_height, entrance_line_x, frame_skip,
	started_at, finished_at, frames_total, frames_processed, entry_count`

// Create inserts a run. An empty ID is filled with a new UUID and a zero
// StartedAt with the current time.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, output_path, frame_width, frame_height, entrance_line_x, frame_skip, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.OutputPath, run.FrameWidth, run.FrameHeight, run.EntranceLineX, run.FrameSkip, run.StartedAt,
	)
	return err
}

// Finish records the end of a run.
func (r *RunRepository) Finish(id string, totals RunTotals, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE runs SET finished_at = ?, frames_total = ?, frames_processed = ?, entry_count = ?
		 WHERE id = ?`,
		at, totals.FramesTotal, totals.FramesProcessed, totals.EntryCount, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a run together with its events and snapshot records.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List retrieves all runs, most recent first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var finished sql.NullTime

	err := row.Scan(
		&run.ID, &run.Source, &run.OutputPath, &run.FrameWidth, &run.FrameHeight,
		&run.EntranceLineX, &run.FrameSkip, &run.StartedAt, &finished,
		&run.FramesTotal, &run.FramesProcessed, &run.EntryCount,
	)
	if err != nil {
		return nil, err
	}

	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
