package store

import (
	"database/sql"
	"time"
)

// Snapshot records a frame saved to disk for later analysis.
type Snapshot struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Path        string    `json:"path"`
	FrameNumber int       `json:"frame_number"`
	CapturedAt  time.Time `json:"captured_at"`
}

// SnapshotRepository provides access to snapshot records.
type SnapshotRepository struct {
	db *sql.DB
}

// Snapshots returns the snapshot repository for this store.
func (s *Store) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: s.db}
}

// Create inserts a snapshot record and sets its ID.
func (r *SnapshotRepository) Create(snap *Snapshot) error {
	result, err := r.db.Exec(
		`INSERT INTO snapshots (run_id, path, frame_number, captured_at)
		 VALUES (?, ?, ?, ?)`,
		snap.RunID, snap.Path, snap.FrameNumber, snap.CapturedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	snap.ID = id
	return nil
}

// ListByRun retrieves the snapshots of a run ordered by frame number.
func (r *SnapshotRepository) ListByRun(runID string) ([]*Snapshot, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, path, frame_number, captured_at
		 FROM snapshots WHERE run_id = ? ORDER BY frame_number`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(&snap.ID, &snap.RunID, &snap.Path, &snap.FrameNumber, &snap.CapturedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}
