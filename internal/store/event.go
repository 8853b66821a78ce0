package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ayusman/retailsight/internal/tracking"
)

// CrossingEvent is a persisted customer entry.
type CrossingEvent struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	IdentityID int       `json:"identity_id"`
	Total      int       `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventRepository provides access to crossing events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the crossing event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event and sets its ID. A second event for the same
// identity in the same run is rejected by the schema.
func (r *EventRepository) Create(e *CrossingEvent) error {
	return r.create(context.Background(), e)
}

func (r *EventRepository) create(ctx context.Context, e *CrossingEvent) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO crossing_events (run_id, identity_id, total, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		e.RunID, e.IdentityID, e.Total, e.OccurredAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListByRun retrieves the events of a run in the order they occurred.
func (r *EventRepository) ListByRun(runID string) ([]*CrossingEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, identity_id, total, occurred_at
		 FROM crossing_events WHERE run_id = ? ORDER BY total`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*CrossingEvent
	for rows.Next() {
		e := &CrossingEvent{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.IdentityID, &e.Total, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// EventRecorder persists crossing events of one run as they are published.
type EventRecorder struct {
	repo  *EventRepository
	runID string
}

// EventRecorder returns a recorder bound to runID.
func (s *Store) EventRecorder(runID string) *EventRecorder {
	return &EventRecorder{repo: s.Events(), runID: runID}
}

// Publish stores the event.
func (r *EventRecorder) Publish(ctx context.Context, ev tracking.CrossingEvent) error {
	return r.repo.create(ctx, &CrossingEvent{
		RunID:      r.runID,
		IdentityID: ev.IdentityID,
		Total:      ev.Total,
		OccurredAt: ev.Timestamp,
	})
}
