package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

const eventColumns = `id, rule_id, host_id, severity, value, threshold,
	triggered_at, resolved_at, acked_by, acked_at`

// EventStore persists alert events and their lifecycle transitions.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates an EventStore over db.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Create inserts a new firing event. The unique open-event index rejects a
// second open event for the same (rule, host).
func (s *EventStore) Create(ctx context.Context, e *models.AlertEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID.String(), e.RuleID.String(), e.HostID.String(), string(e.Severity),
		e.Value, e.Threshold, e.TriggeredAt.UTC(), e.ResolvedAt, e.AckedBy, e.AckedAt)
	return err
}

// Get returns one event by id.
func (s *EventStore) Get(ctx context.Context, id uuid.UUID) (*models.AlertEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM alert_events WHERE id = ?`, id.String())
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Open returns the currently firing event for (rule, host), or ErrNotFound.
func (s *EventStore) Open(ctx context.Context, ruleID, hostID uuid.UUID) (*models.AlertEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM alert_events
		 WHERE rule_id = ? AND host_id = ? AND resolved_at IS NULL`,
		ruleID.String(), hostID.String())
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Resolve closes an open event at the given time. Resolving an already
// resolved event returns ErrNotFound (the open event no longer exists).
func (s *EventStore) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_events SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		at.UTC(), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Acknowledge marks the event acknowledged by the given user. Acknowledging
// an already-acknowledged event is a no-op success: the first acknowledger
// and timestamp are preserved.
func (s *EventStore) Acknowledge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_events SET acked_by = ?, acked_at = ? WHERE id = ? AND acked_at IS NULL`,
		by, at.UTC(), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Nothing updated: either already acknowledged (fine) or unknown id.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM alert_events WHERE id = ?`, id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// EventFilter narrows List results. Zero values mean "any".
type EventFilter struct {
	HostID *uuid.UUID
	RuleID *uuid.UUID
	State  models.EventState
	Limit  int
}

// List returns events newest first, optionally filtered.
func (s *EventStore) List(ctx context.Context, f EventFilter) ([]models.AlertEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM alert_events WHERE 1=1`
	args := []any{}
	if f.HostID != nil {
		query += ` AND host_id = ?`
		args = append(args, f.HostID.String())
	}
	if f.RuleID != nil {
		query += ` AND rule_id = ?`
		args = append(args, f.RuleID.String())
	}
	switch f.State {
	case models.EventFiring:
		query += ` AND resolved_at IS NULL`
	case models.EventResolved:
		query += ` AND resolved_at IS NOT NULL`
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.AlertEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func scanEvent(r rowScanner) (*models.AlertEvent, error) {
	var e models.AlertEvent
	var id, ruleID, hostID, severity string
	var resolvedAt, ackedAt sql.NullTime
	var ackedBy sql.NullString
	if err := r.Scan(&id, &ruleID, &hostID, &severity, &e.Value, &e.Threshold,
		&e.TriggeredAt, &resolvedAt, &ackedBy, &ackedAt); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if e.RuleID, err = uuid.Parse(ruleID); err != nil {
		return nil, err
	}
	if e.HostID, err = uuid.Parse(hostID); err != nil {
		return nil, err
	}
	e.Severity = models.Severity(severity)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	if ackedBy.Valid {
		b := ackedBy.String
		e.AckedBy = &b
	}
	if ackedAt.Valid {
		t := ackedAt.Time
		e.AckedAt = &t
	}
	return &e, nil
}
