package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// HostStore persists the monitored-host registry.
type HostStore struct {
	db *sql.DB
}

// NewHostStore creates a HostStore over db.
func NewHostStore(db *sql.DB) *HostStore {
	return &HostStore{db: db}
}

// Create inserts a host, assigning an ID when absent.
func (s *HostStore) Create(ctx context.Context, h *models.Host) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Status == "" {
		h.Status = models.HostUnknown
	}
	h.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hosts (id, name, address, port, status, last_seen_at, created_at) VALUES (?,?,?,?,?,?,?)`,
		h.ID.String(), h.Name, h.Address, h.Port, string(h.Status), h.LastSeenAt, h.CreatedAt)
	return err
}

// Get returns one host by id.
func (s *HostStore) Get(ctx context.Context, id uuid.UUID) (*models.Host, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, port, status, last_seen_at, created_at FROM hosts WHERE id = ?`, id.String())
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// List returns all hosts ordered by name.
func (s *HostStore) List(ctx context.Context) ([]models.Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, port, status, last_seen_at, created_at FROM hosts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hosts := make([]models.Host, 0)
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *h)
	}
	return hosts, rows.Err()
}

// Delete removes a host.
func (s *HostStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSeen stamps the host's last successful collection time.
func (s *HostStore) MarkSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hosts SET last_seen_at = ? WHERE id = ?`, at.UTC(), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates the host's reachability status.
func (s *HostStore) SetStatus(ctx context.Context, id uuid.UUID, status models.HostStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hosts SET status = ? WHERE id = ?`, string(status), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHost(r rowScanner) (*models.Host, error) {
	var h models.Host
	var id, status string
	var lastSeen sql.NullTime
	if err := r.Scan(&id, &h.Name, &h.Address, &h.Port, &status, &lastSeen, &h.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	h.ID = parsed
	h.Status = models.HostStatus(status)
	if lastSeen.Valid {
		t := lastSeen.Time
		h.LastSeenAt = &t
	}
	return &h, nil
}
