package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

const credentialColumns = `id, host_id, name, type, username, ciphertext, nonce,
	is_default, created_at, updated_at`

// ErrUnattached is returned when a default is requested for a credential
// that has no host.
var ErrUnattached = errors.New("storage: credential is not attached to a host")

// ErrDuplicateDefault reports an observed breach of the single-default
// invariant. It should be unreachable given the transactional SetDefault.
var ErrDuplicateDefault = errors.New("storage: multiple default credentials for host and type")

// CredentialStore persists encrypted credentials.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore creates a CredentialStore over db.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Create inserts a credential. When the credential is marked default, prior
// defaults for the same (host, type) are cleared in the same transaction.
func (s *CredentialStore) Create(ctx context.Context, c *models.Credential) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if c.IsDefault && c.HostID != nil {
		if err := clearDefaults(ctx, tx, *c.HostID, c.Type, now); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO credentials (`+credentialColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID.String(), uuidPtr(c.HostID), c.Name, string(c.Type), c.Username,
		c.Ciphertext, c.Nonce, c.IsDefault, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return tx.Commit()
}

// Get returns one credential by id, including its encrypted payload.
func (s *CredentialStore) Get(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id.String())
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListForHost returns a host's credentials, defaults first.
func (s *CredentialStore) ListForHost(ctx context.Context, hostID uuid.UUID) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials
		 WHERE host_id = ? ORDER BY is_default DESC, name ASC`, hostID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creds := make([]models.Credential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *c)
	}
	return creds, rows.Err()
}

// GetDefaultForHost returns the default credential for (host, type), or
// ErrNotFound when none is marked default.
func (s *CredentialStore) GetDefaultForHost(ctx context.Context, hostID uuid.UUID, t models.CredentialType) (*models.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials
		 WHERE host_id = ? AND type = ? AND is_default = 1`,
		hostID.String(), string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var c *models.Credential
	for rows.Next() {
		if c != nil {
			return nil, ErrDuplicateDefault
		}
		if c, err = scanCredential(rows); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// SetDefault makes the credential the default for its (host, type),
// clearing any prior default in one transaction. Readers never observe two
// defaults or zero defaults mid-flight.
func (s *CredentialStore) SetDefault(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var hostID sql.NullString
	var credType string
	err = tx.QueryRowContext(ctx,
		`SELECT host_id, type FROM credentials WHERE id = ?`, id.String()).
		Scan(&hostID, &credType)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !hostID.Valid {
		return ErrUnattached
	}

	hid, err := uuid.Parse(hostID.String)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := clearDefaults(ctx, tx, hid, models.CredentialType(credType), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE credentials SET is_default = 1, updated_at = ? WHERE id = ?`,
		now, id.String()); err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	return tx.Commit()
}

// CountForHostType reports how many credentials exist for (host, type).
func (s *CredentialStore) CountForHostType(ctx context.Context, hostID uuid.UUID, t models.CredentialType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE host_id = ? AND type = ?`,
		hostID.String(), string(t)).Scan(&n)
	return n, err
}

// Delete removes a credential.
func (s *CredentialStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func clearDefaults(ctx context.Context, tx *sql.Tx, hostID uuid.UUID, t models.CredentialType, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE credentials SET is_default = 0, updated_at = ?
		 WHERE host_id = ? AND type = ? AND is_default = 1`,
		now, hostID.String(), string(t))
	if err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	return nil
}

func scanCredential(r rowScanner) (*models.Credential, error) {
	var c models.Credential
	var id, credType string
	var hostID sql.NullString
	if err := r.Scan(&id, &hostID, &c.Name, &credType, &c.Username,
		&c.Ciphertext, &c.Nonce, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	c.ID = parsed
	c.Type = models.CredentialType(credType)
	if hostID.Valid {
		hid, err := uuid.Parse(hostID.String)
		if err != nil {
			return nil, err
		}
		c.HostID = &hid
	}
	return &c, nil
}
