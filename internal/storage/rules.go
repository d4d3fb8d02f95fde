package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

const ruleColumns = `id, name, description, host_id, metric_type, metric_name,
	operator, threshold, duration_seconds, severity, enabled, channels_json,
	created_at, updated_at`

// RuleStore persists alert rules.
type RuleStore struct {
	db *sql.DB
}

// NewRuleStore creates a RuleStore over db.
func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

// Create inserts a rule, assigning an ID when absent.
func (s *RuleStore) Create(ctx context.Context, r *models.AlertRule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	channels, err := json.Marshal(channelsOrEmpty(r.Channels))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alert_rules (`+ruleColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID.String(), r.Name, r.Description, uuidPtr(r.HostID), string(r.MetricType), r.MetricName,
		string(r.Operator), r.Threshold, int(r.Duration.Seconds()), string(r.Severity),
		r.Enabled, string(channels), r.CreatedAt, r.UpdatedAt)
	return err
}

// Get returns one rule by id.
func (s *RuleStore) Get(ctx context.Context, id uuid.UUID) (*models.AlertRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM alert_rules WHERE id = ?`, id.String())
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// List returns all rules, newest first.
func (s *RuleStore) List(ctx context.Context) ([]models.AlertRule, error) {
	return s.list(ctx, `SELECT `+ruleColumns+` FROM alert_rules ORDER BY created_at DESC`)
}

// ListEnabled returns the rules the evaluator should consider.
func (s *RuleStore) ListEnabled(ctx context.Context) ([]models.AlertRule, error) {
	return s.list(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE enabled = 1 ORDER BY created_at`)
}

func (s *RuleStore) list(ctx context.Context, query string) ([]models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.AlertRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// Update rewrites every mutable field of the rule and recomputes updated_at.
// Rules are never partially updated.
func (s *RuleStore) Update(ctx context.Context, r *models.AlertRule) error {
	r.UpdatedAt = time.Now().UTC()
	channels, err := json.Marshal(channelsOrEmpty(r.Channels))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_rules SET name=?, description=?, host_id=?, metric_type=?, metric_name=?,
			operator=?, threshold=?, duration_seconds=?, severity=?, enabled=?, channels_json=?, updated_at=?
		 WHERE id=?`,
		r.Name, r.Description, uuidPtr(r.HostID), string(r.MetricType), r.MetricName,
		string(r.Operator), r.Threshold, int(r.Duration.Seconds()), string(r.Severity),
		r.Enabled, string(channels), r.UpdatedAt, r.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule and, via cascade, its events.
func (s *RuleStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRule(r rowScanner) (*models.AlertRule, error) {
	var rule models.AlertRule
	var id, metricType, operator, severity string
	var hostID sql.NullString
	var durationSec int
	var channelsJSON string
	if err := r.Scan(&id, &rule.Name, &rule.Description, &hostID, &metricType, &rule.MetricName,
		&operator, &rule.Threshold, &durationSec, &severity, &rule.Enabled, &channelsJSON,
		&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rule.ID = parsed
	rule.MetricType = models.MetricType(metricType)
	rule.Operator = models.Operator(operator)
	rule.Severity = models.Severity(severity)
	rule.Duration = time.Duration(durationSec) * time.Second
	if hostID.Valid {
		hid, err := uuid.Parse(hostID.String)
		if err != nil {
			return nil, err
		}
		rule.HostID = &hid
	}
	if err := json.Unmarshal([]byte(channelsJSON), &rule.Channels); err != nil {
		rule.Channels = []string{}
	}
	return &rule, nil
}

func channelsOrEmpty(c []string) []string {
	if c == nil {
		return []string{}
	}
	return c
}

// uuidPtr renders a nullable UUID for binding.
func uuidPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
