package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Operator is the comparison applied between a metric value and a threshold.
type Operator string

const (
	OpGT  Operator = "gt"
	OpGTE Operator = "gte"
	OpLT  Operator = "lt"
	OpLTE Operator = "lte"
	OpEQ  Operator = "eq"
	OpNEQ Operator = "neq"
)

// Compare applies the operator to value against threshold.
// eq/neq use exact floating-point comparison, as rules specify.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	case OpEQ:
		return value == threshold
	case OpNEQ:
		return value != threshold
	default:
		return false
	}
}

// AlertRule defines one threshold condition over a metric. HostID nil means
// the rule applies to every registered host. Rules are replaced whole on
// update — every field write recomputes UpdatedAt.
type AlertRule struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	HostID      *uuid.UUID `json:"host_id,omitempty"`
	MetricType  MetricType `json:"metric_type"`
	MetricName  string     `json:"metric_name"`
	Operator    Operator   `json:"operator"`
	Threshold   float64    `json:"threshold"`

	// Duration is how long the breach must hold continuously before the
	// rule fires. Zero fires on the first breaching sample.
	Duration time.Duration `json:"duration"`

	Severity Severity `json:"severity"`
	Enabled  bool     `json:"enabled"`

	// Channels names the notification targets, in dispatch order.
	Channels []string `json:"channels"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventState is the lifecycle state of an alert event, derived from ResolvedAt.
type EventState string

const (
	EventFiring   EventState = "firing"
	EventResolved EventState = "resolved"
)

// AlertEvent records one firing of a rule on a host. Severity and Threshold
// are copied from the rule at fire time so later rule edits don't rewrite
// history. At most one open event (ResolvedAt == nil) exists per (rule, host).
type AlertEvent struct {
	ID          uuid.UUID  `json:"id"`
	RuleID      uuid.UUID  `json:"rule_id"`
	HostID      uuid.UUID  `json:"host_id"`
	Severity    Severity   `json:"severity"`
	Value       float64    `json:"value"`
	Threshold   float64    `json:"threshold"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	AckedBy     *string    `json:"acknowledged_by,omitempty"`
	AckedAt     *time.Time `json:"acknowledged_at,omitempty"`
}

// State reports firing while the event is open, resolved once closed.
func (e *AlertEvent) State() EventState {
	if e.ResolvedAt == nil {
		return EventFiring
	}
	return EventResolved
}

// Acknowledged reports whether a user has acknowledged the event.
// Acknowledging is orthogonal to State and never changes it.
func (e *AlertEvent) Acknowledged() bool { return e.AckedAt != nil }
