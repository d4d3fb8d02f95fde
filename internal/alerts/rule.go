package alerts

import (
	"fmt"
	"math"

	"github.com/hostpulse/hostpulse/internal/models"
)

// ValidationError rejects a malformed rule before persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.Field, e.Reason)
}

// ValidateRule checks a rule's fields. It does not verify that the metric
// name exists — rules may target metrics a host has not reported yet.
func ValidateRule(r *models.AlertRule) error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch r.MetricType {
	case models.MetricTypeCPU, models.MetricTypeMemory, models.MetricTypeDisk,
		models.MetricTypeNetwork, models.MetricTypeSystem:
	default:
		return &ValidationError{Field: "metric_type", Reason: fmt.Sprintf("unknown type %q", r.MetricType)}
	}
	if r.MetricName == "" {
		return &ValidationError{Field: "metric_name", Reason: "must not be empty"}
	}
	switch r.Operator {
	case models.OpGT, models.OpGTE, models.OpLT, models.OpLTE, models.OpEQ, models.OpNEQ:
	default:
		return &ValidationError{Field: "operator", Reason: fmt.Sprintf("unknown operator %q", r.Operator)}
	}
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return &ValidationError{Field: "threshold", Reason: "must be finite"}
	}
	if r.Duration < 0 {
		return &ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	switch r.Severity {
	case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
	default:
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", r.Severity)}
	}
	return nil
}
