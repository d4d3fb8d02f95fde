package alerts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/storage"
	"github.com/hostpulse/hostpulse/internal/store"
)

// RuleSource yields the rules to evaluate each tick.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]models.AlertRule, error)
}

// EventSink records lifecycle transitions of alert events.
type EventSink interface {
	Open(ctx context.Context, ruleID, hostID uuid.UUID) (*models.AlertEvent, error)
	Create(ctx context.Context, e *models.AlertEvent) error
	Resolve(ctx context.Context, id uuid.UUID, at time.Time) error
}

// HostSource lists the hosts in scope for all-host rules.
type HostSource interface {
	List(ctx context.Context) ([]models.Host, error)
}

// MetricSource provides recent metric windows per host.
type MetricSource interface {
	Query(hostID uuid.UUID, typ models.MetricType, name string, from time.Time) []store.Series
}

// Dispatcher receives fired and resolved events for delivery. Delivery
// failures must not propagate back into evaluation.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule)
}

// Engine evaluates alert rules against recent metric windows on a fixed
// cadence. A rule fires for a host when a metric series breaches its
// threshold continuously for the rule's duration; the resulting event stays
// open until the breach clears, then resolves on the first compliant sample.
type Engine struct {
	rules    RuleSource
	events   EventSink
	hosts    HostSource
	metrics  MetricSource
	dispatch Dispatcher

	interval time.Duration

	// sampleInterval is the collection cadence, used as slack when deciding
	// whether a window of samples covers the full rule duration.
	sampleInterval time.Duration

	mu  chan struct{} // single-flight: one evaluation pass at a time
	now func() time.Time
}

// NewEngine wires an evaluation engine. interval is the evaluation cadence,
// sampleInterval the metric collection cadence.
func NewEngine(rules RuleSource, events EventSink, hosts HostSource, metrics MetricSource, dispatch Dispatcher, interval, sampleInterval time.Duration) *Engine {
	return &Engine{
		rules:          rules,
		events:         events,
		hosts:          hosts,
		metrics:        metrics,
		dispatch:       dispatch,
		interval:       interval,
		sampleInterval: sampleInterval,
		mu:             make(chan struct{}, 1),
		now:            time.Now,
	}
}

// Run evaluates all rules on the engine's cadence until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.EvaluateTick(ctx)
		}
	}
}

// EvaluateTick runs one evaluation pass over every enabled rule. If a pass is
// already in flight the tick is skipped rather than queued. Errors on one
// rule never block the others.
func (e *Engine) EvaluateTick(ctx context.Context) {
	select {
	case e.mu <- struct{}{}:
		defer func() { <-e.mu }()
	default:
		slog.Warn("alerts: evaluation still running, skipping tick")
		return
	}

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		slog.Error("alerts: listing rules failed", "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	hosts, err := e.hosts.List(ctx)
	if err != nil {
		slog.Error("alerts: listing hosts failed", "error", err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		for _, host := range hostsInScope(rule, hosts) {
			if err := e.evaluateRuleHost(ctx, rule, host); err != nil {
				slog.Error("alerts: rule evaluation failed",
					"rule", rule.Name, "host", host.String(), "error", err)
			}
		}
	}
}

// hostsInScope returns the host ids a rule applies to.
func hostsInScope(rule *models.AlertRule, hosts []models.Host) []uuid.UUID {
	if rule.HostID != nil {
		return []uuid.UUID{*rule.HostID}
	}
	ids := make([]uuid.UUID, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
	}
	return ids
}

// evaluateRuleHost assesses one rule against one host and applies the
// fire/resolve transition if the state changed.
func (e *Engine) evaluateRuleHost(ctx context.Context, rule *models.AlertRule, hostID uuid.UUID) error {
	now := e.now()
	from := now.Add(-rule.Duration)
	if rule.Duration == 0 {
		// Instant rules look back one collection cycle for the latest sample.
		from = now.Add(-e.sampleInterval)
	}
	series := e.metrics.Query(hostID, rule.MetricType, rule.MetricName, from)

	open, err := e.events.Open(ctx, rule.ID, hostID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if len(series) == 0 {
		// No data is not a breach and not a recovery: an open event stays
		// open until a compliant sample arrives.
		return nil
	}

	// A rule with multiple matching series (one per disk, per interface)
	// fires if any single series sustains the breach, and an open event
	// resolves only once every series has cleared.
	anySustained := false
	anyBreachNow := false
	var trigger store.Point
	for _, s := range series {
		latest := s.Points[len(s.Points)-1]
		breachNow := rule.Operator.Compare(latest.Value, rule.Threshold)
		if breachNow {
			anyBreachNow = true
		}
		if breachNow && e.sustained(rule, s, now) {
			anySustained = true
			if latest.Time.After(trigger.Time) {
				trigger = latest
			}
		}
	}

	switch {
	case open == nil && anySustained:
		event := &models.AlertEvent{
			RuleID:      rule.ID,
			HostID:      hostID,
			Severity:    rule.Severity,
			Value:       trigger.Value,
			Threshold:   rule.Threshold,
			TriggeredAt: now,
		}
		if err := e.events.Create(ctx, event); err != nil {
			return err
		}
		slog.Info("alerts: rule fired",
			"rule", rule.Name, "host", hostID.String(),
			"value", event.Value, "threshold", event.Threshold,
			"severity", string(event.Severity))
		e.dispatch.Dispatch(ctx, event, rule)

	case open != nil && !anyBreachNow:
		if err := e.events.Resolve(ctx, open.ID, now); err != nil {
			return err
		}
		resolved := *open
		at := now
		resolved.ResolvedAt = &at
		slog.Info("alerts: event resolved",
			"rule", rule.Name, "host", hostID.String(), "event", open.ID.String())
		e.dispatch.Dispatch(ctx, &resolved, rule)
	}
	// open != nil && breaching: already firing, nothing to do.
	// open == nil && breaching but not yet sustained: keep waiting.
	return nil
}

// sustained reports whether every sample in the series breaches the rule and
// the samples span the full duration window. The window counts as covered
// when the oldest sample is within one collection cycle of the window start,
// so a rule never fires from a single fresh sample plus silence.
//
// A zero-duration rule is instant: only the latest sample decides, so an
// older compliant sample still inside the look-back cannot delay the fire.
func (e *Engine) sustained(rule *models.AlertRule, s store.Series, now time.Time) bool {
	if rule.Duration == 0 {
		latest := s.Points[len(s.Points)-1]
		return rule.Operator.Compare(latest.Value, rule.Threshold)
	}
	for _, p := range s.Points {
		if !rule.Operator.Compare(p.Value, rule.Threshold) {
			return false
		}
	}
	windowStart := now.Add(-rule.Duration)
	return !s.Points[0].Time.After(windowStart.Add(e.sampleInterval))
}
