package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

func createEvent(t *testing.T, db *sql.DB, ruleID, hostID uuid.UUID) *models.AlertEvent {
	t.Helper()
	e := &models.AlertEvent{
		RuleID:      ruleID,
		HostID:      hostID,
		Severity:    models.SeverityCritical,
		Value:       97,
		Threshold:   90,
		TriggeredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := NewEventStore(db).Create(context.Background(), e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func TestEventStore_OpenEventLookup(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	hostID := uuid.New()

	if _, err := store.Open(ctx, rule.ID, hostID); !errors.Is(err, ErrNotFound) {
		t.Errorf("open with no events: got %v, want ErrNotFound", err)
	}

	e := createEvent(t, db, rule.ID, hostID)
	got, err := store.Open(ctx, rule.ID, hostID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.ID != e.ID || got.State() != models.EventFiring {
		t.Errorf("open event: got %+v", got)
	}
}

// The schema refuses a second open event for the same (rule, host).
func TestEventStore_SingleOpenEventEnforced(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	hostID := uuid.New()

	createEvent(t, db, rule.ID, hostID)

	dup := &models.AlertEvent{
		RuleID: rule.ID, HostID: hostID,
		Severity: models.SeverityCritical, Value: 98, Threshold: 90,
		TriggeredAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, dup); err == nil {
		t.Fatal("second open event for same (rule, host) was accepted")
	}

	// A different host is fine.
	other := &models.AlertEvent{
		RuleID: rule.ID, HostID: uuid.New(),
		Severity: models.SeverityCritical, Value: 98, Threshold: 90,
		TriggeredAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, other); err != nil {
		t.Errorf("open event for different host rejected: %v", err)
	}
}

func TestEventStore_ResolveLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	hostID := uuid.New()
	e := createEvent(t, db, rule.ID, hostID)

	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if err := store.Resolve(ctx, e.ID, at); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := store.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State() != models.EventResolved || got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
		t.Errorf("resolved event: got %+v", got)
	}

	// Resolving again finds no open event.
	if err := store.Resolve(ctx, e.ID, at.Add(time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Errorf("double resolve: got %v, want ErrNotFound", err)
	}

	// Once resolved, a new event for the same (rule, host) may open.
	if err := store.Create(ctx, &models.AlertEvent{
		RuleID: rule.ID, HostID: hostID,
		Severity: models.SeverityCritical, Value: 95, Threshold: 90,
		TriggeredAt: at.Add(time.Hour),
	}); err != nil {
		t.Errorf("new event after resolve rejected: %v", err)
	}
}

func TestEventStore_AcknowledgePreservesFirstAck(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	e := createEvent(t, db, rule.ID, uuid.New())

	first := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	if err := store.Acknowledge(ctx, e.ID, "alice", first); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// Second acknowledge succeeds but changes nothing.
	if err := store.Acknowledge(ctx, e.ID, "bob", first.Add(time.Hour)); err != nil {
		t.Fatalf("second acknowledge: %v", err)
	}

	got, err := store.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AckedBy == nil || *got.AckedBy != "alice" {
		t.Errorf("acked_by: got %v, want alice", got.AckedBy)
	}
	if got.AckedAt == nil || !got.AckedAt.Equal(first) {
		t.Errorf("acked_at: got %v, want %v", got.AckedAt, first)
	}
	if !got.Acknowledged() {
		t.Error("event not reported acknowledged")
	}

	if err := store.Acknowledge(ctx, uuid.New(), "carol", first); !errors.Is(err, ErrNotFound) {
		t.Errorf("acknowledge unknown event: got %v, want ErrNotFound", err)
	}
}

// Acknowledging never changes the lifecycle state.
func TestEventStore_AckOrthogonalToResolve(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	e := createEvent(t, db, rule.ID, uuid.New())

	if err := store.Acknowledge(ctx, e.ID, "alice", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, e.ID)
	if got.State() != models.EventFiring {
		t.Errorf("state after ack: got %q, want firing", got.State())
	}

	if err := store.Resolve(ctx, e.ID, time.Now().UTC()); err != nil {
		t.Fatalf("resolve acknowledged event: %v", err)
	}
	got, _ = store.Get(ctx, e.ID)
	if got.State() != models.EventResolved || !got.Acknowledged() {
		t.Errorf("resolved+acked event: got %+v", got)
	}
}

func TestEventStore_ListFilters(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	rule := createRule(t, db, nil)
	hostA, hostB := uuid.New(), uuid.New()

	a := createEvent(t, db, rule.ID, hostA)
	createEvent(t, db, rule.ID, hostB)
	if err := store.Resolve(ctx, a.ID, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	firing, err := store.List(ctx, EventFilter{State: models.EventFiring})
	if err != nil {
		t.Fatal(err)
	}
	if len(firing) != 1 || firing[0].HostID != hostB {
		t.Errorf("firing filter: got %+v", firing)
	}

	resolved, err := store.List(ctx, EventFilter{State: models.EventResolved})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 1 || resolved[0].ID != a.ID {
		t.Errorf("resolved filter: got %+v", resolved)
	}

	byHost, err := store.List(ctx, EventFilter{HostID: &hostA})
	if err != nil {
		t.Fatal(err)
	}
	if len(byHost) != 1 || byHost[0].HostID != hostA {
		t.Errorf("host filter: got %+v", byHost)
	}

	all, err := store.List(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered: got %d, want 2", len(all))
	}
}
