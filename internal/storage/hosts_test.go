package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

func TestHostStore_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	store := NewHostStore(db)
	ctx := context.Background()

	h := createHost(t, db, "web-1")
	if h.ID == uuid.Nil {
		t.Fatal("create did not assign an id")
	}
	if h.Status != models.HostUnknown {
		t.Errorf("initial status: got %q, want unknown", h.Status)
	}

	got, err := store.Get(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "web-1" || got.Address != "10.0.0.1" || got.Port != 22 {
		t.Errorf("round trip: got %+v", got)
	}
	if got.LastSeenAt != nil {
		t.Error("new host has non-nil last_seen_at")
	}
}

func TestHostStore_Get_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewHostStore(db).Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestHostStore_ListOrderedByName(t *testing.T) {
	db := newTestDB(t)
	createHost(t, db, "zeta")
	createHost(t, db, "alpha")

	hosts, err := NewHostStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hosts) != 2 || hosts[0].Name != "alpha" || hosts[1].Name != "zeta" {
		t.Errorf("list: got %+v", hosts)
	}
}

func TestHostStore_MarkSeenAndSetStatus(t *testing.T) {
	db := newTestDB(t)
	store := NewHostStore(db)
	ctx := context.Background()
	h := createHost(t, db, "web-1")

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.MarkSeen(ctx, h.ID, at); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if err := store.SetStatus(ctx, h.ID, models.HostOnline); err != nil {
		t.Fatalf("set status: %v", err)
	}

	got, err := store.Get(ctx, h.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(at) {
		t.Errorf("last_seen_at: got %v, want %v", got.LastSeenAt, at)
	}
	if got.Status != models.HostOnline {
		t.Errorf("status: got %q, want online", got.Status)
	}

	if err := store.MarkSeen(ctx, uuid.New(), at); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark seen unknown host: got %v, want ErrNotFound", err)
	}
}

func TestHostStore_Delete(t *testing.T) {
	db := newTestDB(t)
	store := NewHostStore(db)
	ctx := context.Background()
	h := createHost(t, db, "web-1")

	if err := store.Delete(ctx, h.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, h.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}
