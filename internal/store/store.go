package store

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Point is one sample in a series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a window of samples for one tagged metric instance, ordered by
// time ascending.
type Series struct {
	Tags   map[string]string
	Points []Point
}

// seriesKey identifies a series within one host.
type seriesKey struct {
	host uuid.UUID
	typ  models.MetricType
	name string
	tags string // canonical "k=v,k=v" form
}

type seriesEntry struct {
	tags   map[string]string
	points []Point
}

// Store is a thread-safe in-memory metric window store. Appends are
// append-only; reads return copies. A background goroutine (Run) evicts
// points older than the retention TTL.
type Store struct {
	mu        sync.RWMutex
	data      map[seriesKey]*seriesEntry
	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store that retains points for the given TTL.
func New(retention time.Duration) *Store {
	return &Store{
		data:      make(map[seriesKey]*seriesEntry),
		retention: retention,
		now:       time.Now,
	}
}

// Append adds metrics to their series. Points are assumed to arrive in
// roughly chronological order per series; out-of-order points are inserted
// in place to keep each series sorted.
func (s *Store) Append(ms []models.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		key := seriesKey{host: m.HostID, typ: m.Type, name: m.Name, tags: canonicalTags(m.Tags)}
		e, ok := s.data[key]
		if !ok {
			e = &seriesEntry{tags: maps.Clone(m.Tags)}
			s.data[key] = e
		}
		p := Point{Time: m.Time, Value: m.Value}
		n := len(e.points)
		if n == 0 || !p.Time.Before(e.points[n-1].Time) {
			e.points = append(e.points, p)
			continue
		}
		i := sort.Search(n, func(i int) bool { return e.points[i].Time.After(p.Time) })
		e.points = append(e.points, Point{})
		copy(e.points[i+1:], e.points[i:])
		e.points[i] = p
	}
}

// Query returns every series for (hostID, typ, name) restricted to points at
// or after from. Series with no points in the window are omitted.
func (s *Store) Query(hostID uuid.UUID, typ models.MetricType, name string, from time.Time) []Series {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Series
	for key, e := range s.data {
		if key.host != hostID || key.typ != typ || key.name != name {
			continue
		}
		i := sort.Search(len(e.points), func(i int) bool { return !e.points[i].Time.Before(from) })
		if i == len(e.points) {
			continue
		}
		points := make([]Point, len(e.points)-i)
		copy(points, e.points[i:])
		out = append(out, Series{Tags: maps.Clone(e.tags), Points: points})
	}
	return out
}

// Latest returns the most recent point across all series matching
// (hostID, typ, name), and false when none exist.
func (s *Store) Latest(hostID uuid.UUID, typ models.MetricType, name string) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Point
	found := false
	for key, e := range s.data {
		if key.host != hostID || key.typ != typ || key.name != name || len(e.points) == 0 {
			continue
		}
		last := e.points[len(e.points)-1]
		if !found || last.Time.After(best.Time) {
			best, found = last, true
		}
	}
	return best, found
}

// Count returns the number of series currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict drops points older than now minus the retention TTL and removes
// series left empty. It returns the number of points dropped.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	dropped := 0
	for key, e := range s.data {
		i := sort.Search(len(e.points), func(i int) bool { return e.points[i].Time.After(cutoff) })
		if i == 0 {
			continue
		}
		dropped += i
		if i == len(e.points) {
			delete(s.data, key)
			continue
		}
		e.points = append([]Point(nil), e.points[i:]...)
	}
	return dropped
}

// Run starts the background eviction loop, ticking at half the retention TTL
// (minimum 1 second). It blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired points", "count", n)
			}
		}
	}
}

// canonicalTags renders a tag map as a stable "k=v,k=v" string.
func canonicalTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}
