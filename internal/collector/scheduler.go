package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/vault"
)

// degradedAfter is the consecutive-failure count at which a host's status
// is downgraded.
const degradedAfter = 3

// HostLister provides the set of hosts to collect from and records outcomes.
type HostLister interface {
	List(ctx context.Context) ([]models.Host, error)
	MarkSeen(ctx context.Context, id uuid.UUID, at time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.HostStatus) error
}

// CredentialSource resolves the default SSH secret for a host.
type CredentialSource interface {
	DefaultSecret(ctx context.Context, hostID uuid.UUID) (username string, secret *vault.Secret, err error)
}

// Prober runs the probe script on one host and returns its raw output.
type Prober interface {
	Run(ctx context.Context, host models.Host, user string, secret *vault.Secret) (string, error)
}

// MetricSink receives flattened metrics from successful collections.
type MetricSink interface {
	Append(ms []models.Metric)
}

// Scheduler drives recurring collection across all registered hosts.
// Hosts are collected concurrently through a bounded worker pool; each job
// carries its own timeout so a hanging probe cannot stall the others.
// A failing host is retried with exponential backoff up to a bounded
// maximum interval, and its consecutive-failure count drives its status.
type Scheduler struct {
	hosts   HostLister
	creds   CredentialSource
	probe   Prober
	sink    MetricSink
	workers int

	interval   time.Duration
	timeout    time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	failures map[uuid.UUID]int
	nextTry  map[uuid.UUID]time.Time

	now func() time.Time // injectable for deterministic tests
}

// NewScheduler wires a Scheduler. workers bounds concurrent collections;
// timeout bounds each job; maxBackoff caps the retry interval for
// unreachable hosts.
func NewScheduler(hosts HostLister, creds CredentialSource, probe Prober, sink MetricSink,
	interval, timeout, maxBackoff time.Duration, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		hosts:      hosts,
		creds:      creds,
		probe:      probe,
		sink:       sink,
		workers:    workers,
		interval:   interval,
		timeout:    timeout,
		maxBackoff: maxBackoff,
		failures:   make(map[uuid.UUID]int),
		nextTry:    make(map[uuid.UUID]time.Time),
		now:        time.Now,
	}
}

// Run collects on every interval tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.CollectAll(ctx)
		}
	}
}

// CollectAll runs one collection pass over every due host, fanning jobs out
// across the worker pool and blocking until the pass completes.
func (s *Scheduler) CollectAll(ctx context.Context) {
	hosts, err := s.hosts.List(ctx)
	if err != nil {
		slog.Error("collector: list hosts", "err", err)
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, h := range hosts {
		if !s.due(h.ID) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(h models.Host) {
			defer wg.Done()
			defer func() { <-sem }()

			jobCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			s.collectHost(jobCtx, h)
		}(h)
	}
	wg.Wait()
}

// collectHost performs probe → parse → flatten → append for one host.
func (s *Scheduler) collectHost(ctx context.Context, h models.Host) {
	user, secret, err := s.creds.DefaultSecret(ctx, h.ID)
	if err != nil {
		s.recordFailure(ctx, h, "resolve credential", err)
		return
	}

	output, err := s.probe.Run(ctx, h, user, secret)
	if err != nil {
		s.recordFailure(ctx, h, "probe", err)
		return
	}

	snap, err := Parse(h.ID, output)
	if err != nil {
		s.recordFailure(ctx, h, "parse", err)
		return
	}

	s.sink.Append(Flatten(snap))
	s.recordSuccess(ctx, h)

	slog.Debug("collector: host collected",
		"host", h.Name,
		"disks", len(snap.Disks),
		"interfaces", len(snap.Network),
	)
}

// due reports whether the host's backoff window has elapsed.
func (s *Scheduler) due(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.nextTry[id]
	return !ok || !s.now().Before(next)
}

func (s *Scheduler) recordSuccess(ctx context.Context, h models.Host) {
	s.mu.Lock()
	delete(s.failures, h.ID)
	delete(s.nextTry, h.ID)
	now := s.now()
	s.mu.Unlock()

	if err := s.hosts.MarkSeen(ctx, h.ID, now); err != nil {
		slog.Warn("collector: mark host seen", "host", h.Name, "err", err)
	}
	if err := s.hosts.SetStatus(ctx, h.ID, models.HostOnline); err != nil {
		slog.Warn("collector: update host status", "host", h.Name, "err", err)
	}
}

func (s *Scheduler) recordFailure(ctx context.Context, h models.Host, stage string, err error) {
	s.mu.Lock()
	s.failures[h.ID]++
	n := s.failures[h.ID]
	backoff := s.backoff(n)
	s.nextTry[h.ID] = s.now().Add(backoff)
	s.mu.Unlock()

	slog.Warn("collector: host collection failed",
		"host", h.Name,
		"stage", stage,
		"consecutive_failures", n,
		"retry_in", backoff,
		"err", err,
	)

	if n >= degradedAfter {
		if terr := s.hosts.SetStatus(ctx, h.ID, models.HostDegraded); terr != nil {
			slog.Warn("collector: update host status", "host", h.Name, "err", terr)
		}
	}
}

// backoff doubles the collection interval per consecutive failure, capped
// at maxBackoff.
func (s *Scheduler) backoff(failures int) time.Duration {
	d := s.interval
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}

// FailureCount returns the current consecutive-failure count for a host.
func (s *Scheduler) FailureCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[id]
}
