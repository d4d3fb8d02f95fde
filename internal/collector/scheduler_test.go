package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/vault"
)

type fakeHosts struct {
	mu       sync.Mutex
	hosts    []models.Host
	seen     map[uuid.UUID]time.Time
	statuses map[uuid.UUID]models.HostStatus
}

func newFakeHosts(hosts ...models.Host) *fakeHosts {
	return &fakeHosts{
		hosts:    hosts,
		seen:     make(map[uuid.UUID]time.Time),
		statuses: make(map[uuid.UUID]models.HostStatus),
	}
}

func (f *fakeHosts) List(ctx context.Context) ([]models.Host, error) { return f.hosts, nil }

func (f *fakeHosts) MarkSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = at
	return nil
}

func (f *fakeHosts) SetStatus(ctx context.Context, id uuid.UUID, status models.HostStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeHosts) status(id uuid.UUID) models.HostStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

type fakeCreds struct{ err error }

func (f *fakeCreds) DefaultSecret(ctx context.Context, hostID uuid.UUID) (string, *vault.Secret, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return "root", &vault.Secret{Kind: models.CredentialSSHPassword, Password: "pw"}, nil
}

type fakeProber struct {
	mu     sync.Mutex
	output string
	err    error
	calls  int
}

func (f *fakeProber) Run(ctx context.Context, host models.Host, user string, secret *vault.Secret) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu sync.Mutex
	ms []models.Metric
}

func (f *fakeSink) Append(ms []models.Metric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ms = append(f.ms, ms...)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ms)
}

func newTestScheduler(hosts *fakeHosts, creds CredentialSource, probe Prober, sink MetricSink) (*Scheduler, *time.Time) {
	s := NewScheduler(hosts, creds, probe, sink,
		30*time.Second, 10*time.Second, 5*time.Minute, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestScheduler_SuccessfulCollection(t *testing.T) {
	host := models.Host{ID: uuid.New(), Name: "web-1", Address: "10.0.0.1"}
	hosts := newFakeHosts(host)
	probe := &fakeProber{output: sampleOutput}
	sink := &fakeSink{}

	s, _ := newTestScheduler(hosts, &fakeCreds{}, probe, sink)
	s.CollectAll(context.Background())

	if sink.count() == 0 {
		t.Fatal("no metrics appended after successful collection")
	}
	if _, ok := hosts.seen[host.ID]; !ok {
		t.Error("host not marked seen")
	}
	if got := hosts.status(host.ID); got != models.HostOnline {
		t.Errorf("status: got %q, want online", got)
	}
	if s.FailureCount(host.ID) != 0 {
		t.Errorf("failure count: got %d, want 0", s.FailureCount(host.ID))
	}
}

func TestScheduler_FailureBacksOff(t *testing.T) {
	host := models.Host{ID: uuid.New(), Name: "web-1"}
	hosts := newFakeHosts(host)
	probe := &fakeProber{err: errors.New("connection refused")}
	sink := &fakeSink{}

	s, now := newTestScheduler(hosts, &fakeCreds{}, probe, sink)

	s.CollectAll(context.Background())
	if probe.callCount() != 1 {
		t.Fatalf("probe calls: got %d, want 1", probe.callCount())
	}
	if s.FailureCount(host.ID) != 1 {
		t.Errorf("failure count: got %d, want 1", s.FailureCount(host.ID))
	}

	// Still inside the backoff window: the host is skipped.
	s.CollectAll(context.Background())
	if probe.callCount() != 1 {
		t.Errorf("probe calls during backoff: got %d, want 1", probe.callCount())
	}

	// Past the window the host is retried.
	*now = now.Add(31 * time.Second)
	s.CollectAll(context.Background())
	if probe.callCount() != 2 {
		t.Errorf("probe calls after backoff: got %d, want 2", probe.callCount())
	}

	// No metrics ever reached the sink and last-seen was never bumped.
	if sink.count() != 0 {
		t.Errorf("metrics appended on failure: %d", sink.count())
	}
	if _, ok := hosts.seen[host.ID]; ok {
		t.Error("failed host was marked seen")
	}
}

func TestScheduler_DegradedAfterConsecutiveFailures(t *testing.T) {
	host := models.Host{ID: uuid.New(), Name: "web-1"}
	hosts := newFakeHosts(host)
	probe := &fakeProber{err: errors.New("timeout")}

	s, now := newTestScheduler(hosts, &fakeCreds{}, probe, &fakeSink{})

	for i := 0; i < degradedAfter; i++ {
		s.CollectAll(context.Background())
		*now = now.Add(10 * time.Minute) // clear any backoff
	}

	if got := hosts.status(host.ID); got != models.HostDegraded {
		t.Errorf("status after %d failures: got %q, want degraded", degradedAfter, got)
	}

	// A success clears the streak and restores online.
	probe.err = nil
	probe.output = sampleOutput
	s.CollectAll(context.Background())

	if got := hosts.status(host.ID); got != models.HostOnline {
		t.Errorf("status after recovery: got %q, want online", got)
	}
	if s.FailureCount(host.ID) != 0 {
		t.Errorf("failure count after recovery: got %d", s.FailureCount(host.ID))
	}
}

func TestScheduler_CredentialFailureCountsAsFailure(t *testing.T) {
	host := models.Host{ID: uuid.New(), Name: "web-1"}
	hosts := newFakeHosts(host)
	probe := &fakeProber{output: sampleOutput}

	s, _ := newTestScheduler(hosts, &fakeCreds{err: errors.New("no default credential")}, probe, &fakeSink{})
	s.CollectAll(context.Background())

	if probe.callCount() != 0 {
		t.Errorf("probe called without credentials: %d", probe.callCount())
	}
	if s.FailureCount(host.ID) != 1 {
		t.Errorf("failure count: got %d, want 1", s.FailureCount(host.ID))
	}
}

func TestScheduler_BackoffDoublesAndCaps(t *testing.T) {
	s, _ := newTestScheduler(newFakeHosts(), &fakeCreds{}, &fakeProber{}, &fakeSink{})

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{5, 5 * time.Minute}, // capped
		{10, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := s.backoff(tc.failures); got != tc.want {
			t.Errorf("backoff(%d): got %v, want %v", tc.failures, got, tc.want)
		}
	}
}
