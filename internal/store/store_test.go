package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func metric(host uuid.UUID, name string, at time.Time, value float64, tags map[string]string) models.Metric {
	return models.Metric{
		Time:   at,
		HostID: host,
		Type:   models.MetricTypeCPU,
		Name:   name,
		Value:  value,
		Tags:   tags,
	}
}

func TestStore_AppendAndQuery(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()

	s.Append([]models.Metric{
		metric(host, "usage_percent", t0, 10, nil),
		metric(host, "usage_percent", t0.Add(15*time.Second), 20, nil),
		metric(host, "usage_percent", t0.Add(30*time.Second), 30, nil),
	})

	series := s.Query(host, models.MetricTypeCPU, "usage_percent", t0)
	if len(series) != 1 {
		t.Fatalf("series: got %d, want 1", len(series))
	}
	pts := series[0].Points
	if len(pts) != 3 {
		t.Fatalf("points: got %d, want 3", len(pts))
	}
	if pts[0].Value != 10 || pts[2].Value != 30 {
		t.Errorf("points: got %+v", pts)
	}
}

func TestStore_QueryWindowExcludesOlderPoints(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()

	s.Append([]models.Metric{
		metric(host, "usage_percent", t0, 10, nil),
		metric(host, "usage_percent", t0.Add(time.Minute), 20, nil),
	})

	series := s.Query(host, models.MetricTypeCPU, "usage_percent", t0.Add(30*time.Second))
	if len(series) != 1 || len(series[0].Points) != 1 {
		t.Fatalf("windowed query: got %+v", series)
	}
	if series[0].Points[0].Value != 20 {
		t.Errorf("value: got %v, want 20", series[0].Points[0].Value)
	}

	// Entirely past the data: nothing comes back.
	if got := s.Query(host, models.MetricTypeCPU, "usage_percent", t0.Add(time.Hour)); len(got) != 0 {
		t.Errorf("empty window: got %d series", len(got))
	}
}

func TestStore_SeriesSplitByTags(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()

	s.Append([]models.Metric{
		{Time: t0, HostID: host, Type: models.MetricTypeDisk, Name: "usage_percent",
			Value: 90, Tags: map[string]string{"mount_point": "/data"}},
		{Time: t0, HostID: host, Type: models.MetricTypeDisk, Name: "usage_percent",
			Value: 30, Tags: map[string]string{"mount_point": "/"}},
	})

	series := s.Query(host, models.MetricTypeDisk, "usage_percent", t0)
	if len(series) != 2 {
		t.Fatalf("series: got %d, want 2", len(series))
	}
	for _, sr := range series {
		switch sr.Tags["mount_point"] {
		case "/data":
			if sr.Points[0].Value != 90 {
				t.Errorf("/data: got %v", sr.Points[0].Value)
			}
		case "/":
			if sr.Points[0].Value != 30 {
				t.Errorf("/: got %v", sr.Points[0].Value)
			}
		default:
			t.Errorf("unexpected series tags: %v", sr.Tags)
		}
	}
}

func TestStore_HostsIsolated(t *testing.T) {
	s := New(time.Hour)
	a, b := uuid.New(), uuid.New()

	s.Append([]models.Metric{metric(a, "usage_percent", t0, 10, nil)})
	s.Append([]models.Metric{metric(b, "usage_percent", t0, 99, nil)})

	series := s.Query(a, models.MetricTypeCPU, "usage_percent", t0)
	if len(series) != 1 || series[0].Points[0].Value != 10 {
		t.Errorf("host a query leaked data: %+v", series)
	}
}

func TestStore_OutOfOrderAppend(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()

	s.Append([]models.Metric{metric(host, "usage_percent", t0.Add(30*time.Second), 30, nil)})
	s.Append([]models.Metric{metric(host, "usage_percent", t0, 10, nil)})
	s.Append([]models.Metric{metric(host, "usage_percent", t0.Add(15*time.Second), 20, nil)})

	series := s.Query(host, models.MetricTypeCPU, "usage_percent", t0)
	pts := series[0].Points
	for i := 1; i < len(pts); i++ {
		if pts[i].Time.Before(pts[i-1].Time) {
			t.Fatalf("points not sorted: %+v", pts)
		}
	}
	if pts[0].Value != 10 || pts[1].Value != 20 || pts[2].Value != 30 {
		t.Errorf("points: got %+v", pts)
	}
}

func TestStore_Latest(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()

	if _, ok := s.Latest(host, models.MetricTypeCPU, "usage_percent"); ok {
		t.Error("Latest on empty store reported a point")
	}

	s.Append([]models.Metric{
		metric(host, "usage_percent", t0, 10, nil),
		metric(host, "usage_percent", t0.Add(time.Minute), 55, nil),
	})

	p, ok := s.Latest(host, models.MetricTypeCPU, "usage_percent")
	if !ok || p.Value != 55 {
		t.Errorf("Latest: got %+v ok=%v, want value 55", p, ok)
	}
}

func TestStore_Evict(t *testing.T) {
	s := New(30 * time.Minute)
	host := uuid.New()

	s.Append([]models.Metric{
		metric(host, "usage_percent", t0, 10, nil),
		metric(host, "usage_percent", t0.Add(20*time.Minute), 20, nil),
		metric(host, "old_metric", t0, 1, nil),
	})

	// 40 minutes in, the t0 points are past retention.
	dropped := s.Evict(t0.Add(40 * time.Minute))
	if dropped != 2 {
		t.Errorf("dropped: got %d, want 2", dropped)
	}

	series := s.Query(host, models.MetricTypeCPU, "usage_percent", t0)
	if len(series) != 1 || len(series[0].Points) != 1 {
		t.Fatalf("after evict: got %+v", series)
	}
	if series[0].Points[0].Value != 20 {
		t.Errorf("surviving point: got %v", series[0].Points[0].Value)
	}

	// The fully-drained series is removed entirely.
	if s.Count() != 1 {
		t.Errorf("series count after evict: got %d, want 1", s.Count())
	}
}

func TestStore_QueryReturnsCopies(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()
	s.Append([]models.Metric{metric(host, "usage_percent", t0, 10, nil)})

	series := s.Query(host, models.MetricTypeCPU, "usage_percent", t0)
	series[0].Points[0].Value = 999

	again := s.Query(host, models.MetricTypeCPU, "usage_percent", t0)
	if again[0].Points[0].Value != 10 {
		t.Error("caller mutation leaked into the store")
	}
}

func TestStore_QueryReturnsTagCopies(t *testing.T) {
	s := New(time.Hour)
	host := uuid.New()
	s.Append([]models.Metric{metric(host, "used_percent", t0, 80, map[string]string{"mount_point": "/data"})})

	series := s.Query(host, models.MetricTypeCPU, "used_percent", t0)
	series[0].Tags["mount_point"] = "/tampered"

	again := s.Query(host, models.MetricTypeCPU, "used_percent", t0)
	if got := again[0].Tags["mount_point"]; got != "/data" {
		t.Errorf("tag mutation leaked into the store: got %q", got)
	}
}
