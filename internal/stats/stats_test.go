package stats

import (
	"testing"
	"time"
)

func TestConversionsSnapshotPercentiles(t *testing.T) {
	c := NewConversions(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		c.Record("markdown", time.Duration(ms)*time.Millisecond, false)
	}

	snap := c.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestConversionsPrunesExpiredSamples(t *testing.T) {
	c := NewConversions(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Record("html", 100*time.Millisecond, false)
	now = now.Add(2 * time.Minute)

	if snap := c.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	c.Record("html", 200*time.Millisecond, false)
	snap := c.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one fresh 200ms sample, got %+v", snap)
	}
}

func TestConversionsByLabel(t *testing.T) {
	c := NewConversions(time.Hour)
	c.Record("html", 10*time.Millisecond, false)
	c.Record("html", 30*time.Millisecond, true)
	c.Record("markdown", -time.Second, false)

	by := c.ByLabel()
	if len(by) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(by))
	}
	if h := by["html"]; h.Count != 2 || h.Failures != 1 || h.AvgMs != 20 {
		t.Errorf("unexpected html snapshot %+v", h)
	}
	if m := by["markdown"]; m.Count != 1 || m.MaxMs != 0 {
		t.Errorf("expected clamped markdown sample, got %+v", m)
	}
}
