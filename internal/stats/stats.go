package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	label    string
	duration time.Duration
	failed   bool
}

// Snapshot aggregates the conversion samples inside the window.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// Conversions tracks recent conversion latencies within a rolling window,
// labelled by output format.
type Conversions struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewConversions(window time.Duration) *Conversions {
	if window <= 0 {
		window = time.Hour
	}
	return &Conversions{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one conversion. Negative durations count as zero.
func (c *Conversions) Record(label string, d time.Duration, failed bool) {
	if d < 0 {
		d = 0
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(now)
	c.samples = append(c.samples, sample{at: now, label: label, duration: d, failed: failed})
}

// Snapshot aggregates every sample regardless of label.
func (c *Conversions) Snapshot() Snapshot {
	return c.snapshot(func(sample) bool { return true })
}

// ByLabel aggregates samples per label.
func (c *Conversions) ByLabel() map[string]Snapshot {
	c.mu.Lock()
	c.pruneLocked(c.now())
	labels := map[string]bool{}
	for _, s := range c.samples {
		labels[s.label] = true
	}
	c.mu.Unlock()

	out := make(map[string]Snapshot, len(labels))
	for label := range labels {
		out[label] = c.snapshot(func(s sample) bool { return s.label == label })
	}
	return out
}

func (c *Conversions) snapshot(keep func(sample) bool) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())

	var snap Snapshot
	values := make([]int64, 0, len(c.samples))
	var sum int64
	for _, s := range c.samples {
		if !keep(s) {
			continue
		}
		if s.failed {
			snap.Failures++
		}
		ms := s.duration.Milliseconds()
		values = append(values, ms)
		sum += ms
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (c *Conversions) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	kept := c.samples[:0]
	for _, s := range c.samples {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	c.samples = kept
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
