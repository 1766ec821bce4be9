// Package stats keeps rolling-window latency statistics for extraction calls.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	timestamp time.Time
	micros    int64
	tables    int
	failed    bool
}

// Snapshot is a point-in-time aggregate of the samples in the window.
// Latencies are reported in milliseconds.
type Snapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	Tables   int     `json:"tables"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// Extraction tracks recent extraction calls within a rolling window.
type Extraction struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func New(maxAge time.Duration) *Extraction {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Extraction{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one extraction call. tables is the number of tables returned.
func (s *Extraction) Record(d time.Duration, tables int, err error) {
	micros := max(d.Microseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp: now,
		micros:    micros,
		tables:    tables,
		failed:    err != nil,
	})
}

func (s *Extraction) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return Snapshot{}
	}

	snap := Snapshot{Count: len(s.samples)}
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.micros)
		sum += sm.micros
		snap.Tables += sm.tables
		if sm.failed {
			snap.Failures++
		}
	}
	slices.Sort(values)

	snap.MinMs = ms(float64(values[0]))
	snap.MaxMs = ms(float64(values[len(values)-1]))
	snap.AvgMs = ms(float64(sum) / float64(len(values)))
	snap.P50Ms = ms(percentile(values, 50))
	snap.P95Ms = ms(percentile(values, 95))
	snap.P99Ms = ms(percentile(values, 99))
	return snap
}

func ms(micros float64) float64 { return micros / 1000 }

func (s *Extraction) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.timestamp.Before(cutoff)
	})
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}
