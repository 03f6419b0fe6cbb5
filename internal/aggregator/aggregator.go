package aggregator

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/faisal-shah/logmerge/internal/store"
)

const rateWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime           string           `json:"uptime"`
	TotalRecords     int64            `json:"total_records"`
	StoreSize        int              `json:"store_size"`
	RecordsPerSecond float64          `json:"records_per_second"`
	SourceCounts     map[string]int64 `json:"source_counts"`
	Rejected         int64            `json:"rejected_lines"`
	Dropped          int64            `json:"dropped_records"`
	FilesWatched     int              `json:"files_watched"`
}

// Sources provides live values owned by other components.
type Sources struct {
	Dropped      func() int64
	Rejected     func() int64
	FilesWatched func() int
}

type sample struct {
	at    time.Time
	count int
}

// Aggregator consumes merged tail batches and computes time-windowed metrics.
type Aggregator struct {
	mu           sync.RWMutex
	startTime    time.Time
	totalRecords int64
	storeSize    int
	sourceCounts map[string]int64
	window       []sample // merged counts for the rate calculation
	src          Sources
	tails        <-chan store.Tail
}

// New creates an Aggregator that reads from the given hub subscription.
// Unset Sources functions report zero.
func New(tails <-chan store.Tail, src Sources) *Aggregator {
	if src.Dropped == nil {
		src.Dropped = func() int64 { return 0 }
	}
	if src.Rejected == nil {
		src.Rejected = func() int64 { return 0 }
	}
	if src.FilesWatched == nil {
		src.FilesWatched = func() int { return 0 }
	}
	return &Aggregator{
		startTime:    time.Now(),
		sourceCounts: make(map[string]int64),
		src:          src,
		tails:        tails,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cutoff := time.Now().Add(-rateWindow)
	var recent int
	for _, s := range a.window {
		if s.at.After(cutoff) {
			recent += s.count
		}
	}

	return Stats{
		Uptime:           time.Since(a.startTime).Truncate(time.Second).String(),
		TotalRecords:     a.totalRecords,
		StoreSize:        a.storeSize,
		RecordsPerSecond: float64(recent) / rateWindow.Seconds(),
		SourceCounts:     maps.Clone(a.sourceCounts),
		Rejected:         a.src.Rejected(),
		Dropped:          a.src.Dropped(),
		FilesWatched:     a.src.FilesWatched(),
	}
}

// Start consumes batches until the context is cancelled or the
// subscription is closed.
func (a *Aggregator) Start(ctx context.Context) {
	// Periodically prune the sliding window.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-a.tails:
			if !ok {
				return
			}
			a.record(t)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(t store.Tail) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRecords += int64(len(t.Records))
	a.storeSize = t.Total
	for _, r := range t.Records {
		a.sourceCounts[r.Source]++
	}
	a.window = append(a.window, sample{at: time.Now(), count: len(t.Records)})
}

// prune removes samples older than the rate window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-rateWindow)
	i := 0
	for _, s := range a.window {
		if s.at.After(cutoff) {
			a.window[i] = s
			i++
		}
	}
	a.window = a.window[:i]
}
