package drainer

import (
	"context"
	"time"

	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/model"
)

// DefaultInterval is half the default file poll interval, so new lines
// surface within one poll cycle on average.
const DefaultInterval = 500 * time.Millisecond

// Source yields queued records in batches.
type Source interface {
	DrainAll() []*model.Record
}

// Sink accepts drained batches.
type Sink interface {
	InsertBatch([]*model.Record)
	Len() int
}

// Drainer periodically moves everything queued in a Source into a Sink. It
// never parses or touches file state.
type Drainer struct {
	src      Source
	dst      Sink
	interval time.Duration
	diag     diag.Sink
	metrics  *metrics.Metrics
}

// New creates a Drainer. A non-positive interval selects DefaultInterval.
func New(src Source, dst Sink, interval time.Duration, d diag.Sink, m *metrics.Metrics) *Drainer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if d == nil {
		d = diag.Discard
	}
	return &Drainer{src: src, dst: dst, interval: interval, diag: d, metrics: m}
}

// Run drains on every tick until ctx is cancelled, then drains once more so
// records pushed before shutdown still reach the sink.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Drain()
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain performs one drain and returns the number of records moved.
func (d *Drainer) Drain() int {
	start := time.Now()
	batch := d.src.DrainAll()
	if len(batch) == 0 {
		d.diag.Emit(diag.Event{Kind: diag.KindDrainEmpty})
		return 0
	}

	d.dst.InsertBatch(batch)
	elapsed := time.Since(start)

	d.metrics.ObserveDrain(len(batch), elapsed, d.dst.Len())
	d.diag.Emit(diag.Event{Kind: diag.KindDrained, Count: len(batch), Elapsed: elapsed})
	return len(batch)
}
