package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/store"
)

func batch(total int, sources ...string) store.Tail {
	t := store.Tail{Total: total}
	for i, src := range sources {
		t.Records = append(t.Records, &model.Record{Source: src, Timestamp: model.At(float64(i))})
	}
	return t
}

func waitForTotal(t *testing.T, agg *Aggregator, want int64) Stats {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		stats := agg.Snapshot()
		if stats.TotalRecords == want {
			return stats
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d total records, got %d", want, stats.TotalRecords)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRateCalculation(t *testing.T) {
	ch := make(chan store.Tail, 100)
	agg := New(ch, Sources{FilesWatched: func() int { return 2 }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Start(ctx)

	for i := 0; i < 5; i++ {
		ch <- batch((i+1)*2, "a.log", "b.log")
	}

	stats := waitForTotal(t, agg, 10)
	if stats.RecordsPerSecond != 2 {
		t.Errorf("expected 2 records/s over the window, got %f", stats.RecordsPerSecond)
	}
	if stats.StoreSize != 10 {
		t.Errorf("expected store size 10, got %d", stats.StoreSize)
	}
	if stats.FilesWatched != 2 {
		t.Errorf("expected 2 files watched, got %d", stats.FilesWatched)
	}
}

func TestSourceCounts(t *testing.T) {
	ch := make(chan store.Tail, 100)
	agg := New(ch, Sources{
		Rejected: func() int64 { return 7 },
		Dropped:  func() int64 { return 3 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Start(ctx)

	ch <- batch(3, "a.log", "a.log", "b.log")
	ch <- batch(5, "c.log", "a.log")

	stats := waitForTotal(t, agg, 5)
	if stats.SourceCounts["a.log"] != 3 {
		t.Errorf("expected 3 from a.log, got %d", stats.SourceCounts["a.log"])
	}
	if stats.SourceCounts["b.log"] != 1 || stats.SourceCounts["c.log"] != 1 {
		t.Errorf("unexpected source counts: %v", stats.SourceCounts)
	}
	if stats.Rejected != 7 || stats.Dropped != 3 {
		t.Errorf("expected rejected=7 dropped=3, got rejected=%d dropped=%d", stats.Rejected, stats.Dropped)
	}
	if stats.FilesWatched != 0 {
		t.Errorf("expected 0 files watched without a source, got %d", stats.FilesWatched)
	}
}

func TestPruneDropsOldSamples(t *testing.T) {
	agg := New(nil, Sources{})
	agg.window = []sample{
		{at: time.Now().Add(-time.Minute), count: 100},
		{at: time.Now(), count: 5},
	}
	agg.prune()

	if len(agg.window) != 1 {
		t.Fatalf("expected 1 sample after prune, got %d", len(agg.window))
	}
	if got := agg.Snapshot().RecordsPerSecond; got != 1 {
		t.Errorf("expected 1 record/s, got %f", got)
	}
}
