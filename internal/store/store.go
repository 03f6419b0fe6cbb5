package store

import (
	"iter"
	"slices"
	"sync"

	"github.com/faisal-shah/logmerge/internal/model"
)

// Tail describes records merged by one InsertBatch, delivered to the tail
// notifier when follow mode is on.
type Tail struct {
	Records []*model.Record // the batch, in timestamp order
	Total   int             // store size after the insert
}

// Option configures a Store.
type Option func(*Store)

// WithFollow installs the follow-mode hook. follow is consulted after every
// non-empty insert; notify is called only when it returns true.
func WithFollow(follow func() bool, notify func(Tail)) Option {
	return func(s *Store) {
		s.follow = follow
		s.notify = notify
	}
}

// Store holds every accepted record in ascending timestamp order, stable on
// ties by arrival, with null timestamps after all timestamped records.
//
// The backing slice is copy-on-write: inserts build a new slice and swap it
// in, so readers holding an older snapshot never observe a partial merge.
type Store struct {
	mu      sync.RWMutex
	records []*model.Record

	follow func() bool
	notify func(Tail)
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertBatch merges batch into the store. The batch is sorted stably first
// because records from different files arrive interleaved.
func (s *Store) InsertBatch(batch []*model.Record) {
	if len(batch) == 0 {
		return
	}

	sorted := slices.Clone(batch)
	slices.SortStableFunc(sorted, compare)

	s.mu.Lock()
	merged := merge(s.records, sorted)
	s.records = merged
	total := len(merged)
	s.mu.Unlock()

	if s.follow != nil && s.notify != nil && s.follow() {
		s.notify(Tail{Records: sorted, Total: total})
	}
}

// merge combines two sorted sequences into a fresh slice. On equal keys the
// existing record comes first.
func merge(existing, incoming []*model.Record) []*model.Record {
	out := make([]*model.Record, 0, len(existing)+len(incoming))

	// Fast path: everything new sorts after the current tail.
	if len(existing) == 0 || !incoming[0].Timestamp.Less(existing[len(existing)-1].Timestamp) {
		out = append(out, existing...)
		return append(out, incoming...)
	}

	i, j := 0, 0
	for i < len(existing) && j < len(incoming) {
		if incoming[j].Timestamp.Less(existing[i].Timestamp) {
			out = append(out, incoming[j])
			j++
		} else {
			out = append(out, existing[i])
			i++
		}
	}
	out = append(out, existing[i:]...)
	return append(out, incoming[j:]...)
}

func compare(a, b *model.Record) int {
	switch {
	case a.Timestamp.Less(b.Timestamp):
		return -1
	case b.Timestamp.Less(a.Timestamp):
		return 1
	default:
		return 0
	}
}

// Snapshot returns the current ordered records. The returned slice must not
// be modified.
func (s *Store) Snapshot() []*model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops every stored record.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// Row is one projected record.
type Row struct {
	Record *model.Record
	Values []model.Value // one per requested column, null when absent
}

// Filter selects records for QueryRows. A nil Filter matches everything.
type Filter func(*model.Record) bool

// QueryRows yields the records matching filter, projected onto columns, in
// store order. Each iteration takes a fresh snapshot of the store, so the
// sequence can be ranged over repeatedly.
func (s *Store) QueryRows(columns []string, filter Filter) iter.Seq[Row] {
	cols := slices.Clone(columns)
	return func(yield func(Row) bool) {
		for _, rec := range s.Snapshot() {
			if filter != nil && !filter(rec) {
				continue
			}
			if !yield(Project(rec, cols)) {
				return
			}
		}
	}
}

// Project picks the named columns out of rec.
func Project(rec *model.Record, columns []string) Row {
	row := Row{Record: rec, Values: make([]model.Value, len(columns))}
	for i, col := range columns {
		if v, ok := rec.Get(col); ok {
			row.Values[i] = v
		}
	}
	return row
}
