package buffer

import (
	"sync"

	"github.com/faisal-shah/logmerge/internal/model"
)

// RecordBuffer is an unbounded FIFO handoff between many producers and a
// single consumer. Push never blocks beyond lock contention.
type RecordBuffer struct {
	mu      sync.Mutex
	pending []*model.Record
}

// New returns an empty buffer.
func New() *RecordBuffer {
	return &RecordBuffer{}
}

// Push appends a record. Safe for concurrent use.
func (b *RecordBuffer) Push(rec *model.Record) {
	b.mu.Lock()
	b.pending = append(b.pending, rec)
	b.mu.Unlock()
}

// DrainAll removes and returns every queued record in push order. An empty
// buffer yields an empty batch.
func (b *RecordBuffer) DrainAll() []*model.Record {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()
	return batch
}

// Len reports the number of queued records.
func (b *RecordBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
