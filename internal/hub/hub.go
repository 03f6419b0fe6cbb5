package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/faisal-shah/logmerge/internal/store"
)

const (
	inputBuffer      = 256
	subscriberBuffer = 1024
)

// Hub fans merged tail batches out to every subscriber. It is fed by the
// store's follow-mode notifier and never blocks the drainer.
type Hub struct {
	input       chan store.Tail
	logger      *slog.Logger
	mu          sync.RWMutex
	subscribers []chan store.Tail
	dropped     atomic.Int64
}

// New creates a Hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		input:  make(chan store.Tail, inputBuffer),
		logger: logger,
	}
}

// Publish queues a tail batch for broadcast. If the hub is backed up the
// batch is dropped and counted.
func (h *Hub) Publish(t store.Tail) {
	select {
	case h.input <- t:
	default:
		h.drop(len(t.Records), "hub input full")
	}
}

// Subscribe returns a buffered channel that will receive every tail batch.
func (h *Hub) Subscribe() <-chan store.Tail {
	ch := make(chan store.Tail, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(sub <-chan store.Tail) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.subscribers {
		if ch == sub {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of records dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start broadcasts published batches until the context is cancelled. Batches
// already queued at that point are still broadcast before every subscriber
// channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			h.flush()
			return
		case t := <-h.input:
			h.broadcast(t)
		}
	}
}

func (h *Hub) flush() {
	for {
		select {
		case t := <-h.input:
			h.broadcast(t)
		default:
			return
		}
	}
}

// broadcast sends a batch to all subscribers.
// If a subscriber's channel is full, the batch is dropped for that subscriber.
func (h *Hub) broadcast(t store.Tail) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- t:
		default:
			h.drop(len(t.Records), "slow consumer")
		}
	}
}

func (h *Hub) drop(n int, reason string) {
	total := h.dropped.Add(int64(n))
	h.logger.Debug("dropped tail records", "reason", reason, "records", n, "total_dropped", total)
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
