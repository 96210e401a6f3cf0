package observe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/fincoach/internal/common"
)

// DefaultAsyncBuffer is the queue length of an AsyncSink.
const DefaultAsyncBuffer = 256

// AsyncSink delivers events to another sink on a background goroutine. When
// the queue is full new events are dropped rather than blocking the caller.
type AsyncSink struct {
	next    Sink
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
	closed  atomic.Bool
	once    sync.Once
	mu      sync.RWMutex
}

// NewAsyncSink starts the delivery goroutine. Call Close to stop it.
func NewAsyncSink(next Sink, buffer int, logger *slog.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	s := &AsyncSink{
		next:   next,
		logger: common.LoggerOrDefault(logger),
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.queue {
		// Delivery outlives the request that produced the event.
		s.next.Emit(context.Background(), e)
	}
}

// Emit implements Sink. It never blocks.
func (s *AsyncSink) Emit(_ context.Context, e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- e:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("event queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.queue)
		s.mu.Unlock()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
