package events

import (
	"context"
	"sync"
)

// Bus is a lightweight pub/sub broker for observability fan-out. Publishing
// never blocks: a subscriber that cannot keep up observes gaps. Signal and
// position flow must NOT ride on the bus; use a Pipeline for those.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan any)}
}

// Subscribe registers a listener for a topic and returns the channel and an
// unsubscribe function.
func (b *Bus) Subscribe(t Topic, buffer int) (<-chan any, func()) {
	if buffer <= 0 {
		buffer = DefaultCapacity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[t] = append(b.subs[t], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[t]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Publish fans the payload out to subscribers without blocking.
func (b *Bus) Publish(t Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[t] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}

// Close closes every subscriber channel. Publish must not be called after.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, t)
	}
}

// Pipeline is a bounded lossless FIFO between one pipeline stage and the
// next. Senders block when the buffer is full, so backpressure reaches the
// producer instead of dropping events.
type Pipeline[T any] struct {
	ch chan T
}

// NewPipeline creates a pipeline channel with the given capacity.
func NewPipeline[T any](capacity int) *Pipeline[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pipeline[T]{ch: make(chan T, capacity)}
}

// Send enqueues v, waiting for capacity. It returns ctx.Err if the context
// is cancelled first.
func (p *Pipeline[T]) Send(ctx context.Context, v T) error {
	select {
	case p.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v without blocking and reports whether it was accepted.
func (p *Pipeline[T]) TrySend(v T) bool {
	select {
	case p.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the consumer side of the pipeline.
func (p *Pipeline[T]) Receive() <-chan T {
	return p.ch
}

// Len reports the number of buffered items.
func (p *Pipeline[T]) Len() int { return len(p.ch) }

// Close closes the sending side. Only the producer may call it.
func (p *Pipeline[T]) Close() { close(p.ch) }
