package events

import "sync"

// Bus is a per-task serial channel: a single producer-ordered stream that
// a single observer drains, replacing the source's callback triplet
// crossing thread boundaries (§9 Design Notes). Implementations may funnel
// state/log/done callbacks through a Bus to guarantee submission-order
// delivery without a lock held across the callback.
type Bus struct {
	ch     chan TaskEvent
	once   sync.Once
	closed chan struct{}
}

// NewBus creates a Bus with the given channel buffer depth.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan TaskEvent, buffer), closed: make(chan struct{})}
}

// Emit enqueues an event. It is a no-op once Close has been called.
func (b *Bus) Emit(evt TaskEvent) {
	select {
	case <-b.closed:
		return
	default:
	}
	select {
	case b.ch <- evt:
	case <-b.closed:
	}
}

// Events returns the receive side of the bus for a single observer to
// drain in order.
func (b *Bus) Events() <-chan TaskEvent {
	return b.ch
}

// Close signals no further events will be emitted and closes the channel.
// Safe to call more than once.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.closed)
		close(b.ch)
	})
}
