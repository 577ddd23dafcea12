// Package stream provides a replay-last observable value.
//
// A Value caches the most recently published item and fans it out to any
// number of subscribers. A new subscriber immediately receives the cached
// item, if one was ever published. Each subscriber owns a buffered channel;
// when a reader falls behind, the oldest pending item is dropped so the
// reader always converges on the latest value and Publish never blocks.
package stream

import (
	"sync"
)

// DefaultBuffer is the per-subscriber buffer used when none is given.
const DefaultBuffer = 16

// Value is a cached-value-plus-subscriber-list primitive.
type Value[T any] struct {
	mu     sync.Mutex
	last   T
	set    bool
	closed bool
	buffer int
	subs   map[*subscriber[T]]struct{}
}

type subscriber[T any] struct {
	ch   chan T
	once sync.Once
}

// New creates an empty Value. A non-positive buffer falls back to DefaultBuffer.
func New[T any](buffer int) *Value[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Value[T]{
		buffer: buffer,
		subs:   make(map[*subscriber[T]]struct{}),
	}
}

// Subscribe registers a new observer. The returned function unsubscribes and
// closes the channel; calling it more than once is safe. Subscribing to a
// closed Value returns a closed channel.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sub := &subscriber[T]{ch: make(chan T, v.buffer)}
	if v.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	if v.set {
		sub.ch <- v.last
	}
	v.subs[sub] = struct{}{}

	unsubscribe := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[sub]; !ok {
			return
		}
		delete(v.subs, sub)
		sub.close()
	}
	return sub.ch, unsubscribe
}

// Publish caches item and delivers it to every current subscriber.
func (v *Value[T]) Publish(item T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.last = item
	v.set = true
	for sub := range v.subs {
		sub.offer(item)
	}
}

// Last returns the cached item and whether one was ever published.
func (v *Value[T]) Last() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last, v.set
}

// Subscribers returns the number of active subscribers.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for sub := range v.subs {
		sub.close()
	}
	v.subs = make(map[*subscriber[T]]struct{})
}

// offer sends item, evicting the oldest pending item when the buffer is full.
// Callers hold the Value lock, so there is exactly one sender per channel.
func (s *subscriber[T]) offer(item T) {
	select {
	case s.ch <- item:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- item:
	default:
	}
}

func (s *subscriber[T]) close() {
	s.once.Do(func() { close(s.ch) })
}
