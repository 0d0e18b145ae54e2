// Package observe delivers versioned values to subscribers.
//
// Calls to one subscriber never overlap and never go backwards. A value
// published while the subscriber is still busy with an earlier one waits
// as its pending value; a newer publish replaces it, and an older one is
// dropped. The pending value is handed over as soon as the current call
// returns, by the goroutine that made that call.
package observe

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

// Set is a group of subscribers for values of type T.
type Set[T any] struct {
	next *atomic.Uint64
	subs *xsync.MapOf[uint64, *subscriber[T]]
}

type subscriber[T any] struct {
	fn func(T)

	mu        sync.Mutex
	running   bool
	closed    bool
	delivered uint64
	pending   uint64 // version of val; 0 when nothing waits
	val       T
}

// NewSet creates an empty Set.
func NewSet[T any]() *Set[T] {
	return &Set[T]{
		next: atomic.NewUint64(0),
		subs: xsync.NewMapOf[uint64, *subscriber[T]](),
	}
}

// Subscribe registers fn and returns a function that removes it. After
// cancel returns, fn receives nothing further except a call already in
// progress.
func (s *Set[T]) Subscribe(fn func(T)) (cancel func()) {
	id := s.next.Inc()
	sub := &subscriber[T]{fn: fn}
	s.subs.Store(id, sub)
	return func() {
		s.subs.Delete(id)
		sub.close()
	}
}

// Publish offers v, stamped with version, to every subscriber. Versions
// must increase with every change of the publisher's state and start at 1.
// Publish may be called concurrently and outside the publisher's lock.
func (s *Set[T]) Publish(version uint64, v T) {
	s.subs.Range(func(_ uint64, sub *subscriber[T]) bool {
		sub.offer(version, v)
		return true
	})
}

// Clear removes every subscriber.
func (s *Set[T]) Clear() {
	s.subs.Range(func(id uint64, sub *subscriber[T]) bool {
		s.subs.Delete(id)
		sub.close()
		return true
	})
}

// Len returns the number of subscribers.
func (s *Set[T]) Len() int {
	return s.subs.Size()
}

func (sub *subscriber[T]) close() {
	sub.mu.Lock()
	sub.closed = true
	var zero T
	sub.val, sub.pending = zero, 0
	sub.mu.Unlock()
}

func (sub *subscriber[T]) offer(version uint64, v T) {
	sub.mu.Lock()
	if sub.closed || version <= sub.delivered || version <= sub.pending {
		sub.mu.Unlock()
		return
	}
	sub.pending, sub.val = version, v
	if sub.running {
		sub.mu.Unlock()
		return
	}

	sub.running = true
	for sub.pending != 0 && !sub.closed {
		next := sub.val
		sub.delivered = sub.pending
		var zero T
		sub.val, sub.pending = zero, 0
		sub.mu.Unlock()
		sub.fn(next)
		sub.mu.Lock()
	}
	sub.running = false
	sub.mu.Unlock()
}
