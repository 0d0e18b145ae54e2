// Package store provides a generic, thread-safe, in-memory collection for
// twins. Items keep their insertion order and get ULID-based identifiers.
package store

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is an ordered, thread-safe collection of T keyed by ID.
type Store[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	order  []string // insertion order for deterministic listing
	prefix string
	ids    *idSource
}

// New creates a Store whose IDs look like "{prefix}_{ulid}", e.g.
// "sub_01J9Z3...". ULIDs are monotonic, so IDs sort in creation order.
func New[T any](prefix string) *Store[T] {
	return &Store[T]{
		items:  make(map[string]T),
		order:  make([]string, 0),
		prefix: prefix,
		ids:    newIDSource(),
	}
}

// NextID generates a new unique ID.
func (s *Store[T]) NextID() string {
	return s.prefix + "_" + strings.ToLower(s.ids.next().String())
}

// Set stores an item with the given ID. Overwriting an existing ID keeps its
// position in the insertion order.
func (s *Store[T]) Set(id string, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Update applies fn to the item with id under the write lock and stores the
// result. It reports false if id is absent.
func (s *Store[T]) Update(id string, fn func(T) T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	item = fn(item)
	s.items[id] = item
	return item, true
}

// Delete removes an item by ID. Returns true if the item existed.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Find returns the first item, in insertion order, matching predicate.
func (s *Store[T]) Find(predicate func(id string, item T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if predicate(id, s.items[id]) {
			return s.items[id], true
		}
	}
	var zero T
	return zero, false
}

// Reset clears all items.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = make([]string, 0)
}

// Entry is one item with its ID, as used by snapshots.
type Entry[T any] struct {
	ID   string
	Item T
}

// Snapshot returns all items in insertion order.
func (s *Store[T]) Snapshot() []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry[T], 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry[T]{ID: id, Item: s.items[id]})
	}
	return out
}

// LoadSnapshot replaces all items, keeping the given order. A repeated ID
// keeps its first position and its last value.
func (s *Store[T]) LoadSnapshot(entries []Entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(entries))
	s.order = make([]string, 0, len(entries))
	for _, e := range entries {
		if _, exists := s.items[e.ID]; !exists {
			s.order = append(s.order, e.ID)
		}
		s.items[e.ID] = e.Item
	}
}

// idSource hands out monotonic ULIDs. ulid.Monotonic is not safe for
// concurrent use on its own.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
}
