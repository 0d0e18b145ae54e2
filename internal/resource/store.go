// Package resource holds the client-side copy of the subscription collection
// and keeps it in step with the service.
package resource

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/wondertwin-ai/subtrack/internal/clock"
	"github.com/wondertwin-ai/subtrack/internal/observe"
	"github.com/wondertwin-ai/subtrack/internal/remote"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// ErrSuperseded is returned by FetchAll when a newer fetch was issued (or the
// store was detached) before this one completed. Its result was discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// Lister loads the full collection.
type Lister interface {
	List(ctx context.Context) ([]subscription.Subscription, error)
}

// Status is the load state of the collection.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the store. Items is in server order.
type Snapshot struct {
	Items     []subscription.Subscription
	Status    Status
	Err       string
	FetchedAt time.Time
}

// Sorted returns Items ordered by name for display.
func (s Snapshot) Sorted() []subscription.Subscription {
	return subscription.SortByName(s.Items)
}

// Store is the single writer of the local collection. All state changes go
// through its methods and happen under one lock.
type Store struct {
	lister Lister
	logger *slog.Logger
	clock  clock.Clock

	// gen is bumped under mu but read without it to drop superseded
	// fetches early.
	gen       atomic.Uint64
	observers *observe.Set[Snapshot]

	mu        sync.Mutex
	version   uint64
	items     []subscription.Subscription
	status    Status
	errMsg    string
	fetchedAt time.Time
	cancel    context.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock sets the clock used to stamp FetchedAt.
func WithClock(c clock.Clock) Option { return func(s *Store) { s.clock = c } }

// New creates an empty, idle store that loads from lister.
func New(lister Lister, opts ...Option) *Store {
	s := &Store{
		lister:    lister,
		logger:    slog.Default(),
		clock:     clock.Real(),
		items:     []subscription.Subscription{},
		observers: observe.NewSet[Snapshot](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll reloads the collection. On success the collection is replaced
// wholesale; on failure it is kept and the status becomes StatusError. Only
// the most recently issued fetch is applied: an older one that completes
// later returns ErrSuperseded and changes nothing. Issuing a fetch cancels
// the request of the one it supersedes.
func (s *Store) FetchAll(ctx context.Context) error {
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	gen := s.gen.Inc()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.status = StatusLoading
	s.errMsg = ""
	version, snap := s.changedLocked()
	s.mu.Unlock()
	s.observers.Publish(version, snap)

	items, err := s.lister.List(fctx)
	if !s.isCurrent(gen) {
		s.logger.Debug("discarding superseded fetch", "generation", gen)
		return ErrSuperseded
	}

	s.mu.Lock()
	if !s.isCurrent(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded fetch", "generation", gen)
		return ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.status = StatusError
		s.errMsg = remote.Reason(err)
	} else {
		s.items = dedupe(items)
		s.status = StatusIdle
		s.fetchedAt = s.clock.Now()
	}
	version, snap = s.changedLocked()
	s.mu.Unlock()
	s.observers.Publish(version, snap)

	if err != nil {
		s.logger.Debug("fetch failed", "err", err)
	}
	return err
}

// ApplyCreated appends rec unless a record with its ID is already present.
// It reports whether the collection changed.
func (s *Store) ApplyCreated(rec subscription.Subscription) bool {
	return s.apply(func() bool {
		if s.indexLocked(rec.ID) >= 0 {
			return false
		}
		s.items = append(s.items, rec)
		return true
	})
}

// ApplyUpdated replaces the record with rec's ID. An unknown ID is logged
// and ignored.
func (s *Store) ApplyUpdated(rec subscription.Subscription) bool {
	return s.apply(func() bool {
		i := s.indexLocked(rec.ID)
		if i < 0 {
			s.logger.Warn("update for subscription not in local collection", "id", rec.ID)
			return false
		}
		s.items[i] = rec
		return true
	})
}

// ApplyDeleted removes the record with id. It is a no-op if absent.
func (s *Store) ApplyDeleted(id string) bool {
	return s.apply(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return true
	})
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive the new snapshot after every change.
// Calls to fn run outside the store lock, one at a time and in change
// order; a snapshot superseded while fn is still busy is skipped.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	return s.observers.Subscribe(fn)
}

// Attach starts the initial fetch in the background.
func (s *Store) Attach(ctx context.Context) {
	go func() {
		if err := s.FetchAll(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			s.logger.Debug("initial fetch failed", "err", err)
		}
	}()
}

// Detach supersedes and cancels any in-flight fetch and drops all observers.
func (s *Store) Detach() {
	s.mu.Lock()
	s.gen.Inc()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.status == StatusLoading {
		s.status = StatusIdle
	}
	s.mu.Unlock()
	s.observers.Clear()
}

func (s *Store) apply(change func() bool) bool {
	s.mu.Lock()
	if !change() {
		s.mu.Unlock()
		return false
	}
	version, snap := s.changedLocked()
	s.mu.Unlock()
	s.observers.Publish(version, snap)
	return true
}

func (s *Store) indexLocked(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]subscription.Subscription, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:     items,
		Status:    s.status,
		Err:       s.errMsg,
		FetchedAt: s.fetchedAt,
	}
}

// changedLocked stamps a new state version and returns it with the
// snapshot to publish.
func (s *Store) changedLocked() (uint64, Snapshot) {
	s.version++
	return s.version, s.snapshotLocked()
}

func (s *Store) isCurrent(gen uint64) bool {
	return s.gen.Load() == gen
}

// dedupe keeps the first record for each ID.
func dedupe(items []subscription.Subscription) []subscription.Subscription {
	seen := make(map[string]struct{}, len(items))
	out := make([]subscription.Subscription, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
