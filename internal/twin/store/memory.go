// Package store holds the subscription twin's state in memory.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	pkgstore "github.com/wondertwin-ai/subtrack/pkg/store"

	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// IDPrefix prefixes every generated subscription ID.
const IDPrefix = "sub"

// MemoryStore holds all twin state. Reset restores the seed data, if any.
type MemoryStore struct {
	Subscriptions *pkgstore.Store[subscription.Subscription]

	mu   sync.Mutex
	seed []byte
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		Subscriptions: pkgstore.New[subscription.Subscription](IDPrefix),
	}
}

// Create stores p under a fresh ID.
func (s *MemoryStore) Create(p subscription.Payload) subscription.Subscription {
	rec := subscription.Subscription{ID: s.Subscriptions.NextID(), Payload: p}
	s.Subscriptions.Set(rec.ID, rec)
	return rec
}

// Get returns the subscription with id.
func (s *MemoryStore) Get(id string) (subscription.Subscription, bool) {
	return s.Subscriptions.Get(id)
}

// Update applies patch to subscription id after check accepts the merged
// payload. It reports false if id is absent.
func (s *MemoryStore) Update(id string, patch subscription.Patch, check func(subscription.Payload) error) (subscription.Subscription, bool, error) {
	var checkErr error
	rec, ok := s.Subscriptions.Update(id, func(cur subscription.Subscription) subscription.Subscription {
		next := patch.Apply(cur.Payload)
		if check != nil {
			if checkErr = check(next); checkErr != nil {
				return cur
			}
		}
		cur.Payload = next
		return cur
	})
	return rec, ok, checkErr
}

// Delete removes subscription id.
func (s *MemoryStore) Delete(id string) bool {
	return s.Subscriptions.Delete(id)
}

// List returns all subscriptions in creation order.
func (s *MemoryStore) List() []subscription.Subscription {
	return s.Subscriptions.List()
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Subscriptions []subscription.Subscription `json:"subscriptions"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{Subscriptions: s.List()}
}

// LoadState replaces the full state. It accepts {"subscriptions": [...]} or a
// bare array. Records without an ID are assigned one.
func (s *MemoryStore) LoadState(data []byte) error {
	recs, err := decodeState(data)
	if err != nil {
		return err
	}
	entries := make([]pkgstore.Entry[subscription.Subscription], 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = s.Subscriptions.NextID()
		}
		entries = append(entries, pkgstore.Entry[subscription.Subscription]{ID: rec.ID, Item: rec})
	}
	s.Subscriptions.LoadSnapshot(entries)
	return nil
}

// Seed loads data and remembers it so that Reset restores it.
func (s *MemoryStore) Seed(data []byte) error {
	if err := s.LoadState(data); err != nil {
		return err
	}
	s.mu.Lock()
	s.seed = bytes.Clone(data)
	s.mu.Unlock()
	return nil
}

// Reset clears all state and reloads the seed, if any.
func (s *MemoryStore) Reset() {
	s.Subscriptions.Reset()
	s.mu.Lock()
	seed := s.seed
	s.mu.Unlock()
	if seed != nil {
		// The seed was accepted once already.
		_ = s.LoadState(seed)
	}
}

func decodeState(data []byte) ([]subscription.Subscription, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []subscription.Subscription
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decoding subscriptions: %w", err)
		}
		return recs, nil
	}
	var snap stateSnapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return snap.Subscriptions, nil
}
