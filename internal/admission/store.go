package admission

import (
	"sync"
	"time"
)

// entry pairs a bucket with its own lock. All reads and writes of the
// bucket fields go through entry.mu; lastSeen is guarded by the store
// lock instead, so the sweeper never has to take both.
type entry struct {
	mu sync.Mutex
	b  Bucket

	lastSeen time.Time
}

// store is the scope-key registry. Entries are created lazily on first
// sight of a key and, unless an idle TTL is configured, never removed.
type store struct {
	rate int

	mu      sync.Mutex
	entries map[string]*entry
}

func newStore(rate int) *store {
	return &store{
		rate:    rate,
		entries: make(map[string]*entry),
	}
}

// getOrCreate returns the entry for key, initializing it to a full
// bucket on first access. Holding the store lock across the lookup and
// insert guarantees two concurrent first requests for a new key share
// one bucket.
func (s *store) getOrCreate(key string, now time.Time) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	ent := &entry{
		b:        Bucket{Remaining: s.rate, ResetAt: now},
		lastSeen: now,
	}
	s.entries[key] = ent
	return ent
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops entries not seen since the cutoff. A request that raced
// the sweep may still mutate its orphaned bucket; the next request for
// that key simply starts a fresh one.
func (s *store) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
