package stats

import (
	"context"
	"sync"
)

// Counters holds allowed/denied totals.
type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStore keeps counters in memory. Useful for tests and
// development; it never expires anything.
type MemoryStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryOption func(*MemoryStore)

// WithTrackKeys enables per-scope-key counters. Off by default since
// key cardinality is unbounded.
func WithTrackKeys(track bool) MemoryOption {
	return func(s *MemoryStore) { s.trackKeys = track }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	bump := func(c *Counters) {
		if ev.Allowed {
			c.Allowed++
		} else {
			c.Denied++
		}
	}

	bump(&s.total)

	c := s.byRoute[route]
	bump(&c)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		bump(&k)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
