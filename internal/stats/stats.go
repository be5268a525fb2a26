// Package stats records per-decision admission events. Recording is
// best-effort: the middleware never fails a request over a sink error.
package stats

import (
	"context"
	"time"
)

// Event is one admission decision.
type Event struct {
	Key     string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// Store is the persistence strategy for admission stats.
type Store interface {
	Record(ctx context.Context, ev Event) error
}
