// Package admission decides, per request and per scope (user, API key, IP),
// whether a request may proceed or must be short-circuited with a rejection
// response. Counting and window bookkeeping are fixed mechanism; what happens
// once a scope is over quota is delegated to a pluggable Overflow strategy.
//
// State is local to the process. This is not a distributed limiter.
package admission

import (
	"errors"
	"time"
)

// ErrInvalidPolicy is returned by New when rate or per is not positive.
var ErrInvalidPolicy = errors.New("admission: rate and per must be positive")

// Policy is the immutable limit configuration for one engine.
type Policy struct {
	Rate int           // requests admitted per window
	Per  time.Duration // window length
}

func (p Policy) validate() error {
	if p.Rate <= 0 || p.Per <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}
