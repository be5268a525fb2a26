package admission

import "net/http"

// Rejection is a response template the adapter writes out verbatim when
// a request is short-circuited. The engine copies the template before
// appending headers, so implementations may return a shared value.
type Rejection struct {
	Status      int
	ContentType string
	Body        []byte
	Headers     []Header
}

// Overflow decides what happens to a request whose scope is inside its
// cooldown window. Returning nil lets the request through untouched by
// the engine; returning a Rejection short-circuits it.
//
// Decide runs while the bucket lock is held: it observes (and may
// mutate) a consistent bucket, and it must not block or perform I/O.
type Overflow interface {
	Decide(r *http.Request, b *Bucket) *Rejection
}

// OverflowFunc adapts a function to the Overflow interface.
type OverflowFunc func(r *http.Request, b *Bucket) *Rejection

func (f OverflowFunc) Decide(r *http.Request, b *Bucket) *Rejection {
	return f(r, b)
}

// RejectAll is the default strategy: every request during cooldown is
// rejected with a generic 429 body.
type RejectAll struct{}

func (RejectAll) Decide(*http.Request, *Bucket) *Rejection {
	return &Rejection{
		Status:      http.StatusTooManyRequests,
		ContentType: "application/json",
		Body:        []byte(`{"error":{"code":"rate_limited","message":"Too many requests"}}`),
	}
}
