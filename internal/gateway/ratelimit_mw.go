package gateway

import (
	"net/http"
	"time"

	"github.com/AlexKimmel/QuotaGate/internal/admission"
	"github.com/AlexKimmel/QuotaGate/internal/auth"
	"github.com/AlexKimmel/QuotaGate/internal/stats"
)

// RateLimitOptions configures the admission middleware.
type RateLimitOptions struct {
	// KeyFn extracts the scope key when no authenticated key ID is in
	// the request context. Defaults to DefaultKeyFunc("", false).
	KeyFn KeyFunc

	// SkipPaths are served without admission checks (ops endpoints).
	SkipPaths map[string]struct{}

	// Stats, when set, receives one event per decision, best-effort.
	Stats stats.Store

	// Hooks for metrics/logging.
	OnRejected        func(key string)
	OnOverflowAllowed func(key string)
}

// RateLimit returns the middleware adapter around eng: it extracts the
// scope key, sets the capacity headers on every response, and either
// forwards the request or writes the engine's rejection verbatim.
func RateLimit(eng *admission.Engine, opts RateLimitOptions) Middleware {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := opts.SkipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			// authenticated key ID wins over the extraction chain
			key, ok := auth.KeyIDFrom(r.Context())
			if !ok || key == "" {
				key = opts.KeyFn(r)
			}

			eng.DecorateInfo(w.Header())

			now := time.Now()
			dec := eng.Admit(r, key, now)

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), stats.Event{
					Key:     key,
					Allowed: dec.Proceed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      now,
				})
			}

			if !dec.Proceed {
				if opts.OnRejected != nil {
					opts.OnRejected(key)
				}
				writeRejection(w, dec.Reject)
				return
			}

			if dec.Overflowed && opts.OnOverflowAllowed != nil {
				opts.OnOverflowAllowed(key)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRejection writes the response template returned by the engine.
// Its headers already include the limited set.
func writeRejection(w http.ResponseWriter, rej *admission.Rejection) {
	for _, h := range rej.Headers {
		w.Header().Set(h.Name, h.Value)
	}
	if rej.ContentType != "" {
		w.Header().Set("Content-Type", rej.ContentType)
	}
	status := rej.Status
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	w.WriteHeader(status)
	_, _ = w.Write(rej.Body)
}
