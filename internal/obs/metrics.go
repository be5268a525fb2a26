package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlexKimmel/QuotaGate/internal/gateway"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RejectedTotal   prometheus.Counter
	OverflowAllowed prometheus.Counter
	TrackedScopes   prometheus.GaugeFunc
}

// NewMetrics registers the gateway metrics. scopes reports the number
// of scope keys currently tracked by the admission engine.
func NewMetrics(reg prometheus.Registerer, scopes func() int) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_requests_total",
				Help: "Total HTTP requests processed by the gateway",
			},
			[]string{"method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotagate_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quotagate_rejected_total",
				Help: "Total requests short-circuited by the admission engine",
			},
		),
		OverflowAllowed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quotagate_overflow_allowed_total",
				Help: "Requests let through by the overflow strategy during cooldown",
			},
		),
		TrackedScopes: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "quotagate_tracked_scopes",
				Help: "Scope keys currently holding a bucket",
			},
			func() float64 { return float64(scopes()) },
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RejectedTotal, m.OverflowAllowed, m.TrackedScopes)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware records per-request metrics.
func (m *Metrics) Middleware(skip map[string]struct{}) gateway.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}

			m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(code)).Inc()
		})
	}
}
