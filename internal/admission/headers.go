package admission

import (
	"net/http"
	"strconv"
	"time"
)

const (
	headerLimit      = "X-Ratelimit-Limit"
	headerRemaining  = "X-Ratelimit-Remaining"
	headerReset      = "X-Ratelimit-Reset"
	headerRetryAfter = "Retry-After"
)

// Header is one informational header to set on the outbound response.
type Header struct {
	Name  string
	Value string
}

// InfoHeaderer may be implemented by an Overflow strategy to replace
// the default capacity headers set on every response.
type InfoHeaderer interface {
	InfoHeaders(p Policy) []Header
}

// LimitedHeaderer may be implemented by an Overflow strategy to replace
// the default headers set on rejected responses.
type LimitedHeaderer interface {
	LimitedHeaders(b Bucket, now time.Time) []Header
}

func defaultInfoHeaders(p Policy) []Header {
	return []Header{
		{Name: headerLimit, Value: formatInt(p.Rate)},
	}
}

func defaultLimitedHeaders(b Bucket, now time.Time) []Header {
	retryAfter := b.RetryAfter(now)
	return []Header{
		{Name: headerRemaining, Value: formatInt(b.Remaining)},
		{Name: headerReset, Value: formatInt64(now.Add(retryAfter).Unix())},
		{Name: headerRetryAfter, Value: formatFloat(retryAfter.Seconds())},
	}
}

func formatInt(v int) string     { return strconv.Itoa(v) }
func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string {
	// no scientific notation for common values
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func setAll(h http.Header, hs []Header) {
	for _, hh := range hs {
		h.Set(hh.Name, hh.Value)
	}
}
