package gateway

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts the rate-limit scope key from a request. Values
// must compare equal for the lifetime of a scope.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc builds the fallback extraction chain: a configured
// header if set, then the first X-Forwarded-For hop when the proxy is
// trusted, then the RemoteAddr host.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// first hop is the original client
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
