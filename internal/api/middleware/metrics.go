package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jokr/taaskly/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// routedPaths is the fixed route set. The middleware also sees
// unmatched requests (scanners probing arbitrary paths), which must
// not mint fresh label values.
var routedPaths = map[string]struct{}{
	"/callback":              {},
	"/link/callback":         {},
	"/page/callback":         {},
	"/community_uninstall":   {},
	"/health":                {},
	"/metrics":               {},
	"/admin/callbacks/purge": {},
}

// normalizePath collapses paths outside the route set to a sentinel
// to keep metric cardinality bounded.
func normalizePath(path string) string {
	if _, ok := routedPaths[path]; ok {
		return path
	}
	return "other"
}
