package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records its count and latency by route
// pattern.
func instrument(next http.Handler, logger zerolog.Logger, m metrics.Backend) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		labels := metrics.Labels{"route": route, "status": strconv.Itoa(rec.status)}
		m.IncCounter(metrics.HTTPRequestsTotal, 1, labels)
		m.ObserveHistogram(metrics.HTTPRequestDuration, elapsed.Seconds(), metrics.Labels{"route": route})

		event := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.Str("method", r.Method).Str("path", r.URL.Path).Int("status", rec.status).Dur("took", elapsed).Msg("request")
	})
}
