package middleware

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/oklog/ulid/v2"
)

const requestIDKey contextKey = "request_id"

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger tags each request with a ULID request id, logs its outcome
// and records latency metrics under the matched route pattern.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if _, err := ulid.ParseStrict(requestID); err != nil {
				requestID = ulid.MustNew(ulid.Timestamp(start), rand.Reader).String()
			}
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w}
			req := r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

			next.ServeHTTP(rec, req)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(route, r.Method, status, elapsed)

			reqLog := log.With("request_id", requestID)
			switch {
			case status >= 500:
				reqLog.Error("%s %s %d %s", r.Method, r.URL.Path, status, elapsed)
			case status >= 400:
				reqLog.Warn("%s %s %d %s", r.Method, r.URL.Path, status, elapsed)
			default:
				reqLog.Info("%s %s %d %s", r.Method, r.URL.Path, status, elapsed)
			}
		})
	}
}
