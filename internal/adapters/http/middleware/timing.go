package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
const DefaultSlowRequestMs = 500

var slowRequestMs int64

var slowRequestOnce sync.Once

func getSlowRequestThreshold() time.Duration {
	slowRequestOnce.Do(func() {
		ms := DefaultSlowRequestMs
		if v := os.Getenv("FITSUTRA_SLOW_REQUEST_MS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				ms = n
			}
		}
		atomic.StoreInt64(&slowRequestMs, int64(ms))
	})
	return time.Duration(atomic.LoadInt64(&slowRequestMs)) * time.Millisecond
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Timing logs slow requests. Pages proxy several backend calls, so the
// threshold is higher than for a purely local handler.
func Timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)
		if elapsed >= getSlowRequestThreshold() {
			slog.Warn("slow_request", "method", r.Method, "path", r.URL.Path,
				"status", sw.status, "elapsed_ms", elapsed.Milliseconds())
		}
	})
}
