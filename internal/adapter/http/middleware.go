package http

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"
)

// compression gzips responses of 1 KiB and more at a balanced level.
func compression(next http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(1024),
		gzhttp.CompressionLevel(6),
	)
	if err != nil {
		return gzhttp.GzipHandler(next)
	}
	return wrapper(next)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func requestLogging(logger *slog.Logger, clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", float64(clock.Since(start).Microseconds())/1000,
			)
		})
	}
}

// rateLimiter is a single token bucket shared by all clients.
type rateLimiter struct {
	limiter *rate.Limiter
	rps     float64
}

func newRateLimiter(rps float64) *rateLimiter {
	if rps <= 0 {
		return &rateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(math.Ceil(rps))
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst), rps: rps}
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			retryAfter := 1
			if rl.rps > 0 && rl.rps < 1 {
				retryAfter = int(math.Ceil(1 / rl.rps))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
