package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Rate limit response headers
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Middleware limits requests per key. Denied requests get Retry-After and
// are answered by onLimit. Requests pass when the limiter fails.
func Middleware(limiter Limiter, key KeyFunc, logger *zap.Logger, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = RemoteIP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			res, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("key", k), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(res.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(time.Until(res.ResetAt).Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				logger.Debug("rate limited", zap.String("key", k), zap.Int("limit", res.Limit))
				onLimit(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
