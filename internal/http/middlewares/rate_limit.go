package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
)

// WithRateLimit limita por IP+path con ventana fija. Pensado para los
// endpoints que reciben credenciales; los de alto tráfico M2M (verify-token)
// no deberían llevarlo.
//
// Si el limiter falla (Redis caído) el request pasa: preferimos degradar el
// rate limiting antes que tirar el login.
func WithRateLimit(limiter rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + "|" + r.URL.Path

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				logger.From(r.Context()).Warn("rate limited",
					logger.Path(r.URL.Path),
					logger.ClientIP(clientIP(r)),
				)
				errors.WriteError(w, errors.ErrTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
