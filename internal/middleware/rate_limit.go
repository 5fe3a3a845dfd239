package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/logger"
	"github.com/uploadbroker/service/internal/metrics"
	"github.com/uploadbroker/service/internal/ratelimit"
	"github.com/uploadbroker/service/internal/response"
)

// Allower is the limiter call the middleware needs.
type Allower interface {
	Allow(ctx context.Context, rule ratelimit.Rule, identity string) (ratelimit.Decision, error)
}

// IdentifierFunc extracts the identity used to scope rate limits.
type IdentifierFunc func(*http.Request) (string, bool)

// ClientIdentifier scopes limits to the authenticated subject when present,
// otherwise to the client IP taken from trustedHeader or the remote address.
func ClientIdentifier(trustedHeader string) IdentifierFunc {
	return func(r *http.Request) (string, bool) {
		if sub, ok := Subject(r.Context()); ok {
			return "user:" + sub, true
		}
		ip := clientIP(r, trustedHeader)
		if ip == "" {
			return "", false
		}
		return "ip:" + ip, true
	}
}

func clientIP(r *http.Request, trustedHeader string) string {
	if trustedHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(trustedHeader)); v != "" {
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
			return v
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiter enforces one rule per route group.
type RateLimiter struct {
	limiter  Allower
	identify IdentifierFunc
	metrics  *metrics.Metrics
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(limiter Allower, identify IdentifierFunc, m *metrics.Metrics) *RateLimiter {
	if m == nil {
		m = metrics.NewNop()
	}
	return &RateLimiter{limiter: limiter, identify: identify, metrics: m}
}

// Limit returns middleware enforcing rule. When the store is unreachable the
// request is admitted if rule.FailOpen is set and rejected with 503 otherwise.
func (rl *RateLimiter) Limit(rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := rl.identify(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			d, err := rl.limiter.Allow(r.Context(), rule, identity)
			if err != nil {
				log := logger.WithContext(r.Context()).With(
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				if rule.FailOpen {
					log.Warn("rate limit check failed, admitting request")
					rl.metrics.RateLimited.WithLabelValues(rule.Name, "fail_open").Inc()
					next.ServeHTTP(w, r)
					return
				}
				rl.metrics.RateLimited.WithLabelValues(rule.Name, "fail_closed").Inc()
				response.Error(w, r, apperr.Unavailable("rate limiter unavailable", err))
				return
			}

			applyHeaders(w, d)
			if !d.Allowed {
				rl.metrics.RateLimited.WithLabelValues(rule.Name, "rejected").Inc()
				response.Error(w, r, apperr.RateLimited(
					fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds(d)),
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d ratelimit.Decision) int {
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 0 {
		return 0
	}
	return s
}

func applyHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(d)))
	}
}
