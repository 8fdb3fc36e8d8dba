package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mutirao/castracao-backend/api/responses"
	"github.com/mutirao/castracao-backend/internal/ratelimit"
	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/phone"
)

type rateLimiter interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (ratelimit.Decision, error)
}

type blockRecorder interface {
	IncBlocked(policy string)
}

// RateLimitPolicy defines the throttling parameters for one endpoint family.
// The identifier is read from a top-level JSON body field such as "email" or "phone".
type RateLimitPolicy struct {
	name            string
	window          time.Duration
	ipLimit         int
	identifierLimit int
	identifierField string
	clientIP        *ClientIPResolver
}

const maxIdentifierBodyBytes = 64 << 10

// NewRateLimitPolicy builds a policy with the supplied window and limits. A zero
// limit disables that scope.
func NewRateLimitPolicy(name string, window time.Duration, ipLimit, identifierLimit int, identifierField string) RateLimitPolicy {
	return RateLimitPolicy{
		name:            strings.ToLower(strings.TrimSpace(name)),
		window:          window,
		ipLimit:         ipLimit,
		identifierLimit: identifierLimit,
		identifierField: strings.TrimSpace(identifierField),
	}
}

func (p RateLimitPolicy) Name() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

// WithClientIP sets how the per-IP scope finds the network origin. Without a
// resolver the socket peer is used.
func (p RateLimitPolicy) WithClientIP(resolver *ClientIPResolver) RateLimitPolicy {
	p.clientIP = resolver
	return p
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || (p.identifierLimit > 0 && p.identifierField != ""))
}

// RateLimit enforces per-IP and per-identifier fixed-window counters.
func RateLimit(policy RateLimitPolicy, limiter rateLimiter, recorder blockRecorder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := policy.clientIP.ClientIP(r); ip != "" {
					key := ratelimit.Key(policy.Name(), "ip", ip)
					if !enforce(ctx, w, limiter, recorder, logg, policy, "ip", key, policy.ipLimit) {
						return
					}
				}
			}

			if policy.identifierLimit > 0 && policy.identifierField != "" {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdentifierBodyBytes))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload too large"))
						return
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if identifier := normalizeIdentifier(policy.identifierField, extractField(body, policy.identifierField)); identifier != "" {
					key := ratelimit.Key(policy.Name(), policy.identifierField, hashValue(identifier))
					if !enforce(ctx, w, limiter, recorder, logg, policy, policy.identifierField, key, policy.identifierLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// enforce counts one hit and writes the rejection when the window is exhausted.
func enforce(ctx context.Context, w http.ResponseWriter, limiter rateLimiter, recorder blockRecorder, logg *logger.Logger, policy RateLimitPolicy, scope, key string, limit int) bool {
	decision, err := limiter.Check(ctx, key, limit, policy.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if decision.Allowed {
		return true
	}

	if recorder != nil {
		recorder.IncBlocked(policy.Name())
	}
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":               scope,
			"policy":              policy.Name(),
			"attempts":            decision.Count,
			"limit":               limit,
			"window_seconds":      int(policy.window.Seconds()),
			"retry_after_seconds": int(decision.RetryAfter.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.RateLimited(decision.RetryAfter))
	return false
}

func extractField(payload []byte, field string) string {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	value, _ := body[field].(string)
	return value
}

func normalizeIdentifier(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if field == "phone" {
		if normalized, err := phone.Normalize(value); err == nil {
			return normalized
		}
		return phone.Digits(value)
	}
	return strings.ToLower(value)
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
