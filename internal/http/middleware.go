package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/time/rate"

	"roadbook/internal/audit"
	"roadbook/internal/token"
	dErrors "roadbook/pkg/domain-errors"
)

type contextKeyClaims struct{}

// DriverClaims retrieves the authenticated driver snapshot from the context.
func DriverClaims(ctx context.Context) (token.DriverClaims, bool) {
	claims, ok := ctx.Value(contextKeyClaims{}).(token.DriverClaims)
	return claims, ok
}

// WithDriverClaims injects claims for handler tests that bypass the
// middleware chain.
func WithDriverClaims(ctx context.Context, claims token.DriverClaims) context.Context {
	return context.WithValue(ctx, contextKeyClaims{}, claims)
}

// Device returns the "browser/os" label parsed from the User-Agent header.
func Device(ctx context.Context) string {
	return audit.Device(ctx)
}

// RequireAuth validates the bearer access token. Tokens of unverified
// accounts are rejected by the issuer, so handlers behind this middleware
// can assume a verified driver.
func RequireAuth(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := issuer.VerifyAccess(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := WithDriverClaims(r.Context(), claims.Driver)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseDevice makes a short device label available to the audit trail.
func ParseDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.New(r.UserAgent())
		name, _ := ua.Browser()
		label := name
		if os := ua.OS(); os != "" {
			label += "/" + os
		}
		next.ServeHTTP(w, r.WithContext(audit.WithDevice(r.Context(), label)))
	})
}

// RateLimit applies a per-client-IP token bucket. Stale limiters are pruned
// lazily so the map does not grow without bound.
func RateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	get := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if len(clients) > 10000 {
			for k, c := range clients {
				if time.Since(c.lastSeen) > 10*time.Minute {
					delete(clients, k)
				}
			}
		}
		c, ok := clients[ip]
		if !ok {
			c = &client{limiter: rate.NewLimiter(rps, burst)}
			clients[ip] = c
		}
		c.lastSeen = time.Now()
		return c.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !get(ip).Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error:   "rate_limited",
					Message: "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
