package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"roadbook/internal/platform/config"
	"roadbook/internal/token"
	dErrors "roadbook/pkg/domain-errors"
)

func testIssuer() *token.Issuer {
	return token.NewIssuer(config.JWTConfig{
		SigningKey: "test-signing-key",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
}

func claimsEcho(t *testing.T, wantID uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := DriverClaims(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantID, claims.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	issuer := testIssuer()
	driverID := uuid.New()

	access, _, err := issuer.Issue(token.DriverClaims{ID: driverID, Verified: true})
	require.NoError(t, err)

	handler := RequireAuth(issuer)(claimsEcho(t, driverID))

	req := httptest.NewRequest(http.MethodGet, "/drivers/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAuthRejections(t *testing.T) {
	issuer := testIssuer()
	handler := RequireAuth(issuer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	unverified, _, err := issuer.Issue(token.DriverClaims{ID: uuid.New(), Verified: false})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "unverified account", header: "Bearer " + unverified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/drivers/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(rate.Limit(1), 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/authentication/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1234"))
}

func TestParseDevice(t *testing.T) {
	var got string
	handler := ParseDevice(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = Device(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, got, "Chrome")
	assert.Contains(t, got, "/")
}

func TestWriteErrorMasksInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, dErrors.Wrap(assert.AnError, dErrors.CodeInternal, "pgx: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal","message":"internal error"}`, rec.Body.String())
}

func TestWriteErrorDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, dErrors.New(dErrors.CodeNotFound, "workday not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found","message":"workday not found"}`, rec.Body.String())
}
