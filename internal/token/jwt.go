// Package token issues and validates the access and refresh credentials.
//
// Access tokens denormalize the driver's name, email, and verified flag so
// the auth middleware can gate endpoints without a store lookup. Refresh
// tokens carry only the subject id.
package token

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"roadbook/internal/platform/config"
	dErrors "roadbook/pkg/domain-errors"
)

// DriverClaims is the denormalized driver snapshot embedded in access tokens.
type DriverClaims struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
}

type AccessClaims struct {
	Driver DriverClaims `json:"driver"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

// Issuer mints and validates both token kinds with a shared HS256 key.
type Issuer struct {
	signingKey   []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	cookieDomain string
}

func NewIssuer(cfg config.JWTConfig) *Issuer {
	return &Issuer{
		signingKey:   []byte(cfg.SigningKey),
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		cookieDomain: cookieDomain(cfg.CookieDomain),
	}
}

func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Issue returns a signed access and refresh token pair for the driver.
func (i *Issuer) Issue(driver DriverClaims) (access string, refresh string, err error) {
	now := time.Now()

	accessClaims := AccessClaims{
		Driver: driver,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   driver.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(i.signingKey)
	if err != nil {
		return "", "", err
	}

	refreshClaims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   driver.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	refresh, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(i.signingKey)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

// VerifyAccess validates signature and expiry, then rejects tokens minted
// for unverified accounts: a structurally valid token is not enough to pass
// the authenticated middleware.
func (i *Issuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if !claims.Driver.Verified {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "driver account not verified")
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns the subject driver id.
func (i *Issuer) VerifyRefresh(tokenString string) (uuid.UUID, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, claims); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return id, nil
}

func (i *Issuer) parse(tokenString string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return nil
}

// RefreshCookie wraps a refresh token in the HttpOnly cookie the browser
// client expects.
func (i *Issuer) RefreshCookie(refreshToken string) *http.Cookie {
	return &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		Domain:   i.cookieDomain,
		MaxAge:   int(i.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// LogoutCookie returns an empty, already-expired refresh cookie. The stored
// refresh hash is deliberately left untouched: logout is stateless and the
// hash stays valid until the next issuance overwrites it.
func (i *Issuer) LogoutCookie() *http.Cookie {
	return &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/",
		Domain:   i.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// cookieDomain strips any scheme and port so "https://app.example.com:443"
// becomes "app.example.com".
func cookieDomain(domain string) string {
	d := strings.TrimPrefix(domain, "http://")
	d = strings.TrimPrefix(d, "https://")
	if idx := strings.IndexByte(d, ':'); idx >= 0 {
		d = d[:idx]
	}
	return d
}
