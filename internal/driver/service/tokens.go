package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"roadbook/internal/driver/models"
	"roadbook/internal/token"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/platform/sentinel"
)

// TokenIssuer mints the access and refresh token pair.
type TokenIssuer interface {
	Issue(driver token.DriverClaims) (access string, refresh string, err error)
	VerifyRefresh(refresh string) (uuid.UUID, error)
}

var ErrInvalidRefreshToken = dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")

// IssueTokens mints a token pair and persists the hash of the refresh token
// on the driver row. Each issuance overwrites the previous hash, so only the
// most recently issued refresh token can be redeemed.
func (s *Service) IssueTokens(ctx context.Context, issuer TokenIssuer, driver *models.Driver) (access string, refresh string, err error) {
	access, refresh, err = issuer.Issue(token.DriverClaims{
		ID:        driver.ID,
		FirstName: driver.FirstName,
		LastName:  driver.LastName,
		Email:     driver.Email,
		Verified:  driver.Verified(),
	})
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tokens")
	}

	refreshHash, err := s.hasher.Hash(refresh)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash refresh token")
	}
	driver.RefreshTokenHash = &refreshHash
	if _, err := s.store.Update(ctx, driver); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist refresh token")
	}
	return access, refresh, nil
}

// RefreshTokens redeems a refresh token for a fresh pair. The presented
// token must both verify as a JWT and match the hash stored at the last
// issuance; the new pair rotates the stored hash.
func (s *Service) RefreshTokens(ctx context.Context, issuer TokenIssuer, refreshToken string) (access string, refresh string, err error) {
	driverID, err := issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}

	driver, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}
	if driver.RefreshTokenHash == nil {
		return "", "", ErrInvalidRefreshToken
	}
	ok, err := s.hasher.Verify(refreshToken, *driver.RefreshTokenHash)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify refresh token")
	}
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}

	return s.IssueTokens(ctx, issuer, driver)
}
