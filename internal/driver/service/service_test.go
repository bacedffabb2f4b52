package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"roadbook/internal/audit"
	"roadbook/internal/cache"
	"roadbook/internal/driver/models"
	"roadbook/internal/driver/store"
	"roadbook/internal/hash"
	"roadbook/internal/platform/config"
	"roadbook/internal/token"
	dErrors "roadbook/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	store *store.Memory
	cache *cache.MemoryStore
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.cache = cache.NewMemoryStore()

	svc, err := New(s.store, s.cache, hash.New())
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) signup(email string) *models.Driver {
	driver, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "jean paul",
		LastName:  "martin",
		Email:     email,
		Password:  "super-secret",
		Language:  "fr",
	}, nil)
	s.Require().NoError(err)
	return driver
}

func (s *ServiceSuite) TestSignupNormalizesIdentity() {
	driver, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "jean paul",
		LastName:  "de la fontaine",
		Email:     "  Jean.Paul@Example.COM ",
		Password:  "super-secret",
		Language:  "fr",
	}, nil)
	s.Require().NoError(err)

	s.Equal("Jean-Paul", driver.FirstName)
	s.Equal("De-La-Fontaine", driver.LastName)
	s.Equal("jean.paul@example.com", driver.Email)
	s.NotEqual("super-secret", driver.PasswordHash)
	s.False(driver.Verified())
}

func (s *ServiceSuite) TestSignupTitleCasesAccentedNames() {
	driver, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "émile",
		LastName:  "çelik öztürk",
		Email:     "emile@example.com",
		Password:  "super-secret",
		Language:  "fr",
	}, nil)
	s.Require().NoError(err)

	s.Equal("Émile", driver.FirstName)
	s.Equal("Çelik-Öztürk", driver.LastName)
}

func (s *ServiceSuite) TestSignupRejectsDenylistedDomain() {
	_, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "jean",
		LastName:  "martin",
		Email:     "jean@mailinator.com",
		Password:  "super-secret",
		Language:  "fr",
	}, []string{"mailinator.com", "tempmail.io"})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestSignupDenylistMatchesNormalizedEmail() {
	_, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "john",
		LastName:  "doe",
		Email:     "John.DOE@MAIL.COM",
		Password:  "super-secret",
		Language:  "en",
	}, []string{"mail.com"})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestSignupDuplicateEmail() {
	s.signup("jean@example.com")

	_, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "other",
		LastName:  "driver",
		Email:     "JEAN@example.com",
		Password:  "super-secret",
		Language:  "en",
	}, nil)

	s.Require().ErrorIs(err, ErrDriverAlreadyExists)
}

func (s *ServiceSuite) TestSignupLimitReached() {
	s.store.AddLimit(models.EntityLimit{
		Kind:         models.KindDriver,
		MaximumLimit: 1,
		StartAt:      time.Now().Add(-time.Hour),
	})

	s.signup("first@example.com")

	_, err := s.svc.Signup(context.Background(), models.SignupRequest{
		FirstName: "second",
		LastName:  "driver",
		Email:     "second@example.com",
		Password:  "super-secret",
		Language:  "fr",
	}, nil)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestSignupIgnoresExpiredLimit() {
	ended := time.Now().Add(-time.Minute)
	s.store.AddLimit(models.EntityLimit{
		Kind:         models.KindDriver,
		MaximumLimit: 0,
		StartAt:      time.Now().Add(-time.Hour),
		EndAt:        &ended,
	})

	s.signup("jean@example.com")
}

func (s *ServiceSuite) TestLoginRecordsLastLogin() {
	created := s.signup("jean@example.com")
	s.Nil(created.LastLoginAt)

	driver, err := s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "Jean@Example.com",
		Password: "super-secret",
	})
	s.Require().NoError(err)
	s.Require().NotNil(driver.LastLoginAt)
	s.WithinDuration(time.Now(), *driver.LastLoginAt, time.Minute)
}

func (s *ServiceSuite) TestLoginInvalidCredentials() {
	s.signup("jean@example.com")

	_, err := s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "jean@example.com",
		Password: "wrong-password",
	})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "super-secret",
	})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginDeniedWhileSuspended() {
	driver := s.signup("jean@example.com")

	message := "contact support"
	s.store.AddSuspension(models.Suspension{
		DriverID:                 driver.ID,
		CanAccessRestrictedSpace: false,
		DriverMessage:            &message,
		StartAt:                  time.Now().Add(-time.Hour),
	})

	_, err := s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "jean@example.com",
		Password: "super-secret",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	var domainErr *dErrors.Error
	s.Require().ErrorAs(err, &domainErr)
	s.Equal("contact support", domainErr.Details["message"])
}

func (s *ServiceSuite) TestLoginAllowedWhenSuspensionPermitsAccess() {
	driver := s.signup("jean@example.com")

	s.store.AddSuspension(models.Suspension{
		DriverID:                 driver.ID,
		CanAccessRestrictedSpace: true,
		StartAt:                  time.Now().Add(-time.Hour),
	})

	_, err := s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "jean@example.com",
		Password: "super-secret",
	})
	s.NoError(err)
}

func (s *ServiceSuite) TestLoginAllowedAfterSuspensionEnds() {
	driver := s.signup("jean@example.com")

	ended := time.Now().Add(-time.Minute)
	s.store.AddSuspension(models.Suspension{
		DriverID:                 driver.ID,
		CanAccessRestrictedSpace: false,
		StartAt:                  time.Now().Add(-time.Hour),
		EndAt:                    &ended,
	})

	_, err := s.svc.Login(context.Background(), models.LoginRequest{
		Email:    "jean@example.com",
		Password: "super-secret",
	})
	s.NoError(err)
}

func (s *ServiceSuite) TestVerifyAccountIsSingleUse() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	key := cache.VerifyEmailKey(driver.ID)
	s.Require().NoError(s.cache.SetTTL(ctx, key, []byte("the-token"), cache.VerifyEmailTTL))

	verified, err := s.svc.VerifyAccount(ctx, driver.ID, "the-token")
	s.Require().NoError(err)
	s.True(verified.Verified())

	// The cached token is deleted on success; replaying it must fail.
	_, err = s.svc.VerifyAccount(ctx, driver.ID, "the-token")
	s.ErrorIs(err, ErrInvalidVerificationKey)
}

func (s *ServiceSuite) TestVerifyAccountRejectsWrongToken() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	key := cache.VerifyEmailKey(driver.ID)
	s.Require().NoError(s.cache.SetTTL(ctx, key, []byte("the-token"), cache.VerifyEmailTTL))

	_, err := s.svc.VerifyAccount(ctx, driver.ID, "not-the-token")
	s.ErrorIs(err, ErrInvalidVerificationKey)

	_, err = s.svc.VerifyAccount(ctx, uuid.New(), "the-token")
	s.ErrorIs(err, ErrInvalidVerificationKey)
}

func (s *ServiceSuite) TestVerifyAccountAlreadyVerified() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	key := cache.VerifyEmailKey(driver.ID)
	s.Require().NoError(s.cache.SetTTL(ctx, key, []byte("first"), cache.VerifyEmailTTL))
	_, err := s.svc.VerifyAccount(ctx, driver.ID, "first")
	s.Require().NoError(err)

	s.Require().NoError(s.cache.SetTTL(ctx, key, []byte("second"), cache.VerifyEmailTTL))
	_, err = s.svc.VerifyAccount(ctx, driver.ID, "second")
	s.ErrorIs(err, ErrAccountAlreadyVerified)
}

func (s *ServiceSuite) TestDeleteAccount() {
	driver := s.signup("jean@example.com")

	s.Require().NoError(s.svc.DeleteAccount(context.Background(), driver.ID))

	_, err := s.svc.GetByID(context.Background(), driver.ID)
	s.ErrorIs(err, ErrDriverNotFound)

	s.ErrorIs(s.svc.DeleteAccount(context.Background(), driver.ID), ErrDriverNotFound)
}

func (s *ServiceSuite) TestRefreshTokenRotation() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	issuer := token.NewIssuer(config.JWTConfig{
		SigningKey: "test-signing-key",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})

	_, firstRefresh, err := s.svc.IssueTokens(ctx, issuer, driver)
	s.Require().NoError(err)

	access, secondRefresh, err := s.svc.RefreshTokens(ctx, issuer, firstRefresh)
	s.Require().NoError(err)
	s.NotEmpty(access)
	s.NotEqual(firstRefresh, secondRefresh)

	// Rotation overwrote the stored hash, so the first token is spent.
	_, _, err = s.svc.RefreshTokens(ctx, issuer, firstRefresh)
	s.ErrorIs(err, ErrInvalidRefreshToken)

	_, _, err = s.svc.RefreshTokens(ctx, issuer, secondRefresh)
	s.NoError(err)
}

func (s *ServiceSuite) TestRefreshTokensRejectsGarbage() {
	issuer := token.NewIssuer(config.JWTConfig{
		SigningKey: "test-signing-key",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Minute,
	})

	_, _, err := s.svc.RefreshTokens(context.Background(), issuer, "not-a-jwt")
	s.ErrorIs(err, ErrInvalidRefreshToken)
}

type recordedEvent struct {
	action string
	fields map[string]string
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Emit(_ context.Context, action string, _ uuid.UUID, fields map[string]string) {
	p.events = append(p.events, recordedEvent{action: action, fields: fields})
}

func (s *ServiceSuite) TestAuditEventsCarryDevice() {
	recorder := &recordingPublisher{}
	svc, err := New(s.store, s.cache, hash.New(), WithAudit(recorder))
	s.Require().NoError(err)

	ctx := audit.WithDevice(context.Background(), "Chrome/Linux")
	_, err = svc.Signup(ctx, models.SignupRequest{
		FirstName: "jean",
		LastName:  "martin",
		Email:     "jean@example.com",
		Password:  "super-secret",
		Language:  "fr",
	}, nil)
	s.Require().NoError(err)

	_, err = svc.Login(ctx, models.LoginRequest{
		Email:    "jean@example.com",
		Password: "super-secret",
	})
	s.Require().NoError(err)

	s.Require().Len(recorder.events, 2)
	s.Equal("driver_signed_up", recorder.events[0].action)
	s.Equal("Chrome/Linux", recorder.events[0].fields["device"])
	s.Equal("driver_login", recorder.events[1].action)
	s.Equal("Chrome/Linux", recorder.events[1].fields["device"])
}

func (s *ServiceSuite) TestRestPeriodsRoundTrip() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	periods := []models.RestPeriod{
		period("00:00:00", "11:59:59", "00:30:00"),
		period("12:00:00", "23:59:59", "01:00:00"),
	}
	s.Require().NoError(s.svc.SetRestPeriods(ctx, driver.ID, periods))

	got, err := s.svc.GetRestPeriods(ctx, driver.ID)
	s.Require().NoError(err)
	s.Equal(periods, got)

	s.Require().NoError(s.svc.DeleteRestPeriods(ctx, driver.ID))
	got, err = s.svc.GetRestPeriods(ctx, driver.ID)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ServiceSuite) TestSetRestPeriodsValidatesBeforeStoring() {
	ctx := context.Background()
	driver := s.signup("jean@example.com")

	err := s.svc.SetRestPeriods(ctx, driver.ID, []models.RestPeriod{
		period("01:00:00", "23:59:59", "01:00:00"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	got, err := s.svc.GetRestPeriods(ctx, driver.ID)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ServiceSuite) TestRestPeriodsUnknownDriver() {
	ctx := context.Background()

	_, err := s.svc.GetRestPeriods(ctx, uuid.New())
	s.ErrorIs(err, ErrDriverNotFound)

	err = s.svc.SetRestPeriods(ctx, uuid.New(), []models.RestPeriod{
		period("00:00:00", "23:59:59", "01:00:00"),
	})
	s.ErrorIs(err, ErrDriverNotFound)
}
