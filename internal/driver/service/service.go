// Package service holds the driver lifecycle rules: signup quota and
// denylist enforcement, credential checks, suspension gating, and account
// verification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"roadbook/internal/audit"
	"roadbook/internal/cache"
	"roadbook/internal/driver/models"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/platform/sentinel"
)

// Store is the durable driver repository this service depends on.
type Store interface {
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	GetByEmail(ctx context.Context, email string) (*models.Driver, error)
	Insert(ctx context.Context, d *models.Driver) (*models.Driver, error)
	Update(ctx context.Context, d *models.Driver) (*models.Driver, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ActiveLimit(ctx context.Context, kind models.EntityKind) (*models.EntityLimit, error)
	ActiveSuspension(ctx context.Context, driverID uuid.UUID) (*models.Suspension, error)
	GetRestPeriods(ctx context.Context, driverID uuid.UUID) ([]models.RestPeriod, error)
	SetRestPeriods(ctx context.Context, driverID uuid.UUID, periods []models.RestPeriod) error
	DeleteRestPeriods(ctx context.Context, driverID uuid.UUID) error
}

// Hasher is the memory-hard credential hasher (argon2id in production).
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// AuditPublisher records security-relevant events. Best effort; failures
// are logged, never returned to the caller.
type AuditPublisher interface {
	Emit(ctx context.Context, action string, driverID uuid.UUID, fields map[string]string)
}

var (
	ErrInvalidCredentials     = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	ErrDriverAlreadyExists    = dErrors.New(dErrors.CodeConflict, "driver already exists")
	ErrDriverNotFound         = dErrors.New(dErrors.CodeNotFound, "driver not found")
	ErrInvalidVerificationKey = dErrors.New(dErrors.CodeUnauthorized, "invalid verification key")
	ErrAccountAlreadyVerified = dErrors.New(dErrors.CodeConflict, "account already verified")
)

// ErrDriverLimitReached builds the quota error carrying the limit's window
// so callers can display when signups reopen.
func ErrDriverLimitReached(limit *models.EntityLimit) error {
	details := map[string]string{"start_at": limit.StartAt.Format(time.RFC3339)}
	if limit.EndAt != nil {
		details["end_at"] = limit.EndAt.Format(time.RFC3339)
	}
	return dErrors.New(dErrors.CodeForbidden, "driver limit reached").WithDetails(details)
}

func ErrEmailDomainDenylisted(domain string) error {
	return dErrors.Newf(dErrors.CodeForbidden, "email domain %q is denylisted", domain).
		WithDetails(map[string]string{"domain": domain})
}

// ErrDriverSuspension carries the driver-visible message and the window of
// the authoritative suspension.
func ErrDriverSuspension(susp *models.Suspension) error {
	details := map[string]string{"start_at": susp.StartAt.Format(time.RFC3339)}
	if susp.EndAt != nil {
		details["end_at"] = susp.EndAt.Format(time.RFC3339)
	}
	if susp.DriverMessage != nil {
		details["message"] = *susp.DriverMessage
	}
	return dErrors.New(dErrors.CodeForbidden, "driver is suspended").WithDetails(details)
}

// Service orchestrates the driver lifecycle against the durable store, the
// volatile cache, and the credential hasher.
type Service struct {
	store  Store
	cache  cache.Store
	hasher Hasher
	audit  AuditPublisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(audit AuditPublisher) Option {
	return func(s *Service) { s.audit = audit }
}

func New(store Store, cacheStore cache.Store, hasher Hasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("driver store is required")
	}
	if cacheStore == nil {
		return nil, errors.New("cache store is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	svc := &Service{
		store:  store,
		cache:  cacheStore,
		hasher: hasher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Signup registers a new driver. The quota check is check-then-act: a burst
// of concurrent signups at the boundary can transiently exceed the cap by
// the number of in-flight requests; the unique email index remains the only
// hard constraint.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest, emailDomainDenylist []string) (*models.Driver, error) {
	limit, err := s.store.ActiveLimit(ctx, models.KindDriver)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read entity limit")
	}
	if limit != nil {
		count, err := s.store.Count(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count drivers")
		}
		if count >= int64(limit.MaximumLimit) {
			return nil, ErrDriverLimitReached(limit)
		}
	}

	req.FirstName = titleCase(req.FirstName)
	req.LastName = titleCase(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	domain := emailDomain(req.Email)
	for _, denied := range emailDomainDenylist {
		if domain == denied {
			s.logger.WarnContext(ctx, "signup with denylisted email domain",
				"domain", domain,
			)
			return nil, ErrEmailDomainDenylisted(domain)
		}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	driver, err := s.store.Insert(ctx, &models.Driver{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Language:     req.Language,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrDriverAlreadyExists
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create driver")
	}

	s.emit(ctx, "driver_signed_up", driver.ID, map[string]string{"language": driver.Language})
	return driver, nil
}

// Login authenticates a driver. Lookup and password failures collapse into
// the same invalid-credentials error so the response never reveals whether
// the email exists.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.Driver, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	driver, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(req.Password, driver.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to verify password hash", "error", err, "driver_id", driver.ID)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	susp, err := s.store.ActiveSuspension(ctx, driver.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read suspension")
	}
	if susp != nil && !susp.CanAccessRestrictedSpace {
		s.emit(ctx, "driver_login_denied", driver.ID, map[string]string{"reason": "suspension"})
		return nil, ErrDriverSuspension(susp)
	}

	now := time.Now()
	driver.LastLoginAt = &now
	if driver, err = s.store.Update(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	s.emit(ctx, "driver_login", driver.ID, nil)
	return driver, nil
}

// GetByID loads a driver, translating a store miss into the domain error.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	driver, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}
	return driver, nil
}

// VerifyAccount compares the caller-supplied token against the single-use
// value cached at signup mail time. Any miss or mismatch is the same
// invalid-key error. The cache entry is deleted on success.
func (s *Service) VerifyAccount(ctx context.Context, driverID uuid.UUID, verifyToken string) (*models.Driver, error) {
	driver, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		return nil, ErrInvalidVerificationKey
	}

	key := cache.VerifyEmailKey(driverID)
	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read verification key", "error", err, "driver_id", driverID)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read verification key")
	}
	if !found || string(cached) != verifyToken {
		return nil, ErrInvalidVerificationKey
	}

	if driver.Verified() {
		return nil, ErrAccountAlreadyVerified
	}

	now := time.Now()
	driver.VerifiedAt = &now
	if driver, err = s.store.Update(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification")
	}

	// Single use: the token must not verify twice.
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete verification key", "error", err, "driver_id", driverID)
	}

	s.emit(ctx, "driver_verified", driver.ID, nil)
	return driver, nil
}

// DeleteAccount removes the driver row entirely.
func (s *Service) DeleteAccount(ctx context.Context, driverID uuid.UUID) error {
	if err := s.store.Delete(ctx, driverID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrDriverNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete driver")
	}
	s.emit(ctx, "driver_deleted", driverID, nil)
	return nil
}

func (s *Service) emit(ctx context.Context, action string, driverID uuid.UUID, fields map[string]string) {
	if s.audit == nil {
		return
	}
	if device := audit.Device(ctx); device != "" {
		if fields == nil {
			fields = make(map[string]string, 1)
		}
		fields["device"] = device
	}
	s.audit.Emit(ctx, action, driverID, fields)
}

// titleCase capitalizes every segment of a name, splitting on whitespace
// and hyphens and rejoining with hyphens: "jean paul" -> "Jean-Paul".
func titleCase(name string) string {
	segments := strings.FieldsFunc(strings.TrimSpace(name), func(r rune) bool {
		return r == '-' || r == ' ' || r == '\t'
	})
	for i, seg := range segments {
		first, size := utf8.DecodeRuneInString(seg)
		segments[i] = string(unicode.ToUpper(first)) + strings.ToLower(seg[size:])
	}
	return strings.Join(segments, "-")
}

// emailDomain returns the substring after the last '@'.
func emailDomain(email string) string {
	if idx := strings.LastIndexByte(email, '@'); idx >= 0 {
		return email[idx+1:]
	}
	return ""
}
