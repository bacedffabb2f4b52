// Package service sends account mail and keeps the ledger honest: a row is
// written PENDING before the SMTP attempt and settled to SUCCESS or FAILED
// after, so undelivered mail is visible to support tooling.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/cache"
	dmodels "roadbook/internal/driver/models"
	"roadbook/internal/mail/models"
	dErrors "roadbook/pkg/domain-errors"
)

// verifyTokenLength is the length of the emailed verification token.
const verifyTokenLength = 100

// Store is the mail ledger.
type Store interface {
	Create(ctx context.Context, driverID uuid.UUID, typeID int, emailUsed, description string, content *string) (*models.Mail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, sentAt *time.Time) error
}

// Sender delivers one message.
type Sender interface {
	Send(to, subject, body string) error
}

var ErrSendFailed = dErrors.New(dErrors.CodeInternal, "failed to send mail")

type Service struct {
	store  Store
	cache  cache.Store
	sender Sender
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, cacheStore cache.Store, sender Sender, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("mail store is required")
	}
	if cacheStore == nil {
		return nil, errors.New("cache store is required")
	}
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	svc := &Service{
		store:  store,
		cache:  cacheStore,
		sender: sender,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SendVerification emails the single-use account verification token. The
// token is cached first so a delivered mail always references a redeemable
// value; the ledger row settles after the SMTP attempt.
func (s *Service) SendVerification(ctx context.Context, driver *dmodels.Driver) error {
	token, err := s.cache.RandomToken(verifyTokenLength)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
	}

	key := cache.VerifyEmailKey(driver.ID)
	if err := s.cache.SetTTL(ctx, key, []byte(token), cache.VerifyEmailTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store verification token")
	}

	mail, err := s.store.Create(ctx, driver.ID, models.TypeVerification,
		driver.Email, "Driver account creation", nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record mail")
	}

	subject := "Verify your driver account"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour verification code is:\n\n%s\n\nIt expires in %d minutes.\n",
		driver.FirstName, token, int(cache.VerifyEmailTTL.Minutes()),
	)

	if err := s.sender.Send(driver.Email, subject, body); err != nil {
		s.logger.ErrorContext(ctx, "verification mail delivery failed",
			"error", err, "driver_id", driver.ID, "mail_id", mail.ID)
		if uerr := s.store.UpdateStatus(ctx, mail.ID, models.StatusFailed, nil); uerr != nil {
			s.logger.ErrorContext(ctx, "failed to settle mail row", "error", uerr, "mail_id", mail.ID)
		}
		return ErrSendFailed
	}

	now := time.Now()
	if err := s.store.UpdateStatus(ctx, mail.ID, models.StatusSuccess, &now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle mail row")
	}
	return nil
}
