package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/timeofday"
)

// EntityKind names the entity classes a limit row can cap.
type EntityKind string

const KindDriver EntityKind = "DRIVER"

// Driver is the identity record. Email is stored trimmed and lowercased and
// is case-insensitively unique. VerifiedAt is set once and never cleared.
type Driver struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	PasswordHash     string
	Language         string
	RestPeriods      []RestPeriod
	CreatedAt        time.Time
	VerifiedAt       *time.Time
	LastLoginAt      *time.Time
	DeactivatedAt    *time.Time
	RefreshTokenHash *string
}

func (d *Driver) Verified() bool { return d.VerifiedAt != nil }

// RestPeriod is a {start, end, rest} triple of times of day. The full set
// for a driver must partition the 24-hour day; see service.ValidateRestPeriods.
type RestPeriod struct {
	Start timeofday.TimeOfDay `json:"start"`
	End   timeofday.TimeOfDay `json:"end"`
	Rest  timeofday.TimeOfDay `json:"rest"`
}

// EntityLimit caps how many entities of a kind may exist while its window
// covers the current instant. Read-only to this service.
type EntityLimit struct {
	ID           int
	Kind         EntityKind
	MaximumLimit int
	StartAt      time.Time
	EndAt        *time.Time
	CreatedAt    time.Time
}

// Suspension is a time-bounded restriction on a driver. Only the row whose
// window contains now is authoritative.
type Suspension struct {
	ID                       int
	DriverID                 uuid.UUID
	CanAccessRestrictedSpace bool
	DriverMessage            *string
	Title                    string
	Description              string
	StartAt                  time.Time
	EndAt                    *time.Time
	CreatedAt                time.Time
}

// SignupRequest carries the raw signup payload. Normalization (title case,
// email lowering) happens in the service, not here.
type SignupRequest struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Language  string `json:"language"`
}

func (r *SignupRequest) Validate() error {
	if r.FirstName == "" || len(r.FirstName) > 255 {
		return dErrors.New(dErrors.CodeValidation, "firstname is required and cannot be longer than 255 characters")
	}
	if r.LastName == "" || len(r.LastName) > 255 {
		return dErrors.New(dErrors.CodeValidation, "lastname is required and cannot be longer than 255 characters")
	}
	if !looksLikeEmail(r.Email) || len(r.Email) > 255 {
		return dErrors.New(dErrors.CodeValidation, "invalid email format")
	}
	if len(r.Password) < 8 || len(r.Password) > 40 {
		return dErrors.New(dErrors.CodeValidation, "password must contain between 8 and 40 characters")
	}
	if len(r.Language) != 2 {
		return dErrors.New(dErrors.CodeValidation, "language must be a 2 character code (ex: fr, en)")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if !looksLikeEmail(r.Email) || len(r.Email) > 255 {
		return dErrors.New(dErrors.CodeValidation, "invalid email format")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password must be provided")
	}
	return nil
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n")
}
