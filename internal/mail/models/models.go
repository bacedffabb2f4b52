// Package models defines the transactional mail ledger rows.
package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Mail type ids match the seeded driver_mail_types rows.
const (
	TypeVerification  = 1
	TypePasswordReset = 2
	TypeAccountChange = 3
	TypeMonthlyReport = 4
)

// Mail is one ledger row. A row is inserted PENDING before the SMTP
// attempt and flipped to SUCCESS or FAILED after.
type Mail struct {
	ID          uuid.UUID
	DriverID    uuid.UUID
	EmployeeID  *uuid.UUID
	TypeID      int
	EmailUsed   string
	Status      Status
	Description string
	Content     *string
	CreatedAt   time.Time
	SentAt      *time.Time
}
