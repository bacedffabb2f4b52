// Package models defines the workday records drivers log for compliance.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/timeofday"
)

// Date is a calendar date without time or zone, serialized as "2006-01-02".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format("2006-01-02") }

func (d Date) AddDays(days int) Date { return Date{d.Time.AddDate(0, 0, days)} }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Workday is one logged day of driving. At most one row exists per driver
// and date; soft-deleted days are shadowed by a garbage row rather than
// removed.
type Workday struct {
	Date          Date                 `json:"date"`
	StartTime     timeofday.TimeOfDay  `json:"start_time"`
	EndTime       *timeofday.TimeOfDay `json:"end_time"`
	RestTime      timeofday.TimeOfDay  `json:"rest_time"`
	OvernightRest bool                 `json:"overnight_rest"`
	DriverID      uuid.UUID            `json:"-"`
}

// Garbage marks a workday as soft deleted. The workday row stays in place
// and is excluded from every query until the garbage row is removed or the
// scheduled deletion date passes.
type Garbage struct {
	Date              Date      `json:"date"`
	DriverID          uuid.UUID `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	ScheduledDeletion Date      `json:"scheduled_deletion_date"`
}

// GarbageRetentionDays is how long a soft-deleted workday stays restorable.
const GarbageRetentionDays = 30

type CreateRequest struct {
	Date          Date                 `json:"date"`
	StartTime     timeofday.TimeOfDay  `json:"start_time"`
	EndTime       *timeofday.TimeOfDay `json:"end_time"`
	RestTime      timeofday.TimeOfDay  `json:"rest_time"`
	OvernightRest bool                 `json:"overnight_rest"`
}

func (r *CreateRequest) Validate() error {
	return validateDate(r.Date)
}

// UpdateRequest replaces every mutable field of the workday at Date.
type UpdateRequest struct {
	Date          Date                 `json:"date"`
	StartTime     timeofday.TimeOfDay  `json:"start_time"`
	EndTime       *timeofday.TimeOfDay `json:"end_time"`
	RestTime      timeofday.TimeOfDay  `json:"rest_time"`
	OvernightRest bool                 `json:"overnight_rest"`
}

func (r *UpdateRequest) Validate() error {
	return validateDate(r.Date)
}

// MonthQuery selects the workdays of one calendar month.
type MonthQuery struct {
	Month int
	Year  int
}

func (q MonthQuery) Validate() error {
	if q.Month < 1 || q.Month > 12 {
		return dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if q.Year < 1900 || q.Year > 2100 {
		return dErrors.New(dErrors.CodeValidation, "year must be between 1900 and 2100")
	}
	return nil
}

// PeriodQuery selects a paginated date range. Page is 1-based.
type PeriodQuery struct {
	From  Date
	To    Date
	Page  int
	Limit int
}

func (q PeriodQuery) Validate() error {
	if err := validateDate(q.From); err != nil {
		return err
	}
	if err := validateDate(q.To); err != nil {
		return err
	}
	if q.Page < 1 {
		return dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > 100 {
		return dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	return nil
}

func validateDate(d Date) error {
	if d.IsZero() || d.Year() < 1900 || d.Year() > 2100 {
		return dErrors.New(dErrors.CodeValidation, "date must be between 1900 and 2100")
	}
	return nil
}
