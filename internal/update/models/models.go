// Package models defines the release note feed served to driver clients.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "roadbook/pkg/domain-errors"
)

// Row is the full updates table row. Rows are written by staff tooling;
// this service only reads them.
type Row struct {
	ID                      int
	Version                 string
	Description             string
	EntityKind              string
	MandatoryCompletionDate *time.Time
	CreatedByEmployeeID     uuid.UUID
	CreatedAt               time.Time
}

// Update is the client-facing projection, also the shape stored in cache.
type Update struct {
	Version                 string     `json:"version"`
	Description             string     `json:"description"`
	MandatoryCompletionDate *time.Time `json:"mandatory_completion_date"`
	CreatedAt               time.Time  `json:"created_at"`
}

func (r Row) ToUpdate() Update {
	return Update{
		Version:                 r.Version,
		Description:             r.Description,
		MandatoryCompletionDate: r.MandatoryCompletionDate,
		CreatedAt:               r.CreatedAt,
	}
}

// Query asks for the updates released after the given client version.
type Query struct {
	Version string
	Page    int
	Limit   int
}

func (q Query) Validate() error {
	if q.Version == "" {
		return dErrors.New(dErrors.CodeValidation, "version must not be empty")
	}
	if q.Page < 1 {
		return dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > 100 {
		return dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	return nil
}
