// Package store reads the updates table. Rows are created by staff tooling,
// never by this service.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadbook/internal/update/models"
	"roadbook/pkg/platform/sentinel"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// UpdatesAfterVersion returns the driver updates released after the named
// version, oldest first, plus the total count past that version. An unknown
// version is sentinel.ErrNotFound.
func (s *Postgres) UpdatesAfterVersion(ctx context.Context, version string, page, limit int) ([]models.Row, int, error) {
	var sinceCreatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT created_at
		FROM updates
		WHERE version = $1 AND entity_kind = 'DRIVER'
		LIMIT 1`,
		version,
	).Scan(&sinceCreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("find update version: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pk_update_id, version, description, entity_kind,
		       mandatory_completion_date, fk_created_employee_id, created_at
		FROM updates
		WHERE created_at > $1 AND entity_kind = 'DRIVER'
		ORDER BY created_at ASC
		OFFSET $2
		LIMIT $3`,
		sinceCreatedAt, (page-1)*limit, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var r models.Row
		if err := rows.Scan(&r.ID, &r.Version, &r.Description, &r.EntityKind,
			&r.MandatoryCompletionDate, &r.CreatedByEmployeeID, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan update: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM updates
		WHERE created_at > $1 AND entity_kind = 'DRIVER'`,
		sinceCreatedAt,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count updates: %w", err)
	}

	return out, total, nil
}
