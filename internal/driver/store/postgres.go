// Package store persists driver records in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadbook/internal/driver/models"
	"roadbook/pkg/platform/sentinel"
)

const pgUniqueViolation = "23505"

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const driverColumns = `id, first_name, last_name, email, password_hash, language,
	rest_periods, created_at, verified_at, last_login_at, deactivated_at, refresh_token_hash`

func (s *Postgres) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM drivers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count drivers: %w", err)
	}
	return count, nil
}

func (s *Postgres) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	return scanDriver(row)
}

func (s *Postgres) GetByEmail(ctx context.Context, email string) (*models.Driver, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE email = $1`, email)
	return scanDriver(row)
}

// Insert creates the driver row. A duplicate email surfaces as
// sentinel.ErrConflict; the unique index is the final authority under
// concurrent signups.
func (s *Postgres) Insert(ctx context.Context, d *models.Driver) (*models.Driver, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO drivers (first_name, last_name, email, password_hash, language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+driverColumns,
		d.FirstName, d.LastName, d.Email, d.PasswordHash, d.Language,
	)
	created, err := scanDriver(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert driver: %w", err)
	}
	return created, nil
}

func (s *Postgres) Update(ctx context.Context, d *models.Driver) (*models.Driver, error) {
	restJSON, err := marshalRestPeriods(d.RestPeriods)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE drivers
		SET first_name = $1,
		    last_name = $2,
		    email = $3,
		    password_hash = $4,
		    language = $5,
		    rest_periods = $6,
		    verified_at = $7,
		    last_login_at = $8,
		    deactivated_at = $9,
		    refresh_token_hash = $10
		WHERE id = $11
		RETURNING `+driverColumns,
		d.FirstName, d.LastName, d.Email, d.PasswordHash, d.Language,
		restJSON, d.VerifiedAt, d.LastLoginAt, d.DeactivatedAt, d.RefreshTokenHash,
		d.ID,
	)
	return scanDriver(row)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drivers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ActiveLimit returns the limit whose window contains now, preferring the
// latest start when windows overlap. Nil result means no limit applies.
func (s *Postgres) ActiveLimit(ctx context.Context, kind models.EntityKind) (*models.EntityLimit, error) {
	now := time.Now()
	var limit models.EntityLimit
	err := s.pool.QueryRow(ctx, `
		SELECT id, entity_kind, maximum_limit, start_at, end_at, created_at
		FROM entity_limits
		WHERE entity_kind = $1
		  AND start_at <= $2
		  AND (end_at IS NULL OR end_at > $2)
		ORDER BY start_at DESC
		LIMIT 1`,
		string(kind), now,
	).Scan(&limit.ID, &limit.Kind, &limit.MaximumLimit, &limit.StartAt, &limit.EndAt, &limit.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active entity limit: %w", err)
	}
	return &limit, nil
}

// ActiveSuspension returns the suspension whose window contains now, or nil.
func (s *Postgres) ActiveSuspension(ctx context.Context, driverID uuid.UUID) (*models.Suspension, error) {
	now := time.Now()
	var susp models.Suspension
	err := s.pool.QueryRow(ctx, `
		SELECT id, driver_id, can_access_restricted_space, driver_message, title, description, start_at, end_at, created_at
		FROM driver_suspensions
		WHERE driver_id = $1
		  AND start_at <= $2
		  AND (end_at IS NULL OR end_at > $2)
		LIMIT 1`,
		driverID, now,
	).Scan(&susp.ID, &susp.DriverID, &susp.CanAccessRestrictedSpace, &susp.DriverMessage,
		&susp.Title, &susp.Description, &susp.StartAt, &susp.EndAt, &susp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active suspension: %w", err)
	}
	return &susp, nil
}

func (s *Postgres) GetRestPeriods(ctx context.Context, driverID uuid.UUID) ([]models.RestPeriod, error) {
	var restJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT rest_periods FROM drivers WHERE id = $1`, driverID).Scan(&restJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rest periods: %w", err)
	}
	return unmarshalRestPeriods(restJSON)
}

// SetRestPeriods atomically replaces the driver's whole rest period set.
func (s *Postgres) SetRestPeriods(ctx context.Context, driverID uuid.UUID, periods []models.RestPeriod) error {
	restJSON, err := marshalRestPeriods(periods)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE drivers SET rest_periods = $1 WHERE id = $2`, restJSON, driverID)
	if err != nil {
		return fmt.Errorf("set rest periods: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteRestPeriods(ctx context.Context, driverID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE drivers SET rest_periods = NULL WHERE id = $1`, driverID)
	if err != nil {
		return fmt.Errorf("delete rest periods: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	var restJSON []byte
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.PasswordHash, &d.Language,
		&restJSON, &d.CreatedAt, &d.VerifiedAt, &d.LastLoginAt, &d.DeactivatedAt, &d.RefreshTokenHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.RestPeriods, err = unmarshalRestPeriods(restJSON)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func marshalRestPeriods(periods []models.RestPeriod) ([]byte, error) {
	if periods == nil {
		return nil, nil
	}
	data, err := json.Marshal(periods)
	if err != nil {
		return nil, fmt.Errorf("marshal rest periods: %w", err)
	}
	return data, nil
}

func unmarshalRestPeriods(data []byte) ([]models.RestPeriod, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var periods []models.RestPeriod
	if err := json.Unmarshal(data, &periods); err != nil {
		return nil, fmt.Errorf("unmarshal rest periods: %w", err)
	}
	return periods, nil
}
