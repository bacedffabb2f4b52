// Package store persists workdays and their soft-delete garbage rows in
// PostgreSQL. Every read excludes dates shadowed by a garbage row.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadbook/internal/workday/models"
	"roadbook/pkg/platform/sentinel"
	"roadbook/pkg/timeofday"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const workdayColumns = `date, start_time, end_time, rest_time, overnight_rest, fk_driver_id`

// notGarbage excludes dates the driver has soft deleted.
const notGarbage = `date NOT IN (
	SELECT workday_date FROM workday_garbage WHERE fk_driver_id = $1
)`

func (s *Postgres) MonthWorkdays(ctx context.Context, driverID uuid.UUID, month, year int) ([]models.Workday, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workdayColumns+`
		FROM workdays
		WHERE fk_driver_id = $1
		  AND EXTRACT(MONTH FROM date)::INTEGER = $2
		  AND EXTRACT(YEAR FROM date)::INTEGER = $3
		  AND `+notGarbage+`
		ORDER BY date ASC`,
		driverID, month, year,
	)
	if err != nil {
		return nil, fmt.Errorf("query month workdays: %w", err)
	}
	defer rows.Close()
	return scanWorkdays(rows)
}

// PeriodWorkdays returns one page of the range plus the total row count of
// the whole range. Page is 1-based.
func (s *Postgres) PeriodWorkdays(ctx context.Context, driverID uuid.UUID, from, to models.Date, page, limit int) ([]models.Workday, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM workdays
		WHERE fk_driver_id = $1
		  AND date BETWEEN $2 AND $3
		  AND `+notGarbage,
		driverID, from.Time, to.Time,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count period workdays: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+workdayColumns+`
		FROM workdays
		WHERE fk_driver_id = $1
		  AND date BETWEEN $2 AND $3
		  AND `+notGarbage+`
		ORDER BY date ASC
		LIMIT $4 OFFSET $5`,
		driverID, from.Time, to.Time, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query period workdays: %w", err)
	}
	defer rows.Close()

	workdays, err := scanWorkdays(rows)
	if err != nil {
		return nil, 0, err
	}
	return workdays, total, nil
}

func (s *Postgres) Create(ctx context.Context, driverID uuid.UUID, req models.CreateRequest) (*models.Workday, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workdays (date, fk_driver_id, start_time, end_time, rest_time, overnight_rest)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+workdayColumns,
		req.Date.Time, driverID, toPGTime(&req.StartTime), toPGTime(req.EndTime),
		toPGTime(&req.RestTime), req.OvernightRest,
	)
	wd, err := scanWorkday(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert workday: %w", err)
	}
	return wd, nil
}

func (s *Postgres) Update(ctx context.Context, driverID uuid.UUID, req models.UpdateRequest) (*models.Workday, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE workdays
		SET start_time = $1, end_time = $2, rest_time = $3, overnight_rest = $4
		WHERE date = $5 AND fk_driver_id = $6
		RETURNING `+workdayColumns,
		toPGTime(&req.StartTime), toPGTime(req.EndTime), toPGTime(&req.RestTime),
		req.OvernightRest, req.Date.Time, driverID,
	)
	wd, err := scanWorkday(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update workday: %w", err)
	}
	return wd, nil
}

func (s *Postgres) Delete(ctx context.Context, driverID uuid.UUID, date models.Date) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workdays WHERE date = $1 AND fk_driver_id = $2`,
		date.Time, driverID,
	)
	if err != nil {
		return fmt.Errorf("delete workday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) GarbageList(ctx context.Context, driverID uuid.UUID) ([]models.Garbage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT workday_date, fk_driver_id, created_at, scheduled_deletion_date
		FROM workday_garbage
		WHERE fk_driver_id = $1
		ORDER BY workday_date ASC`,
		driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workday garbage: %w", err)
	}
	defer rows.Close()

	var out []models.Garbage
	for rows.Next() {
		var g models.Garbage
		var date, scheduled time.Time
		if err := rows.Scan(&date, &g.DriverID, &g.CreatedAt, &scheduled); err != nil {
			return nil, fmt.Errorf("scan workday garbage: %w", err)
		}
		g.Date = models.Date{Time: date}
		g.ScheduledDeletion = models.Date{Time: scheduled}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GarbageCreate soft deletes the workday at date. The foreign key to the
// workday row makes a garbage entry for a nonexistent workday a not-found.
func (s *Postgres) GarbageCreate(ctx context.Context, driverID uuid.UUID, date, scheduled models.Date) (*models.Garbage, error) {
	var g models.Garbage
	var gotDate, gotScheduled time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO workday_garbage (workday_date, fk_driver_id, created_at, scheduled_deletion_date)
		VALUES ($1, $2, $3, $4)
		RETURNING workday_date, fk_driver_id, created_at, scheduled_deletion_date`,
		date.Time, driverID, time.Now(), scheduled.Time,
	).Scan(&gotDate, &g.DriverID, &g.CreatedAt, &gotScheduled)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return nil, sentinel.ErrNotFound
			case pgUniqueViolation:
				return nil, sentinel.ErrConflict
			}
		}
		return nil, fmt.Errorf("insert workday garbage: %w", err)
	}
	g.Date = models.Date{Time: gotDate}
	g.ScheduledDeletion = models.Date{Time: gotScheduled}
	return &g, nil
}

func (s *Postgres) GarbageDelete(ctx context.Context, driverID uuid.UUID, date models.Date) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workday_garbage WHERE workday_date = $1 AND fk_driver_id = $2`,
		date.Time, driverID,
	)
	if err != nil {
		return fmt.Errorf("delete workday garbage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DocumentYears lists the distinct years the driver has visible workdays in.
func (s *Postgres) DocumentYears(ctx context.Context, driverID uuid.UUID) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(YEAR FROM date)::INTEGER AS year
		FROM workdays
		WHERE fk_driver_id = $1
		  AND `+notGarbage+`
		GROUP BY year
		ORDER BY year ASC`,
		driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("query document years: %w", err)
	}
	defer rows.Close()
	return scanInts(rows)
}

func (s *Postgres) DocumentMonths(ctx context.Context, driverID uuid.UUID, year int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM date)::INTEGER AS month
		FROM workdays
		WHERE fk_driver_id = $1
		  AND EXTRACT(YEAR FROM date)::INTEGER = $2
		  AND `+notGarbage+`
		GROUP BY month
		ORDER BY month ASC`,
		driverID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("query document months: %w", err)
	}
	defer rows.Close()
	return scanInts(rows)
}

func scanInts(rows pgx.Rows) ([]int, error) {
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanWorkdays(rows pgx.Rows) ([]models.Workday, error) {
	var out []models.Workday
	for rows.Next() {
		wd, err := scanWorkday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wd)
	}
	return out, rows.Err()
}

func scanWorkday(row pgx.Row) (*models.Workday, error) {
	var wd models.Workday
	var date time.Time
	var start, end, rest pgtype.Time
	err := row.Scan(&date, &start, &end, &rest, &wd.OvernightRest, &wd.DriverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	wd.Date = models.Date{Time: date}
	wd.StartTime = *fromPGTime(start)
	wd.EndTime = fromPGTime(end)
	wd.RestTime = *fromPGTime(rest)
	return &wd, nil
}

func toPGTime(t *timeofday.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(*t) * 1e6, Valid: true}
}

func fromPGTime(t pgtype.Time) *timeofday.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := timeofday.TimeOfDay(t.Microseconds / 1e6)
	return &tod
}
