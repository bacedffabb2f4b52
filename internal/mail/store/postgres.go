// Package store persists the mail ledger in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadbook/internal/mail/models"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const mailColumns = `pk_driver_mail_id, fk_driver_id, fk_employee_id, fk_mail_type_id,
	email_used, status, description, content, created_at, sent_at`

// Create inserts a PENDING ledger row for the attempt about to be made.
func (s *Postgres) Create(ctx context.Context, driverID uuid.UUID, typeID int, emailUsed, description string, content *string) (*models.Mail, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO driver_mails (fk_driver_id, fk_mail_type_id, email_used, status, description, content)
		VALUES ($1, $2, $3, 'PENDING', $4, $5)
		RETURNING `+mailColumns,
		driverID, typeID, emailUsed, description, content,
	)
	var m models.Mail
	err := row.Scan(&m.ID, &m.DriverID, &m.EmployeeID, &m.TypeID, &m.EmailUsed,
		&m.Status, &m.Description, &m.Content, &m.CreatedAt, &m.SentAt)
	if err != nil {
		return nil, fmt.Errorf("insert mail: %w", err)
	}
	return &m, nil
}

func (s *Postgres) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, sentAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE driver_mails SET status = $1, sent_at = $2 WHERE pk_driver_mail_id = $3`,
		string(status), sentAt, id,
	)
	if err != nil {
		return fmt.Errorf("update mail status: %w", err)
	}
	return nil
}
