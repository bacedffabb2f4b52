package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/mail/models"
)

// Memory is an in-memory mail ledger for tests.
type Memory struct {
	mu    sync.Mutex
	mails []models.Mail
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Create(_ context.Context, driverID uuid.UUID, typeID int, emailUsed, description string, content *string) (*models.Mail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := models.Mail{
		ID:          uuid.New(),
		DriverID:    driverID,
		TypeID:      typeID,
		EmailUsed:   emailUsed,
		Status:      models.StatusPending,
		Description: description,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	s.mails = append(s.mails, m)
	return &m, nil
}

func (s *Memory) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.mails {
		if s.mails[i].ID == id {
			s.mails[i].Status = status
			s.mails[i].SentAt = sentAt
			return nil
		}
	}
	return nil
}

// Mails returns a copy of the ledger. Test helper.
func (s *Memory) Mails() []models.Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Mail(nil), s.mails...)
}
