package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/driver/models"
	"roadbook/pkg/platform/sentinel"
)

// Memory is an in-memory driver store for tests. It mirrors the Postgres
// semantics, including the unique email constraint.
type Memory struct {
	mu          sync.Mutex
	drivers     map[uuid.UUID]models.Driver
	limits      []models.EntityLimit
	suspensions []models.Suspension
}

func NewMemory() *Memory {
	return &Memory{drivers: make(map[uuid.UUID]models.Driver)}
}

func (s *Memory) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.drivers)), nil
}

func (s *Memory) GetByID(_ context.Context, id uuid.UUID) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDriver(d), nil
}

func (s *Memory) GetByEmail(_ context.Context, email string) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.drivers {
		if strings.EqualFold(d.Email, email) {
			return cloneDriver(d), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) Insert(_ context.Context, d *models.Driver) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.drivers {
		if strings.EqualFold(existing.Email, d.Email) {
			return nil, sentinel.ErrConflict
		}
	}

	created := *d
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	s.drivers[created.ID] = created
	return cloneDriver(created), nil
}

func (s *Memory) Update(_ context.Context, d *models.Driver) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drivers[d.ID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	s.drivers[d.ID] = *d
	return cloneDriver(*d), nil
}

func (s *Memory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drivers[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.drivers, id)
	return nil
}

// AddLimit seeds an entity limit. Test helper.
func (s *Memory) AddLimit(limit models.EntityLimit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, limit)
}

// AddSuspension seeds a suspension row. Test helper.
func (s *Memory) AddSuspension(susp models.Suspension) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspensions = append(s.suspensions, susp)
}

func (s *Memory) ActiveLimit(_ context.Context, kind models.EntityKind) (*models.EntityLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var active *models.EntityLimit
	for i := range s.limits {
		limit := s.limits[i]
		if limit.Kind != kind || limit.StartAt.After(now) {
			continue
		}
		if limit.EndAt != nil && !limit.EndAt.After(now) {
			continue
		}
		if active == nil || limit.StartAt.After(active.StartAt) {
			active = &limit
		}
	}
	if active == nil {
		return nil, nil
	}
	out := *active
	return &out, nil
}

func (s *Memory) ActiveSuspension(_ context.Context, driverID uuid.UUID) (*models.Suspension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range s.suspensions {
		susp := s.suspensions[i]
		if susp.DriverID != driverID || susp.StartAt.After(now) {
			continue
		}
		if susp.EndAt != nil && !susp.EndAt.After(now) {
			continue
		}
		out := susp
		return &out, nil
	}
	return nil, nil
}

func (s *Memory) GetRestPeriods(_ context.Context, driverID uuid.UUID) ([]models.RestPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[driverID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.RestPeriod(nil), d.RestPeriods...), nil
}

func (s *Memory) SetRestPeriods(_ context.Context, driverID uuid.UUID, periods []models.RestPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[driverID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.RestPeriods = append([]models.RestPeriod(nil), periods...)
	s.drivers[driverID] = d
	return nil
}

func (s *Memory) DeleteRestPeriods(_ context.Context, driverID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drivers[driverID]
	if !ok {
		return sentinel.ErrNotFound
	}
	d.RestPeriods = nil
	s.drivers[driverID] = d
	return nil
}

func cloneDriver(d models.Driver) *models.Driver {
	out := d
	out.RestPeriods = append([]models.RestPeriod(nil), d.RestPeriods...)
	return &out
}
