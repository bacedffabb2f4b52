package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/workday/models"
	"roadbook/pkg/platform/sentinel"
)

// Memory is an in-memory workday store for tests, mirroring the Postgres
// semantics including garbage shadowing and the per-day unique constraint.
type Memory struct {
	mu       sync.Mutex
	workdays map[uuid.UUID]map[string]models.Workday
	garbage  map[uuid.UUID]map[string]models.Garbage
}

func NewMemory() *Memory {
	return &Memory{
		workdays: make(map[uuid.UUID]map[string]models.Workday),
		garbage:  make(map[uuid.UUID]map[string]models.Garbage),
	}
}

func (s *Memory) visible(driverID uuid.UUID) []models.Workday {
	var out []models.Workday
	for key, wd := range s.workdays[driverID] {
		if _, gone := s.garbage[driverID][key]; gone {
			continue
		}
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

func (s *Memory) MonthWorkdays(_ context.Context, driverID uuid.UUID, month, year int) ([]models.Workday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Workday
	for _, wd := range s.visible(driverID) {
		if int(wd.Date.Month()) == month && wd.Date.Year() == year {
			out = append(out, wd)
		}
	}
	return out, nil
}

func (s *Memory) PeriodWorkdays(_ context.Context, driverID uuid.UUID, from, to models.Date, page, limit int) ([]models.Workday, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Workday
	for _, wd := range s.visible(driverID) {
		if !wd.Date.Before(from.Time) && !wd.Date.After(to.Time) {
			matched = append(matched, wd)
		}
	}
	total := len(matched)

	offset := (page - 1) * limit
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *Memory) Create(_ context.Context, driverID uuid.UUID, req models.CreateRequest) (*models.Workday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.Date.String()
	if _, exists := s.workdays[driverID][key]; exists {
		return nil, sentinel.ErrConflict
	}
	if s.workdays[driverID] == nil {
		s.workdays[driverID] = make(map[string]models.Workday)
	}
	wd := models.Workday{
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		RestTime:      req.RestTime,
		OvernightRest: req.OvernightRest,
		DriverID:      driverID,
	}
	s.workdays[driverID][key] = wd
	return &wd, nil
}

func (s *Memory) Update(_ context.Context, driverID uuid.UUID, req models.UpdateRequest) (*models.Workday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.Date.String()
	wd, exists := s.workdays[driverID][key]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	wd.StartTime = req.StartTime
	wd.EndTime = req.EndTime
	wd.RestTime = req.RestTime
	wd.OvernightRest = req.OvernightRest
	s.workdays[driverID][key] = wd
	return &wd, nil
}

func (s *Memory) Delete(_ context.Context, driverID uuid.UUID, date models.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := date.String()
	if _, exists := s.workdays[driverID][key]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.workdays[driverID], key)
	return nil
}

func (s *Memory) GarbageList(_ context.Context, driverID uuid.UUID) ([]models.Garbage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Garbage
	for _, g := range s.garbage[driverID] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Memory) GarbageCreate(_ context.Context, driverID uuid.UUID, date, scheduled models.Date) (*models.Garbage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := date.String()
	if _, exists := s.workdays[driverID][key]; !exists {
		return nil, sentinel.ErrNotFound
	}
	if _, exists := s.garbage[driverID][key]; exists {
		return nil, sentinel.ErrConflict
	}
	if s.garbage[driverID] == nil {
		s.garbage[driverID] = make(map[string]models.Garbage)
	}
	g := models.Garbage{
		Date:              date,
		DriverID:          driverID,
		CreatedAt:         time.Now(),
		ScheduledDeletion: scheduled,
	}
	s.garbage[driverID][key] = g
	return &g, nil
}

func (s *Memory) GarbageDelete(_ context.Context, driverID uuid.UUID, date models.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := date.String()
	if _, exists := s.garbage[driverID][key]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.garbage[driverID], key)
	return nil
}

func (s *Memory) DocumentYears(_ context.Context, driverID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]bool)
	var out []int
	for _, wd := range s.visible(driverID) {
		if !seen[wd.Date.Year()] {
			seen[wd.Date.Year()] = true
			out = append(out, wd.Date.Year())
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *Memory) DocumentMonths(_ context.Context, driverID uuid.UUID, year int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]bool)
	var out []int
	for _, wd := range s.visible(driverID) {
		if wd.Date.Year() != year {
			continue
		}
		m := int(wd.Date.Month())
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out, nil
}
