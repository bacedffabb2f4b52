package store

import (
	"context"
	"sort"
	"sync"

	"roadbook/internal/update/models"
	"roadbook/pkg/platform/sentinel"
)

// Memory is an in-memory update store for tests.
type Memory struct {
	mu   sync.Mutex
	rows []models.Row
}

func NewMemory() *Memory {
	return &Memory{}
}

// Add seeds a row. Test helper.
func (s *Memory) Add(row models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

func (s *Memory) UpdatesAfterVersion(_ context.Context, version string, page, limit int) ([]models.Row, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var since *models.Row
	for i := range s.rows {
		if s.rows[i].Version == version && s.rows[i].EntityKind == "DRIVER" {
			since = &s.rows[i]
			break
		}
	}
	if since == nil {
		return nil, 0, sentinel.ErrNotFound
	}

	var matched []models.Row
	for _, r := range s.rows {
		if r.EntityKind == "DRIVER" && r.CreatedAt.After(since.CreatedAt) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
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
