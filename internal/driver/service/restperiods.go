package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"roadbook/internal/driver/models"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/platform/sentinel"
	"roadbook/pkg/timeofday"
)

// ValidateRestPeriods checks that the sorted periods partition the whole day:
// the first starts at 00:00:00, each next period starts exactly one second
// after the previous one ends, and the last ends at 23:59:59. The input is
// sorted in place by start time.
func ValidateRestPeriods(periods []models.RestPeriod) error {
	sort.Slice(periods, func(i, j int) bool { return periods[i].Start < periods[j].Start })

	for i := range periods {
		if i == 0 {
			if periods[i].Start != timeofday.Midnight {
				return dErrors.Newf(dErrors.CodeValidation,
					"The first rest period must start at 00:00:00, got %s", periods[i].Start)
			}
		} else {
			expected := periods[i-1].End + 1
			if periods[i].Start != expected {
				return dErrors.Newf(dErrors.CodeValidation,
					"Rest period at index %d starts at %s but previous period ends at %s, need one second gap. The correct start time must be %s.",
					i, periods[i].Start, periods[i-1].End, expected)
			}
		}

		if i == len(periods)-1 && periods[i].End != timeofday.EndOfDay {
			return dErrors.Newf(dErrors.CodeValidation,
				"The last rest period must end at 23:59:59, got %s", periods[i].End)
		}

		if periods[i].Start >= periods[i].End {
			return dErrors.Newf(dErrors.CodeValidation,
				"Rest period at index %d has start time %s which is not before end time %s.",
				i, periods[i].Start, periods[i].End)
		}
	}
	return nil
}

func (s *Service) GetRestPeriods(ctx context.Context, driverID uuid.UUID) ([]models.RestPeriod, error) {
	periods, err := s.store.GetRestPeriods(ctx, driverID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rest periods")
	}
	return periods, nil
}

// SetRestPeriods validates and atomically replaces the driver's full set.
func (s *Service) SetRestPeriods(ctx context.Context, driverID uuid.UUID, periods []models.RestPeriod) error {
	if err := ValidateRestPeriods(periods); err != nil {
		return err
	}
	if err := s.store.SetRestPeriods(ctx, driverID, periods); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrDriverNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store rest periods")
	}
	s.emit(ctx, "rest_periods_updated", driverID, nil)
	return nil
}

func (s *Service) DeleteRestPeriods(ctx context.Context, driverID uuid.UUID) error {
	if err := s.store.DeleteRestPeriods(ctx, driverID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrDriverNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete rest periods")
	}
	s.emit(ctx, "rest_periods_deleted", driverID, nil)
	return nil
}
