// Package service implements the workday lifecycle with cache-aside reads.
//
// The Postgres store is authoritative; Redis holds query snapshots keyed by
// month or period. Every write invalidates the driver's whole workday key
// namespace before returning, so a subsequent read repopulates from the
// store. Concurrent readers may repopulate a just-invalidated snapshot; the
// entry TTL bounds that staleness.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"roadbook/internal/cache"
	"roadbook/internal/document"
	"roadbook/internal/workday/models"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/platform/sentinel"
)

// Store is the durable workday repository this service depends on.
type Store interface {
	MonthWorkdays(ctx context.Context, driverID uuid.UUID, month, year int) ([]models.Workday, error)
	PeriodWorkdays(ctx context.Context, driverID uuid.UUID, from, to models.Date, page, limit int) ([]models.Workday, int, error)
	Create(ctx context.Context, driverID uuid.UUID, req models.CreateRequest) (*models.Workday, error)
	Update(ctx context.Context, driverID uuid.UUID, req models.UpdateRequest) (*models.Workday, error)
	Delete(ctx context.Context, driverID uuid.UUID, date models.Date) error
	GarbageList(ctx context.Context, driverID uuid.UUID) ([]models.Garbage, error)
	GarbageCreate(ctx context.Context, driverID uuid.UUID, date, scheduled models.Date) (*models.Garbage, error)
	GarbageDelete(ctx context.Context, driverID uuid.UUID, date models.Date) error
	DocumentYears(ctx context.Context, driverID uuid.UUID) ([]int, error)
	DocumentMonths(ctx context.Context, driverID uuid.UUID, year int) ([]int, error)
}

var (
	ErrWorkdayAlreadyExists = dErrors.New(dErrors.CodeConflict, "workday already exists for this date")
	ErrWorkdayNotFound      = dErrors.New(dErrors.CodeNotFound, "workday not found")
	ErrGarbageAlreadyExists = dErrors.New(dErrors.CodeConflict, "workday is already deleted")
	ErrGarbageNotFound      = dErrors.New(dErrors.CodeNotFound, "deleted workday not found")
)

type Service struct {
	store     Store
	cache     cache.Store
	generator document.Generator
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithGenerator enables monthly PDF report generation.
func WithGenerator(gen document.Generator) Option {
	return func(s *Service) { s.generator = gen }
}

func New(store Store, cacheStore cache.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("workday store is required")
	}
	if cacheStore == nil {
		return nil, errors.New("cache store is required")
	}
	svc := &Service{
		store:  store,
		cache:  cacheStore,
		logger: slog.Default(),
		tracer: otel.Tracer("roadbook/workday"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// MonthWorkdays returns the driver's visible workdays for one month,
// serving from cache when a snapshot exists.
func (s *Service) MonthWorkdays(ctx context.Context, driverID uuid.UUID, q models.MonthQuery) ([]models.Workday, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "workday.month_lookup")
	defer span.End()

	key := cache.WorkdayMonthKey(driverID, q.Month, q.Year)
	if cached, hit := s.cachedJSON(ctx, key, new([]models.Workday)); hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return *cached.(*[]models.Workday), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	workdays, err := s.store.MonthWorkdays(ctx, driverID, q.Month, q.Year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workdays")
	}
	s.cacheJSON(ctx, key, workdays)
	return workdays, nil
}

// periodSnapshot is the cached shape of a paginated period query.
type periodSnapshot struct {
	Workdays []models.Workday `json:"workdays"`
	Total    int              `json:"total"`
}

// PeriodWorkdays returns one page of a date range plus the total match
// count, serving from cache when a snapshot for this exact query exists.
func (s *Service) PeriodWorkdays(ctx context.Context, driverID uuid.UUID, q models.PeriodQuery) ([]models.Workday, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	ctx, span := s.tracer.Start(ctx, "workday.period_lookup")
	defer span.End()

	key := cache.WorkdayPeriodKey(driverID, q.From.Time, q.To.Time, q.Page, q.Limit)
	if cached, hit := s.cachedJSON(ctx, key, new(periodSnapshot)); hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		snap := cached.(*periodSnapshot)
		return snap.Workdays, snap.Total, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	workdays, total, err := s.store.PeriodWorkdays(ctx, driverID, q.From, q.To, q.Page, q.Limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workdays")
	}
	s.cacheJSON(ctx, key, periodSnapshot{Workdays: workdays, Total: total})
	return workdays, total, nil
}

func (s *Service) Create(ctx context.Context, driverID uuid.UUID, req models.CreateRequest) (*models.Workday, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wd, err := s.store.Create(ctx, driverID, req)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrWorkdayAlreadyExists
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create workday")
	}
	s.invalidate(ctx, driverID, req.Date)
	return wd, nil
}

func (s *Service) Update(ctx context.Context, driverID uuid.UUID, req models.UpdateRequest) (*models.Workday, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wd, err := s.store.Update(ctx, driverID, req)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrWorkdayNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workday")
	}
	s.invalidate(ctx, driverID, req.Date)
	return wd, nil
}

// SoftDelete shadows the workday with a garbage row instead of removing it.
// The row becomes restorable until its scheduled deletion date.
func (s *Service) SoftDelete(ctx context.Context, driverID uuid.UUID, date models.Date) (*models.Garbage, error) {
	today := models.Date{Time: time.Now().UTC().Truncate(24 * time.Hour)}
	scheduled := today.AddDays(models.GarbageRetentionDays)
	g, err := s.store.GarbageCreate(ctx, driverID, date, scheduled)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, ErrWorkdayNotFound
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrGarbageAlreadyExists
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete workday")
	}
	s.invalidate(ctx, driverID, date)
	return g, nil
}

// Restore removes the garbage row so the workday is visible again.
func (s *Service) Restore(ctx context.Context, driverID uuid.UUID, date models.Date) error {
	if err := s.store.GarbageDelete(ctx, driverID, date); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrGarbageNotFound
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore workday")
	}
	s.invalidate(ctx, driverID, date)
	return nil
}

func (s *Service) Garbage(ctx context.Context, driverID uuid.UUID) ([]models.Garbage, error) {
	garbage, err := s.store.GarbageList(ctx, driverID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deleted workdays")
	}
	return garbage, nil
}

func (s *Service) DocumentYears(ctx context.Context, driverID uuid.UUID) ([]int, error) {
	years, err := s.store.DocumentYears(ctx, driverID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list document years")
	}
	return years, nil
}

func (s *Service) DocumentMonths(ctx context.Context, driverID uuid.UUID, year int) ([]int, error) {
	months, err := s.store.DocumentMonths(ctx, driverID, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list document months")
	}
	return months, nil
}

// MonthlyReport renders the month's workdays as a PDF via the report
// service. Returns (nil, nil) when the month has no visible workdays.
func (s *Service) MonthlyReport(ctx context.Context, req document.MonthlyReportRequest) ([]byte, error) {
	if s.generator == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "report generation is not configured")
	}

	q := models.MonthQuery{Month: req.Month, Year: req.Year}
	workdays, err := s.MonthWorkdays(ctx, req.DriverID, q)
	if err != nil {
		return nil, err
	}
	if len(workdays) == 0 {
		return nil, nil
	}

	req.Workdays = workdays
	pdf, err := s.generator.MonthlyReport(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "report generation failed",
			"error", err, "driver_id", req.DriverID, "month", req.Month, "year", req.Year)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate report")
	}
	return pdf, nil
}

// cachedJSON reads key and unmarshals into dst. Cache errors degrade to a
// miss; the durable store remains authoritative.
func (s *Service) cachedJSON(ctx context.Context, key string, dst any) (any, bool) {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "error", err, "key", key)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.WarnContext(ctx, "corrupt cache entry", "error", err, "key", key)
		return nil, false
	}
	return dst, true
}

func (s *Service) cacheJSON(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "cache marshal failed", "error", err, "key", key)
		return
	}
	if err := s.cache.SetTTL(ctx, key, raw, cache.WorkdayTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "error", err, "key", key)
	}
}

// invalidate drops the exact month snapshot and then the driver's whole
// workday namespace, covering every period snapshot the write may overlap.
func (s *Service) invalidate(ctx context.Context, driverID uuid.UUID, date models.Date) {
	monthKey := cache.WorkdayMonthKey(driverID, int(date.Month()), date.Year())
	if err := s.cache.Delete(ctx, monthKey); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "error", err, "key", monthKey)
	}
	prefix := cache.WorkdayPrefix(driverID)
	if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "error", err, "prefix", prefix)
	}
}
