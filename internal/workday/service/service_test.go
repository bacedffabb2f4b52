package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"roadbook/internal/cache"
	"roadbook/internal/document"
	"roadbook/internal/workday/models"
	"roadbook/internal/workday/store"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/timeofday"
)

type stubGenerator struct {
	pdf  []byte
	err  error
	last document.MonthlyReportRequest
}

func (g *stubGenerator) MonthlyReport(_ context.Context, req document.MonthlyReportRequest) ([]byte, error) {
	g.last = req
	return g.pdf, g.err
}

type ServiceSuite struct {
	suite.Suite

	store     *store.Memory
	cache     *cache.MemoryStore
	generator *stubGenerator
	svc       *Service
	driverID  uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.cache = cache.NewMemoryStore()
	s.generator = &stubGenerator{pdf: []byte("%PDF-1.7")}
	s.driverID = uuid.New()

	svc, err := New(s.store, s.cache, WithGenerator(s.generator))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) createRequest(date models.Date) models.CreateRequest {
	end := timeofday.Must("17:00:00")
	return models.CreateRequest{
		Date:      date,
		StartTime: timeofday.Must("08:00:00"),
		EndTime:   &end,
		RestTime:  timeofday.Must("01:00:00"),
	}
}

func (s *ServiceSuite) create(date models.Date) *models.Workday {
	wd, err := s.svc.Create(context.Background(), s.driverID, s.createRequest(date))
	s.Require().NoError(err)
	return wd
}

func (s *ServiceSuite) TestMonthWorkdaysServesFromCacheUntilInvalidated() {
	ctx := context.Background()
	s.create(models.NewDate(2026, time.March, 3))

	q := models.MonthQuery{Month: 3, Year: 2026}
	first, err := s.svc.MonthWorkdays(ctx, s.driverID, q)
	s.Require().NoError(err)
	s.Len(first, 1)

	// Write behind the service's back; the snapshot keeps serving until a
	// service-level write invalidates it.
	_, err = s.store.Create(ctx, s.driverID, s.createRequest(models.NewDate(2026, time.March, 4)))
	s.Require().NoError(err)

	cached, err := s.svc.MonthWorkdays(ctx, s.driverID, q)
	s.Require().NoError(err)
	s.Len(cached, 1)

	s.create(models.NewDate(2026, time.March, 5))

	fresh, err := s.svc.MonthWorkdays(ctx, s.driverID, q)
	s.Require().NoError(err)
	s.Len(fresh, 3)
}

func (s *ServiceSuite) TestMonthWorkdaysValidatesQuery() {
	_, err := s.svc.MonthWorkdays(context.Background(), s.driverID, models.MonthQuery{Month: 13, Year: 2026})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestPeriodWorkdaysPaginatesWithTotal() {
	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		s.create(models.NewDate(2026, time.April, day))
	}

	q := models.PeriodQuery{
		From:  models.NewDate(2026, time.April, 1),
		To:    models.NewDate(2026, time.April, 30),
		Page:  2,
		Limit: 2,
	}
	page, total, err := s.svc.PeriodWorkdays(ctx, s.driverID, q)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(page, 2)
	s.Equal("2026-04-03", page[0].Date.String())
	s.Equal("2026-04-04", page[1].Date.String())

	// Second read is served from the snapshot for this exact query.
	again, total, err := s.svc.PeriodWorkdays(ctx, s.driverID, q)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Equal(page, again)
}

func (s *ServiceSuite) TestCreateConflict() {
	date := models.NewDate(2026, time.May, 1)
	s.create(date)

	_, err := s.svc.Create(context.Background(), s.driverID, s.createRequest(date))
	s.ErrorIs(err, ErrWorkdayAlreadyExists)
}

func (s *ServiceSuite) TestUpdateReplacesFields() {
	ctx := context.Background()
	date := models.NewDate(2026, time.May, 1)
	s.create(date)

	updated, err := s.svc.Update(ctx, s.driverID, models.UpdateRequest{
		Date:          date,
		StartTime:     timeofday.Must("06:00:00"),
		RestTime:      timeofday.Must("00:45:00"),
		OvernightRest: true,
	})
	s.Require().NoError(err)
	s.Equal(timeofday.Must("06:00:00"), updated.StartTime)
	s.Nil(updated.EndTime)
	s.True(updated.OvernightRest)
}

func (s *ServiceSuite) TestUpdateUnknownWorkday() {
	_, err := s.svc.Update(context.Background(), s.driverID, models.UpdateRequest{
		Date:      models.NewDate(2026, time.May, 1),
		StartTime: timeofday.Must("06:00:00"),
	})
	s.ErrorIs(err, ErrWorkdayNotFound)
}

func (s *ServiceSuite) TestSoftDeleteShadowsWorkday() {
	ctx := context.Background()
	date := models.NewDate(2026, time.June, 10)
	s.create(date)

	g, err := s.svc.SoftDelete(ctx, s.driverID, date)
	s.Require().NoError(err)
	s.Equal(date.String(), g.Date.String())

	wantScheduled := time.Now().UTC().AddDate(0, 0, models.GarbageRetentionDays)
	s.Equal(wantScheduled.Format("2006-01-02"), g.ScheduledDeletion.String())

	workdays, err := s.svc.MonthWorkdays(ctx, s.driverID, models.MonthQuery{Month: 6, Year: 2026})
	s.Require().NoError(err)
	s.Empty(workdays)

	garbage, err := s.svc.Garbage(ctx, s.driverID)
	s.Require().NoError(err)
	s.Len(garbage, 1)
}

func (s *ServiceSuite) TestSoftDeleteErrors() {
	ctx := context.Background()
	date := models.NewDate(2026, time.June, 10)

	_, err := s.svc.SoftDelete(ctx, s.driverID, date)
	s.ErrorIs(err, ErrWorkdayNotFound)

	s.create(date)
	_, err = s.svc.SoftDelete(ctx, s.driverID, date)
	s.Require().NoError(err)

	_, err = s.svc.SoftDelete(ctx, s.driverID, date)
	s.ErrorIs(err, ErrGarbageAlreadyExists)
}

func (s *ServiceSuite) TestRestoreMakesWorkdayVisibleAgain() {
	ctx := context.Background()
	date := models.NewDate(2026, time.June, 10)
	s.create(date)

	_, err := s.svc.SoftDelete(ctx, s.driverID, date)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Restore(ctx, s.driverID, date))

	workdays, err := s.svc.MonthWorkdays(ctx, s.driverID, models.MonthQuery{Month: 6, Year: 2026})
	s.Require().NoError(err)
	s.Len(workdays, 1)

	s.ErrorIs(s.svc.Restore(ctx, s.driverID, date), ErrGarbageNotFound)
}

func (s *ServiceSuite) TestDocumentEnumerationExcludesDeleted() {
	ctx := context.Background()
	s.create(models.NewDate(2025, time.December, 31))
	s.create(models.NewDate(2026, time.January, 2))
	s.create(models.NewDate(2026, time.February, 2))

	_, err := s.svc.SoftDelete(ctx, s.driverID, models.NewDate(2026, time.February, 2))
	s.Require().NoError(err)

	years, err := s.svc.DocumentYears(ctx, s.driverID)
	s.Require().NoError(err)
	s.Equal([]int{2025, 2026}, years)

	months, err := s.svc.DocumentMonths(ctx, s.driverID, 2026)
	s.Require().NoError(err)
	s.Equal([]int{1}, months)
}

func (s *ServiceSuite) TestMonthlyReport() {
	ctx := context.Background()
	s.create(models.NewDate(2026, time.July, 14))

	pdf, err := s.svc.MonthlyReport(ctx, document.MonthlyReportRequest{
		DriverID:  s.driverID,
		FirstName: "Jean",
		LastName:  "Martin",
		Language:  "fr",
		Month:     7,
		Year:      2026,
	})
	s.Require().NoError(err)
	s.Equal([]byte("%PDF-1.7"), pdf)
	s.Len(s.generator.last.Workdays, 1)
	s.Equal("fr", s.generator.last.Language)
}

func (s *ServiceSuite) TestMonthlyReportEmptyMonth() {
	pdf, err := s.svc.MonthlyReport(context.Background(), document.MonthlyReportRequest{
		DriverID: s.driverID,
		Month:    7,
		Year:     2026,
	})
	s.NoError(err)
	s.Nil(pdf)
}

func (s *ServiceSuite) TestMonthlyReportNotConfigured() {
	svc, err := New(s.store, s.cache)
	s.Require().NoError(err)

	_, err = svc.MonthlyReport(context.Background(), document.MonthlyReportRequest{
		DriverID: s.driverID,
		Month:    7,
		Year:     2026,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
