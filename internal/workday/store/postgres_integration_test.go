//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dmodels "roadbook/internal/driver/models"
	dstore "roadbook/internal/driver/store"
	"roadbook/internal/workday/models"
	"roadbook/internal/workday/store"
	"roadbook/pkg/platform/sentinel"
	"roadbook/pkg/testutil/containers"
	"roadbook/pkg/timeofday"
)

type PostgresSuite struct {
	suite.Suite

	store    *store.Postgres
	driverID uuid.UUID
}

func TestPostgresSuite(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../migrations")

	s := &PostgresSuite{store: store.NewPostgres(pg.Pool)}

	driver, err := dstore.NewPostgres(pg.Pool).Insert(context.Background(), &dmodels.Driver{
		FirstName:    "Jean",
		LastName:     "Martin",
		Email:        "jean@example.com",
		PasswordHash: "hash",
		Language:     "fr",
	})
	if err != nil {
		t.Fatalf("failed to seed driver: %v", err)
	}
	s.driverID = driver.ID

	suite.Run(t, s)
}

func (s *PostgresSuite) createRequest(date models.Date) models.CreateRequest {
	end := timeofday.Must("17:00:00")
	return models.CreateRequest{
		Date:      date,
		StartTime: timeofday.Must("08:00:00"),
		EndTime:   &end,
		RestTime:  timeofday.Must("01:00:00"),
	}
}

func (s *PostgresSuite) TestCreateAndMonthListing() {
	ctx := context.Background()
	date := models.NewDate(2031, time.January, 6)

	created, err := s.store.Create(ctx, s.driverID, s.createRequest(date))
	s.Require().NoError(err)
	s.Equal(date.String(), created.Date.String())
	s.Equal(timeofday.Must("08:00:00"), created.StartTime)
	s.Require().NotNil(created.EndTime)
	s.Equal(timeofday.Must("17:00:00"), *created.EndTime)

	_, err = s.store.Create(ctx, s.driverID, s.createRequest(date))
	s.ErrorIs(err, sentinel.ErrConflict)

	workdays, err := s.store.MonthWorkdays(ctx, s.driverID, 1, 2031)
	s.Require().NoError(err)
	s.Len(workdays, 1)

	// A different driver sees nothing.
	workdays, err = s.store.MonthWorkdays(ctx, uuid.New(), 1, 2031)
	s.Require().NoError(err)
	s.Empty(workdays)
}

func (s *PostgresSuite) TestUpdate() {
	ctx := context.Background()
	date := models.NewDate(2031, time.February, 3)

	_, err := s.store.Create(ctx, s.driverID, s.createRequest(date))
	s.Require().NoError(err)

	updated, err := s.store.Update(ctx, s.driverID, models.UpdateRequest{
		Date:          date,
		StartTime:     timeofday.Must("06:30:00"),
		RestTime:      timeofday.Must("00:45:00"),
		OvernightRest: true,
	})
	s.Require().NoError(err)
	s.Equal(timeofday.Must("06:30:00"), updated.StartTime)
	s.Nil(updated.EndTime)
	s.True(updated.OvernightRest)

	_, err = s.store.Update(ctx, s.driverID, models.UpdateRequest{
		Date:      models.NewDate(2031, time.February, 28),
		StartTime: timeofday.Must("06:30:00"),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestGarbageShadowingAndRestore() {
	ctx := context.Background()
	date := models.NewDate(2031, time.March, 10)
	scheduled := models.NewDate(2031, time.April, 9)

	_, err := s.store.Create(ctx, s.driverID, s.createRequest(date))
	s.Require().NoError(err)

	g, err := s.store.GarbageCreate(ctx, s.driverID, date, scheduled)
	s.Require().NoError(err)
	s.Equal(scheduled.String(), g.ScheduledDeletion.String())

	// The composite FK rejects garbage for a date with no workday.
	_, err = s.store.GarbageCreate(ctx, s.driverID, models.NewDate(2031, time.March, 11), scheduled)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.GarbageCreate(ctx, s.driverID, date, scheduled)
	s.ErrorIs(err, sentinel.ErrConflict)

	workdays, err := s.store.MonthWorkdays(ctx, s.driverID, 3, 2031)
	s.Require().NoError(err)
	s.Empty(workdays)

	garbage, err := s.store.GarbageList(ctx, s.driverID)
	s.Require().NoError(err)
	s.Len(garbage, 1)

	s.Require().NoError(s.store.GarbageDelete(ctx, s.driverID, date))
	s.ErrorIs(s.store.GarbageDelete(ctx, s.driverID, date), sentinel.ErrNotFound)

	workdays, err = s.store.MonthWorkdays(ctx, s.driverID, 3, 2031)
	s.Require().NoError(err)
	s.Len(workdays, 1)
}

func (s *PostgresSuite) TestPeriodPagination() {
	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		_, err := s.store.Create(ctx, s.driverID, s.createRequest(models.NewDate(2031, time.May, day)))
		s.Require().NoError(err)
	}

	from := models.NewDate(2031, time.May, 1)
	to := models.NewDate(2031, time.May, 31)

	page, total, err := s.store.PeriodWorkdays(ctx, s.driverID, from, to, 2, 2)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(page, 2)
	s.Equal("2031-05-03", page[0].Date.String())
	s.Equal("2031-05-04", page[1].Date.String())
}

func (s *PostgresSuite) TestDocumentEnumeration() {
	ctx := context.Background()
	_, err := s.store.Create(ctx, s.driverID, s.createRequest(models.NewDate(2032, time.June, 1)))
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, s.driverID, s.createRequest(models.NewDate(2032, time.July, 1)))
	s.Require().NoError(err)

	years, err := s.store.DocumentYears(ctx, s.driverID)
	s.Require().NoError(err)
	s.Contains(years, 2032)

	months, err := s.store.DocumentMonths(ctx, s.driverID, 2032)
	s.Require().NoError(err)
	s.Equal([]int{6, 7}, months)
}
