package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

type fakeSessionLister struct {
	ListFunc func(ctx context.Context, f repository.SessionFilter) ([]model.Session, error)
}

func (f *fakeSessionLister) List(ctx context.Context, filter repository.SessionFilter) ([]model.Session, error) {
	return f.ListFunc(ctx, filter)
}

type fakeStats struct {
	BookingTotalsFunc  func(ctx context.Context, f repository.StatsFilter) ([]repository.StatusTotal, error)
	MovieOccupancyFunc func(ctx context.Context, f repository.StatsFilter) ([]repository.MovieOccupancyRow, error)
}

func (f *fakeStats) BookingTotals(ctx context.Context, filter repository.StatsFilter) ([]repository.StatusTotal, error) {
	return f.BookingTotalsFunc(ctx, filter)
}

func (f *fakeStats) MovieOccupancy(ctx context.Context, filter repository.StatsFilter) ([]repository.MovieOccupancyRow, error) {
	return f.MovieOccupancyFunc(ctx, filter)
}

func TestAvailability_DerivesSeatFigures(t *testing.T) {
	var got repository.SessionFilter
	lister := &fakeSessionLister{ListFunc: func(_ context.Context, f repository.SessionFilter) ([]model.Session, error) {
		got = f
		return []model.Session{
			{ID: 1, MovieID: 7, TotalSeats: 10, TakenSeats: []string{"B2", "B3"}},
			{ID: 2, MovieID: 7, TotalSeats: 0, TakenSeats: []string{}},
		}, nil
	}}
	svc := NewAvailabilityService(lister, &fakeStats{})

	day := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)
	out, err := svc.Availability(context.Background(), AvailabilityQuery{MovieID: 7, Date: day})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(8), out[0].AvailableSeats)
	assert.Equal(t, 0.2, out[0].OccupancyRate)
	assert.Equal(t, uint32(0), out[1].AvailableSeats)
	assert.Equal(t, 0.0, out[1].OccupancyRate)

	assert.Equal(t, uint64(7), got.MovieID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.From)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), got.To)
}

func TestAvailability_RequiresMovieOrTheater(t *testing.T) {
	svc := NewAvailabilityService(&fakeSessionLister{}, &fakeStats{})
	_, err := svc.Availability(context.Background(), AvailabilityQuery{})
	se := requireKind(t, err, KindValidation)
	assert.Equal(t, "movieRef", se.Field)
}

func TestStats_Aggregates(t *testing.T) {
	stats := &fakeStats{
		BookingTotalsFunc: func(_ context.Context, f repository.StatsFilter) ([]repository.StatusTotal, error) {
			assert.Equal(t, uint64(3), f.TheaterID)
			return []repository.StatusTotal{
				{Status: model.BookingCancelled, Count: 2, Revenue: decimal.RequireFromString("20.00"), Seats: 2},
				{Status: model.BookingCompleted, Count: 1, Revenue: decimal.RequireFromString("12.50"), Seats: 1},
				{Status: model.BookingConfirmed, Count: 3, Revenue: decimal.RequireFromString("45.00"), Seats: 5},
			}, nil
		},
		MovieOccupancyFunc: func(_ context.Context, _ repository.StatsFilter) ([]repository.MovieOccupancyRow, error) {
			return []repository.MovieOccupancyRow{
				{MovieID: 7, Sessions: 2, TotalSeats: 20, Taken: 6},
				{MovieID: 9, Sessions: 1, TotalSeats: 0, Taken: 0},
			}, nil
		},
	}
	svc := NewAvailabilityService(&fakeSessionLister{}, stats)

	out, err := svc.Stats(context.Background(), StatsQuery{TheaterID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.TotalBookings)
	assert.Equal(t, int64(0), out.ByStatus[model.BookingPending])
	assert.Equal(t, int64(3), out.ByStatus[model.BookingConfirmed])
	assert.Equal(t, "57.5", out.Revenue.String())
	assert.Equal(t, int64(6), out.SeatsSold)
	require.Len(t, out.Movies, 2)
	assert.Equal(t, 0.3, out.Movies[0].OccupancyRate)
	assert.Equal(t, 0.0, out.Movies[1].OccupancyRate)
}

func TestStats_EmptyAndErrors(t *testing.T) {
	stats := &fakeStats{
		BookingTotalsFunc: func(context.Context, repository.StatsFilter) ([]repository.StatusTotal, error) {
			return nil, nil
		},
		MovieOccupancyFunc: func(context.Context, repository.StatsFilter) ([]repository.MovieOccupancyRow, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewAvailabilityService(&fakeSessionLister{}, stats)

	_, err := svc.Stats(context.Background(), StatsQuery{})
	require.Error(t, err)

	stats.MovieOccupancyFunc = func(context.Context, repository.StatsFilter) ([]repository.MovieOccupancyRow, error) {
		return nil, nil
	}
	out, err := svc.Stats(context.Background(), StatsQuery{})
	require.NoError(t, err)
	assert.Zero(t, out.TotalBookings)
	assert.True(t, out.Revenue.IsZero())
	assert.NotNil(t, out.Movies)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err = svc.Stats(context.Background(), StatsQuery{From: from, To: from.AddDate(0, 0, -1)})
	requireKind(t, err, KindValidation)
}
