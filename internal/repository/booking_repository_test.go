package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
)

var bookingCols = []string{"id", "session_id", "user_id", "movie_id", "theater_id", "total_price", "status", "booking_date",
	"cancellation_reason", "cancellation_date", "created_at", "updated_at"}

var bookedAt = time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)

func expectFind(mock sqlmock.Sqlmock, id uint64, status string, seats ...string) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(id, 1, 5, 7, 3, "25.00", status, bookedAt, nil, nil, bookedAt, bookedAt))
	rows := sqlmock.NewRows([]string{"seat_label"})
	for _, s := range seats {
		rows.AddRow(s)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_label FROM booking_seats")).WithArgs(id).WillReturnRows(rows)
}

func TestBookingRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(uint64(1), uint64(5), uint64(7), uint64(3), sqlmock.AnyArg(), model.BookingConfirmed, bookedAt).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_seats (booking_id, seat_label) VALUES (?, ?),(?, ?)")).
		WithArgs(int64(42), "B2", int64(42), "B3").
		WillReturnResult(sqlmock.NewResult(0, 2))
	expectFind(mock, 42, model.BookingConfirmed, "B2", "B3")

	b, err := repo.Create(context.Background(), &model.Booking{
		SessionID: 1, UserID: 5, MovieID: 7, TheaterID: 3,
		Seats:       []string{"B2", "B3"},
		TotalPrice:  decimal.RequireFromString("25.00"),
		Status:      model.BookingConfirmed,
		BookingDate: bookedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), b.ID)
	assert.Equal(t, []string{"B2", "B3"}, b.Seats)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(25)))
	assert.Nil(t, b.CancellationReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_MarkCancelled(t *testing.T) {
	upd := regexp.QuoteMeta("UPDATE bookings SET status = 'CANCELLED'")
	at := bookedAt.Add(time.Hour)

	t.Run("cancels a confirmed booking", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		mock.ExpectExec(upd).WithArgs("changed plans", at, uint64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).
			WillReturnRows(sqlmock.NewRows(bookingCols).
				AddRow(42, 1, 5, 7, 3, "25.00", model.BookingCancelled, bookedAt, "changed plans", at, bookedAt, at))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_label FROM booking_seats")).
			WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("B2"))

		b, err := repo.MarkCancelled(context.Background(), 42, "changed plans", at)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, b.Status)
		require.NotNil(t, b.CancellationReason)
		assert.Equal(t, "changed plans", *b.CancellationReason)
		require.NotNil(t, b.CancellationDate)
		assert.True(t, b.CancellationDate.Equal(at))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already cancelled", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		mock.ExpectExec(upd).WithArgs(nil, at, uint64(42)).WillReturnResult(sqlmock.NewResult(0, 0))
		expectFind(mock, 42, model.BookingCancelled, "B2")

		_, err := repo.MarkCancelled(context.Background(), 42, "", at)
		require.ErrorIs(t, err, ErrBookingState)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, model.BookingCancelled, se.Status)
	})

	t.Run("missing booking", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		mock.ExpectExec(upd).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).WillReturnRows(sqlmock.NewRows(bookingCols))

		_, err := repo.MarkCancelled(context.Background(), 99, "x", at)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestBookingRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE user_id = ? AND status = ?")).
		WithArgs(uint64(5), model.BookingConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY booking_date DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(uint64(5), model.BookingConfirmed, 2, 2).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 1, 5, 7, 3, "10", model.BookingConfirmed, bookedAt, nil, nil, bookedAt, bookedAt))
	mock.ExpectQuery(regexp.QuoteMeta("FROM booking_seats WHERE booking_id IN (?)")).
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "seat_label"}).AddRow(11, "C1"))

	items, total, err := repo.ListByUser(context.Background(), BookingFilter{UserID: 5, Status: model.BookingConfirmed, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"C1"}, items[0].Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingFilter_Normalize(t *testing.T) {
	f := BookingFilter{}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageLimit, f.Limit)

	f = BookingFilter{Page: 3, Limit: 1000}
	f.Normalize()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, MaxPageLimit, f.Limit)
}

func TestStatsRepo_BookingTotals(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatsRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.movie_id = ?")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "revenue", "seats"}).
			AddRow(model.BookingCancelled, 1, []byte("12.50"), []byte("1")).
			AddRow(model.BookingConfirmed, 2, []byte("50.00"), []byte("4")))

	out, err := repo.BookingTotals(context.Background(), StatsFilter{MovieID: 7})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[1].Count)
	assert.Equal(t, "50", out[1].Revenue.String())
	assert.Equal(t, int64(4), out[1].Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}
