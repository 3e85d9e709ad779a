package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawanalytics/booking-api/internal/models"
)

func sampleBooking() *models.Booking {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return &models.Booking{
		AvailabilityID: "av-1",
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		ClientName:     "Ana Pérez",
		ClientEmail:    "ana@example.com",
	}
}

func TestBookingRepositoryListActiveBetween(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WithArgs("av-1", "cancelled", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "availability_id", "start_time", "end_time", "status"}).
			AddRow("bk-1", "av-1", from.Add(9*time.Hour), from.Add(10*time.Hour), "confirmed"))

	bookings, err := repo.ListActiveBetween(context.Background(), "av-1", from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	booking := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM booking_availabilities WHERE id = $1 FOR UPDATE")).
		WithArgs("av-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("av-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM bookings")).
		WithArgs("av-1", "cancelled", booking.StartTime, booking.EndTime).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), booking))
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateRejectsOverlap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	booking := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("av-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), booking)
	require.ErrorIs(t, err, ErrBookingOverlap)
	assert.True(t, IsSlotConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateMapsConstraintViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("av-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleBooking())
	require.Error(t, err)
	assert.True(t, IsSlotConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSlotConflict(t *testing.T) {
	assert.True(t, IsSlotConflict(fmt.Errorf("wrap: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsSlotConflict(&pq.Error{Code: "23503"}))
	assert.False(t, IsSlotConflict(fmt.Errorf("timeout")))
	assert.False(t, IsSlotConflict(nil))
}
