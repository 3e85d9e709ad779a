package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lawanalytics/booking-api/internal/models"
)

// ErrBookingOverlap is returned when an active booking already covers part of the interval.
var ErrBookingOverlap = errors.New("booking overlaps an existing reservation")

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

// BookingRepository persists reservations.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ListActiveBetween returns non-cancelled bookings intersecting [from, to).
func (r *BookingRepository) ListActiveBetween(ctx context.Context, availabilityID string, from, to time.Time) ([]models.Booking, error) {
	const query = `SELECT id, availability_id, start_time, end_time, status
	FROM bookings
	WHERE availability_id = $1 AND status <> $2 AND start_time < $4 AND end_time > $3
	ORDER BY start_time`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, availabilityID, models.BookingStatusCancelled, from, to); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// Create inserts the booking after locking the availability row and re-checking overlaps, so
// two concurrent submissions for the same interval cannot both succeed.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) (err error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const lockQuery = `SELECT id FROM booking_availabilities WHERE id = $1 FOR UPDATE`
	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, lockQuery, booking.AvailabilityID); err != nil {
		return fmt.Errorf("lock availability: %w", err)
	}

	const overlapQuery = `SELECT COUNT(1) FROM bookings
	WHERE availability_id = $1 AND status <> $2 AND start_time < $4 AND end_time > $3`
	var overlapping int
	if err = tx.GetContext(ctx, &overlapping, overlapQuery, booking.AvailabilityID, models.BookingStatusCancelled, booking.StartTime, booking.EndTime); err != nil {
		return fmt.Errorf("check booking overlap: %w", err)
	}
	if overlapping > 0 {
		err = ErrBookingOverlap
		return err
	}

	const insertQuery = `INSERT INTO bookings
	(id, availability_id, start_time, end_time, status, client_name, client_email, client_phone, notes, custom_fields, created_at)
	VALUES (:id, :availability_id, :start_time, :end_time, :status, :client_name, :client_email, :client_phone, :notes, :custom_fields, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertQuery, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// IsSlotConflict reports whether err means the interval is already taken, either from the
// overlap check or from a storage-level exclusion or unique constraint.
func IsSlotConflict(err error) bool {
	if errors.Is(err, ErrBookingOverlap) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqExclusionViolation || pqErr.Code == pqUniqueViolation
	}
	return false
}
