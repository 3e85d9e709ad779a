package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lawanalytics/booking-api/internal/models"
)

const availabilityColumns = `id, slug, title, description, timezone, duration, buffer_before, buffer_after,
       min_notice_hours, max_days_in_advance, is_active, custom_fields, updated_at`

// AvailabilityRepository reads provider availability settings.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// FindBySlug returns the active settings row published under slug.
func (r *AvailabilityRepository) FindBySlug(ctx context.Context, slug string) (*models.AvailabilitySettings, error) {
	query := `SELECT ` + availabilityColumns + ` FROM booking_availabilities WHERE slug = $1 AND is_active = TRUE`
	var settings models.AvailabilitySettings
	if err := r.db.GetContext(ctx, &settings, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find availability by slug: %w", err)
	}
	return &settings, nil
}

// FindByID returns the settings row regardless of publication state.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilitySettings, error) {
	query := `SELECT ` + availabilityColumns + ` FROM booking_availabilities WHERE id = $1`
	var settings models.AvailabilitySettings
	if err := r.db.GetContext(ctx, &settings, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find availability by id: %w", err)
	}
	return &settings, nil
}

// ListTimeSlots returns weekly rules in their configured order.
func (r *AvailabilityRepository) ListTimeSlots(ctx context.Context, availabilityID string) ([]models.TimeSlot, error) {
	const query = `SELECT id, availability_id, day, start_time, end_time, is_active
	FROM booking_time_slots WHERE availability_id = $1 ORDER BY position, day, start_time`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, availabilityID); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// ListExcludedDates returns blocked calendar days.
func (r *AvailabilityRepository) ListExcludedDates(ctx context.Context, availabilityID string) ([]models.ExcludedDate, error) {
	const query = `SELECT id, availability_id, date, reason
	FROM booking_excluded_dates WHERE availability_id = $1 ORDER BY date`
	var dates []models.ExcludedDate
	if err := r.db.SelectContext(ctx, &dates, query, availabilityID); err != nil {
		return nil, fmt.Errorf("list excluded dates: %w", err)
	}
	return dates, nil
}
