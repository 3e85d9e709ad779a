package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/lawanalytics/booking-api/internal/availability"
	"github.com/lawanalytics/booking-api/internal/dto"
	"github.com/lawanalytics/booking-api/internal/models"
	"github.com/lawanalytics/booking-api/internal/repository"
	appErrors "github.com/lawanalytics/booking-api/pkg/errors"
	"github.com/lawanalytics/booking-api/pkg/jobs"
)

type bookingWriter interface {
	Create(ctx context.Context, booking *models.Booking) error
}

type snapshotLoader interface {
	Fresh(ctx context.Context, availabilityID string) (*models.AvailabilitySettings, error)
	SlotsFor(day time.Time, settings *models.AvailabilitySettings, now time.Time) []models.AvailableSlot
	Invalidate(ctx context.Context, slug string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// BookingService accepts public booking submissions after re-checking the requested slot
// against a fresh snapshot.
type BookingService struct {
	bookings     bookingWriter
	availability snapshotLoader
	queue        jobEnqueuer
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewBookingService constructs the service. A nil queue invalidates the cache inline.
func NewBookingService(bookings bookingWriter, availability snapshotLoader, queue jobEnqueuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:     bookings,
		availability: availability,
		queue:        queue,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Create validates and stores a booking. Both conflict errors carry the refreshed slot list
// for the requested date under details["slots"].
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordBooking(BookingOutcomeInvalid)
		return nil, appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload"),
			map[string]interface{}{"fields": fieldErrors(err)})
	}
	requested, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime must be an RFC3339 timestamp")
	}

	settings, err := s.availability.Fresh(ctx, req.AvailabilityID)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeError)
		return nil, err
	}
	if req.Duration != settings.Duration {
		s.metrics.RecordBooking(BookingOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duration must be %d minutes", settings.Duration))
	}
	if missing := missingCustomFields(settings.CustomFields, req.CustomFields); len(missing) > 0 {
		s.metrics.RecordBooking(BookingOutcomeInvalid)
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "required custom fields are missing"),
			map[string]interface{}{"missing": missing})
	}

	loc := availability.InLocation(settings)
	start := requested.In(loc)
	day := availability.StartOfDay(start)
	now := s.now()

	slots := s.availability.SlotsFor(day, settings, now)
	if !s.slotOpen(start, day, settings, now, slots) {
		s.metrics.RecordBooking(BookingOutcomeUnavailable)
		return nil, conflictWithSlots(appErrors.ErrSlotUnavailable, day, slots)
	}

	booking := &models.Booking{
		AvailabilityID: settings.ID,
		StartTime:      start.UTC(),
		EndTime:        start.Add(time.Duration(settings.Duration) * time.Minute).UTC(),
		Status:         models.BookingStatusPending,
		ClientName:     strings.TrimSpace(req.ClientName),
		ClientEmail:    strings.ToLower(strings.TrimSpace(req.ClientEmail)),
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
		CustomFields:   encodeCustomFields(req.CustomFields),
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if repository.IsSlotConflict(err) {
			s.metrics.RecordBooking(BookingOutcomeTaken)
			s.logger.Info("booking lost race for slot",
				zap.String("availability_id", settings.ID),
				zap.Time("start", booking.StartTime))
			return nil, conflictWithSlots(appErrors.ErrSlotTaken, day, s.refreshedSlots(ctx, settings, day))
		}
		s.metrics.RecordBooking(BookingOutcomeError)
		s.logger.Error("create booking failed", zap.String("availability_id", settings.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.metrics.RecordBooking(BookingOutcomeCreated)
	s.scheduleInvalidation(ctx, settings.Slug)

	return &dto.BookingResponse{
		ID:             booking.ID,
		AvailabilityID: booking.AvailabilityID,
		StartTime:      booking.StartTime.In(loc).Format(time.RFC3339),
		EndTime:        booking.EndTime.In(loc).Format(time.RFC3339),
		Status:         string(booking.Status),
		ClientName:     booking.ClientName,
		ClientEmail:    booking.ClientEmail,
	}, nil
}

// slotOpen requires the start to sit exactly on an available candidate inside the horizon.
func (s *BookingService) slotOpen(start, day time.Time, settings *models.AvailabilitySettings, now time.Time, slots []models.AvailableSlot) bool {
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}
	if day.After(availability.HorizonEnd(settings, now)) {
		return false
	}
	clock := availability.FormatClock(start.Hour()*60 + start.Minute())
	for _, slot := range slots {
		if slot.Time == clock {
			return slot.IsAvailable
		}
	}
	return false
}

// refreshedSlots reloads bookings after a conflict so the response reflects the winning booking.
func (s *BookingService) refreshedSlots(ctx context.Context, settings *models.AvailabilitySettings, day time.Time) []models.AvailableSlot {
	s.scheduleInvalidation(ctx, settings.Slug)
	fresh, err := s.availability.Fresh(ctx, settings.ID)
	if err != nil {
		s.logger.Warn("reload availability after conflict failed", zap.String("availability_id", settings.ID), zap.Error(err))
		fresh = settings
	}
	return s.availability.SlotsFor(day, fresh, s.now())
}

func (s *BookingService) scheduleInvalidation(ctx context.Context, slug string) {
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: JobInvalidateAvailability, Payload: slug})
		if err == nil {
			return
		}
		s.logger.Warn("enqueue cache invalidation failed, invalidating inline", zap.String("slug", slug), zap.Error(err))
	}
	if err := s.availability.Invalidate(ctx, slug); err != nil {
		s.logger.Warn("invalidate availability cache failed", zap.String("slug", slug), zap.Error(err))
	}
}

func conflictWithSlots(base *appErrors.Error, day time.Time, slots []models.AvailableSlot) *appErrors.Error {
	return appErrors.WithDetails(base, map[string]interface{}{
		"date":  day.Format(dto.DateLayout),
		"slots": slots,
	})
}

func missingCustomFields(fields []models.CustomField, answers map[string]string) []string {
	missing := make([]string, 0)
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if strings.TrimSpace(answers[f.ID]) == "" {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

func encodeCustomFields(answers map[string]string) types.JSONText {
	if len(answers) == 0 {
		return types.JSONText("{}")
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return types.JSONText("{}")
	}
	return types.JSONText(data)
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
