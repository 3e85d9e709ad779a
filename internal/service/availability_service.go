package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lawanalytics/booking-api/internal/availability"
	"github.com/lawanalytics/booking-api/internal/dto"
	"github.com/lawanalytics/booking-api/internal/models"
	appErrors "github.com/lawanalytics/booking-api/pkg/errors"
	"github.com/lawanalytics/booking-api/pkg/jobs"
)

// JobInvalidateAvailability drops the cached snapshot for the slug carried in the payload.
const JobInvalidateAvailability = "availability.invalidate"

const availabilityCachePrefix = "availability:"

type availabilityReader interface {
	FindBySlug(ctx context.Context, slug string) (*models.AvailabilitySettings, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilitySettings, error)
	ListTimeSlots(ctx context.Context, availabilityID string) ([]models.TimeSlot, error)
	ListExcludedDates(ctx context.Context, availabilityID string) ([]models.ExcludedDate, error)
}

type activeBookingLister interface {
	ListActiveBetween(ctx context.Context, availabilityID string, from, to time.Time) ([]models.Booking, error)
}

// AvailabilityServiceConfig tunes snapshot caching and range limits.
type AvailabilityServiceConfig struct {
	CacheTTL     time.Duration
	MaxRangeDays int
	// DefaultTimezone replaces a blank or unknown provider timezone.
	DefaultTimezone string
}

// AvailabilityServiceParams groups constructor dependencies.
type AvailabilityServiceParams struct {
	Settings  availabilityReader
	Bookings  activeBookingLister
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AvailabilityServiceConfig
}

// AvailabilityService loads availability snapshots and runs the slot engine over them.
type AvailabilityService struct {
	settings  availabilityReader
	bookings  activeBookingLister
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       AvailabilityServiceConfig
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(params AvailabilityServiceParams) *AvailabilityService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 92
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil || cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	return &AvailabilityService{
		settings:  params.Settings,
		bookings:  params.Bookings,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// NewValidator returns a validator that reports JSON field names and knows the "clock"
// rule for HH:MM strings.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return availability.ValidClock(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register clock validation: %v", err))
	}
	return v
}

// Settings returns the snapshot for slug and whether it came from cache.
func (s *AvailabilityService) Settings(ctx context.Context, slug string) (*models.AvailabilitySettings, bool, error) {
	if slug == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "slug is required")
	}
	key := availabilityCachePrefix + slug
	var cached models.AvailabilitySettings
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	row, err := s.settings.FindBySlug(ctx, slug)
	s.metrics.ObserveDBQuery("availability_by_slug", time.Since(start))
	if err != nil {
		return nil, false, s.mapLoadError(err, slug)
	}
	snapshot, err := s.hydrate(ctx, row)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, snapshot, s.cfg.CacheTTL)
	return snapshot, false, nil
}

// Fresh loads the snapshot by ID bypassing the cache. Used when a decision must see the
// latest bookings.
func (s *AvailabilityService) Fresh(ctx context.Context, availabilityID string) (*models.AvailabilitySettings, error) {
	start := time.Now()
	row, err := s.settings.FindByID(ctx, availabilityID)
	s.metrics.ObserveDBQuery("availability_by_id", time.Since(start))
	if err != nil {
		return nil, s.mapLoadError(err, availabilityID)
	}
	if !row.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
	}
	return s.hydrate(ctx, row)
}

func (s *AvailabilityService) mapLoadError(err error, ref string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
	}
	s.logger.Error("load availability failed", zap.String("ref", ref), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "no se pudo cargar la disponibilidad")
}

// hydrate attaches schedule rules, exclusions and the bookings that can affect any day up to
// the horizon. The booking window is padded by a day on each side so calendar-day filtering
// in the provider's timezone sees every candidate.
func (s *AvailabilityService) hydrate(ctx context.Context, row *models.AvailabilitySettings) (*models.AvailabilitySettings, error) {
	start := time.Now()
	slots, err := s.settings.ListTimeSlots(ctx, row.ID)
	if err != nil {
		return nil, s.mapLoadError(err, row.ID)
	}
	excluded, err := s.settings.ListExcludedDates(ctx, row.ID)
	if err != nil {
		return nil, s.mapLoadError(err, row.ID)
	}
	snapshot := *row
	s.applyDefaultTimezone(&snapshot)

	now := s.now()
	loc := availability.InLocation(&snapshot)
	from := availability.AddDays(availability.StartOfDay(now.In(loc)), -1)
	to := availability.AddDays(availability.HorizonEnd(&snapshot, now), 2)
	bookings, err := s.bookings.ListActiveBetween(ctx, row.ID, from, to)
	if err != nil {
		return nil, s.mapLoadError(err, row.ID)
	}
	s.metrics.ObserveDBQuery("availability_hydrate", time.Since(start))

	snapshot.TimeSlots = slots
	snapshot.ExcludedDates = excluded
	snapshot.Bookings = bookings
	s.checkSettings(&snapshot)
	return &snapshot, nil
}

func (s *AvailabilityService) applyDefaultTimezone(settings *models.AvailabilitySettings) {
	if settings.Timezone != "" {
		if _, err := time.LoadLocation(settings.Timezone); err == nil {
			return
		}
		s.logger.Warn("unknown availability timezone, using default",
			zap.String("availability_id", settings.ID),
			zap.String("timezone", settings.Timezone),
			zap.String("default", s.cfg.DefaultTimezone))
	}
	settings.Timezone = s.cfg.DefaultTimezone
}

// checkSettings logs misconfiguration. The engine is total, so invalid settings still
// produce a (possibly empty) result.
func (s *AvailabilityService) checkSettings(settings *models.AvailabilitySettings) {
	if err := s.validator.Struct(settings); err != nil {
		s.logger.Warn("availability settings failed validation",
			zap.String("availability_id", settings.ID),
			zap.String("slug", settings.Slug),
			zap.Error(err))
	}
}

// Public returns the booking page configuration.
func (s *AvailabilityService) Public(ctx context.Context, slug string) (*dto.PublicAvailability, bool, error) {
	settings, hit, err := s.Settings(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	out := &dto.PublicAvailability{
		ID:               settings.ID,
		Slug:             settings.Slug,
		Title:            settings.Title,
		Timezone:         availability.InLocation(settings).String(),
		Duration:         settings.Duration,
		BufferBefore:     settings.BufferBefore,
		BufferAfter:      settings.BufferAfter,
		MinNoticeHours:   settings.MinNoticeHours,
		MaxDaysInAdvance: settings.MaxDaysInAdvance,
		TimeSlots:        make([]models.TimeSlot, 0, len(settings.TimeSlots)),
		ExcludedDates:    make([]string, 0, len(settings.ExcludedDates)),
		CustomFields:     settings.CustomFields,
	}
	if settings.Description != nil {
		out.Description = *settings.Description
	}
	for _, ts := range settings.TimeSlots {
		if ts.IsActive {
			out.TimeSlots = append(out.TimeSlots, ts)
		}
	}
	for _, ex := range settings.ExcludedDates {
		out.ExcludedDates = append(out.ExcludedDates, ex.Date.Format(dto.DateLayout))
	}
	if out.CustomFields == nil {
		out.CustomFields = []models.CustomField{}
	}
	return out, hit, nil
}

// Slots lists every candidate slot on date (YYYY-MM-DD in the provider's timezone).
func (s *AvailabilityService) Slots(ctx context.Context, slug, date string) (*dto.SlotsResponse, bool, error) {
	settings, hit, err := s.Settings(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	loc := availability.InLocation(settings)
	day, err := parseDate(date, loc)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	resp := &dto.SlotsResponse{Date: day.Format(dto.DateLayout), Timezone: loc.String()}
	if day.After(availability.HorizonEnd(settings, now)) {
		resp.Slots = []models.AvailableSlot{}
		resp.OutsideHorizon = true
		return resp, hit, nil
	}
	resp.Slots = s.compute("slots", day, settings, now)
	return resp, hit, nil
}

// FirstAvailable scans the horizon for the first day with an open slot.
func (s *AvailabilityService) FirstAvailable(ctx context.Context, slug string) (*dto.FirstAvailableResponse, bool, error) {
	settings, hit, err := s.Settings(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	start := time.Now()
	sel := availability.FindFirstAvailableDate(settings, s.now())
	s.observe("first_available", start, sel.Slots)
	if sel.Fallback {
		s.logger.Info("no availability inside horizon, falling back to tomorrow",
			zap.String("slug", slug), zap.Int("max_days_in_advance", settings.MaxDaysInAdvance))
	}
	return &dto.FirstAvailableResponse{
		Date:     sel.Date.Format(dto.DateLayout),
		Timezone: sel.Date.Location().String(),
		Slots:    sel.Slots,
		Fallback: sel.Fallback,
	}, hit, nil
}

// Calendar summarises availability per day. Empty bounds default to today and the horizon end.
func (s *AvailabilityService) Calendar(ctx context.Context, slug, from, to string) (*dto.CalendarResponse, bool, error) {
	settings, hit, err := s.Settings(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	days, first, last, err := s.rangeFor(settings, from, to, now)
	if err != nil {
		return nil, false, err
	}

	resp := &dto.CalendarResponse{
		From:     first.Format(dto.DateLayout),
		To:       last.Format(dto.DateLayout),
		Timezone: availability.InLocation(settings).String(),
		Days:     make([]dto.CalendarDay, 0, len(days)),
	}
	for _, d := range days {
		available := d.AvailableCount()
		resp.Days = append(resp.Days, dto.CalendarDay{
			Date:      d.Date.Format(dto.DateLayout),
			Total:     len(d.Slots),
			Available: available,
			Disabled:  available == 0,
		})
	}
	return resp, hit, nil
}

// Range returns per-day slot lists for [from, to] clamped to today and the horizon.
func (s *AvailabilityService) Range(ctx context.Context, slug, from, to string) (*models.AvailabilitySettings, []availability.DayAvailability, error) {
	settings, _, err := s.Settings(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	days, _, _, err := s.rangeFor(settings, from, to, s.now())
	if err != nil {
		return nil, nil, err
	}
	return settings, days, nil
}

func (s *AvailabilityService) rangeFor(settings *models.AvailabilitySettings, from, to string, now time.Time) ([]availability.DayAvailability, time.Time, time.Time, error) {
	loc := availability.InLocation(settings)
	first := availability.StartOfDay(now.In(loc))
	last := availability.HorizonEnd(settings, now)
	var err error
	if from != "" {
		if first, err = parseDate(from, loc); err != nil {
			return nil, first, last, err
		}
	}
	if to != "" {
		if last, err = parseDate(to, loc); err != nil {
			return nil, first, last, err
		}
	}
	if last.Before(first) {
		return nil, first, last, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	if span := availability.DaysBetween(first, last) + 1; span > s.cfg.MaxRangeDays {
		return nil, first, last, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}

	start := time.Now()
	days := availability.ComputeAvailabilityRange(first, last, settings, now)
	var all []models.AvailableSlot
	for _, d := range days {
		all = append(all, d.Slots...)
	}
	s.observe("range", start, all)
	return days, first, last, nil
}

// SlotsFor runs the per-date computation on an already loaded snapshot.
func (s *AvailabilityService) SlotsFor(day time.Time, settings *models.AvailabilitySettings, now time.Time) []models.AvailableSlot {
	return s.compute("slots", day, settings, now)
}

func (s *AvailabilityService) compute(operation string, day time.Time, settings *models.AvailabilitySettings, now time.Time) []models.AvailableSlot {
	start := time.Now()
	slots := availability.ComputeAvailableTimesForDate(day, settings, now)
	s.observe(operation, start, slots)
	return slots
}

func (s *AvailabilityService) observe(operation string, start time.Time, slots []models.AvailableSlot) {
	available := 0
	for _, slot := range slots {
		if slot.IsAvailable {
			available++
		}
	}
	s.metrics.ObserveComputation(operation, time.Since(start), available, len(slots)-available)
}

// Invalidate drops the cached snapshot for slug.
func (s *AvailabilityService) Invalidate(ctx context.Context, slug string) error {
	return s.cache.Delete(ctx, availabilityCachePrefix+slug)
}

// HandleInvalidateJob is the queue handler for JobInvalidateAvailability.
func (s *AvailabilityService) HandleInvalidateJob(ctx context.Context, job jobs.Job) error {
	slug, ok := job.Payload.(string)
	if !ok || slug == "" {
		s.logger.Warn("invalidate job without slug", zap.String("job_id", job.ID))
		return nil
	}
	return s.Invalidate(ctx, slug)
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	day, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	y, m, d := day.Date()
	return availability.DateIn(y, m, d, loc), nil
}
