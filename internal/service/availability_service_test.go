package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawanalytics/booking-api/internal/models"
	appErrors "github.com/lawanalytics/booking-api/pkg/errors"
	"github.com/lawanalytics/booking-api/pkg/jobs"
)

// 2024-01-01 is a Monday.
var fixedNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type availabilityRepoStub struct {
	settings map[string]models.AvailabilitySettings
	slots    []models.TimeSlot
	excluded []models.ExcludedDate
	err      error
	loads    int
}

func (s *availabilityRepoStub) FindBySlug(ctx context.Context, slug string) (*models.AvailabilitySettings, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	for _, item := range s.settings {
		if item.Slug == slug && item.IsActive {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *availabilityRepoStub) FindByID(ctx context.Context, id string) (*models.AvailabilitySettings, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	item, ok := s.settings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (s *availabilityRepoStub) ListTimeSlots(ctx context.Context, availabilityID string) ([]models.TimeSlot, error) {
	return s.slots, nil
}

func (s *availabilityRepoStub) ListExcludedDates(ctx context.Context, availabilityID string) ([]models.ExcludedDate, error) {
	return s.excluded, nil
}

type bookingRepoStub struct {
	active    []models.Booking
	created   []models.Booking
	createErr error
	from, to  time.Time
}

func (s *bookingRepoStub) ListActiveBetween(ctx context.Context, availabilityID string, from, to time.Time) ([]models.Booking, error) {
	s.from, s.to = from, to
	return s.active, nil
}

func (s *bookingRepoStub) Create(ctx context.Context, booking *models.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	booking.ID = "bk-new"
	s.created = append(s.created, *booking)
	return nil
}

type memoryCacheStub struct {
	items   map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCacheStub {
	return &memoryCacheStub{items: map[string][]byte{}}
}

func (m *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheStub) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}

func (m *memoryCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.items {
		if k == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(k, prefix)) {
			delete(m.items, k)
		}
	}
	m.deleted = append(m.deleted, pattern)
	return nil
}

func baseSettings() models.AvailabilitySettings {
	return models.AvailabilitySettings{
		ID:               "av-1",
		Slug:             "estudio-perez",
		Title:            "Consulta inicial",
		Timezone:         "UTC",
		Duration:         30,
		MaxDaysInAdvance: 30,
		IsActive:         true,
	}
}

type availabilityFixture struct {
	repo     *availabilityRepoStub
	bookings *bookingRepoStub
	cache    *memoryCacheStub
	metrics  *MetricsService
	svc      *AvailabilityService
}

func newAvailabilityFixture(t *testing.T, settings models.AvailabilitySettings, slots ...models.TimeSlot) *availabilityFixture {
	t.Helper()
	repo := &availabilityRepoStub{settings: map[string]models.AvailabilitySettings{settings.ID: settings}, slots: slots}
	bookings := &bookingRepoStub{}
	cache := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewAvailabilityService(AvailabilityServiceParams{
		Settings: repo,
		Bookings: bookings,
		Cache:    NewCacheService(cache, metrics, time.Minute, nil, true),
		Metrics:  metrics,
		Config:   AvailabilityServiceConfig{MaxRangeDays: 31},
	})
	svc.now = func() time.Time { return fixedNow }
	return &availabilityFixture{repo: repo, bookings: bookings, cache: cache, metrics: metrics, svc: svc}
}

func tuesdayMorning() models.TimeSlot {
	return models.TimeSlot{Day: int(time.Tuesday), StartTime: "09:00", EndTime: "10:00", IsActive: true}
}

func TestAvailabilityServiceSettingsUsesCache(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())
	ctx := context.Background()

	first, hit, err := f.svc.Settings(ctx, "estudio-perez")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first.TimeSlots, 1)

	second, hit, err := f.svc.Settings(ctx, "estudio-perez")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.TimeSlots, second.TimeSlots)
	assert.Equal(t, 1, f.repo.loads)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.cacheHits))

	require.NoError(t, f.svc.HandleInvalidateJob(ctx, jobs.Job{ID: "job-1", Type: JobInvalidateAvailability, Payload: "estudio-perez"}))
	_, hit, err = f.svc.Settings(ctx, "estudio-perez")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, f.repo.loads)
}

func TestAvailabilityServiceLoadsBookingsAroundHorizon(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())

	_, _, err := f.svc.Settings(context.Background(), "estudio-perez")
	require.NoError(t, err)
	assert.True(t, f.bookings.from.Equal(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.True(t, f.bookings.to.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAvailabilityServiceNotFound(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings())

	_, _, err := f.svc.Settings(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	f.repo.err = errors.New("connection refused")
	_, _, err = f.svc.Settings(context.Background(), "estudio-perez")
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceSlots(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())
	f.bookings.active = []models.Booking{{
		StartTime: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Status:    models.BookingStatusConfirmed,
	}}

	resp, _, err := f.svc.Slots(context.Background(), "estudio-perez", "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", resp.Date)
	assert.Equal(t, []models.AvailableSlot{{Time: "09:00", IsAvailable: false}, {Time: "09:30", IsAvailable: true}}, resp.Slots)
	assert.False(t, resp.OutsideHorizon)
}

func TestAvailabilityServiceSlotsValidatesDateAndHorizon(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())

	_, _, err := f.svc.Slots(context.Background(), "estudio-perez", "02/01/2024")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	resp, _, err := f.svc.Slots(context.Background(), "estudio-perez", "2024-03-05")
	require.NoError(t, err)
	assert.True(t, resp.OutsideHorizon)
	assert.Empty(t, resp.Slots)
}

func TestAvailabilityServiceFirstAvailable(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())

	resp, _, err := f.svc.FirstAvailable(context.Background(), "estudio-perez")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", resp.Date)
	assert.False(t, resp.Fallback)
	assert.Len(t, resp.Slots, 2)

	empty := newAvailabilityFixture(t, baseSettings())
	resp, _, err = empty.svc.FirstAvailable(context.Background(), "estudio-perez")
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "2024-01-02", resp.Date)
	assert.Empty(t, resp.Slots)
}

func TestAvailabilityServiceCalendar(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings(), tuesdayMorning())

	resp, _, err := f.svc.Calendar(context.Background(), "estudio-perez", "2024-01-01", "2024-01-09")
	require.NoError(t, err)
	require.Len(t, resp.Days, 9)
	assert.Equal(t, "2024-01-02", resp.Days[1].Date)
	assert.Equal(t, 2, resp.Days[1].Available)
	assert.False(t, resp.Days[1].Disabled)
	assert.True(t, resp.Days[0].Disabled)

	_, _, err = f.svc.Calendar(context.Background(), "estudio-perez", "2024-01-09", "2024-01-01")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = f.svc.Calendar(context.Background(), "estudio-perez", "2024-01-01", "2024-03-01")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAvailabilityServicePublicHidesInactiveRules(t *testing.T) {
	settings := baseSettings()
	settings.CustomFields = models.CustomFields{{ID: "expediente", Label: "Expediente", Type: "text", Required: true}}
	inactive := tuesdayMorning()
	inactive.Day = int(time.Friday)
	inactive.IsActive = false
	f := newAvailabilityFixture(t, settings, tuesdayMorning(), inactive)
	f.repo.excluded = []models.ExcludedDate{{Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)}}

	resp, _, err := f.svc.Public(context.Background(), "estudio-perez")
	require.NoError(t, err)
	assert.Len(t, resp.TimeSlots, 1)
	assert.Equal(t, []string{"2024-01-09"}, resp.ExcludedDates)
	assert.Len(t, resp.CustomFields, 1)
}

func TestNewValidatorClockRule(t *testing.T) {
	v := NewValidator()
	settings := baseSettings()
	settings.TimeSlots = []models.TimeSlot{{Day: 1, StartTime: "9am", EndTime: "10:00", IsActive: true}}
	require.Error(t, v.Struct(settings))

	settings.TimeSlots[0].StartTime = "09:00"
	require.NoError(t, v.Struct(settings))

	settings.Duration = 0
	require.Error(t, v.Struct(settings))
}

func TestAvailabilityServiceFallsBackToDefaultTimezone(t *testing.T) {
	settings := baseSettings()
	settings.Timezone = "Mars/Olympus_Mons"
	repo := &availabilityRepoStub{settings: map[string]models.AvailabilitySettings{settings.ID: settings}}
	svc := NewAvailabilityService(AvailabilityServiceParams{
		Settings: repo,
		Bookings: &bookingRepoStub{},
		Config:   AvailabilityServiceConfig{DefaultTimezone: "America/Argentina/Buenos_Aires"},
	})
	svc.now = func() time.Time { return fixedNow }

	snapshot, _, err := svc.Settings(context.Background(), "estudio-perez")
	require.NoError(t, err)
	assert.Equal(t, "America/Argentina/Buenos_Aires", snapshot.Timezone)
	assert.Equal(t, "Mars/Olympus_Mons", repo.settings[settings.ID].Timezone)
}

func TestParseDateOnMidnightGapDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)

	day, err := parseDate("2024-09-08", loc)
	require.NoError(t, err)
	assert.Equal(t, 8, day.Day())
	assert.Equal(t, time.Sunday, day.Weekday())
}

func TestAvailabilityServiceRangeLimitCountsCalendarDays(t *testing.T) {
	settings := baseSettings()
	settings.Timezone = "America/Santiago"
	repo := &availabilityRepoStub{settings: map[string]models.AvailabilitySettings{settings.ID: settings}}
	svc := NewAvailabilityService(AvailabilityServiceParams{
		Settings: repo,
		Bookings: &bookingRepoStub{},
		Config:   AvailabilityServiceConfig{MaxRangeDays: 3},
	})
	svc.now = func() time.Time { return fixedNow }

	_, _, err := svc.Calendar(context.Background(), "estudio-perez", "2024-09-07", "2024-09-09")
	require.NoError(t, err)

	_, _, err = svc.Calendar(context.Background(), "estudio-perez", "2024-09-07", "2024-09-10")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAvailabilityServiceInvalidateDeletesExactKey(t *testing.T) {
	f := newAvailabilityFixture(t, baseSettings())
	f.cache.items["availability:estudio-perez"] = []byte(`{}`)
	f.cache.items["availability:estudio-*"] = []byte(`{}`)

	require.NoError(t, f.svc.Invalidate(context.Background(), "estudio-*"))

	assert.Contains(t, f.cache.items, "availability:estudio-perez")
	assert.NotContains(t, f.cache.items, "availability:estudio-*")
	assert.Equal(t, []string{"availability:estudio-*"}, f.cache.deleted)
}

func TestNewValidatorRejectsSignedClocks(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = NewValidator() })

	assert.NoError(t, v.Struct(models.TimeSlot{Day: 1, StartTime: "09:00", EndTime: "17:00"}))
	assert.Error(t, v.Struct(models.TimeSlot{Day: 1, StartTime: "+9:00", EndTime: "17:00"}))
}
