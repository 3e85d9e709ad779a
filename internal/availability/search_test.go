package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawanalytics/booking-api/internal/models"
)

// 2024-01-01 is a Monday.
var (
	monday    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tuesday   = monday.AddDate(0, 0, 1)
	wednesday = monday.AddDate(0, 0, 2)
)

func newSettings(slots ...models.TimeSlot) *models.AvailabilitySettings {
	return &models.AvailabilitySettings{
		ID:               "av-1",
		Slug:             "estudio-perez",
		Duration:         30,
		MaxDaysInAdvance: 60,
		TimeSlots:        slots,
	}
}

func rule(day time.Weekday, start, end string) models.TimeSlot {
	return models.TimeSlot{Day: int(day), StartTime: start, EndTime: end, IsActive: true}
}

func times(slots []models.AvailableSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time)
	}
	return out
}

func flags(slots []models.AvailableSlot) []bool {
	out := make([]bool, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.IsAvailable)
	}
	return out
}

func TestComputeAvailableTimesForDateOpenWindow(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	now := monday.Add(8 * time.Hour)

	slots := ComputeAvailableTimesForDate(tuesday, settings, now)
	assert.Equal(t, []string{"09:00", "09:30"}, times(slots))
	assert.Equal(t, []bool{true, true}, flags(slots))
}

func TestComputeAvailableTimesForDateMarksBookedSlots(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	settings.Bookings = []models.Booking{
		{StartTime: tuesday.Add(9 * time.Hour), EndTime: tuesday.Add(9*time.Hour + 30*time.Minute)},
		{StartTime: wednesday.Add(9 * time.Hour), EndTime: wednesday.Add(10 * time.Hour)},
	}

	slots := ComputeAvailableTimesForDate(tuesday, settings, monday)
	assert.Equal(t, []string{"09:00", "09:30"}, times(slots), "unavailable slots are kept")
	assert.Equal(t, []bool{false, true}, flags(slots))
}

func TestComputeAvailableTimesForDateMinNotice(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "12:00"))
	settings.Duration = 60
	settings.MinNoticeHours = 24
	now := monday.Add(10 * time.Hour)

	slots := ComputeAvailableTimesForDate(tuesday, settings, now)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, times(slots))
	assert.Equal(t, []bool{false, true, true}, flags(slots))
}

func TestComputeAvailableTimesForDateExcluded(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "18:00"))
	settings.ExcludedDates = []models.ExcludedDate{{Date: tuesday}}

	slots := ComputeAvailableTimesForDate(tuesday.Add(13*time.Hour), settings, monday)
	require.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestComputeAvailableTimesForDateWithoutSchedule(t *testing.T) {
	assert.Empty(t, ComputeAvailableTimesForDate(tuesday, newSettings(), monday))
	assert.Empty(t, ComputeAvailableTimesForDate(tuesday, nil, monday))

	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	settings.Duration = 0
	assert.Empty(t, ComputeAvailableTimesForDate(tuesday, settings, monday))
}

func TestComputeAvailableTimesForDateIsDeterministic(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "08:00", "17:00"))
	settings.BufferAfter = 15
	settings.MinNoticeHours = 23.5
	settings.Bookings = []models.Booking{
		{StartTime: tuesday.Add(11 * time.Hour), EndTime: tuesday.Add(12 * time.Hour)},
	}
	now := monday.Add(10 * time.Hour)

	first := ComputeAvailableTimesForDate(tuesday, settings, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ComputeAvailableTimesForDate(tuesday, settings, now))
	}
}

func TestAvailableSlotsHonourBookingsAndNotice(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "07:00", "20:00"))
	settings.Duration = 45
	settings.BufferBefore = 5
	settings.BufferAfter = 10
	settings.MinNoticeHours = 25
	settings.Bookings = []models.Booking{
		{StartTime: tuesday.Add(12*time.Hour + 10*time.Minute), EndTime: tuesday.Add(13 * time.Hour)},
		{StartTime: tuesday.Add(16 * time.Hour), EndTime: tuesday.Add(16*time.Hour + 20*time.Minute)},
	}
	now := monday.Add(9*time.Hour + 17*time.Minute)

	slots := ComputeAvailableTimesForDate(tuesday, settings, now)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		if !s.IsAvailable {
			continue
		}
		m, ok := ParseClock(s.Time)
		require.True(t, ok)
		start := At(tuesday, m)
		end := start.Add(45 * time.Minute)
		assert.False(t, start.Before(now.Add(25*time.Hour)), s.Time)
		assert.False(t, IsOverlapping(start, end, settings.Bookings), s.Time)
	}
}

func TestFindFirstAvailableDateSkipsClosedAndPastDays(t *testing.T) {
	settings := newSettings(rule(time.Monday, "09:00", "10:00"), rule(time.Wednesday, "09:00", "10:00"))
	now := monday.Add(10 * time.Hour)

	sel := FindFirstAvailableDate(settings, now)
	assert.False(t, sel.Fallback)
	assert.True(t, sel.Date.Equal(wednesday))
	assert.Equal(t, []bool{true, true}, flags(sel.Slots))
}

func TestFindFirstAvailableDateHonoursNoticeAndExclusions(t *testing.T) {
	settings := newSettings(rule(time.Monday, "09:00", "10:00"), rule(time.Wednesday, "09:00", "10:00"))
	now := monday.Add(10 * time.Hour)

	settings.MinNoticeHours = 48
	sel := FindFirstAvailableDate(settings, now)
	assert.True(t, sel.Date.Equal(monday.AddDate(0, 0, 7)))

	settings.MinNoticeHours = 0
	settings.ExcludedDates = []models.ExcludedDate{{Date: wednesday}}
	sel = FindFirstAvailableDate(settings, now)
	assert.True(t, sel.Date.Equal(monday.AddDate(0, 0, 7)))
}

func TestFindFirstAvailableDateSkipsFullyBookedDays(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"), rule(time.Wednesday, "09:00", "10:00"))
	settings.Bookings = []models.Booking{
		{StartTime: tuesday.Add(9 * time.Hour), EndTime: tuesday.Add(10 * time.Hour)},
	}

	sel := FindFirstAvailableDate(settings, monday)
	assert.False(t, sel.Fallback)
	assert.True(t, sel.Date.Equal(wednesday))
}

func TestFindFirstAvailableDateFallsBackToTomorrow(t *testing.T) {
	settings := newSettings()
	now := monday.Add(10 * time.Hour)

	sel := FindFirstAvailableDate(settings, now)
	assert.True(t, sel.Fallback)
	assert.True(t, sel.Date.Equal(tuesday))
	assert.Empty(t, sel.Slots)
}

func TestFindFirstAvailableDateFallbackCarriesTomorrowSlots(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	settings.MaxDaysInAdvance = 1
	now := monday.Add(10 * time.Hour)

	sel := FindFirstAvailableDate(settings, now)
	assert.True(t, sel.Fallback)
	assert.True(t, sel.Date.Equal(tuesday))
	assert.Equal(t, []string{"09:00", "09:30"}, times(sel.Slots))
}

func TestFindFirstAvailableDateRespectsHorizon(t *testing.T) {
	settings := newSettings(rule(time.Saturday, "09:00", "10:00"))
	now := monday.Add(10 * time.Hour)

	for days := 1; days <= 14; days++ {
		settings.MaxDaysInAdvance = days
		sel := FindFirstAvailableDate(settings, now)
		if sel.Fallback {
			assert.Less(t, days, 6, "saturday is reachable from day 6")
			continue
		}
		assert.False(t, sel.Date.After(HorizonEnd(settings, now)))
		assert.True(t, sel.Date.Equal(monday.AddDate(0, 0, 5)))
	}
}

func TestFindFirstAvailableDateUsesSettingsTimezone(t *testing.T) {
	settings := newSettings(rule(time.Monday, "09:00", "18:00"), rule(time.Tuesday, "09:00", "10:00"))
	settings.Timezone = "America/Argentina/Buenos_Aires"
	// 23:00 on Monday in Buenos Aires.
	now := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)

	sel := FindFirstAvailableDate(settings, now)
	require.False(t, sel.Fallback)
	y, m, d := sel.Date.Date()
	assert.Equal(t, []int{2024, 1, 2}, []int{y, int(m), d})
	assert.Equal(t, "America/Argentina/Buenos_Aires", sel.Date.Location().String())
}

func TestComputeAvailabilityRangeClampsToHorizon(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	settings.MaxDaysInAdvance = 3
	now := monday.Add(8 * time.Hour)

	days := ComputeAvailabilityRange(monday.AddDate(0, 0, -5), monday.AddDate(0, 1, 0), settings, now)
	require.Len(t, days, 3)
	assert.True(t, days[0].Date.Equal(monday))
	assert.True(t, days[2].Date.Equal(wednesday))
	assert.Equal(t, 0, days[0].AvailableCount())
	assert.Equal(t, 2, days[1].AvailableCount())
	assert.Empty(t, days[2].Slots)
}

func TestComputeAvailabilityRangeEmptyWhenInverted(t *testing.T) {
	settings := newSettings(rule(time.Tuesday, "09:00", "10:00"))
	assert.Empty(t, ComputeAvailabilityRange(wednesday, tuesday, settings, monday))
}

func TestComputeAvailabilityRangeStepsThroughMidnightGap(t *testing.T) {
	settings := newSettings(rule(time.Sunday, "09:00", "10:00"))
	settings.Timezone = "America/Santiago"
	loc := InLocation(settings)
	now := time.Date(2024, 9, 5, 8, 0, 0, 0, loc)

	days := ComputeAvailabilityRange(time.Date(2024, 9, 6, 0, 0, 0, 0, time.UTC), time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), settings, now)

	require.Len(t, days, 5)
	for i, d := range days {
		assert.Equal(t, 6+i, d.Date.Day())
	}
	assert.Equal(t, []string{"09:00", "09:30"}, times(days[2].Slots))
	assert.Empty(t, days[1].Slots)
}

func TestFindFirstAvailableDateLandsOnMidnightGapDay(t *testing.T) {
	settings := newSettings(rule(time.Sunday, "09:00", "10:00"))
	settings.Timezone = "America/Santiago"
	now := time.Date(2024, 9, 7, 12, 0, 0, 0, InLocation(settings))

	sel := FindFirstAvailableDate(settings, now)

	assert.False(t, sel.Fallback)
	assert.Equal(t, 8, sel.Date.Day())
	assert.Equal(t, time.Sunday, sel.Date.Weekday())
	assert.Equal(t, []bool{true, true}, flags(sel.Slots))
}
