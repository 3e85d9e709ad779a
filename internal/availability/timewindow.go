// Package availability computes bookable appointment slots from a provider's weekly schedule,
// buffers, notice window, horizon, excluded dates and existing bookings.
//
// Every function is pure. Callers pass the current instant explicitly so that all slots judged
// within one computation are compared against the same moment.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lawanalytics/booking-api/internal/models"
)

const minutesPerDay = 24 * 60

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is accepted as end of day.
func ParseClock(clock string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(clock), ":")
	if !found || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return 0, false
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 24 {
		return 0, false
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	total := hours*60 + minutes
	if total > minutesPerDay {
		return 0, false
	}
	return total, true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders minutes after midnight as zero padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidClock reports whether clock parses. Used as a validator rule.
func ValidClock(clock string) bool {
	_, ok := ParseClock(clock)
	return ok
}

// StartOfDay returns the first instant of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return DateIn(y, m, d, t.Location())
}

// AddDays moves a calendar date by n days and returns the first instant of the result.
func AddDays(day time.Time, n int) time.Time {
	y, m, d := day.Date()
	y, m, d = time.Date(y, m, d+n, 12, 0, 0, 0, time.UTC).Date()
	return DateIn(y, m, d, day.Location())
}

// DateIn returns the first instant of the given date in loc. On days where the clocks jump
// forward at midnight that is the transition instant, not midnight.
func DateIn(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if onDate(t, y, m, d) {
		return t
	}
	if _, end := t.ZoneBounds(); !end.IsZero() && onDate(end, y, m, d) {
		return end
	}
	for i := 0; i < 4*24 && !onDate(t, y, m, d); i++ {
		t = t.Add(15 * time.Minute)
	}
	return t
}

// DaysBetween counts calendar days from a to b, both read in their own locations.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func onDate(t time.Time, y int, m time.Month, d int) bool {
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d
}

// SameDay compares calendar days. b is viewed in a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// At returns the instant at minutes after midnight on day's calendar date. Wall times that
// fall in a skipped hour before the day's first instant are clamped to it.
func At(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	t := time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
	if start := DateIn(y, m, d, day.Location()); t.Before(start) {
		return start
	}
	return t
}

// InLocation resolves the settings' IANA timezone, falling back to UTC.
func InLocation(settings *models.AvailabilitySettings) *time.Location {
	if settings == nil || settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
