package availability

import (
	"time"

	"github.com/lawanalytics/booking-api/internal/models"
)

// Selection is the result of a horizon scan. Fallback marks the tomorrow default used when no
// day inside the horizon has an open slot.
type Selection struct {
	Date     time.Time
	Slots    []models.AvailableSlot
	Fallback bool
}

// DayAvailability holds the slot list for one calendar day.
type DayAvailability struct {
	Date  time.Time
	Slots []models.AvailableSlot
}

// AvailableCount returns how many slots can still be booked.
func (d DayAvailability) AvailableCount() int {
	n := 0
	for _, s := range d.Slots {
		if s.IsAvailable {
			n++
		}
	}
	return n
}

// ComputeAvailableTimesForDate lists every candidate slot on date, booked or not, in
// generation order. date is interpreted in its own location.
func ComputeAvailableTimesForDate(date time.Time, settings *models.AvailabilitySettings, now time.Time) []models.AvailableSlot {
	if settings == nil {
		return []models.AvailableSlot{}
	}
	day := StartOfDay(date)
	if IsExcluded(day, settings.ExcludedDates) {
		return []models.AvailableSlot{}
	}
	daySlot, ok := ResolveDaySlot(day, settings.TimeSlots)
	if !ok {
		return []models.AvailableSlot{}
	}
	return evaluateDay(day, daySlot, settings, now)
}

func evaluateDay(day time.Time, daySlot models.TimeSlot, settings *models.AvailabilitySettings, now time.Time) []models.AvailableSlot {
	candidates := GenerateCandidateSlots(daySlot, settings.Duration, settings.BufferBefore, settings.BufferAfter)
	result := make([]models.AvailableSlot, 0, len(candidates))
	if len(candidates) == 0 {
		return result
	}

	sameDay := BookingsOnDate(day, settings.Bookings)
	length := time.Duration(settings.Duration) * time.Minute
	for _, clock := range candidates {
		minutes, _ := ParseClock(clock)
		start := At(day, minutes)
		end := start.Add(length)
		result = append(result, models.AvailableSlot{
			Time:        clock,
			IsAvailable: RespectsMinNotice(start, now, settings.MinNoticeHours) && !IsOverlapping(start, end, sameDay),
		})
	}
	return result
}

// FindFirstAvailableDate scans forward from now's calendar day in the settings' timezone for
// MaxDaysInAdvance days and returns the first day with an open slot. When none qualifies it
// returns tomorrow with its slot list and Fallback set.
func FindFirstAvailableDate(settings *models.AvailabilitySettings, now time.Time) Selection {
	loc := InLocation(settings)
	today := StartOfDay(now.In(loc))

	if settings != nil {
		minDate := earliestStart(now, settings.MinNoticeHours)
		for offset := 0; offset < settings.MaxDaysInAdvance; offset++ {
			day := AddDays(today, offset)
			if IsExcluded(day, settings.ExcludedDates) {
				continue
			}
			daySlot, ok := ResolveDaySlot(day, settings.TimeSlots)
			if !ok {
				continue
			}
			if end, ok := ParseClock(daySlot.EndTime); !ok || At(day, end).Before(minDate) {
				continue
			}
			slots := evaluateDay(day, daySlot, settings, now)
			if hasAvailable(slots) {
				return Selection{Date: day, Slots: slots}
			}
		}
	}

	tomorrow := AddDays(today, 1)
	return Selection{
		Date:     tomorrow,
		Slots:    ComputeAvailableTimesForDate(tomorrow, settings, now),
		Fallback: true,
	}
}

// HorizonEnd is the last bookable calendar day in the settings' timezone.
func HorizonEnd(settings *models.AvailabilitySettings, now time.Time) time.Time {
	today := StartOfDay(now.In(InLocation(settings)))
	if settings == nil || settings.MaxDaysInAdvance <= 0 {
		return AddDays(today, -1)
	}
	return AddDays(today, settings.MaxDaysInAdvance-1)
}

// ComputeAvailabilityRange lists slots for each day in [from, to], clamped to today and the
// horizon. Days outside the schedule are included with an empty slot list.
func ComputeAvailabilityRange(from, to time.Time, settings *models.AvailabilitySettings, now time.Time) []DayAvailability {
	loc := InLocation(settings)
	today := StartOfDay(now.In(loc))
	first := inLocationDay(from, loc)
	last := inLocationDay(to, loc)
	if first.Before(today) {
		first = today
	}
	if horizon := HorizonEnd(settings, now); last.After(horizon) {
		last = horizon
	}

	days := make([]DayAvailability, 0)
	for day := first; !day.After(last); day = AddDays(day, 1) {
		days = append(days, DayAvailability{
			Date:  day,
			Slots: ComputeAvailableTimesForDate(day, settings, now),
		})
	}
	return days
}

// inLocationDay reinterprets the calendar date of t as the start of that date in loc.
func inLocationDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return DateIn(y, m, d, loc)
}

func hasAvailable(slots []models.AvailableSlot) bool {
	for _, s := range slots {
		if s.IsAvailable {
			return true
		}
	}
	return false
}
