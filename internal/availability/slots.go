package availability

import (
	"time"

	"github.com/lawanalytics/booking-api/internal/models"
)

// GenerateCandidateSlots enumerates start times from the window start, spaced by
// duration+bufferBefore+bufferAfter, while the appointment still ends inside the window.
// A non-positive step or duration, an empty window or an unparsable clock yields no slots.
func GenerateCandidateSlots(daySlot models.TimeSlot, duration, bufferBefore, bufferAfter int) []string {
	start, okStart := ParseClock(daySlot.StartTime)
	end, okEnd := ParseClock(daySlot.EndTime)
	step := duration + bufferBefore + bufferAfter
	if !okStart || !okEnd || duration <= 0 || step <= 0 || start >= end {
		return []string{}
	}

	slots := make([]string, 0, (end-start)/step+1)
	for t := start; t+duration <= end; t += step {
		slots = append(slots, FormatClock(t))
	}
	return slots
}

// IsOverlapping reports whether [slotStart, slotEnd) intersects any booking interval.
func IsOverlapping(slotStart, slotEnd time.Time, bookings []models.Booking) bool {
	for _, b := range bookings {
		if slotStart.Before(b.EndTime) && b.StartTime.Before(slotEnd) {
			return true
		}
	}
	return false
}

// BookingsOnDate keeps bookings whose start falls on date's calendar day in date's location.
func BookingsOnDate(date time.Time, bookings []models.Booking) []models.Booking {
	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if SameDay(date, b.StartTime) {
			out = append(out, b)
		}
	}
	return out
}

// RespectsMinNotice reports whether slotStart is at least minNoticeHours after now.
func RespectsMinNotice(slotStart, now time.Time, minNoticeHours float64) bool {
	return !slotStart.Before(earliestStart(now, minNoticeHours))
}

func earliestStart(now time.Time, minNoticeHours float64) time.Time {
	if minNoticeHours <= 0 {
		return now
	}
	return now.Add(time.Duration(minNoticeHours * float64(time.Hour)))
}
