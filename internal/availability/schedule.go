package availability

import (
	"time"

	"github.com/lawanalytics/booking-api/internal/models"
)

// ResolveDaySlot returns the first active rule for date's weekday.
func ResolveDaySlot(date time.Time, timeSlots []models.TimeSlot) (models.TimeSlot, bool) {
	weekday := int(date.Weekday())
	for _, slot := range timeSlots {
		if slot.Day == weekday && slot.IsActive {
			return slot, true
		}
	}
	return models.TimeSlot{}, false
}

// IsExcluded reports whether date falls on any excluded calendar day. Excluded dates are
// compared by their stored year, month and day.
func IsExcluded(date time.Time, excluded []models.ExcludedDate) bool {
	y, m, d := date.Date()
	for _, ex := range excluded {
		ey, em, ed := ex.Date.Date()
		if ey == y && em == m && ed == d {
			return true
		}
	}
	return false
}
