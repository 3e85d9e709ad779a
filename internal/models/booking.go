package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// BookingStatus captures the lifecycle of a reservation.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// AvailabilitySettings is the provider-owned configuration the slot engine reads.
// TimeSlots, ExcludedDates and Bookings are loaded from their own tables.
type AvailabilitySettings struct {
	ID               string       `db:"id" json:"id"`
	Slug             string       `db:"slug" json:"slug"`
	Title            string       `db:"title" json:"title"`
	Description      *string      `db:"description" json:"description,omitempty"`
	Timezone         string       `db:"timezone" json:"timezone"`
	Duration         int          `db:"duration" json:"duration" validate:"gt=0"`
	BufferBefore     int          `db:"buffer_before" json:"bufferBefore" validate:"gte=0"`
	BufferAfter      int          `db:"buffer_after" json:"bufferAfter" validate:"gte=0"`
	MinNoticeHours   float64      `db:"min_notice_hours" json:"minNoticeHours" validate:"gte=0"`
	MaxDaysInAdvance int          `db:"max_days_in_advance" json:"maxDaysInAdvance" validate:"gt=0"`
	IsActive         bool         `db:"is_active" json:"isActive"`
	CustomFields     CustomFields `db:"custom_fields" json:"customFields"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`

	TimeSlots     []TimeSlot     `db:"-" json:"timeSlots" validate:"dive"`
	ExcludedDates []ExcludedDate `db:"-" json:"excludedDates"`
	Bookings      []Booking      `db:"-" json:"bookings"`
}

// TimeSlot is a weekly recurrence rule. Day follows time.Weekday (Sunday=0).
type TimeSlot struct {
	ID             string `db:"id" json:"id,omitempty"`
	AvailabilityID string `db:"availability_id" json:"-"`
	Day            int    `db:"day" json:"day" validate:"gte=0,lte=6"`
	StartTime      string `db:"start_time" json:"startTime" validate:"clock"`
	EndTime        string `db:"end_time" json:"endTime" validate:"clock"`
	IsActive       bool   `db:"is_active" json:"isActive"`
}

// ExcludedDate blocks a whole calendar day.
type ExcludedDate struct {
	ID             string    `db:"id" json:"id,omitempty"`
	AvailabilityID string    `db:"availability_id" json:"-"`
	Date           time.Time `db:"date" json:"date"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
}

// Booking is a persisted reservation.
type Booking struct {
	ID             string         `db:"id" json:"id"`
	AvailabilityID string         `db:"availability_id" json:"availabilityId"`
	StartTime      time.Time      `db:"start_time" json:"startTime"`
	EndTime        time.Time      `db:"end_time" json:"endTime"`
	Status         BookingStatus  `db:"status" json:"status"`
	ClientName     string         `db:"client_name" json:"clientName,omitempty"`
	ClientEmail    string         `db:"client_email" json:"clientEmail,omitempty"`
	ClientPhone    *string        `db:"client_phone" json:"clientPhone,omitempty"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	CustomFields   types.JSONText `db:"custom_fields" json:"customFields,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// AvailableSlot is one candidate start time on a concrete date.
type AvailableSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"isAvailable"`
}

// CustomField describes an extra question asked on the booking form.
type CustomField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// CustomFields is stored as a JSONB array.
type CustomFields []CustomField

// Value marshals the field list for persistence.
func (f CustomFields) Value() (driver.Value, error) {
	if f == nil {
		f = CustomFields{}
	}
	data, err := json.Marshal([]CustomField(f))
	if err != nil {
		return nil, fmt.Errorf("marshal custom fields: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB array.
func (f *CustomFields) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CustomFields", value)
	}
	if len(data) == 0 {
		*f = nil
		return nil
	}
	var out []CustomField
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal custom fields: %w", err)
	}
	*f = out
	return nil
}
