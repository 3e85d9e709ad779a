package dto

import "github.com/lawanalytics/booking-api/internal/models"

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// PublicAvailability is the booking page configuration exposed to anonymous clients.
type PublicAvailability struct {
	ID               string               `json:"id"`
	Slug             string               `json:"slug"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	Timezone         string               `json:"timezone"`
	Duration         int                  `json:"duration"`
	BufferBefore     int                  `json:"bufferBefore"`
	BufferAfter      int                  `json:"bufferAfter"`
	MinNoticeHours   float64              `json:"minNoticeHours"`
	MaxDaysInAdvance int                  `json:"maxDaysInAdvance"`
	TimeSlots        []models.TimeSlot    `json:"timeSlots"`
	ExcludedDates    []string             `json:"excludedDates"`
	CustomFields     []models.CustomField `json:"customFields"`
}

// SlotsResponse lists every candidate slot for one date.
type SlotsResponse struct {
	Date           string                 `json:"date"`
	Timezone       string                 `json:"timezone"`
	Slots          []models.AvailableSlot `json:"slots"`
	OutsideHorizon bool                   `json:"outsideHorizon,omitempty"`
}

// FirstAvailableResponse carries the auto-selected date.
type FirstAvailableResponse struct {
	Date     string                 `json:"date"`
	Timezone string                 `json:"timezone"`
	Slots    []models.AvailableSlot `json:"slots"`
	Fallback bool                   `json:"fallback"`
}

// CalendarDay summarises one day of the month view.
type CalendarDay struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Disabled  bool   `json:"disabled"`
}

// CalendarResponse covers an inclusive date range.
type CalendarResponse struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Timezone string        `json:"timezone"`
	Days     []CalendarDay `json:"days"`
}

// CreateBookingRequest is submitted by the public booking page.
type CreateBookingRequest struct {
	AvailabilityID string            `json:"availabilityId" validate:"required"`
	StartTime      string            `json:"startTime" validate:"required"`
	Duration       int               `json:"duration" validate:"required,gt=0"`
	ClientName     string            `json:"clientName" validate:"required,max=120"`
	ClientEmail    string            `json:"clientEmail" validate:"required,email,max=254"`
	ClientPhone    *string           `json:"clientPhone" validate:"omitempty,max=40"`
	Notes          *string           `json:"notes" validate:"omitempty,max=2000"`
	CustomFields   map[string]string `json:"customFields" validate:"omitempty,dive,keys,required,endkeys,max=500"`
}

// BookingResponse is returned after a booking is stored.
type BookingResponse struct {
	ID             string `json:"id"`
	AvailabilityID string `json:"availabilityId"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	Status         string `json:"status"`
	ClientName     string `json:"clientName"`
	ClientEmail    string `json:"clientEmail"`
}
