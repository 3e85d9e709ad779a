package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lawanalytics/booking-api/internal/dto"
	"github.com/lawanalytics/booking-api/internal/middleware"
	"github.com/lawanalytics/booking-api/internal/service"
	appErrors "github.com/lawanalytics/booking-api/pkg/errors"
	"github.com/lawanalytics/booking-api/pkg/response"
)

type availabilityService interface {
	Public(ctx context.Context, slug string) (*dto.PublicAvailability, bool, error)
	Slots(ctx context.Context, slug, date string) (*dto.SlotsResponse, bool, error)
	FirstAvailable(ctx context.Context, slug string) (*dto.FirstAvailableResponse, bool, error)
	Calendar(ctx context.Context, slug, from, to string) (*dto.CalendarResponse, bool, error)
}

type exportService interface {
	Availability(ctx context.Context, slug, from, to, format string) (*service.ExportResult, error)
}

// AvailabilityHandler serves the public booking page queries.
type AvailabilityHandler struct {
	service availabilityService
	exports exportService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService, exports exportService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, exports: exports}
}

// Get godoc
// @Summary Public availability settings
// @Tags Booking
// @Produce json
// @Param slug path string true "Availability slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /booking/public/availability/{slug} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	data, hit, err := h.service.Public(c.Request.Context(), slug)
	h.respond(c, data, hit, err)
}

// Slots godoc
// @Summary Candidate slots for a date
// @Description Returns every candidate slot, available or not, in chronological order.
// @Tags Booking
// @Produce json
// @Param slug path string true "Availability slug"
// @Param date query string true "Date (YYYY-MM-DD) in the provider's timezone"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /booking/public/availability/{slug}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	data, hit, err := h.service.Slots(c.Request.Context(), slug, date)
	h.respond(c, data, hit, err)
}

// FirstAvailable godoc
// @Summary First date with an open slot
// @Description Falls back to tomorrow with fallback=true when the horizon has no open slot.
// @Tags Booking
// @Produce json
// @Param slug path string true "Availability slug"
// @Success 200 {object} response.Envelope
// @Router /booking/public/availability/{slug}/first-available [get]
func (h *AvailabilityHandler) FirstAvailable(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	data, hit, err := h.service.FirstAvailable(c.Request.Context(), slug)
	h.respond(c, data, hit, err)
}

// Calendar godoc
// @Summary Per-day availability summary
// @Tags Booking
// @Produce json
// @Param slug path string true "Availability slug"
// @Param from query string false "First date (YYYY-MM-DD), defaults to today"
// @Param to query string false "Last date (YYYY-MM-DD), defaults to the horizon end"
// @Success 200 {object} response.Envelope
// @Router /booking/public/availability/{slug}/calendar [get]
func (h *AvailabilityHandler) Calendar(c *gin.Context) {
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	data, hit, err := h.service.Calendar(c.Request.Context(), slug, strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to")))
	h.respond(c, data, hit, err)
}

// Export godoc
// @Summary Download an availability report
// @Tags Booking
// @Produce text/csv
// @Produce application/pdf
// @Param slug path string true "Availability slug"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /booking/availability/{slug}/export [get]
func (h *AvailabilityHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	slug, ok := h.slug(c)
	if !ok {
		return
	}
	result, err := h.exports.Availability(c.Request.Context(), slug,
		strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to")), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Payload)
}

func (h *AvailabilityHandler) slug(c *gin.Context) (string, bool) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return "", false
	}
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slug is required"))
		return "", false
	}
	return slug, true
}

func (h *AvailabilityHandler) respond(c *gin.Context, data interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}
