package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lawanalytics/booking-api/internal/availability"
	"github.com/lawanalytics/booking-api/internal/dto"
	"github.com/lawanalytics/booking-api/internal/models"
	appErrors "github.com/lawanalytics/booking-api/pkg/errors"
	"github.com/lawanalytics/booking-api/pkg/export"
)

type availabilityRanger interface {
	Range(ctx context.Context, slug, from, to string) (*models.AvailabilitySettings, []availability.DayAvailability, error)
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders availability reports as CSV or PDF.
type ExportService struct {
	availability availabilityRanger
	renderers    map[export.Format]export.Renderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(availability availabilityRanger, logger *zap.Logger, renderers map[export.Format]export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolved := map[export.Format]export.Renderer{
		export.FormatCSV: export.RendererFor(export.FormatCSV),
		export.FormatPDF: export.RendererFor(export.FormatPDF),
	}
	for f, r := range renderers {
		if r != nil {
			resolved[f] = r
		}
	}
	return &ExportService{availability: availability, renderers: resolved, logger: logger}
}

// Availability renders one row per candidate slot in [from, to].
func (s *ExportService) Availability(ctx context.Context, slug, from, to, format string) (*ExportResult, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	settings, days, err := s.availability.Range(ctx, slug, from, to)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   settings.Title,
		Headers: []string{"date", "weekday", "time", "status"},
		Rows:    make([][]string, 0),
	}
	if len(days) > 0 {
		table.Subtitle = fmt.Sprintf("%s / %s (%s)",
			days[0].Date.Format(dto.DateLayout),
			days[len(days)-1].Date.Format(dto.DateLayout),
			availability.InLocation(settings).String())
	}
	for _, d := range days {
		date := d.Date.Format(dto.DateLayout)
		weekday := d.Date.Weekday().String()
		for _, slot := range d.Slots {
			status := "unavailable"
			if slot.IsAvailable {
				status = "available"
			}
			table.Rows = append(table.Rows, []string{date, weekday, slot.Time, status})
		}
	}

	start := time.Now()
	payload, err := s.renderers[f].Render(table)
	if err != nil {
		s.logger.Error("render availability export failed", zap.String("slug", slug), zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("availability export rendered",
		zap.String("slug", slug),
		zap.String("format", string(f)),
		zap.Int("rows", len(table.Rows)),
		zap.Duration("elapsed", time.Since(start)))

	return &ExportResult{
		Filename:    fmt.Sprintf("availability-%s.%s", slug, f.Extension()),
		ContentType: f.ContentType(),
		Payload:     payload,
	}, nil
}
