package reports

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/adapters"
	"github.com/de-tools/capacity-atlas/pkg/handlers"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

type Service interface {
	HighWaterMarkReport(ctx context.Context, year int, month time.Month) (*domain.HighWaterMarkReport, error)
	OverageReport(ctx context.Context, year int, month time.Month) (*domain.OverageReport, error)
}

type Handler struct {
	reports Service
	now     func() time.Time
}

func NewHandler(reports Service) *Handler {
	return &Handler{
		reports: reports,
		now:     time.Now,
	}
}

// month reads ?year=&month=, defaulting to the current UTC month.
func (h *Handler) month(r *http.Request) (int, time.Month, error) {
	now := h.now().UTC()
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 {
			return 0, 0, fmt.Errorf("invalid 'year': %q", v)
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("invalid 'month': %q. Expected 1-12", v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

func (h *Handler) HighWaterMarks(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.month(r)
	if err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.HighWaterMarkReport(r.Context(), year, month)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("year", year).
			Int("month", int(month)).
			Msg("failed to build high-water-mark report")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to build report")
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapHighWaterMarkReportDomainToApi(*report))
}

func (h *Handler) Overages(w http.ResponseWriter, r *http.Request) {
	year, month, err := h.month(r)
	if err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.OverageReport(r.Context(), year, month)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("year", year).
			Int("month", int(month)).
			Msg("failed to build overage report")
		handlers.WriteError(w, r, http.StatusInternalServerError, "failed to build report")
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapOverageReportDomainToApi(*report))
}
