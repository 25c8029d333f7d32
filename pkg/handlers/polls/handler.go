package polls

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/adapters"
	"github.com/de-tools/capacity-atlas/pkg/handlers"
	"github.com/de-tools/capacity-atlas/pkg/models/api"
	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/poller"
	"github.com/rs/zerolog"
)

type Poller interface {
	PollNow(ctx context.Context) (*domain.PollResult, error)
	LastPolledAt() *time.Time
	LastResult() *domain.PollResult
	Running() bool
}

// History answers LastPolledAt from storage, covering polls of earlier
// process runs.
type History interface {
	LastPolledAt(ctx context.Context) (*time.Time, error)
}

type Handler struct {
	poller  Poller
	history History
}

func NewHandler(p Poller, history History) *Handler {
	return &Handler{
		poller:  p,
		history: history,
	}
}

func (h *Handler) PollNow(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives a disconnecting client.
	ctx := context.WithoutCancel(r.Context())
	logger := zerolog.Ctx(ctx)

	res, err := h.poller.PollNow(ctx)
	switch {
	case errors.Is(err, poller.ErrCycleInProgress):
		handlers.WriteError(w, r, http.StatusConflict, err.Error())
	case err != nil && res == nil:
		logger.Error().Err(err).Msg("poll cycle failed")
		handlers.WriteError(w, r, http.StatusInternalServerError, err.Error())
	case err != nil:
		logger.Error().Err(err).Msg("poll cycle could not store every snapshot")
		handlers.WriteJSON(w, r, http.StatusInternalServerError, adapters.MapPollResultDomainToApi(*res))
	default:
		handlers.WriteJSON(w, r, http.StatusOK, adapters.MapPollResultDomainToApi(*res))
	}
}

func (h *Handler) LastPoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := api.LastPoll{
		Running:      h.poller.Running(),
		LastPolledAt: h.poller.LastPolledAt(),
	}
	if res := h.poller.LastResult(); res != nil {
		mapped := adapters.MapPollResultDomainToApi(*res)
		response.Result = &mapped
	}
	if response.LastPolledAt == nil && h.history != nil {
		at, err := h.history.LastPolledAt(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to read last poll time")
			handlers.WriteError(w, r, http.StatusInternalServerError, "failed to read last poll time")
			return
		}
		response.LastPolledAt = at
	}
	handlers.WriteJSON(w, r, http.StatusOK, response)
}
