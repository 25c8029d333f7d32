package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/handlers/polls"
	"github.com/de-tools/capacity-atlas/pkg/handlers/reports"
	"github.com/de-tools/capacity-atlas/pkg/handlers/sites"
	"github.com/de-tools/capacity-atlas/pkg/metrics"
	atlasmiddleware "github.com/de-tools/capacity-atlas/pkg/server/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server

	shutdownTimeout time.Duration
}

type Dependencies struct {
	Sites     sites.Directory
	Snapshots sites.SnapshotReader
	Poller    polls.Poller
	History   polls.History
	Reports   reports.Service
	Metrics   *metrics.Metrics
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewRouter(logger zerolog.Logger, deps Dependencies) *chi.Mux {
	sitesHandler := sites.NewHandler(deps.Sites, deps.Snapshots)
	pollsHandler := polls.NewHandler(deps.Poller, deps.History)
	reportsHandler := reports.NewHandler(deps.Reports)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(atlasmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/sites", sitesHandler.ListSites)
		r.Route("/sites/{site}", func(r chi.Router) {
			r.Get("/summary", sitesHandler.GetSummary)
			r.Get("/tenants", sitesHandler.ListTenants)
			r.Get("/tenants/{tenant}", sitesHandler.GetTenant)
			r.Get("/test", sitesHandler.TestConnection)
			r.Get("/snapshots/latest", sitesHandler.LatestSnapshot)
		})

		r.Post("/polls", pollsHandler.PollNow)
		r.Get("/polls/last", pollsHandler.LastPoll)

		r.Get("/reports/high-water-marks", reportsHandler.HighWaterMarks)
		r.Get("/reports/overages", reportsHandler.Overages)
	})

	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return router
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	router := NewRouter(logger, config.Dependencies)

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

// Start serves until ctx is done, then drains outstanding requests.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(sctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
