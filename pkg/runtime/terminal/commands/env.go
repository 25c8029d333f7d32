package commands

import (
	"context"
	"errors"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
)

type SiteLister interface {
	All() []platform.Platform
}

type Poller interface {
	PollNow(ctx context.Context) (*domain.PollResult, error)
}

type ReportService interface {
	HighWaterMarkReport(ctx context.Context, year int, month time.Month) (*domain.HighWaterMarkReport, error)
	OverageReport(ctx context.Context, year int, month time.Month) (*domain.OverageReport, error)
}

// Env is filled in by the root command before any subcommand runs.
type Env struct {
	Sites    SiteLister
	Poller   Poller
	Reports  ReportService
	Reporter *export.Reporter
}

var errNotInitialized = errors.New("command environment is not initialized")

func (e *Env) ready() error {
	if e == nil || e.Reporter == nil {
		return errNotInitialized
	}
	return nil
}
