// Package app assembles the long-lived collaborators shared by the web server
// and the command line tool.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/capacity-atlas/pkg/metrics"
	"github.com/de-tools/capacity-atlas/pkg/services/config"
	"github.com/de-tools/capacity-atlas/pkg/services/hwm"
	"github.com/de-tools/capacity-atlas/pkg/services/poller"
	"github.com/de-tools/capacity-atlas/pkg/services/registry"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb"
	"github.com/de-tools/capacity-atlas/pkg/store/duckdb/snapshot"
	"github.com/rs/zerolog"
)

type App struct {
	Settings *config.Settings
	DB       *sql.DB
	Store    snapshot.Store
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Poller   *poller.Poller
	Reports  *hwm.Service
}

// New opens the snapshot database and registers the sites found in environ
// and in the optional sites file. A process with no sites is valid.
func New(ctx context.Context, settings *config.Settings, environ []string) (*App, error) {
	logger := zerolog.Ctx(ctx)

	db, err := duckdb.NewDB(settings.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB instance: %w", err)
	}

	st, err := snapshot.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	reg := registry.NewRegistry(registry.Options{
		Logger:     *logger,
		Transport:  settings.Transport,
		MHzPerCore: settings.Sites.MHzPerCore,
	})
	fromEnv := reg.LoadFromEnv(ctx, environ)

	fromFile := 0
	if settings.Sites.File != "" {
		src, err := registry.NewINISource(settings.Sites.File)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open sites file: %w", err)
		}
		if fromFile, err = reg.LoadFromSource(ctx, src); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to load sites file: %w", err)
		}
	}
	logger.Info().
		Int("from_env", fromEnv).
		Int("from_file", fromFile).
		Strs("sites", reg.Keys()).
		Msg("site registry loaded")

	var commits hwm.CommitLookup = hwm.StaticCommits{}
	if settings.CommitsFile != "" {
		loaded, err := hwm.LoadCommits(settings.CommitsFile)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		commits = loaded
	}

	reports, err := hwm.NewService(st, commits)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	return &App{
		Settings: settings,
		DB:       db,
		Store:    st,
		Registry: reg,
		Metrics:  m,
		Poller:   poller.New(settings.Poller, reg, st, m),
		Reports:  reports,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
