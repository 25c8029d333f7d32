package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/capacity-atlas/pkg/runtime/app"
	"github.com/de-tools/capacity-atlas/pkg/server"
	"github.com/de-tools/capacity-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the snapshot engine and the API server for Capacity Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the settings file (defaults and ATLAS_* variables apply when empty)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	settings, err := config.LoadSettings(cfgPath)
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	a, err := app.New(ctx, settings, os.Environ())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close snapshot database")
		}
	}()

	if a.Registry.Len() == 0 {
		logger.Warn().Msg("no sites configured, the poller will idle")
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr: net.JoinHostPort(settings.Server.Host, settings.Server.Port),
		Dependencies: server.Dependencies{
			Sites:     a.Registry,
			Snapshots: a.Store,
			Poller:    a.Poller,
			History:   a.Store,
			Reports:   a.Reports,
			Metrics:   a.Metrics,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return api.Start(gctx)
	})
	return g.Wait()
}
