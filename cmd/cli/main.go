package main

import (
	"context"
	"fmt"
	"os"

	"github.com/de-tools/capacity-atlas/pkg/runtime/app"
	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal"
	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/capacity-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func setup(ctx context.Context, configPath string) (*commands.Env, func() error, error) {
	_ = godotenv.Load()

	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	// Subcommands run on the cobra context, which carries no logger.
	zerolog.DefaultContextLogger = &logger

	a, err := app.New(ctx, settings, os.Environ())
	if err != nil {
		return nil, nil, err
	}
	return &commands.Env{
		Sites:   a.Registry,
		Poller:  a.Poller,
		Reports: a.Reports,
	}, a.Close, nil
}

func main() {
	cli := terminal.NewCLI(terminal.Options{
		Setup:  setup,
		Output: os.Stdout,
	})

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
