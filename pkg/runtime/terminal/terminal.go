package terminal

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/capacity-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

// Setup builds the command environment from the --config flag. The returned
// closer runs once the command has finished, successful or not.
type Setup func(ctx context.Context, configPath string) (*commands.Env, func() error, error)

// CLI represents the command-line interface
type CLI struct {
	setup      Setup
	output     io.Writer
	env        *commands.Env
	closer     func() error
	configPath string
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Setup  Setup
	Output io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cli := &CLI{
		setup:  opts.Setup,
		output: opts.Output,
		env:    &commands.Env{},
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	err := cli.rootCmd.ExecuteContext(ctx)
	if cli.closer != nil {
		err = errors.Join(err, cli.closer())
		cli.closer = nil
	}
	return err
}

func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "atlas",
		Short:         "Capacity snapshots and reports for the configured sites",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, closer, err := cli.setup(cmd.Context(), cli.configPath)
			if err != nil {
				return err
			}
			*cli.env = *env
			cli.env.Reporter = export.NewReporter(cli.output)
			cli.closer = closer
			return nil
		},
	}
	cmd.SetOut(cli.output)

	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the settings file")

	cmd.AddCommand(commands.NewPollCmd(cli.env))
	cmd.AddCommand(commands.NewSitesCmd(cli.env))
	cmd.AddCommand(commands.NewHighWaterMarkCmd(cli.env))
	cmd.AddCommand(commands.NewOverageCmd(cli.env))

	return cmd
}
