package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type reportFlags struct {
	year  int
	month int
}

func (f *reportFlags) bind(cmd *cobra.Command) {
	now := time.Now().UTC()
	cmd.Flags().IntVar(&f.year, "year", now.Year(), "Report year")
	cmd.Flags().IntVar(&f.month, "month", int(now.Month()), "Report month (1-12)")
}

func (f *reportFlags) validate() (int, time.Month, error) {
	if f.month < 1 || f.month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d. Expected 1-12", f.month)
	}
	return f.year, time.Month(f.month), nil
}

type HighWaterMarkCmd struct {
	env   *Env
	flags reportFlags
}

func NewHighWaterMarkCmd(env *Env) *cobra.Command {
	hc := &HighWaterMarkCmd{env: env}
	cmd := &cobra.Command{
		Use:   "hwm",
		Short: "Monthly peak usage per tenant",
		RunE:  hc.run,
	}
	hc.flags.bind(cmd)
	return cmd
}

func (hc *HighWaterMarkCmd) run(cmd *cobra.Command, _ []string) error {
	if err := hc.env.ready(); err != nil {
		return err
	}
	year, month, err := hc.flags.validate()
	if err != nil {
		return err
	}

	report, err := hc.env.Reports.HighWaterMarkReport(cmd.Context(), year, month)
	if err != nil {
		return fmt.Errorf("failed to build high-water-mark report: %w", err)
	}
	return hc.env.Reporter.HighWaterMarks(report)
}

type OverageCmd struct {
	env   *Env
	flags reportFlags
}

func NewOverageCmd(env *Env) *cobra.Command {
	oc := &OverageCmd{env: env}
	cmd := &cobra.Command{
		Use:   "overage",
		Short: "Snapshots above the committed CPU and RAM per tenant",
		RunE:  oc.run,
	}
	oc.flags.bind(cmd)
	return cmd
}

func (oc *OverageCmd) run(cmd *cobra.Command, _ []string) error {
	if err := oc.env.ready(); err != nil {
		return err
	}
	year, month, err := oc.flags.validate()
	if err != nil {
		return err
	}

	report, err := oc.env.Reports.OverageReport(cmd.Context(), year, month)
	if err != nil {
		return fmt.Errorf("failed to build overage report: %w", err)
	}
	return oc.env.Reporter.Overages(report)
}
