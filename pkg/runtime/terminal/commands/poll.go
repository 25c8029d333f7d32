package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type PollCmd struct {
	env *Env
}

func NewPollCmd(env *Env) *cobra.Command {
	pc := &PollCmd{env: env}
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one snapshot cycle over every configured site",
		RunE:  pc.run,
	}
}

func (pc *PollCmd) run(cmd *cobra.Command, _ []string) error {
	if err := pc.env.ready(); err != nil {
		return err
	}

	res, err := pc.env.Poller.PollNow(cmd.Context())
	if res != nil {
		if rerr := pc.env.Reporter.Poll(res); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return fmt.Errorf("poll cycle failed: %w", err)
	}
	return nil
}
