package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/spf13/cobra"
)

type SitesCmd struct {
	env  *Env
	test bool
}

func NewSitesCmd(env *Env) *cobra.Command {
	sc := &SitesCmd{env: env}
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List configured sites",
		RunE:  sc.run,
	}

	cmd.Flags().BoolVar(&sc.test, "test", false, "Probe every site before listing it")

	return cmd
}

func (sc *SitesCmd) run(cmd *cobra.Command, _ []string) error {
	if err := sc.env.ready(); err != nil {
		return err
	}

	all := sc.env.Sites.All()
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sites configured")
		return nil
	}

	infos := make([]domain.SiteInfo, 0, len(all))
	for _, p := range all {
		if sc.test {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			p.TestConnection(ctx)
			cancel()
		}
		infos = append(infos, p.SiteInfo())
	}
	return sc.env.Reporter.Sites(infos)
}
