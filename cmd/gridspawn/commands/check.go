package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/engine/capacity"
)

func newCheckCmd(a *app) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a spawn would place anything",
		Long: `Check the ledger and report whether running the spawn config against the
container could still place an instance. Exits non-zero when it could not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := in.load(true)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(cmd.Context(), loaded.catalog)
			if err != nil {
				return err
			}
			defer closeEngine(cmd.Context(), eng)

			if err := eng.Orchestrator.Validate(loaded.grid, loaded.cfg); err != nil {
				return err
			}
			if !eng.ShouldSpawn(loaded.grid, loaded.cfg, in.container) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to spawn\n", in.container)
				return fmt.Errorf("container %s is already spawned", in.container)
			}
			est := capacity.EstimateGrid(loaded.cfg, loaded.catalog, loaded.grid)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: should spawn\n", in.container)
			fmt.Fprintf(cmd.OutOrStdout(), "estimate: %d/%d instances fit by area, %.0f%% of free cells used\n",
				est.Fits, est.Instances, est.Utilization*100)
			if len(est.Overflow) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "overflow: %s\n", strings.Join(est.Overflow, ", "))
			}
			return nil
		},
	}
	in.register(cmd, true)
	return cmd
}
