package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
)

func newResetCmd(a *app) *cobra.Command {
	var container string
	var all bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget what was spawned in a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (container != "") {
				return errors.New("exactly one of --container or --all is required")
			}
			ctx := cmd.Context()
			eng, err := a.newEngine(ctx, catalog.NewMemoryCatalog())
			if err != nil {
				return err
			}
			err = eng.Reset(ctx, container)
			if cerr := closeEngine(ctx, eng); cerr != nil {
				err = errors.Join(err, cerr)
			}
			if err != nil {
				return err
			}

			if all {
				fmt.Fprintln(cmd.OutOrStdout(), "ledger reset")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s reset\n", container)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "Container to forget")
	cmd.Flags().BoolVar(&all, "all", false, "Forget every container")
	return cmd
}
