package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/engine"
	"github.com/DrSkyle/gridspawn/pkg/engine/report"
)

func newPreviewCmd(a *app) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show where a spawn would place items",
		Long: `Run a spawn config against a scratch ledger and print the resulting map.
Nothing is recorded; the real ledger is not opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loaded, err := in.load(true)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(ctx, loaded.catalog, func(c *engine.Config) {
				c.LedgerURL = "memory://"
			})
			if err != nil {
				return err
			}

			res, err := eng.Spawn(ctx, loaded.grid, loaded.cfg, in.container)
			if cerr := closeEngine(ctx, eng); cerr != nil {
				err = errors.Join(err, cerr)
			}
			if res == nil {
				return err
			}

			out := cmd.OutOrStdout()
			io.WriteString(out, report.Map(loaded.grid, res))
			fmt.Fprintln(out, res.Summary())
			return err
		},
	}
	in.register(cmd, true)
	return cmd
}
