package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/engine/condition"
)

func newValidateCmd(a *app) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a spawn config without touching the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := in.load(false)
			if err != nil {
				return err
			}
			conds, err := condition.NewEngine()
			if err != nil {
				return err
			}

			errs := []error{loaded.cfg.Validate(loaded.catalog)}
			for _, t := range loaded.cfg.Templates {
				if t.Condition == "" {
					continue
				}
				if err := conds.Compile(t.Condition); err != nil {
					errs = append(errs, fmt.Errorf("template %s: %w", t.ID, err))
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d templates, %d instances, ok\n",
				loaded.cfg.Name, len(loaded.cfg.Templates), loaded.cfg.TotalUnits())
			return nil
		},
	}
	in.register(cmd, false)
	return cmd
}
