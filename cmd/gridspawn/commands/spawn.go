package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/engine"
	"github.com/DrSkyle/gridspawn/pkg/engine/notifier"
	"github.com/DrSkyle/gridspawn/pkg/engine/report"
	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/tui"
)

// ErrIncomplete is returned with --strict when some instance was not
// placed.
var ErrIncomplete = errors.New("spawn incomplete")

type spawnOptions struct {
	in          inputFlags
	cooperative bool
	interactive bool
	showMap     bool
	strict      bool
}

func newSpawnCmd(a *app) *cobra.Command {
	o := &spawnOptions{}
	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Place a spawn config into a container",
		Long: `Place every template of a spawn config into a grid and record the result
in the ledger.

Example:
  gridspawn spawn -f loot.yaml --catalog items.yaml --grid cellar.yaml --container cellar-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSpawn(cmd, o)
		},
	}
	o.in.register(cmd, true)

	fs := cmd.Flags()
	fs.BoolVar(&o.cooperative, "cooperative", false, "Process --budget instances per tick instead of all at once")
	fs.BoolVar(&o.interactive, "interactive", false, "Step through the spawn in a terminal UI")
	fs.BoolVar(&o.showMap, "map", false, "Print the grid map after the report")
	fs.BoolVar(&o.strict, "strict", false, "Exit non-zero unless every instance was placed or skipped")
	fs.Uint64("seed", 0, "Random seed (0 picks one)")
	fs.Int("budget", 1, "Instances per tick in cooperative mode")
	fs.Duration("interval", 0, "Pause between instances in cooperative mode")
	fs.Bool("apply-chance", false, "Apply per-template spawn_chance before placing")
	fs.String("format", "text", "Report format: text, json, csv, html")
	fs.String("export-to", "", "Upload the report to a storage URL (s3://bucket/prefix, a directory)")
	fs.String("slack-webhook", "", "Slack webhook URL to post the run summary to")
	fs.String("slack-channel", "", "Override Slack channel")
	bind(a.v, fs, map[string]string{
		"spawn.seed":           "seed",
		"spawn.budget":         "budget",
		"spawn.interval":       "interval",
		"spawn.apply_chance":   "apply-chance",
		"spawn.format":         "format",
		"spawn.export_to":      "export-to",
		"notify.slack_webhook": "slack-webhook",
		"notify.slack_channel": "slack-channel",
	})
	return cmd
}

func (a *app) runSpawn(cmd *cobra.Command, o *spawnOptions) error {
	ctx := cmd.Context()
	in, err := o.in.load(true)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(a.settings.Spawn.Format)
	if err != nil {
		return err
	}

	eng, err := a.newEngine(ctx, in.catalog)
	if err != nil {
		return err
	}

	var res *spawn.Result
	switch {
	case o.interactive:
		res, err = a.spawnInteractive(ctx, eng, in, o.in.container)
	case o.cooperative:
		res, err = a.spawnCooperative(ctx, eng, in, o.in.container)
	default:
		res, err = eng.Spawn(ctx, in.grid, in.cfg, o.in.container)
	}
	if res != nil {
		err = errors.Join(err, a.publish(cmd, eng, o, format, in, res))
	}
	if cerr := closeEngine(ctx, eng); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err == nil && res != nil && o.strict && !res.OK() {
		return fmt.Errorf("%w: %s", ErrIncomplete, res.Summary())
	}
	return err
}

// publish renders the report and uploads it when an export target is set.
func (a *app) publish(cmd *cobra.Command, eng *engine.Engine, o *spawnOptions, format report.Format, in *inputs, res *spawn.Result) error {
	out := cmd.OutOrStdout()
	if err := report.Render(out, format, res, in.grid); err != nil {
		return err
	}
	if o.showMap {
		if err := writeMap(out, in.grid, res); err != nil {
			return err
		}
	}
	eng.Logger.Info("spawn finished", "summary", res.Summary(), "seed", eng.Seed())

	ctx := context.WithoutCancel(cmd.Context())
	var errs []error
	if target := a.settings.Spawn.ExportTo; target != "" {
		formats := []report.Format{report.FormatJSON}
		if format != report.FormatJSON {
			formats = append(formats, format)
		}
		keys, err := eng.Export(ctx, target, res, in.grid, formats...)
		for _, k := range keys {
			eng.Logger.Info("report exported", "key", k)
		}
		errs = append(errs, err)
	}

	n := a.settings.Notify
	if err := notifier.NewSlackClient(n.SlackWebhook, n.SlackChannel).SendSpawnReport(ctx, res); err != nil {
		eng.Logger.Warn("Failed to send slack notification", "error", err)
	}
	return errors.Join(errs...)
}

// spawnCooperative drives the scheduler tick by tick until the request
// completes or ctx is cancelled. An interrupted run reports what it has.
func (a *app) spawnCooperative(ctx context.Context, eng *engine.Engine, in *inputs, container string) (*spawn.Result, error) {
	var res *spawn.Result
	var runErr error
	eng.Enqueue(in.grid, in.cfg, container, func(_ string, r *spawn.Result, err error) {
		res, runErr = r, err
	})

	budget := max(a.settings.Spawn.Budget, 1)
	for tick := 1; eng.Scheduler.Pending() > 0; tick++ {
		if err := ctx.Err(); err != nil {
			return activeResult(eng), fmt.Errorf("spawn interrupted: %w", err)
		}
		n := eng.Scheduler.Step(ctx, budget)
		eng.Logger.Debug("tick", "tick", tick, "processed", n)
	}
	return res, runErr
}

func (a *app) spawnInteractive(ctx context.Context, eng *engine.Engine, in *inputs, container string) (*spawn.Result, error) {
	model := tui.NewModel(ctx, eng.Scheduler, a.settings.Spawn.Budget)
	eng.Enqueue(in.grid, in.cfg, container, model.Track(in.grid))

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		return activeResult(eng), fmt.Errorf("terminal ui failed: %w", err)
	}
	done := final.(tui.Model).Completed()
	if len(done) == 0 {
		return activeResult(eng), nil
	}
	last := done[len(done)-1]
	return last.Result, last.Err
}

func activeResult(eng *engine.Engine) *spawn.Result {
	if _, run, ok := eng.Scheduler.Active(); ok {
		return run.Result()
	}
	return nil
}

// writeMap prints the ASCII map after the report, separated by a blank line.
func writeMap(w io.Writer, g grid.Grid, res *spawn.Result) error {
	if _, err := io.WriteString(w, "\n"+report.Map(g, res)); err != nil {
		return fmt.Errorf("failed to write map: %w", err)
	}
	return nil
}
