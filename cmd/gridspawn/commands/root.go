// Package commands implements the gridspawn CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/config"
	"github.com/DrSkyle/gridspawn/pkg/engine"
	"github.com/DrSkyle/gridspawn/pkg/version"
)

// closeTimeout bounds the final ledger save after an interrupt.
const closeTimeout = 30 * time.Second

// app is the state shared by all commands of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	settings config.Settings
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context;
// commands stop between instances and still save the ledger.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0055")).Render("Error: "+err.Error()))
		return err
	}
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: "Place items into grid containers",
		Long: `gridspawn places declared items into 2-D grid containers, remembers what
each container already received, and reports every instance's outcome.`,
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.settings = s
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Settings file (default ~/.gridspawn.yaml)")
	pf.String("ledger", config.DefaultLedgerURL, "Ledger URL: file://, sqlite://, redis://, s3://, dynamodb://, configmap://, memory://")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.Bool("json-logs", false, "Log as JSON")
	pf.String("otel-endpoint", "", "OTLP/HTTP endpoint for traces")
	pf.Bool("no-telemetry", false, "Disable OpenTelemetry")
	pf.String("aws-region", config.DefaultRegion, "AWS region for s3:// and dynamodb:// ledgers")
	pf.String("aws-profile", "", "AWS shared config profile")
	pf.String("aws-endpoint", "", "AWS endpoint override (LocalStack)")
	bind(a.v, pf, map[string]string{
		"ledger.url":         "ledger",
		"log.level":          "log-level",
		"log.json":           "json-logs",
		"telemetry.endpoint": "otel-endpoint",
		"telemetry.disabled": "no-telemetry",
		"aws.region":         "aws-region",
		"aws.profile":        "aws-profile",
		"aws.endpoint":       "aws-endpoint",
	})

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	rootCmd.AddCommand(
		newSpawnCmd(a),
		newCheckCmd(a),
		newResetCmd(a),
		newValidateCmd(a),
		newPreviewCmd(a),
		newCompletionCmd(rootCmd),
	)
	return rootCmd
}

func bind(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

// newEngine builds an engine from the loaded settings.
func (a *app) newEngine(ctx context.Context, cat catalog.Catalog, overrides ...func(*engine.Config)) (*engine.Engine, error) {
	cfg := a.settings.Engine()
	for _, o := range overrides {
		o(&cfg)
	}
	return engine.New(ctx, engine.WithConfig(cfg), engine.WithCatalog(cat))
}

// closeEngine saves and closes with a fresh deadline so an interrupted
// command still persists its ledger.
func closeEngine(ctx context.Context, eng *engine.Engine) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	return eng.Close(ctx)
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("GRIDSPAWN %s", version.Current)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(output))
	})
	fmt.Fprintln(w)
}
