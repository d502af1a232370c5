package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorsync/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run an anchor script against a durable store",
		Long: `Run a scenario script against a SQLite anchor store.

Unlike "test", the store is a real file: anchors persisted by one run are
restored by the next. The database defaults to the configured db path.

Example:
  anchorsync run --db ./anchors.db ./scripts/place-desk.yaml
  anchorsync run ./scripts/relocate.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runScript(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.logger()
	cfg := opts.config()

	db := opts.Database
	if db == "" {
		db = cfg.DB
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running script", "script", scenario.Name, "db", db)
	result, err := harness.RunWith(ctx, scenario, harness.Options{
		DBPath:      db,
		WorldAnchor: cfg.WorldAnchor,
		Logger:      logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "script aborted", err)
	}
	logger.Info("script finished", "script", scenario.Name, "pass", result.Pass)

	out := opts.formatter(cmd)
	if err := out.Success(formatRunText(scenario.Name, result), result); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("script %s failed", scenario.Name))
	}
	return nil
}

func formatRunText(name string, result *harness.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Script %s\n", name)
	for _, ev := range result.Trace {
		switch ev.Type {
		case harness.TraceNotification:
			fmt.Fprintf(&b, "  [%d] %-12s %s name=%q persisted=%t state=%s pose=%s\n",
				ev.Seq, ev.Kind, ev.ID, ev.Name, ev.Persisted, ev.TrackingState, ev.Pose)
		case harness.TraceCorrection:
			fmt.Fprintf(&b, "      correction   %s name=%q offset=%s\n", ev.ID, ev.Name, ev.Pose)
		case harness.TraceError:
			fmt.Fprintf(&b, "      step %d       %s\n", ev.Step, ev.Code)
		}
	}
	fmt.Fprintf(&b, "Live anchors: %d\n", len(result.Records))
	for _, r := range result.Records {
		fmt.Fprintf(&b, "  %s name=%q persisted=%t pose=%s\n", r.ID, r.Name, r.Persisted, r.Pose)
	}
	if result.Pass {
		b.WriteString("✓ passed")
	} else {
		b.WriteString("✗ failed")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "\n  %s", e)
		}
	}
	return b.String()
}
