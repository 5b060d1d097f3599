package cmd

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/config"
	"github.com/Aman-CERP/claimsync/internal/preflight"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
)

func newDoctorCmd(g *globals) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that a sync can run",
		Long: `Run the checks a sync depends on without writing to the index.

Checks:
  - Write permissions in data_dir (run locks live there)
  - Disk space in data_dir (100MB minimum)
  - File descriptor limit (1024 recommended)
  - The claim store opens
  - The search engine answers a health probe

Use --verbose for hints on failed checks.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  claimsync doctor

  # JSON output for scripting
  claimsync doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDoctor(ctx, cmd, g, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, g *globals, verbose, jsonOutput bool) error {
	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithTimeout(g.cfg.Search.HealthTimeout),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	target, err := doctorTarget(g.cfg, g)
	if err != nil {
		return err
	}
	results := checker.RunAll(ctx, target)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return &doctorError{message: "system check failed"}
	}
	return nil
}

func doctorTarget(cfg *config.Config, g *globals) (preflight.Target, error) {
	opener, err := claims.NewOpener(cfg.Store, cfg.Sync.Blocks)
	if err != nil {
		return preflight.Target{}, err
	}
	connector, err := searchindex.NewConnector(cfg.Search, cfg.Sync, g.logger)
	if err != nil {
		return preflight.Target{}, err
	}
	target := preflight.Target{DataDir: cfg.DataDir, Store: opener, Search: connector}
	if cfg.Search.Backend == config.SearchBleve {
		target.SearchPath = cfg.Search.Path
	}
	return target, nil
}

// doctorReport is the --json output.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

// doctorError reports failed required checks.
type doctorError struct {
	message string
}

func (e *doctorError) Error() string {
	return e.message
}
