// Package cmd provides the CLI commands for claimsync.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/claimsync/internal/config"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
	"github.com/Aman-CERP/claimsync/internal/logging"
	"github.com/Aman-CERP/claimsync/internal/profiling"
	"github.com/Aman-CERP/claimsync/pkg/version"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// globals holds the state shared by every subcommand of one root command.
type globals struct {
	configPath string
	debug      bool
	profile    profiling.Options

	cfg            *config.Config
	logger         *slog.Logger
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the claimsync CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *globals) {
	g := &globals{logger: slog.Default()}

	cmd := &cobra.Command{
		Use:   "claimsync",
		Short: "Rebuild the claims search index from the claim store",
		Long: `claimsync keeps a search index of claims in step with the primary claim store.

'claimsync sync' makes sure the index exists at the expected schema version,
dropping and recreating it when the stored version differs, and then streams
every claim into it with concurrent bulk requests.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("claimsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: user config only)")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.claimsync/logs/")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = g.start
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error { return g.stop() }

	cmd.AddCommand(newSyncCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd, g
}

// start loads the configuration, sets up logging and starts profiling.
func (g *globals) start(cmd *cobra.Command, _ []string) error {
	level := "info"
	if cmd.Annotations[skipConfig] == "" {
		cfg, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		g.cfg = cfg
		level = cfg.Logging.Level
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	if g.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.logger = logger
	g.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if g.debug {
		logger.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if g.profile.Enabled() {
		g.profiler, err = profiling.Start(g.profile)
		if err != nil {
			g.cleanupLogging()
			return err
		}
	}
	return nil
}

// stop ends profiling and flushes the log file.
func (g *globals) stop() error {
	var err error
	if g.profiler != nil {
		err = g.profiler.Stop()
		g.profiler = nil
	}
	g.cleanupLogging()
	return err
}

func (g *globals) cleanupLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	cmd, g := newRootCmd()
	err := cmd.Execute()
	// Post-run hooks are skipped when a command fails.
	if serr := g.stop(); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		fmt.Fprint(os.Stderr, cserrors.FormatForCLI(err))
	}
	return err
}
