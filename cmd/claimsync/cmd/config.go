package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/claimsync/configs"
	"github.com/Aman-CERP/claimsync/internal/config"
	"github.com/Aman-CERP/claimsync/internal/output"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the claimsync configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config ($XDG_CONFIG_HOME/claimsync/config.yaml)
  3. The file given with --config
  4. Environment variables (CLAIMSYNC_*)
  5. Command-line flags`,
		Example: `  # Create the user config from the template
  claimsync config init

  # Show the effective configuration
  claimsync config show

  # Print the user config file path
  claimsync config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a configuration file from the template",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&path, "path", "", "Where to write (default: user config path)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Hint("Use --force to overwrite it with the template")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "1. Point store and search at your claim store and engine")
	out.Status("", "2. Run 'claimsync doctor' to check them")
	out.Status("", "3. Run 'claimsync sync'")
	return nil
}

func newConfigShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *g.cfg
			if cfg.Search.APIKey != "" {
				cfg.Search.APIKey = "***"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the user config file path",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
