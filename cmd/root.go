// Package cmd contains the stopcpd command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"stopcpd/config"
	"stopcpd/logging"
	"stopcpd/session"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// newRootCmd builds the command tree. Flags are registered once on the root
// and inherited by every subcommand.
func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "stopcpd [directory]",
		Short: "Get notified when you introduce duplicated code",
		Long: `stopcpd watches a project and shows a notification whenever a change
introduces duplicated code, or removes some. Clicking a new-duplicate
notification opens the other occurrence in your editor.

Duplicates are found with jscpd. Settings come from flags, STOPCPD_*
environment variables and an optional .stopcpd.{toml,yaml,json} file in
the project directory.`,
		Example: `  stopcpd                     Watch the current directory
  stopcpd ~/code/app          Watch another project
  stopcpd --editor cursor     Open clicks in Cursor
  stopcpd scan --json         List current duplicates as JSON`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args, configFile)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is <directory>/.stopcpd.{toml,yaml,json})")

	root.AddCommand(newScanCmd(&configFile))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig resolves the settings for the directory argument and applies
// the log level.
func loadConfig(cmd *cobra.Command, args []string, configFile string) (config.Config, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	cfg, err := config.Load(dir, configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func runWatch(ctx context.Context, cfg config.Config) error {
	s, err := session.New(cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Execute runs the command line. It is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
