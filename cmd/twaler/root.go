package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"twaler/pkg/config"
	"twaler/pkg/logger"
	"twaler/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twaler",
	Short: "Crawl a social-graph API into a sharded on-disk cache",
	Long: `twaler reads seed files of user ids and fetches each user's profile,
timeline, friends and list relationships into a compressed on-disk cache.

Features:
  - Worker pool with per-connection retry and reconnect policy
  - Quota-aware pacing against the API's rate-limit endpoint
  - Cursor pagination persisted page by page
  - Run ledger and checkpoint for every crawl instance

Configuration is read from flags, TWALER_* environment variables, .env files
and .twaler.yaml or .twaler.toml, in that order of priority.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		ui.SetQuietMode(quiet)
	},
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("twaler", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default .twaler.yaml or $XDG_CONFIG_HOME/twaler/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this rotated file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`twaler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with flags of the running command
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return config.Load(configFile, flags)
}

// setup loads configuration and installs the global logger
func setup(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}
