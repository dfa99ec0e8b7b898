package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"twaler/pkg/config"
	"twaler/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage twaler configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - TWALER_* environment variables
  - .env files
  - Configuration file (YAML or TOML)
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with every default",
	Long: `Write a configuration file holding every option at its default value.
The format follows the extension: .toml writes TOML, anything else YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".twaler.yaml"
	switch {
	case len(args) == 1:
		path = args[0]
	case configFile != "":
		path = configFile
	}

	if fileExists(path) && !forceInit {
		return fmt.Errorf("%s already exists; use --force to overwrite it", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.PrintDim("Check it with: twaler config validate --config " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.API.Password = mask(display.API.Password)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var problems []error
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create cache directory: %w", err))
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}

	if cfg.API.UseAuth && cfg.API.Username == "" && cfg.API.Account == "" {
		ui.PrintWarning("use_auth is set without a username; the default stored account will be used")
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintPanel(ui.RenderRows([]ui.Row{
		{Label: "Base URL", Value: cfg.API.BaseURL},
		{Label: "Format", Value: cfg.API.Format},
		{Label: "Workers", Value: fmt.Sprint(cfg.Crawl.Workers)},
		{Label: "Max attempts", Value: fmt.Sprint(cfg.Crawl.MaxAttempts)},
		{Label: "Cache", Value: cfg.Cache.Dir},
		{Label: "Log level", Value: cfg.Logging.Level},
	}))
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
