package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotesync/quotesync/internal/config"
	"github.com/quotesync/quotesync/internal/logging"
)

// cliFlags holds the values of the persistent flags. Flags only override the
// file and environment when they were set explicitly.
type cliFlags struct {
	configFile   string
	baseURL      string
	pagePath     string
	logLevel     string
	pollInterval time.Duration
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:   "quotesync",
		Short: "Synchronize supplier quote responses and announce them",
		Long: `quotesync polls the procurement server for supplier responses to external
quotes, asks the server to synchronize each one, shows a toast for it and
updates the quote page the operator has open.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "path to a YAML or TOML config file")
	pf.StringVar(&f.baseURL, "base-url", "", "procurement server base URL")
	pf.StringVar(&f.pagePath, "page-path", "", "path of the page the operator has open")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (default from QUOTESYNC_LOG_LEVEL)")
	pf.DurationVar(&f.pollInterval, "poll-interval", 20*time.Second, "time between poll cycles")

	root.AddCommand(newRunCmd(f), newCheckCmd(f), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("quotesync version %s\n", version)
		},
	}
}

// loadConfig layers defaults, the config file, QUOTESYNC_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, f *cliFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		c, err := config.LoadConfigFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed loading config: %w", err)
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if flags.Changed("page-path") {
		cfg.Page.InitialPath = f.pagePath
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	return cfg, nil
}

// initLogging initializes the log subsystem from env (and the --log-level
// flag) and returns a cleanup func.
func initLogging(f *cliFlags) (func(), error) {
	level := os.Getenv("QUOTESYNC_LOG_LEVEL")
	if f.logLevel != "" {
		level = f.logLevel
	}
	cleanup, err := logging.Init(os.Getenv("QUOTESYNC_LOG_FILE"), level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cleanup, nil
}

// prepare loads the configuration and initializes logging, logging every
// validation warning before invalid values are replaced with defaults.
func prepare(cmd *cobra.Command, f *cliFlags) (*config.Config, func(), error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	cleanup, err := initLogging(f)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}
	cfg.Normalize()
	return cfg, cleanup, nil
}
