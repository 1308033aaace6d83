// Package cmd implements the steno-history command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/jwulff/steno/history/internal/app"
	"github.com/jwulff/steno/history/internal/config"
	"github.com/jwulff/steno/history/internal/logging"
	"go.uber.org/zap"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "steno-history",
	Short: "Browse and manage the transcript history",
	Long: `steno-history mirrors the transcript history kept by the history daemon.
Without a subcommand it opens the interactive history browser.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by every subcommand.
func setup() (config.Config, *zap.Logger, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	p := tea.NewProgram(app.New(cfg.Socket, log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
