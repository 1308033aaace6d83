package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jwulff/steno/history/internal/clipboard"
	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/db"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the history daemon",
	Long:  `Serves the history database on the configured Unix socket and pushes the full history to subscribers after every change.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755); err != nil {
		return fmt.Errorf("creating socket dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OSC 52 goes to the controlling terminal so it never mixes with logs.
	var term io.Writer = os.Stderr
	if cfg.Clipboard.Backend == clipboard.BackendOSC52 {
		if tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
			defer tty.Close()
			term = tty
		}
	}
	clip, err := clipboard.Select(cfg.Clipboard.Backend, term, cfg.UseTmux())
	if err != nil {
		return err
	}
	srv := daemon.NewServer(store, clip, log)

	log.Info("starting history daemon",
		zap.String("socket", cfg.Socket),
		zap.String("database", cfg.Database),
		zap.String("clipboard", cfg.Clipboard.Backend),
	)
	return srv.ListenAndServe(ctx, cfg.Socket)
}
