package cmd

import (
	"fmt"

	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/mcpserver"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the history as MCP tools over stdio",
	Long:  `Starts an MCP server on stdin/stdout whose tools list, search, favorite, copy, delete and add history entries through the daemon.`,
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	remote, err := daemon.Dial(cfg.Socket, log)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	defer remote.Close()

	return mcpserver.New(remote, Version, log).ServeStdio()
}
