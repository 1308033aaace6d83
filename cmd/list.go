package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/history"

	"github.com/spf13/cobra"
)

var (
	listFavorites bool
	listSearch    string
	listJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the transcript history",
	Long:  `Prints history entries newest first, optionally restricted to favorites or to entries whose text contains the search query.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "only show favorites")
	listCmd.Flags().StringVar(&listSearch, "search", "", "case-insensitive text filter")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	entries, err := remote.FetchHistory(ctx)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	mode := history.FilterAll
	if listFavorites {
		mode = history.FilterFavorites
	}
	return printEntries(cmd.OutOrStdout(), history.Filter(entries, mode, listSearch), listJSON)
}

func printEntries(w io.Writer, entries []history.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No entries")
		return err
	}

	for _, e := range entries {
		star := " "
		if e.Favorite {
			star = "★"
		}
		text := strings.ReplaceAll(e.DisplayText(), "\n", " ")
		if _, err := fmt.Fprintf(w, "%5d %s %s %4dW  %s\n",
			e.ID, star, e.Timestamp.Local().Format("02.01. 15:04"), e.WordCount, text); err != nil {
			return err
		}
	}
	return nil
}
