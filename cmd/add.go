package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jwulff/steno/history/internal/daemon"
	"github.com/jwulff/steno/history/internal/history"

	"github.com/spf13/cobra"
)

var addPolished string

var addCmd = &cobra.Command{
	Use:   "add <transcript>",
	Short: "Add a transcript to the history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addPolished, "polished", "", "polished version of the transcript")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
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

	added, err := remote.AddEntry(ctx, history.Entry{
		Transcript: args[0],
		Polished:   addPolished,
		PolishUsed: addPolished != "",
	})
	if err != nil {
		return fmt.Errorf("adding entry: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added entry %d (%d words)\n", added.ID, added.WordCount)
	return nil
}
