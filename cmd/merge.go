package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <batch.json>",
	Short: "Merge an exported batch into the dataset",
	Long:  "Re-normalizes the records of a batch written by collect --export and merges them into the canonical dataset. Existing codes are never overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("dataset"); err != nil {
			return err
		}

		batch, err := readBatch(args[0])
		if err != nil {
			return err
		}

		runs := openRunStore(ctx)
		if runs != nil {
			defer runs.Close() //nolint:errcheck
		}

		sum, mergeErr := newPipeline(nil, runs).MergeBatch(ctx, args[0], batch)
		if err := printSummary(os.Stdout, sum); err != nil {
			return err
		}
		return mergeErr
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
