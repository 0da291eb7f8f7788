package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cepsync/internal/dataset"
	"github.com/sells-group/cepsync/internal/model"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the canonical dataset",
}

var datasetVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check ordering, uniqueness and required fields",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}
		records, err := dataset.NewFileStore(cfg.Dataset.Path).Load(cmd.Context())
		if err != nil {
			return err
		}
		if err := dataset.Verify(records); err != nil {
			return eris.Wrapf(err, "dataset verify %s", cfg.Dataset.Path)
		}
		_, _ = fmt.Fprintf(os.Stdout, "ok: %d records in %s\n", len(records), cfg.Dataset.Path)
		return nil
	},
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per region",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("dataset"); err != nil {
			return err
		}
		records, err := dataset.NewFileStore(cfg.Dataset.Path).Load(cmd.Context())
		if err != nil {
			return err
		}
		formatDatasetStats(os.Stdout, dataset.Summarize(records))
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetVerifyCmd)
	datasetCmd.AddCommand(datasetStatsCmd)
	rootCmd.AddCommand(datasetCmd)
}

// formatDatasetStats writes totals and a per-region breakdown to out.
func formatDatasetStats(out io.Writer, st dataset.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", st.Total)
	_, _ = fmt.Fprintf(w, "Cities:\t%d\n", st.Cities)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", st.Complete)

	regions := make([]string, 0, len(st.Regions))
	for r := range st.Regions {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	if len(regions) > 0 {
		_, _ = fmt.Fprintln(w, "\nREGION\tRECORDS")
		_, _ = fmt.Fprintln(w, "------\t-------")
	}
	for _, r := range regions {
		name := r
		if name == "" {
			name = "(none)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\n", name, st.Regions[r])
	}
	_ = w.Flush()
}

func readBatch(path string) ([]model.AddressRecord, error) {
	batch, err := dataset.ReadBatch(path)
	if err != nil {
		return nil, eris.Wrap(err, "merge: read batch")
	}
	return batch, nil
}
