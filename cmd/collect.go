package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cepsync/internal/browser"
	"github.com/sells-group/cepsync/internal/config"
	"github.com/sells-group/cepsync/internal/dataset"
	"github.com/sells-group/cepsync/internal/model"
	"github.com/sells-group/cepsync/internal/pipeline"
	"github.com/sells-group/cepsync/internal/resilience"
	"github.com/sells-group/cepsync/internal/runlog"
	"github.com/sells-group/cepsync/internal/walker"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect addresses from the source site",
	Long:  "Walks the source site's search forms and merges new records into the canonical dataset. The run summary is printed as JSON.",
}

var collectRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Walk a numeric postal-code range",
	Long: `Query every postal code from --start to --end inclusive, one at a time,
pausing walk.delay_ms between queries.

Examples:
  # First 50 hits in the Uberlândia block
  cepsync collect range --start 38400-000 --end 38499-999 --max 50

  # Keep the raw batch next to the merge
  cepsync collect range --start 01310-000 --end 01310-999 --export batch.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		return runCollect(cmd, pipeline.Request{
			Mode:  model.ModeRange,
			Start: start,
			End:   end,
		})
	},
}

var collectLocalityCmd = &cobra.Command{
	Use:   "locality",
	Short: "Walk the street index of one city",
	Long: `Select the region, then the city, then each initial letter of the
street index (when the site has one), collecting every listed address.

Example:
  cepsync collect locality --city "Uberlândia" --region MG --max 200`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		city, _ := cmd.Flags().GetString("city")
		region, _ := cmd.Flags().GetString("region")
		req := pipeline.Request{
			Mode:   model.ModeLocality,
			City:   city,
			Region: region,
		}
		req.Letters = localityLetters(cmd, cfg.Site.Locality)
		return runCollect(cmd, req)
	},
}

func init() {
	for _, c := range []*cobra.Command{collectRangeCmd, collectLocalityCmd} {
		c.Flags().Int("max", 0, "stop after this many records (0 = walk.max_results)")
		c.Flags().String("export", "", "also write the collected batch to this JSON file")
	}

	collectRangeCmd.Flags().String("start", "", "first postal code (e.g. 38400-000)")
	collectRangeCmd.Flags().String("end", "", "last postal code, inclusive")
	_ = collectRangeCmd.MarkFlagRequired("start")
	_ = collectRangeCmd.MarkFlagRequired("end")

	collectLocalityCmd.Flags().String("city", "", "city name as listed by the site")
	collectLocalityCmd.Flags().String("region", "", "two-letter region code (e.g. MG)")
	collectLocalityCmd.Flags().String("letters", "", "initial letters to visit (default site.locality.letters)")
	_ = collectLocalityCmd.MarkFlagRequired("city")
	_ = collectLocalityCmd.MarkFlagRequired("region")

	collectCmd.AddCommand(collectRangeCmd)
	collectCmd.AddCommand(collectLocalityCmd)
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, req pipeline.Request) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("collect"); err != nil {
		return err
	}

	req.MaxResults = cfg.Walk.MaxResults
	if cmd.Flags().Changed("max") {
		req.MaxResults, _ = cmd.Flags().GetInt("max")
	}
	req.ExportPath, _ = cmd.Flags().GetString("export")

	labels, err := loadLabels(cfg.Browser.LabelsFile)
	if err != nil {
		return err
	}
	opener := browser.NewChromeOpener(chromeOptions(cfg.Browser), siteFromConfig(cfg.Site), labels)

	runs := openRunStore(ctx)
	if runs != nil {
		defer runs.Close() //nolint:errcheck
	}

	p := newPipeline(opener, runs)
	sum, runErr := p.Run(ctx, req)
	if err := printSummary(os.Stdout, sum); err != nil {
		return err
	}
	return runErr
}

// newPipeline builds a pipeline from the loaded config. opener may be nil
// for merge-only use.
func newPipeline(opener browser.Opener, runs runlog.Store) *pipeline.Pipeline {
	format := walker.DefaultCodeFormat()
	format.SepPos = cfg.Walk.CodeSeparatorPos

	pacer := walker.NewPacer(time.Duration(cfg.Walk.DelayMs)*time.Millisecond, cfg.Walk.MaxPerMinute)
	return pipeline.New(opener, walker.New(pacer), dataset.NewFileStore(cfg.Dataset.Path), runs, pipeline.Options{
		CodeFormat:  format,
		LockStale:   time.Duration(cfg.Dataset.LockStaleSecs) * time.Second,
		LockTimeout: time.Duration(cfg.Dataset.LockTimeoutSecs) * time.Second,
		Retry:       resilience.FromLaunchConfig(cfg.Browser.LaunchAttempts, cfg.Browser.LaunchBackoffMs),
	})
}

// openRunStore opens the run history. History is best effort: a failure is
// logged and the run proceeds without it.
func openRunStore(ctx context.Context) runlog.Store {
	st, err := initRunStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return nil
	}
	return st
}

func loadLabels(path string) (browser.Labels, error) {
	if path == "" {
		return browser.DefaultLabels(), nil
	}
	labels, err := browser.LoadLabels(path)
	if err != nil {
		return nil, eris.Wrap(err, "collect: load labels")
	}
	return labels, nil
}

func chromeOptions(c config.BrowserConfig) browser.ChromeOptions {
	return browser.ChromeOptions{
		ExecPath:        c.ExecPath,
		Headless:        c.Headless,
		UserAgent:       c.UserAgent,
		SelectorTimeout: time.Duration(c.SelectorTimeoutSecs) * time.Second,
		ResultTimeout:   time.Duration(c.ResultTimeoutSecs) * time.Second,
		SettleDelay:     time.Duration(c.SettleMs) * time.Millisecond,
		PageTimeout:     time.Duration(c.PageTimeoutSecs) * time.Second,
	}
}

func siteFromConfig(c config.SiteConfig) browser.Site {
	return browser.Site{
		Code: browser.CodeForm{
			URL:    c.Code.URL,
			Input:  c.Code.Input,
			Submit: c.Code.Submit,
			Result: c.Code.Result,
		},
		Locality: browser.LocalityForm{
			URL:           c.Locality.URL,
			RegionSelect:  c.Locality.RegionSelect,
			LocalityInput: c.Locality.LocalityInput,
			Submit:        c.Locality.Submit,
			LetterLink:    c.Locality.LetterLink,
			Result:        c.Locality.Result,
		},
	}
}

// localityLetters resolves the letter index to walk. Without a letter link
// selector the form has no letter step and a single query is made.
func localityLetters(cmd *cobra.Command, c config.LocalityFormConfig) string {
	if c.LetterLink == "" {
		if cmd.Flags().Changed("letters") {
			zap.L().Warn("site.locality.letter_link is not set; ignoring --letters")
		}
		return ""
	}
	if cmd.Flags().Changed("letters") {
		letters, _ := cmd.Flags().GetString("letters")
		return letters
	}
	return c.Letters
}

func printSummary(w io.Writer, sum *model.RunSummary) error {
	if sum == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(sum), "print summary")
}
