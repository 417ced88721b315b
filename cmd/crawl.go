package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/crawl"
	"github.com/brogergvhs/showscrape/internal/ui"
	"github.com/brogergvhs/showscrape/internal/util"
)

var (
	flagFrom       int
	flagTo         int
	flagWorkers    int
	flagOutput     string
	flagDetails    bool
	flagSkipBroken bool
	flagNoProgress bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walk the listing pages of a source and export them as JSON lines",
	Long: `Walk the listing pages of a source and export every item, and with
--details every distinct series record, as JSON lines.

The export is written to <output>/<source>-<timestamp>.jsonl and only appears
once the crawl finished. Use --output - to stream to stdout.

Examples:
  showscrape crawl --to 5
  showscrape crawl -s manga --genre action --details --skip-broken`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&flagFrom, "from", 1, "first page")
	crawlCmd.Flags().IntVar(&flagTo, "to", 0, "last page (0 = last page announced by the pager)")
	crawlCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel page fetches (default from config)")
	crawlCmd.Flags().StringVarP(&flagOutput, "output", "o", "", `output folder, or "-" for stdout (default from config)`)
	crawlCmd.Flags().BoolVar(&flagDetails, "details", false, "also export the detail record of every series")
	crawlCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "keep going when pages or details fail")
	crawlCmd.Flags().BoolVar(&flagNoProgress, "no-progress", false, "disable progress bars")
	crawlCmd.Flags().StringVar(&flagCountry, "country", "", "country facet")
	crawlCmd.Flags().StringVar(&flagGenre, "genre", "", "genre facet")
	crawlCmd.Flags().StringVar(&flagYear, "year", "", "release year facet")
	crawlCmd.Flags().StringVar(&flagSort, "sort", "", "sort order")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	filters := facetFilters(cmd)
	opts := config.Options{
		Workers:    flagWorkers,
		Output:     flagOutput,
		SkipBroken: flagSkipBroken,
	}

	return runWithApp(cmd, opts, func(ctx context.Context, a *app, source string) error {
		cc := a.cfg.Crawl
		details := flagDetails || cc.Details

		out, finish, err := crawlOutput(cmd, cc.Output, source, a.log)
		if err != nil {
			return err
		}

		var pm *ui.MPBProgressManager
		if !flagNoProgress && cc.Output != "-" {
			pm = ui.NewProgressManager(cmd.ErrOrStderr())
		}

		start := time.Now()
		stats, runErr := crawl.New(a.eng, out, a.log, pm).Run(ctx, crawl.Options{
			Source:     source,
			From:       flagFrom,
			To:         flagTo,
			Filters:    filters,
			Workers:    cc.Workers,
			Details:    details,
			SkipBroken: cc.SkipBroken,
		})
		pm.Close()

		if err := finish(runErr); err != nil && runErr == nil {
			runErr = err
		}

		w := cmd.ErrOrStderr()
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Crawl Summary:")
		fmt.Fprintln(w, stats.String())
		fmt.Fprintf(w, "Time: %s\n", time.Since(start).Round(time.Second))
		return runErr
	})
}

// crawlOutput opens the export. finish commits it when the crawl succeeded
// and discards it otherwise.
func crawlOutput(cmd *cobra.Command, dir, source string, log *ui.Logger) (io.Writer, func(error) error, error) {
	if dir == "-" {
		return cmd.OutOrStdout(), func(error) error { return nil }, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("cannot create output folder: %w", err)
	}
	for _, p := range util.CleanupTempFiles(dir) {
		log.Debugf("removed leftover %s", p)
	}

	name := fmt.Sprintf("%s-%s.jsonl", source, time.Now().Format("20060102-150405"))
	f, err := util.CreateAtomic(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, err
	}

	finish := func(runErr error) error {
		if runErr != nil {
			f.Abort()
			return nil
		}
		if err := f.Commit(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Exported to:", f.Path())
		return nil
	}
	return f, finish, nil
}
