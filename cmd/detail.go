package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/episodes"
)

var (
	flagEpisode string
	flagRange   string
	flagList    string
)

var detailCmd = &cobra.Command{
	Use:   "detail <id>",
	Short: "Show the series record of one title",
	Long: `Show the series record of one title. Episode or chapter ids are
accepted and mapped to their series.

Examples:
  showscrape detail show-1-episode-3
  showscrape detail -s manga glass-crown --range 1-10
  showscrape detail show-1 --episode 28.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			rec, err := a.eng.Detail(ctx, source, args[0])
			if err != nil {
				return err
			}

			if flagEpisode != "" || flagRange != "" || flagList != "" {
				sel, err := episodes.Filter(rec.Episodes, flagEpisode, flagRange, flagList)
				if err != nil {
					return fmt.Errorf("--range: %w", err)
				}
				if len(sel) == 0 {
					return fmt.Errorf("no episodes selected")
				}
				rec.Episodes = sel
			}

			if flagJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			renderDetail(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

func init() {
	detailCmd.Flags().StringVar(&flagEpisode, "episode", "", "single episode by label or index (e.g. 5 or 28.5)")
	detailCmd.Flags().StringVar(&flagRange, "range", "", "episodes by index range (e.g. 5-12)")
	detailCmd.Flags().StringVar(&flagList, "list", "", "episodes by index list (e.g. 1,3,5)")

	rootCmd.AddCommand(detailCmd)
}
