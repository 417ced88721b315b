package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/query"
	"github.com/brogergvhs/showscrape/internal/util"
)

var (
	flagPage    int
	flagToPage  int
	flagCountry string
	flagGenre   string
	flagYear    string
	flagSort    string
)

// runWithApp builds the app for one command and tears it down afterwards.
// Ctrl-C cancels the in-flight request.
func runWithApp(cmd *cobra.Command, opts config.Options, fn func(ctx context.Context, a *app, source string) error) error {
	ctx, cancel := util.InterruptContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	source, err := a.sourceID()
	if err != nil {
		return err
	}
	return fn(ctx, a, source)
}

// facetFilters returns the filters whose flags were given, empty values
// included.
func facetFilters(cmd *cobra.Command) map[query.Filter]string {
	out := map[query.Filter]string{}
	set := func(flag string, f query.Filter, v string) {
		if cmd.Flags().Changed(flag) {
			out[f] = v
		}
	}
	set("country", query.FilterCountry, flagCountry)
	set("genre", query.FilterGenre, flagGenre)
	set("year", query.FilterYear, flagYear)
	set("sort", query.FilterSort, flagSort)
	return out
}

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Show a listing page, optionally filtered",
	Long: `Show one listing page of the source, or a range of pages with --to.

Examples:
  showscrape listing --page 2
  showscrape listing -s manga --genre action --to 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters := facetFilters(cmd)
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			out := cmd.OutOrStdout()
			if flagToPage > 0 {
				set, err := a.eng.ListingPages(ctx, source, flagPage, flagToPage, filters)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(out, set)
				}
				renderPageSet(out, set)
				return nil
			}

			res, err := a.eng.Listing(ctx, source, flagPage, filters)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(out, res)
			}
			renderListing(out, res)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search a source by title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			res, err := a.eng.Search(ctx, source, text, flagPage)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderListing(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show every home feed of a source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			home, err := a.eng.Home(ctx, source)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), home)
			}
			renderHome(cmd.OutOrStdout(), home)
			return nil
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the genres and countries a source can filter by",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			cat, err := a.eng.Catalog(ctx, source)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), cat)
			}
			renderCatalog(cmd.OutOrStdout(), cat)
			return nil
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <text>",
	Short: "Show the type-ahead suggestions of a source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return runWithApp(cmd, config.Options{}, func(ctx context.Context, a *app, source string) error {
			s, err := a.eng.Suggest(ctx, source, text)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			renderItems(cmd.OutOrStdout(), s.Items)
			return nil
		})
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the known sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, config.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		infos := a.eng.Sources()
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), infos)
		}
		if len(infos) == 0 {
			return errors.New("no sources registered")
		}
		renderSources(cmd.OutOrStdout(), infos)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{listingCmd, searchCmd} {
		c.Flags().IntVar(&flagPage, "page", 1, "page number (1-based)")
	}
	listingCmd.Flags().IntVar(&flagToPage, "to", 0, "walk pages --page..--to and merge them")
	listingCmd.Flags().StringVar(&flagCountry, "country", "", "country facet")
	listingCmd.Flags().StringVar(&flagGenre, "genre", "", "genre facet")
	listingCmd.Flags().StringVar(&flagYear, "year", "", "release year facet")
	listingCmd.Flags().StringVar(&flagSort, "sort", "", "sort order")

	rootCmd.AddCommand(listingCmd, searchCmd, homeCmd, catalogCmd, suggestCmd, sourcesCmd)
}
