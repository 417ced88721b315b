package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// pickMarker as --source asks for the source interactively.
const pickMarker = "?"

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagConfigPath   string
	flagSource       string
	flagJSON         bool
)

var rootCmd = &cobra.Command{
	Use:           "showscrape",
	Short:         "Extract and normalize drama and manga listings from upstream sites",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config files and use only defaults, environment and flags")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "load this config file instead of the active one")
	rootCmd.PersistentFlags().StringVarP(&flagSource, "source", "s", "", `source id (default from config; "?" to pick)`)
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON instead of tables")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
