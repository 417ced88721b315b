package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/showscrape/internal/config"
)

var flagShowYAML bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the showscrape config files",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective config",
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, used, err := loadConfig(config.Options{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(out, cfg)
	}
	fmt.Fprintf(out, "Loaded config from:\n  %s\n\n", used)
	if flagShowYAML {
		return yaml.NewEncoder(out).Encode(cfg)
	}
	cfg.Print(out)
	return nil
}

func init() {
	configShowCmd.Flags().BoolVar(&flagShowYAML, "yaml", false, "print the full config as YAML")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
