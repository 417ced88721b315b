package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/sources"
)

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective config without contacting any upstream",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		reg := sources.Builtin()
		if err := cfg.Validate(reg.IDs()); err != nil {
			return fmt.Errorf("%s:\n%w", used, err)
		}
		// Source definitions must also resolve their header profiles.
		if err := reg.Validate(func(name string) bool {
			_, ok := cfg.HeaderProfiles[name]
			return ok
		}); err != nil {
			return fmt.Errorf("%s: %w", used, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", used)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
