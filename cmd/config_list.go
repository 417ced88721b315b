package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/config"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			return printJSON(out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No configs yet. Run `showscrape config init`.")
			return nil
		}

		t := newTable(out)
		t.AppendHeader(table.Row{"Label", "Path", "Active"})
		for _, c := range list {
			active := ""
			if c.Active {
				active = "yes"
			}
			t.AppendRow(table.Row{c.Label, c.Path, active})
		}
		t.Render()
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
