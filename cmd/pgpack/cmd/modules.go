package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/treeverse/pgpack/pkg/modules"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List modules in install order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		mods, err := modules.LoadRegistry(cfg.Modules.Registry)
		if err != nil {
			return err
		}
		ordered, err := modules.Sort(mods)
		if err != nil {
			return err
		}
		rows := make([][]interface{}, 0, len(ordered))
		for _, m := range ordered {
			rows = append(rows, []interface{}{m.Name, m.Level, strings.Join(m.Depends, ", ")})
		}
		PrintTable("", rows, []interface{}{"Module", "Level", "Depends On"})
		return nil
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(modulesCmd)
}
