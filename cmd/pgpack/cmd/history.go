package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/treeverse/pgpack/pkg/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the revisions installed in the managed schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := loadConfig()
		s, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		records, err := db.ListMigrations(ctx, s.db.Pool(), cfg.Schema)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			Write("{{ . | yellow }}\n", "Schema "+cfg.Schema+" has no migration history")
			return nil
		}
		rows := make([][]interface{}, 0, len(records))
		for _, r := range records {
			rows = append(rows, []interface{}{r.ID, r.Version, r.Applied.Format(time.RFC3339)})
		}
		PrintTable("", rows, []interface{}{"ID", "Version", "Applied"})
		return nil
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(historyCmd)
}
