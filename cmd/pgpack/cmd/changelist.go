package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/version"
)

var changelistCmd = &cobra.Command{
	Use:   "changelist",
	Short: "Show the objects that change between two revisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		from, err := revisionFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := revisionFlag(cmd, "to")
		if err != nil {
			return err
		}
		changes, err := newResolver(cfg).Resolve(cmd.Context(), from, to)
		if err != nil {
			return err
		}

		path := make([][]interface{}, 0, len(changes.Path()))
		for _, ref := range changes.Path() {
			path = append(path, []interface{}{ref.Name, ref.From.String(), ref.To.String()})
		}
		PrintTable(fmt.Sprintf("Changelists %s -> %s", from, to), path, []interface{}{"File", "From", "To"})

		var objects [][]interface{}
		for _, m := range changes.NewModules() {
			objects = append(objects, []interface{}{"new module", m})
		}
		for _, kind := range changelist.Kinds {
			for _, obj := range changes.Objects(kind) {
				objects = append(objects, []interface{}{kind.String(), obj.Describe(changes.Schema())})
			}
		}
		PrintTable("Changed objects", objects, []interface{}{"Kind", "Object"})

		drops, err := changes.DropStatements(cfg.Upgrade.CascadeTypes)
		if err != nil {
			return err
		}
		rows := make([][]interface{}, 0, len(drops))
		for _, d := range drops {
			rows = append(rows, []interface{}{d})
		}
		PrintTable("Drop statements", rows, []interface{}{"Statement"})
		return nil
	},
}

func revisionFlag(cmd *cobra.Command, name string) (version.Revision, error) {
	s, _ := cmd.Flags().GetString(name)
	rev, err := version.ParseRevision(s)
	if err != nil {
		return version.Revision{}, fmt.Errorf("--%s: %w", name, err)
	}
	return rev, nil
}

//nolint:gochecknoinits
func init() {
	changelistCmd.Flags().String("from", "", "installed revision")
	changelistCmd.Flags().String("to", "", "target revision")
	_ = changelistCmd.MarkFlagRequired("from")
	_ = changelistCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(changelistCmd)
}
