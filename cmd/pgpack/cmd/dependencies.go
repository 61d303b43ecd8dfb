package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/treeverse/pgpack/pkg/dependency"
)

var dependenciesCmd = &cobra.Command{
	Use:     "dependencies",
	Aliases: []string{"deps"},
	Short:   "List user tables, indexes and views that depend on the managed schema",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := loadConfig()
		s, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		tables, err := dependency.DetectTables(ctx, s.inspector)
		if err != nil {
			return err
		}
		var rows [][]interface{}
		for _, c := range tables.Columns {
			rows = append(rows, []interface{}{"column", c.Schema + "." + c.Table + "." + c.Column, c.Type})
		}
		for _, i := range tables.Indexes {
			rows = append(rows, []interface{}{"index", i.Schema + "." + i.Index, i.OperatorClass})
		}
		PrintTable("Table dependencies", rows, []interface{}{"Kind", "User Object", "Managed Object"})

		views, err := dependency.DetectViews(ctx, s.inspector)
		if err != nil {
			return err
		}
		if !views.HasDependency() {
			Write("{{ \"No view depends on the managed schema\" | green }}\n", nil)
			return nil
		}
		var edges [][]interface{}
		g := views.Graph(true)
		for _, n := range g.Nodes() {
			for _, dep := range g[n] {
				edges = append(edges, []interface{}{n.String(), dep.String()})
			}
		}
		PrintTable("View dependencies", edges, []interface{}{"View", "Depends On"})

		createOrder, err := views.CreateOrder()
		if err != nil {
			return err
		}
		dropOrder, err := views.DropOrder()
		if err != nil {
			return err
		}
		PrintTable("View order", [][]interface{}{
			{"create", joinNodes(createOrder)},
			{"drop", joinNodes(dropOrder)},
		}, []interface{}{"Action", "Views"})
		return nil
	},
}

func joinNodes(nodes []dependency.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.String()
	}
	return strings.Join(names, ", ")
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(dependenciesCmd)
}
