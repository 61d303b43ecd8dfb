// Package dependency finds user objects built on the managed schema: tables
// and indexes using its types and operator classes, and views calling its
// functions, aggregates and operators, directly or through other views.
package dependency

import (
	"fmt"
	"slices"
	"strings"
)

type NodeKind string

const (
	KindView      NodeKind = "view"
	KindFunction  NodeKind = "udf"
	KindAggregate NodeKind = "uda"
	KindOperator  NodeKind = "udo"
)

// Node is a vertex of the view dependency graph. Views are identified by
// schema and name, managed objects also carry their OID.
type Node struct {
	Schema string
	Name   string
	OID    string
	Kind   NodeKind
}

func viewNode(schema, name string) Node {
	return Node{Schema: schema, Name: name, Kind: KindView}
}

func (n Node) String() string {
	if n.Kind == KindView {
		return n.Schema + "." + n.Name
	}
	return fmt.Sprintf("%s.%s{oid=%s, %s}", n.Schema, n.Name, n.OID, n.Kind)
}

func compareNodes(a, b Node) int {
	return strings.Compare(a.String(), b.String())
}

// Graph is a depender to dependees adjacency list.
type Graph map[Node][]Node

// Nodes returns the graph vertices in a stable order.
func (g Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, compareNodes)
	return nodes
}

func (g Graph) String() string {
	var b strings.Builder
	for i, n := range g.Nodes() {
		if i > 0 {
			b.WriteByte('\n')
		}
		deps := make([]string, 0, len(g[n]))
		for _, d := range g[n] {
			deps = append(deps, d.String())
		}
		fmt.Fprintf(&b, "%s -> [%s]", n, strings.Join(deps, ", "))
	}
	return b.String()
}

func appendUnique(list []Node, n Node) []Node {
	if slices.Contains(list, n) {
		return list
	}
	return append(list, n)
}
