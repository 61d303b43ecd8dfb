package dependency

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/modules"
	"github.com/treeverse/pgpack/pkg/sqltext"
)

const (
	viewRoutinesQuery = `
		SELECT view, nsp.nspname AS schema, procname, procoid, proisagg
		FROM pg_namespace nsp, (
			SELECT
				c.relname AS view,
				c.relnamespace AS namespace,
				p.proname AS procname,
				p.oid AS procoid,
				%s AS proisagg
			FROM pg_class AS c, pg_rewrite AS rw, pg_depend AS d, pg_proc AS p
			WHERE c.oid = rw.ev_class
				AND rw.oid = d.objid
				AND d.classid = 'pg_rewrite'::regclass
				AND d.refclassid = 'pg_proc'::regclass
				AND d.refobjid = p.oid
				AND p.pronamespace = $1
		) t1
		WHERE t1.namespace = nsp.oid
		ORDER BY 2, 1, 4`

	viewOperatorsQuery = `
		SELECT view, nsp.nspname AS schema, oprname, oproid
		FROM pg_namespace nsp, (
			SELECT
				c.relname AS view,
				c.relnamespace AS namespace,
				p.oprname AS oprname,
				p.oid AS oproid
			FROM pg_class AS c, pg_rewrite AS rw, pg_depend AS d, pg_operator AS p
			WHERE c.oid = rw.ev_class
				AND rw.oid = d.objid
				AND d.classid = 'pg_rewrite'::regclass
				AND d.refclassid = 'pg_operator'::regclass
				AND d.refobjid = p.oid
				AND p.oprnamespace = $1
		) t1
		WHERE t1.namespace = nsp.oid
		ORDER BY 2, 1, 4`

	viewViewsQuery = `
		SELECT nsp1.nspname AS depender_schema, depender, nsp2.nspname AS dependee_schema, dependee
		FROM pg_namespace AS nsp1, pg_namespace AS nsp2, (
			SELECT
				c.relname AS depender,
				c.relnamespace AS depender_nsp,
				c1.relname AS dependee,
				c1.relnamespace AS dependee_nsp
			FROM pg_rewrite AS rw, pg_depend AS d, pg_class AS c, pg_class AS c1
			WHERE rw.ev_class = c.oid
				AND rw.oid = d.objid
				AND d.classid = 'pg_rewrite'::regclass
				AND d.refclassid = 'pg_class'::regclass
				AND d.refobjid = c1.oid
				AND c1.relkind = 'v'
				AND c.oid <> c1.oid
			GROUP BY depender, depender_nsp, dependee, dependee_nsp
		) t1
		WHERE t1.depender_nsp = nsp1.oid AND t1.dependee_nsp = nsp2.oid
		ORDER BY 1, 2, 3, 4`
)

// ViewDetector holds the views depending on managed routines and operators,
// and the view-on-view edges leading to them.
type ViewDetector struct {
	in        *catalog.Inspector
	routines  Graph
	operators Graph
	views     Graph
}

// DetectViews reads direct and recursive view dependencies from the catalog
// and keeps only view-on-view edges that lead to a managed object.
func DetectViews(ctx context.Context, in *catalog.Inspector) (*ViewDetector, error) {
	oid, err := in.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	q := in.Querier()
	d := &ViewDetector{
		in:        in,
		routines:  make(Graph),
		operators: make(Graph),
		views:     make(Graph),
	}
	schema := in.Target().Schema

	rows, err := q.Query(ctx, fmt.Sprintf(viewRoutinesQuery, in.Target().AggregatePredicate("p")), oid)
	if err != nil {
		return nil, fmt.Errorf("detect view routine dependencies: %w", err)
	}
	for _, r := range rows {
		kind := KindFunction
		if r["proisagg"] == "t" {
			kind = KindAggregate
		}
		v := viewNode(r["schema"], r["view"])
		d.routines[v] = appendUnique(d.routines[v], Node{Schema: schema, Name: r["procname"], OID: r["procoid"], Kind: kind})
	}

	rows, err = q.Query(ctx, viewOperatorsQuery, oid)
	if err != nil {
		return nil, fmt.Errorf("detect view operator dependencies: %w", err)
	}
	for _, r := range rows {
		v := viewNode(r["schema"], r["view"])
		d.operators[v] = appendUnique(d.operators[v], Node{Schema: schema, Name: r["oprname"], OID: r["oproid"], Kind: KindOperator})
	}

	rows, err = q.Query(ctx, viewViewsQuery)
	if err != nil {
		return nil, fmt.Errorf("detect view on view dependencies: %w", err)
	}
	for _, r := range rows {
		der := viewNode(r["depender_schema"], r["depender"])
		d.views[der] = appendUnique(d.views[der], viewNode(r["dependee_schema"], r["dependee"]))
	}
	d.views = filterViews(d.views, d.directViews())
	return d, nil
}

func (d *ViewDetector) directViews() map[Node]struct{} {
	direct := make(map[Node]struct{}, len(d.routines)+len(d.operators))
	for v := range d.routines {
		direct[v] = struct{}{}
	}
	for v := range d.operators {
		direct[v] = struct{}{}
	}
	return direct
}

// filterViews keeps the edges whose dependee is a view reaching a managed
// object. Starting from the direct views, it adds every view with an edge into
// the set until nothing changes.
func filterViews(views Graph, included map[Node]struct{}) Graph {
	for {
		var added []Node
		for der, dees := range views {
			if _, ok := included[der]; ok {
				continue
			}
			for _, dee := range dees {
				if _, ok := included[dee]; ok {
					added = append(added, der)
					break
				}
			}
		}
		if len(added) == 0 {
			break
		}
		for _, v := range added {
			included[v] = struct{}{}
		}
	}

	filtered := make(Graph)
	for der, dees := range views {
		var kept []Node
		for _, dee := range dees {
			if _, ok := included[dee]; ok {
				kept = append(kept, dee)
			}
		}
		if len(kept) > 0 {
			filtered[der] = kept
		}
	}
	return filtered
}

func (d *ViewDetector) HasDependency() bool {
	return len(d.routines) > 0 || len(d.operators) > 0
}

// Graph combines the filtered view-on-view edges with the views that depend
// directly on managed objects. With objects set, those objects become leaf
// nodes of the graph.
func (d *ViewDetector) Graph(objects bool) Graph {
	g := make(Graph, len(d.views))
	for der, dees := range d.views {
		g[der] = append([]Node(nil), dees...)
	}
	for _, direct := range []Graph{d.routines, d.operators} {
		for v, objs := range direct {
			if _, ok := g[v]; !ok {
				g[v] = []Node{}
			}
			if objects {
				g[v] = append(g[v], objs...)
			}
		}
	}
	for _, dees := range adjacency(g) {
		for _, dee := range dees {
			if _, ok := g[dee]; !ok {
				g[dee] = []Node{}
			}
		}
	}
	return g
}

// adjacency snapshots the lists so the graph can grow while iterating.
func adjacency(g Graph) [][]Node {
	out := make([][]Node, 0, len(g))
	for _, dees := range g {
		out = append(out, dees)
	}
	return out
}

// CreateOrder returns the views in an order where every view comes after the
// views it is built on.
func (d *ViewDetector) CreateOrder() ([]Node, error) {
	g := d.Graph(false)
	deps := make(map[string][]string, len(g))
	byName := make(map[string]Node, len(g))
	for der, dees := range g {
		byName[der.String()] = der
		names := make([]string, 0, len(dees))
		for _, dee := range dees {
			names = append(names, dee.String())
		}
		deps[der.String()] = names
	}
	levels, err := modules.TopSort(deps)
	if err != nil {
		return nil, fmt.Errorf("view dependencies: %w", err)
	}
	order := make([]Node, 0, len(byName))
	for name := range byName {
		order = append(order, byName[name])
	}
	slices.SortFunc(order, func(a, b Node) int {
		if c := cmp.Compare(levels[a.String()], levels[b.String()]); c != 0 {
			return c
		}
		return compareNodes(a, b)
	})
	return order, nil
}

// DropOrder is the reverse of CreateOrder.
func (d *ViewDetector) DropOrder() ([]Node, error) {
	order, err := d.CreateOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// DependedRoutine is a managed routine that views call.
type DependedRoutine struct {
	Routine   Node
	Signature string
	Views     []Node
}

// DependedRoutines returns the managed routines of the given kind that views
// call, with their comparable signatures.
func (d *ViewDetector) DependedRoutines(ctx context.Context, kind NodeKind) ([]DependedRoutine, error) {
	schema := d.in.Target().Schema
	var out []DependedRoutine
	for _, r := range d.Routines(kind) {
		info, err := d.in.FunctionInfo(ctx, r.OID)
		if err != nil {
			return nil, err
		}
		out = append(out, DependedRoutine{
			Routine:   r,
			Signature: sqltext.Signature(schema, r.Name, info.ReturnType, info.Arguments),
			Views:     d.ViewsUsing(r.OID),
		})
	}
	return out, nil
}

// DependedFunctionSignatures returns the comparable signatures of the managed
// routines of the given kind that views call.
func (d *ViewDetector) DependedFunctionSignatures(ctx context.Context, kind NodeKind) (map[string]struct{}, error) {
	routines, err := d.DependedRoutines(ctx, kind)
	if err != nil {
		return nil, err
	}
	signatures := make(map[string]struct{}, len(routines))
	for _, r := range routines {
		signatures[r.Signature] = struct{}{}
	}
	return signatures, nil
}

// ViewsUsing returns the views referencing the managed routine or operator
// with the given OID directly.
func (d *ViewDetector) ViewsUsing(oid string) []Node {
	var views []Node
	for _, direct := range []Graph{d.routines, d.operators} {
		for v, objs := range direct {
			if slices.ContainsFunc(objs, func(n Node) bool { return n.OID == oid }) {
				views = appendUnique(views, v)
			}
		}
	}
	slices.SortFunc(views, compareNodes)
	return views
}

// DependedOperatorOIDs returns the OIDs of managed operators that views use.
func (d *ViewDetector) DependedOperatorOIDs() map[string]struct{} {
	oids := make(map[string]struct{})
	for _, ops := range d.operators {
		for _, op := range ops {
			oids[op.OID] = struct{}{}
		}
	}
	return oids
}

// Routines returns the managed routines of the given kind that views call,
// ordered by name.
func (d *ViewDetector) Routines(kind NodeKind) []Node {
	var out []Node
	for _, objs := range d.routines {
		for _, r := range objs {
			if r.Kind == kind {
				out = appendUnique(out, r)
			}
		}
	}
	slices.SortFunc(out, compareNodes)
	return out
}

// GraphString renders the dependency graph including managed objects.
func (d *ViewDetector) GraphString() string {
	return d.Graph(true).String()
}
