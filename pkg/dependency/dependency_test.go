package dependency_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/catalog/catalogtest"
	"github.com/treeverse/pgpack/pkg/dependency"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

const (
	matchViewRoutines  = "'pg_proc'::regclass"
	matchViewOperators = "'pg_operator'::regclass"
	matchViewViews     = "'pg_class'::regclass"
	matchTableTypes    = "a.atttypid"
	matchIndexClasses  = "'pg_opclass'::regclass"
)

func inspector(q catalog.Querier) *catalog.Inspector {
	return catalog.NewInspector(q, catalog.Target{Schema: "madlib", Platform: catalog.PlatformPostgres, ServerMajor: 15})
}

func view(schema, name string) dependency.Node {
	return dependency.Node{Schema: schema, Name: name, Kind: dependency.KindView}
}

func TestDetectTables(t *testing.T) {
	ctx := context.Background()
	q := catalogtest.New().Schema("2200").
		On(matchTableTypes,
			catalog.Row{"schema": "public", "relation": "points", "column": "v", "type": "svec"},
			catalog.Row{"schema": "public", "relation": "points", "column": "w", "type": "svec"},
			catalog.Row{"schema": "s1", "relation": "models", "column": "m", "type": "bytea8"}).
		On(matchIndexClasses,
			catalog.Row{"schema": "public", "idxname": "points_v_idx", "opcname": "svec_ops", "opcoid": "501"})

	d, err := dependency.DetectTables(ctx, inspector(q))
	require.NoError(t, err)
	require.True(t, d.HasDependency())
	require.Equal(t, map[string]struct{}{"svec": {}, "bytea8": {}}, d.DependedTypes())
	require.Equal(t, map[string]struct{}{"501": {}}, d.DependedOperatorClassOIDs())
	if diff := deep.Equal(d.Report(), []string{
		"public.points.v -> svec",
		"public.points.w -> svec",
		"s1.models.m -> bytea8",
		"public.points_v_idx -> svec_ops(oid=501)",
	}); diff != nil {
		t.Fatal("Report", diff)
	}
}

func TestDetectTablesNone(t *testing.T) {
	d, err := dependency.DetectTables(context.Background(), inspector(catalogtest.New().Schema("2200")))
	require.NoError(t, err)
	require.False(t, d.HasDependency())
	require.Empty(t, d.DependedTypes())
}

func TestDetectTablesMissingSchema(t *testing.T) {
	_, err := dependency.DetectTables(context.Background(), inspector(catalogtest.New()))
	require.ErrorIs(t, err, packerrors.ErrConfig)
}

// viewsQuerier models: v1 calls madlib.f and uses operator <, v2 reads v1,
// v3 reads v2, and an unrelated pair u2 -> u1.
func viewsQuerier() *catalogtest.Querier {
	return catalogtest.New().Schema("2200").
		On(matchViewRoutines,
			catalog.Row{"schema": "public", "view": "v1", "procname": "f", "procoid": "100", "proisagg": "f"},
			catalog.Row{"schema": "public", "view": "v1", "procname": "agg", "procoid": "101", "proisagg": "t"}).
		On(matchViewOperators,
			catalog.Row{"schema": "public", "view": "v1", "oprname": "<", "oproid": "200"}).
		On(matchViewViews,
			catalog.Row{"depender_schema": "public", "depender": "v2", "dependee_schema": "public", "dependee": "v1"},
			catalog.Row{"depender_schema": "other", "depender": "v3", "dependee_schema": "public", "dependee": "v2"},
			catalog.Row{"depender_schema": "public", "depender": "u2", "dependee_schema": "public", "dependee": "u1"})
}

func TestViewClosureKeepsTransitiveEdges(t *testing.T) {
	d, err := dependency.DetectViews(context.Background(), inspector(viewsQuerier()))
	require.NoError(t, err)
	require.True(t, d.HasDependency())

	g := d.Graph(false)
	require.Equal(t, []dependency.Node{view("public", "v1")}, g[view("public", "v2")])
	require.Equal(t, []dependency.Node{view("public", "v2")}, g[view("other", "v3")])
	require.Empty(t, g[view("public", "v1")])
	require.NotContains(t, g, view("public", "u2"))
	require.NotContains(t, g, view("public", "u1"))
}

func TestViewOrders(t *testing.T) {
	d, err := dependency.DetectViews(context.Background(), inspector(viewsQuerier()))
	require.NoError(t, err)

	create, err := d.CreateOrder()
	require.NoError(t, err)
	require.Equal(t, []dependency.Node{view("public", "v1"), view("public", "v2"), view("other", "v3")}, create)

	drop, err := d.DropOrder()
	require.NoError(t, err)
	require.Equal(t, []dependency.Node{view("other", "v3"), view("public", "v2"), view("public", "v1")}, drop)
}

func TestViewCycle(t *testing.T) {
	q := catalogtest.New().Schema("2200").
		On(matchViewRoutines, catalog.Row{"schema": "public", "view": "a", "procname": "f", "procoid": "100", "proisagg": "f"}).
		On(matchViewViews,
			catalog.Row{"depender_schema": "public", "depender": "b", "dependee_schema": "public", "dependee": "c"},
			catalog.Row{"depender_schema": "public", "depender": "c", "dependee_schema": "public", "dependee": "b"},
			catalog.Row{"depender_schema": "public", "depender": "c", "dependee_schema": "public", "dependee": "a"})
	d, err := dependency.DetectViews(context.Background(), inspector(q))
	require.NoError(t, err)
	_, err = d.CreateOrder()
	require.ErrorIs(t, err, packerrors.ErrConfig)
	require.ErrorContains(t, err, "public.b")
	require.ErrorContains(t, err, "public.c")
}

func TestDependedObjects(t *testing.T) {
	ctx := context.Background()
	q := viewsQuerier().
		On("AS proargtypes FROM pg_proc", catalog.Row{"proargtypes": "0"}).
		On("WHERE oid = $1", catalog.Row{"proname": "f", "rettype": "double precision", "argument": "integer"})
	d, err := dependency.DetectViews(ctx, inspector(q))
	require.NoError(t, err)

	sigs, err := d.DependedFunctionSignatures(ctx, dependency.KindFunction)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"double precision madlib.f(integer)": {}}, sigs)
	require.Equal(t, map[string]struct{}{"200": {}}, d.DependedOperatorOIDs())
	require.Equal(t, []dependency.Node{view("public", "v1")}, d.ViewsUsing("200"))
	require.Empty(t, d.ViewsUsing("999"))

	aggs := d.Routines(dependency.KindAggregate)
	require.Len(t, aggs, 1)
	require.Equal(t, "madlib.agg{oid=101, uda}", aggs[0].String())
}

func TestGraphString(t *testing.T) {
	d, err := dependency.DetectViews(context.Background(), inspector(viewsQuerier()))
	require.NoError(t, err)
	want := "madlib.<{oid=200, udo} -> []\n" +
		"madlib.agg{oid=101, uda} -> []\n" +
		"madlib.f{oid=100, udf} -> []\n" +
		"other.v3 -> [public.v2]\n" +
		"public.v1 -> [madlib.f{oid=100, udf}, madlib.agg{oid=101, uda}, madlib.<{oid=200, udo}]\n" +
		"public.v2 -> [public.v1]"
	require.Equal(t, want, d.GraphString())
}

func TestAggregateFlagFollowsDialect(t *testing.T) {
	q := catalogtest.New().Schema("2200")
	in := catalog.NewInspector(q, catalog.Target{Schema: "madlib", Platform: catalog.PlatformGreenplum, ServerMajor: 6})
	_, err := dependency.DetectViews(context.Background(), in)
	require.NoError(t, err)
	var found bool
	for _, c := range q.Calls() {
		if containsAll(c.Query, matchViewRoutines, "p.proisagg AS proisagg") {
			found = true
		}
	}
	require.True(t, found)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
