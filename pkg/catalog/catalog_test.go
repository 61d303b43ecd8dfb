package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/catalog/catalogtest"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

func TestParsePlatform(t *testing.T) {
	cases := []struct {
		in      string
		want    catalog.Platform
		wantErr bool
	}{
		{"", catalog.PlatformAuto, false},
		{"Postgres", catalog.PlatformPostgres, false},
		{" greenplum ", catalog.PlatformGreenplum, false},
		{"hawq", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := catalog.ParsePlatform(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, packerrors.ErrConfig)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDetectTarget(t *testing.T) {
	cases := []struct {
		name     string
		banner   string
		num      string
		platform catalog.Platform
		want     catalog.Target
	}{
		{
			name:     "postgres 15",
			banner:   "PostgreSQL 15.4 on x86_64-pc-linux-gnu",
			num:      "150004",
			platform: catalog.PlatformAuto,
			want:     catalog.Target{Schema: "madlib", Platform: catalog.PlatformPostgres, ServerMajor: 15},
		},
		{
			name:     "postgres 9.6",
			banner:   "PostgreSQL 9.6.24",
			num:      "90624",
			platform: catalog.PlatformAuto,
			want:     catalog.Target{Schema: "madlib", Platform: catalog.PlatformPostgres, ServerMajor: 9},
		},
		{
			name:     "greenplum 6",
			banner:   "PostgreSQL 9.4.26 (Greenplum Database 6.20.0 build commit:abc)",
			num:      "90426",
			platform: catalog.PlatformAuto,
			want:     catalog.Target{Schema: "madlib", Platform: catalog.PlatformGreenplum, ServerMajor: 6},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := catalogtest.New().On("version()", catalog.Row{"banner": tc.banner, "num": tc.num})
			got, err := catalog.DetectTarget(context.Background(), q, "MADlib", tc.platform)
			require.NoError(t, err)
			if diff := deep.Equal(got, tc.want); diff != nil {
				t.Fatal("DetectTarget", diff)
			}
		})
	}
}

func TestDetectTargetGreenplumWithoutBanner(t *testing.T) {
	q := catalogtest.New().On("version()", catalog.Row{"banner": "PostgreSQL 12.1", "num": "120001"})
	_, err := catalog.DetectTarget(context.Background(), q, "madlib", catalog.PlatformGreenplum)
	require.ErrorIs(t, err, packerrors.ErrCatalogQuery)
}

func TestTargetDialect(t *testing.T) {
	cases := []struct {
		target    catalog.Target
		aggregate string
		method    string
	}{
		{catalog.Target{Platform: catalog.PlatformPostgres, ServerMajor: 10}, "p.proisagg", "opcmethod"},
		{catalog.Target{Platform: catalog.PlatformPostgres, ServerMajor: 11}, "p.prokind = 'a'", "opcmethod"},
		{catalog.Target{Platform: catalog.PlatformGreenplum, ServerMajor: 4}, "p.proisagg", "opcamid"},
		{catalog.Target{Platform: catalog.PlatformGreenplum, ServerMajor: 6}, "p.proisagg", "opcmethod"},
		{catalog.Target{Platform: catalog.PlatformGreenplum, ServerMajor: 7}, "p.prokind = 'a'", "opcmethod"},
	}
	for _, tc := range cases {
		t.Run(tc.target.String(), func(t *testing.T) {
			require.Equal(t, tc.aggregate, tc.target.AggregatePredicate("p"))
			require.Equal(t, tc.method, tc.target.OperatorClassMethodColumn())
		})
	}
}

func newInspector(q catalog.Querier) *catalog.Inspector {
	return catalog.NewInspector(q, catalog.Target{Schema: "madlib", Platform: catalog.PlatformPostgres, ServerMajor: 15})
}

func TestSchemaOIDCached(t *testing.T) {
	ctx := context.Background()
	q := catalogtest.New().Schema("2200")
	in := newInspector(q)
	for range 3 {
		oid, err := in.SchemaOID(ctx)
		require.NoError(t, err)
		require.Equal(t, "2200", oid)
	}
	require.Len(t, q.Calls(), 1)
}

func TestSchemaNotFound(t *testing.T) {
	_, err := newInspector(catalogtest.New()).ExistingTypes(context.Background())
	require.ErrorIs(t, err, catalog.ErrSchemaNotFound)
	require.ErrorIs(t, err, packerrors.ErrConfig)
}

func TestInstalledRevision(t *testing.T) {
	ctx := context.Background()

	t.Run("not installed", func(t *testing.T) {
		q := catalogtest.New().On("to_regclass", catalog.Row{"present": "f"})
		rev, err := newInspector(q).InstalledRevision(ctx)
		require.NoError(t, err)
		require.True(t, rev.IsZero())
	})

	t.Run("latest", func(t *testing.T) {
		q := catalogtest.New().
			On("to_regclass", catalog.Row{"present": "t"}).
			On(`FROM "madlib"."migrationhistory"`, catalog.Row{"version": "1.10"})
		rev, err := newInspector(q).InstalledRevision(ctx)
		require.NoError(t, err)
		require.Equal(t, "1.10", rev.String())
	})

	t.Run("garbage", func(t *testing.T) {
		q := catalogtest.New().
			On("to_regclass", catalog.Row{"present": "t"}).
			On("migrationhistory", catalog.Row{"version": "not a version"})
		_, err := newInspector(q).InstalledRevision(ctx)
		require.ErrorIs(t, err, packerrors.ErrCatalogQuery)
	})
}

func TestExistingObjects(t *testing.T) {
	ctx := context.Background()
	q := catalogtest.New().Schema("2200").
		On("FROM pg_type", catalog.Row{"typname": "svec"}, catalog.Row{"typname": "_svec"}).
		On("FROM pg_operator",
			catalog.Row{"oid": "10", "oprname": "<", "oprleft": "madlib.svec", "oprright": "madlib.svec"},
			catalog.Row{"oid": "11", "oprname": "-", "oprleft": "-", "oprright": "madlib.svec"}).
		On("FROM pg_opclass", catalog.Row{"oid": "20", "opcname": "svec_ops", "index": "btree"}).
		On("GROUP BY procoid", catalog.Row{"proname": "avg", "rettype": "double precision", "argument": "madlib.svec"})
	in := newInspector(q)

	types, err := in.ExistingTypes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"svec", "_svec"}, types)

	ops, err := in.ExistingOperators(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.Operator{
		{OID: "10", Name: "<", LeftArg: "madlib.svec", RightArg: "madlib.svec"},
		{OID: "11", Name: "-", LeftArg: "-", RightArg: "madlib.svec"},
	}, ops)

	classes, err := in.ExistingOperatorClasses(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.OperatorClass{{OID: "20", Name: "svec_ops", IndexMethod: "btree"}}, classes)

	aggs, err := in.ExistingAggregates(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.Routine{{Name: "avg", ReturnType: "double precision", Arguments: "madlib.svec"}}, aggs)

	for _, c := range q.Calls()[1:] {
		require.Equal(t, []any{"2200"}, c.Args, c.Query)
	}
}

func TestFunctionInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("no arguments", func(t *testing.T) {
		q := catalogtest.New().
			On("AS proargtypes FROM pg_proc", catalog.Row{"proargtypes": "-1"}).
			On("max(proname)", catalog.Row{"proname": "version", "rettype": "text", "argument": ""})
		info, err := newInspector(q).FunctionInfo(ctx, "42")
		require.NoError(t, err)
		require.Equal(t, catalog.Routine{Name: "version", ReturnType: "text"}, info)
		require.Contains(t, q.Calls()[1].Query, "''::varchar AS argtype")
	})

	t.Run("arguments", func(t *testing.T) {
		q := catalogtest.New().
			On("AS proargtypes FROM pg_proc", catalog.Row{"proargtypes": "1"}).
			On("max(proname)", catalog.Row{"proname": "svec_plus", "rettype": "madlib.svec", "argument": "madlib.svec, madlib.svec"})
		info, err := newInspector(q).FunctionInfo(ctx, "43")
		require.NoError(t, err)
		require.Equal(t, "madlib.svec, madlib.svec", info.Arguments)
		require.Contains(t, q.Calls()[1].Query, "generate_series")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := newInspector(catalogtest.New()).FunctionInfo(ctx, "44")
		require.ErrorIs(t, err, packerrors.ErrCatalogQuery)
	})
}

func TestQueryErrorSurfaced(t *testing.T) {
	errBoom := errors.New("connection reset")
	q := catalogtest.New().Fail("pg_namespace", errBoom)
	_, err := newInspector(q).SchemaOID(context.Background())
	require.ErrorIs(t, err, errBoom)
}
