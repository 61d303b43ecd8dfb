package changelist_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/packerrors"
	"github.com/treeverse/pgpack/pkg/version"
)

const changelist19To110 = `
new module:
    knn:
udt:
    kmeans_result:
udf:
    - kmeans:
        rettype: schema_madlib.kmeans_result
        argument: text, text, integer
    - Array_Add:
        rettype: anyarray
        argument: anyarray, anyarray
uda:
    - avg:
        rettype: double precision
        argument: double precision[]
udc:
    bytea8_to_text:
        sourcetype: schema_madlib.bytea8
        targettype: text
udo:
    - '<':
        leftarg: schema_madlib.svec
        rightarg: schema_madlib.svec
udoc:
    - svec_ops:
        index: btree
`

const changelist110To112 = `
new module:
    sssp:
udt:
    - kmeans_state
udf:
    kmeans:
        - rettype: schema_madlib.kmeans_result
          argument: TEXT, text, integer, DOUBLE PRECISION
uda:
`

func rev(s string) version.Revision {
	return version.MustParseRevision(s)
}

func newResolver(files map[string]string) *changelist.Resolver {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return changelist.NewResolver(changelist.NewStore(fsys), "madlib")
}

func TestResolveMergesPath(t *testing.T) {
	r := newResolver(map[string]string{
		"changelist_1.9_1.10.yaml":  changelist19To110,
		"changelist_1.10_1.12.yaml": changelist110To112,
		"changelist_1.12_1.13.yaml": "",
		"changelist_1.8_1.9.yaml":   "",
		"README.md":                 "not a changelist",
		"changelist.yaml":           "",
	})
	cs, err := r.Resolve(context.Background(), rev("1.9"), rev("1.12"))
	require.NoError(t, err)

	var path []string
	for _, ref := range cs.Path() {
		path = append(path, ref.Name)
	}
	require.Equal(t, []string{"changelist_1.9_1.10.yaml", "changelist_1.10_1.12.yaml"}, path)
	require.Equal(t, []string{"knn", "sssp"}, cs.NewModules())
	require.True(t, cs.IsNewModule("SSSP"))
	require.False(t, cs.IsNewModule("svec"))
	require.Equal(t, []changelist.Type{{Name: "kmeans_result"}, {Name: "kmeans_state"}}, cs.Types())

	expectedFunctions := []changelist.Function{
		{Name: "kmeans", ReturnType: "madlib.kmeans_result", Arguments: "text, text, integer"},
		{Name: "array_add", ReturnType: "anyarray", Arguments: "anyarray, anyarray"},
		{Name: "kmeans", ReturnType: "madlib.kmeans_result", Arguments: "text, text, integer, double precision"},
	}
	if diff := deep.Equal(cs.Functions(), expectedFunctions); diff != nil {
		t.Fatal("merged functions:", diff)
	}
	require.Equal(t, map[string]struct{}{
		"kmeans_result madlib.kmeans(text, text, integer)":                   {},
		"kmeans_result madlib.kmeans(text, text, integer, double precision)": {},
		"anyarray madlib.array_add(anyarray, anyarray)":                      {},
	}, cs.FunctionSignatures())
	require.Equal(t, map[string]struct{}{
		"double precision madlib.avg(double precision[])": {},
	}, cs.AggregateSignatures())

	require.True(t, cs.HasType("KMEANS_STATE"))
	require.False(t, cs.HasType("svec"))
	require.True(t, cs.HasCast("madlib.bytea8", "text"))
	require.True(t, cs.HasCast("bytea8", "pg_catalog.text"))
	require.False(t, cs.HasCast("text", "madlib.bytea8"))
	require.True(t, cs.HasOperator("<", "svec", "madlib.svec"))
	require.True(t, cs.HasOperatorClass("svec_ops", "btree"))
	require.False(t, cs.HasOperatorClass("svec_ops", "hash"))
}

func TestResolveSetReturningFunction(t *testing.T) {
	r := newResolver(map[string]string{"changelist_1.9_1.10.yaml": `
udf:
    lin:
        rettype: setof schema_madlib.lin_result
        argument: text
`})
	cs, err := r.Resolve(context.Background(), rev("1.9"), rev("1.10"))
	require.NoError(t, err)
	// pg_proc reports the element type of a set returning function
	require.Equal(t, map[string]struct{}{
		"lin_result madlib.lin(text)": {},
	}, cs.FunctionSignatures())
}

func TestResolveBrokenChain(t *testing.T) {
	r := newResolver(map[string]string{
		"changelist_1.9_1.10.yaml":  "",
		"changelist_1.10_1.11.yaml": "",
		"changelist_1.12_1.13.yaml": "",
	})
	_, err := r.Resolve(context.Background(), rev("1.9"), rev("1.13"))
	require.ErrorIs(t, err, packerrors.ErrUpgradePath)
	var unpaired *changelist.UnpairedRevisionsError
	require.True(t, errors.As(err, &unpaired))
	require.Len(t, unpaired.Unpaired, 2)
	require.Equal(t, "1.11", unpaired.Unpaired[0].String())
	require.Equal(t, "1.12", unpaired.Unpaired[1].String())
	require.Contains(t, err.Error(), "1.11, 1.12")
}

func TestResolveDuplicateInterval(t *testing.T) {
	r := newResolver(map[string]string{
		"changelist_1.9_1.10.yaml": "",
		"changelist_1.9_1.10.yml":  "",
	})
	_, err := r.Resolve(context.Background(), rev("1.9"), rev("1.10"))
	var unpaired *changelist.UnpairedRevisionsError
	require.True(t, errors.As(err, &unpaired))
}

func TestResolveSameAndOlderRevision(t *testing.T) {
	r := newResolver(map[string]string{"changelist_1.9_1.10.yaml": changelist19To110})

	cs, err := r.Resolve(context.Background(), rev("1.10"), rev("1.10.0"))
	require.NoError(t, err)
	require.True(t, cs.IsEmpty())

	_, err = r.Resolve(context.Background(), rev("1.10"), rev("1.9"))
	require.ErrorIs(t, err, changelist.ErrDowngrade)
}

func TestResolveMalformed(t *testing.T) {
	cases := []struct {
		Name  string
		Files map[string]string
		Err   error
	}{
		{
			Name:  "function_without_rettype",
			Files: map[string]string{"changelist_1.9_1.10.yaml": "udf:\n  - f:\n      argument: int\n"},
			Err:   changelist.ErrMalformedDocument,
		},
		{
			Name:  "cast_without_target",
			Files: map[string]string{"changelist_1.9_1.10.yaml": "udc:\n  c:\n    sourcetype: int\n"},
			Err:   changelist.ErrMalformedDocument,
		},
		{
			Name:  "bad_section",
			Files: map[string]string{"changelist_1.9_1.10.yaml": "udt: 3\n"},
			Err:   changelist.ErrMalformedDocument,
		},
		{
			Name:  "bad_file_name",
			Files: map[string]string{"changelist_x_1.10.yaml": ""},
			Err:   changelist.ErrInvalidFileName,
		},
	}
	for _, tt := range cases {
		t.Run(tt.Name, func(t *testing.T) {
			_, err := newResolver(tt.Files).Resolve(context.Background(), rev("1.9"), rev("1.10"))
			require.ErrorIs(t, err, tt.Err)
			require.ErrorIs(t, err, packerrors.ErrConfig)
		})
	}
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		Name string
		OK   bool
		Err  bool
		From string
		To   string
	}{
		{Name: "changelist_1.9_1.10.yaml", OK: true, From: "1.9", To: "1.10"},
		{Name: "changelist_1.10_2.0.yml", OK: true, From: "1.10", To: "2.0"},
		{Name: "changelist_1.10_1.9.yaml", OK: true, Err: true},
		{Name: "changelist_1.9_1.10.txt"},
		{Name: "changes_1.9_1.10.yaml"},
		{Name: "changelist_1.9_1.10_extra.yaml"},
	}
	for _, tt := range cases {
		t.Run(tt.Name, func(t *testing.T) {
			ref, ok, err := changelist.ParseRef(tt.Name)
			require.Equal(t, tt.OK, ok)
			if tt.Err {
				require.ErrorIs(t, err, changelist.ErrInvalidFileName)
				return
			}
			require.NoError(t, err)
			if ok {
				require.Equal(t, tt.From, ref.From.String())
				require.Equal(t, tt.To, ref.To.String())
			}
		})
	}
}

func TestDropOrder(t *testing.T) {
	order, err := changelist.DropOrder()
	require.NoError(t, err)
	require.Equal(t, []changelist.Kind{
		changelist.KindOperatorClass,
		changelist.KindAggregate,
		changelist.KindOperator,
		changelist.KindCast,
		changelist.KindFunction,
		changelist.KindType,
	}, order)
}

func TestDropStatements(t *testing.T) {
	r := newResolver(map[string]string{"changelist_1.9_1.10.yaml": changelist19To110})
	cs, err := r.Resolve(context.Background(), rev("1.9"), rev("1.10"))
	require.NoError(t, err)

	stmts, err := cs.DropStatements([]string{"KMEANS_RESULT"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"DROP OPERATOR CLASS IF EXISTS madlib.svec_ops USING btree;",
		"DROP AGGREGATE IF EXISTS madlib.avg(double precision[]);",
		"DROP OPERATOR IF EXISTS madlib.< (madlib.svec, madlib.svec);",
		"DROP CAST IF EXISTS (madlib.bytea8 AS text);",
		"DROP FUNCTION IF EXISTS madlib.kmeans(text, text, integer);",
		"DROP FUNCTION IF EXISTS madlib.array_add(anyarray, anyarray);",
		"DROP TYPE IF EXISTS madlib.kmeans_result CASCADE;",
	}, stmts)
}

func TestDropStatementUnaryOperatorAndZeroArgAggregate(t *testing.T) {
	stmt, err := changelist.DropStatement("madlib", changelist.Operator{Name: "!", LeftArg: "none", RightArg: "bigint"}, nil)
	require.NoError(t, err)
	require.Equal(t, "DROP OPERATOR IF EXISTS madlib.! (none, bigint);", stmt)

	stmt, err = changelist.DropStatement("madlib", changelist.Aggregate{Name: "count_rows", ReturnType: "bigint"}, nil)
	require.NoError(t, err)
	require.Equal(t, "DROP AGGREGATE IF EXISTS madlib.count_rows(*);", stmt)
}
