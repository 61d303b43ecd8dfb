package version_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/treeverse/pgpack/pkg/version"
)

func TestParseRevision(t *testing.T) {
	cases := []struct {
		Name    string
		Input   string
		Ordinal []int
		Err     error
	}{
		{Name: "two_parts", Input: "1.10", Ordinal: []int{1, 10, 0}},
		{Name: "three_parts", Input: "2.1.3", Ordinal: []int{2, 1, 3}},
		{Name: "spaces", Input: " 1.9 ", Ordinal: []int{1, 9, 0}},
		{Name: "empty", Input: "", Err: version.ErrMissingRevision},
		{Name: "garbage", Input: "one.two", Err: version.ErrInvalidRevision},
	}
	for _, tt := range cases {
		t.Run(tt.Name, func(t *testing.T) {
			r, err := version.ParseRevision(tt.Input)
			if tt.Err != nil {
				require.ErrorIs(t, err, tt.Err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.Ordinal, r.Ordinal())
		})
	}
}

func TestRevisionCompare(t *testing.T) {
	cases := []struct {
		A, B     string
		Expected int
	}{
		{A: "1.9", B: "1.10", Expected: -1},
		{A: "1.10", B: "1.10.0", Expected: 0},
		{A: "1.12", B: "1.9.1", Expected: 1},
		{A: "2.0", B: "1.99", Expected: 1},
	}
	for _, tt := range cases {
		t.Run(tt.A+"_"+tt.B, func(t *testing.T) {
			a := version.MustParseRevision(tt.A)
			b := version.MustParseRevision(tt.B)
			require.Equal(t, tt.Expected, a.Compare(b))
			require.Equal(t, -tt.Expected, b.Compare(a))
			require.Equal(t, tt.Expected == 0, a.Key() == b.Key())
		})
	}
	require.True(t, version.Revision{}.LessThan(version.MustParseRevision("0.1")))
}

func TestRevisionString(t *testing.T) {
	r := version.MustParseRevision("1.10")
	require.Equal(t, "1.10", r.String())
	require.Equal(t, "1.10.0", r.Key())
}

func TestReadRevisionFile(t *testing.T) {
	r, err := version.ReadRevisionFile("testdata/Version.yml")
	require.NoError(t, err)
	require.Equal(t, "1.10", r.String())

	_, err = version.ReadRevisionFile("testdata/empty.yml")
	require.ErrorIs(t, err, version.ErrMissingRevision)

	_, err = version.ReadRevisionFile("testdata/missing.yml")
	require.Error(t, err)
	require.False(t, errors.Is(err, version.ErrMissingRevision))
}

func TestProperty_RevisionOrdinalOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	toRevision := func(parts []int) version.Revision {
		s := make([]string, len(parts))
		for i, p := range parts {
			s[i] = strconv.Itoa(p)
		}
		return version.MustParseRevision(strings.Join(s, "."))
	}
	tupleCompare := func(a, b []int) int {
		for i := range a {
			switch {
			case a[i] < b[i]:
				return -1
			case a[i] > b[i]:
				return 1
			}
		}
		return 0
	}

	properties.Property("revisions order like their component tuples", prop.ForAll(
		func(a, b []int) bool {
			return toRevision(a).Compare(toRevision(b)) == tupleCompare(a, b)
		},
		gen.SliceOfN(3, gen.IntRange(0, 30)),
		gen.SliceOfN(3, gen.IntRange(0, 30)),
	))

	properties.Property("compare is antisymmetric", prop.ForAll(
		func(a, b []int) bool {
			ra, rb := toRevision(a), toRevision(b)
			return ra.Compare(rb) == -rb.Compare(ra)
		},
		gen.SliceOfN(3, gen.IntRange(0, 30)),
		gen.SliceOfN(3, gen.IntRange(0, 30)),
	))

	properties.TestingRun(t)
}
