// Package catalogtest provides an in-memory catalog.Querier for tests.
package catalogtest

import (
	"context"
	"strings"
	"sync"

	"github.com/treeverse/pgpack/pkg/catalog"
)

// Call records one query sent to the fake.
type Call struct {
	Query string
	Args  []any
}

type response struct {
	match string
	rows  []catalog.Row
	err   error
}

// Querier answers each query with the rows registered for the first
// substring found in it. Unmatched queries return no rows.
type Querier struct {
	mu        sync.Mutex
	responses []response
	calls     []Call
}

func New() *Querier {
	return &Querier{}
}

// On registers rows returned for queries containing match.
func (f *Querier) On(match string, rows ...catalog.Row) *Querier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{match: match, rows: rows})
	return f
}

// Fail registers err returned for queries containing match.
func (f *Querier) Fail(match string, err error) *Querier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{match: match, err: err})
	return f
}

func (f *Querier) Query(_ context.Context, query string, args ...any) ([]catalog.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Query: query, Args: args})
	for _, r := range f.responses {
		if strings.Contains(query, r.match) {
			if r.err != nil {
				return nil, r.err
			}
			out := make([]catalog.Row, len(r.rows))
			copy(out, r.rows)
			return out, nil
		}
	}
	return nil, nil
}

// Calls returns the queries received so far.
func (f *Querier) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Schema registers the OID lookup of the managed schema.
func (f *Querier) Schema(oid string) *Querier {
	return f.On("FROM pg_namespace WHERE nspname", catalog.Row{"oid": oid})
}
