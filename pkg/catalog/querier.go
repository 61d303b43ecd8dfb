// Package catalog reads the system catalog of the database holding the
// managed schema. It only issues read-only introspection queries.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/treeverse/pgpack/pkg/db"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

const slowQuery = 100 * time.Millisecond

// Row maps column names to their text values. NULL reads as "".
type Row map[string]string

// Querier runs a read-only catalog query and returns its rows in order.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Transactor opens database transactions. db.Database satisfies it.
type Transactor interface {
	Transact(ctx context.Context, fn db.TxFunc, opts ...db.TxOpt) (interface{}, error)
}

// DBQuerier runs every catalog query in its own read-only transaction using
// the simple protocol, so every value arrives in its text representation.
type DBQuerier struct {
	db Transactor
}

func NewDBQuerier(d Transactor) *DBQuerier {
	return &DBQuerier{db: d}
}

func (q *DBQuerier) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	start := time.Now()
	log := logging.FromContext(ctx).WithField(logging.QueryFieldKey, oneLine(query))
	queryArgs := append([]any{pgx.QueryExecModeSimpleProtocol}, args...)
	res, err := q.db.Transact(ctx, func(tx db.Tx) (interface{}, error) {
		rows, err := tx.Query(query, queryArgs...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectRows(rows)
	}, db.ReadOnly())
	if err != nil {
		log.WithError(err).Debug("Catalog query failed")
		return nil, fmt.Errorf("%w: %w", packerrors.ErrCatalogQuery, err)
	}
	result := res.([]Row)
	took := time.Since(start)
	log = log.WithFields(logging.Fields{
		"args": args,
		"rows": len(result),
		"took": took,
	})
	if took > slowQuery {
		log.Debug("Slow catalog query")
	} else {
		log.Trace("Catalog query done")
	}
	return result, nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	fields := rows.FieldDescriptions()
	var result []Row
	for rows.Next() {
		raw := rows.RawValues()
		row := make(Row, len(fields))
		for i, f := range fields {
			if raw[i] != nil {
				row[f.Name] = string(raw[i])
			} else {
				row[f.Name] = ""
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func oneLine(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
