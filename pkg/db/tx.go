package db

import (
	"context"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/treeverse/pgpack/pkg/logging"
)

// Tx abstract the pg transaction.
// It is expected to return errors of this package when applicable:
// 1. ErrNotFound - when a specific row was queried
// 2. ErrAlreadyExists - on conflicts when adding an entry
type Tx interface {
	Query(query string, args ...interface{}) (pgx.Rows, error)
	Select(dest interface{}, query string, args ...interface{}) error
	Get(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (pgconn.CommandTag, error)
}

type dbTx struct {
	tx     pgx.Tx
	ctx    context.Context
	logger logging.Logger
}

func queryToString(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// queryForLog shortens long scripts in log lines.
func queryForLog(q string) string {
	const maxLogged = 256
	s := queryToString(q)
	if len(s) > maxLogged {
		return s[:maxLogged] + "..."
	}
	return s
}

func (d *dbTx) Query(query string, args ...interface{}) (pgx.Rows, error) {
	rows, err := d.tx.Query(d.ctx, query, args...)
	log := d.logger.
		WithContext(d.ctx).
		WithFields(logging.Fields{
			"type":  "query",
			"args":  args,
			"query": queryForLog(query),
		})
	if err != nil {
		log.WithError(err).Error("SQL query failed with error")
		return nil, err
	}
	log.Trace("SQL query started successfully")
	return rows, nil
}

func (d *dbTx) Select(results interface{}, query string, args ...interface{}) error {
	rows, err := d.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	return pgxscan.ScanAll(results, rows)
}

func (d *dbTx) Get(dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := pgxscan.Get(d.ctx, d.tx, dest, query, args...)
	if err != nil {
		return d.handleSQLError(err, "get", query)
	}
	d.logger.WithFields(logging.Fields{
		"type":  "get",
		"args":  args,
		"query": queryForLog(query),
		"took":  time.Since(start),
	}).Trace("SQL query executed successfully")
	return nil
}

func (d *dbTx) Exec(query string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	res, err := d.tx.Exec(d.ctx, query, args...)
	if err != nil {
		return res, d.handleSQLError(err, "exec", query)
	}
	d.logger.WithFields(logging.Fields{
		"type":  "exec",
		"args":  len(args),
		"query": queryForLog(query),
		"took":  time.Since(start),
	}).Trace("SQL query executed successfully")
	return res, nil
}

type TxOpt func(*TxOptions)

type TxOptions struct {
	logger         logging.Logger
	isolationLevel pgx.TxIsoLevel
	accessMode     pgx.TxAccessMode
}

func DefaultTxOptions(ctx context.Context) *TxOptions {
	return &TxOptions{
		logger:         logging.FromContext(ctx),
		isolationLevel: pgx.ReadCommitted,
		accessMode:     pgx.ReadWrite,
	}
}

func WithLogger(logger logging.Logger) TxOpt {
	return func(o *TxOptions) {
		o.logger = logger
	}
}

func ReadOnly() TxOpt {
	return func(o *TxOptions) {
		o.accessMode = pgx.ReadOnly
	}
}
