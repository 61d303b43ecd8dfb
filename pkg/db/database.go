package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/treeverse/pgpack/pkg/logging"
)

// slowQueryThreshold is the duration above which a statement is reported.
const slowQueryThreshold = 100 * time.Millisecond

type TxFunc func(tx Tx) (interface{}, error)

type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
}

type Database interface {
	Querier
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetPrimitive(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Transact(ctx context.Context, fn TxFunc, opts ...TxOpt) (interface{}, error)
	// ExecScript runs a multi-statement script inside a single transaction.
	ExecScript(ctx context.Context, script string) error

	Close()
	Pool() *pgxpool.Pool
}

// Void wraps a procedure with no return value as a TxFunc
func Void(fn func(tx Tx) error) TxFunc {
	return func(tx Tx) (interface{}, error) { return nil, fn(tx) }
}

type PgxDatabase struct {
	db *pgxpool.Pool
}

func NewPgxDatabase(db *pgxpool.Pool) *PgxDatabase {
	return &PgxDatabase{db: db}
}

func (d *PgxDatabase) getLogger(ctx context.Context, fields logging.Fields) logging.Logger {
	return logging.FromContext(ctx).WithFields(fields)
}

func (d *PgxDatabase) Close() {
	d.db.Close()
}

func (d *PgxDatabase) Pool() *pgxpool.Pool {
	return d.db
}

// performAndReport performs fn and logs a "done" report if its duration was long enough.
func (d *PgxDatabase) performAndReport(ctx context.Context, fields logging.Fields, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	ret, err := fn()
	duration := time.Since(start)
	if duration > slowQueryThreshold {
		logger := d.getLogger(ctx, fields).WithField("took", duration)
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Debug("database done")
	}
	return ret, err
}

func (d *PgxDatabase) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	_, err := d.performAndReport(ctx, logging.Fields{
		"type":  "get",
		"query": queryToString(query),
		"args":  args,
	}, func() (interface{}, error) {
		return nil, pgxscan.Get(ctx, d.db, dest, query, args...)
	})
	if pgxscan.NotFound(err) {
		return ErrNotFound
	}
	return err
}

func (d *PgxDatabase) GetPrimitive(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	row := d.db.QueryRow(ctx, query, args...)
	err := row.Scan(dest)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", queryToString(query), err)
	}
	return nil
}

func (d *PgxDatabase) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	d.getLogger(ctx, logging.Fields{
		"type":  "start query",
		"query": queryToString(query),
		"args":  args,
	}).Trace("SQL query started")
	return d.db.Query(ctx, query, args...)
}

func (d *PgxDatabase) Select(ctx context.Context, results interface{}, query string, args ...interface{}) error {
	_, err := d.performAndReport(ctx, logging.Fields{
		"type":  "select",
		"query": queryToString(query),
		"args":  args,
	}, func() (interface{}, error) {
		return nil, pgxscan.Select(ctx, d.db, results, query, args...)
	})
	return err
}

func (d *PgxDatabase) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	ret, err := d.performAndReport(ctx, logging.Fields{
		"type":  "exec",
		"query": queryToString(query),
		"args":  args,
	}, func() (interface{}, error) { return d.db.Exec(ctx, query, args...) })
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return ret.(pgconn.CommandTag), nil
}

// Transact runs fn in a transaction, committing when fn succeeds and rolling
// back otherwise. Failures are not retried.
func (d *PgxDatabase) Transact(ctx context.Context, fn TxFunc, opts ...TxOpt) (interface{}, error) {
	options := DefaultTxOptions(ctx)
	for _, opt := range opts {
		opt(options)
	}
	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   options.isolationLevel,
		AccessMode: options.accessMode,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	ret, err := fn(&dbTx{tx: tx, logger: options.logger, ctx: ctx})
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			options.logger.WithError(rollbackErr).Warn("Rollback failed")
		}
		// always return the callback value with the error
		return ret, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

// ExecScript runs script with the simple protocol so it may hold many
// statements, all inside one transaction.
func (d *PgxDatabase) ExecScript(ctx context.Context, script string) error {
	start := time.Now()
	_, err := d.Transact(ctx, Void(func(tx Tx) error {
		_, err := tx.Exec(script, pgx.QueryExecModeSimpleProtocol)
		return err
	}))
	log := d.getLogger(ctx, logging.Fields{
		"type":  "script",
		"bytes": len(script),
		"took":  time.Since(start),
	})
	if err != nil {
		log.WithError(err).Error("Script rolled back")
		return err
	}
	log.Info("Script committed")
	return nil
}
