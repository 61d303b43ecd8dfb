package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/treeverse/pgpack/pkg/db/params"
	"github.com/treeverse/pgpack/pkg/logging"
)

const (
	DefaultMaxOpenConnections    = 4
	DefaultMaxIdleConnections    = 1
	DefaultConnectionMaxLifetime = 5 * time.Minute
)

func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire to ping: %w", err)
	}
	defer conn.Release()
	err = conn.Conn().Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ConnectDBPool connects to a database using the database params and returns a connection pool
func ConnectDBPool(ctx context.Context, p params.Database) (*pgxpool.Pool, error) {
	normalizeDBParams(&p)
	config, err := pgxpool.ParseConfig(p.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	config.MaxConns = p.MaxOpenConnections
	config.MinConns = p.MaxIdleConnections
	config.MaxConnLifetime = p.ConnectionMaxLifetime

	log := logging.FromContext(ctx).WithFields(logging.Fields{
		"max_open_conns":    p.MaxOpenConnections,
		"max_idle_conns":    p.MaxIdleConnections,
		"db":                config.ConnConfig.Database,
		"user":              config.ConnConfig.User,
		"host":              config.ConnConfig.Host,
		"port":              config.ConnConfig.Port,
		"conn_max_lifetime": p.ConnectionMaxLifetime,
	})
	log.Info("Connecting to the DB")

	pool, err := tryConnectConfig(ctx, config, p.ConnectTimeout, log)
	if err != nil {
		return nil, err
	}
	log.Info("DB connection established")
	return pool, nil
}

// ConnectDB connects to a database using the database params and returns Database
func ConnectDB(ctx context.Context, p params.Database) (Database, error) {
	pool, err := ConnectDBPool(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewPgxDatabase(pool), nil
}

func normalizeDBParams(p *params.Database) {
	if p.MaxOpenConnections == 0 {
		p.MaxOpenConnections = DefaultMaxOpenConnections
	}

	if p.MaxIdleConnections == 0 {
		p.MaxIdleConnections = DefaultMaxIdleConnections
	}

	if p.MaxIdleConnections > p.MaxOpenConnections {
		p.MaxIdleConnections = p.MaxOpenConnections
	}

	if p.ConnectionMaxLifetime == 0 {
		p.ConnectionMaxLifetime = DefaultConnectionMaxLifetime
	}
}

// tryConnectConfig creates the pool and pings it, retrying while the server
// cannot be dialed.
func tryConnectConfig(ctx context.Context, config *pgxpool.Config, timeout time.Duration, log logging.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("error while connecting to DB: %w", err))
		}
		if err := Ping(ctx, p); err != nil {
			p.Close()
			if isDialError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		pool = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.WithError(err).WithField("next", next).Info("Could not connect to DB: Trying again")
	}
	strategy := backoff.WithContext(params.DatabaseRetryStrategy(timeout), ctx)
	if err := backoff.RetryNotify(operation, strategy, notify); err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}
	return pool, nil
}
