package db

import (
	"errors"
	"fmt"
	"net"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound      = fmt.Errorf("not found: %w", pgx.ErrNoRows)
	ErrAlreadyExists = errors.New("already exists")
)

const (
	uniqueViolationCode = "23505"
	undefinedTableCode  = "42P01"
)

func isDialError(err error) bool {
	netError := &net.OpError{}
	return errors.As(err, &netError) && netError.Op == "dial"
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == uniqueViolationCode
}

// IsUndefinedTable reports whether err is a missing relation error.
func IsUndefinedTable(err error) bool {
	return pgErrorCode(err) == undefinedTableCode
}

func (d *dbTx) handleSQLError(err error, cmdType string, query string) error {
	log := d.logger.WithField("type", cmdType)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
		log.Trace("SQL query returned no results")
		return ErrNotFound
	}
	log.WithError(err).Error("SQL query failed with error")
	return fmt.Errorf("query %s: %w", queryToString(query), err)
}
