package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// MigrationHistoryTable is the per-schema table recording applied revisions.
const MigrationHistoryTable = "migrationhistory"

// MigrationRecord is one row of the migration history.
type MigrationRecord struct {
	ID      int       `db:"id"`
	Version string    `db:"version"`
	Applied time.Time `db:"applied"`
}

// StampMigrationSQL returns the statement recording version as applied in schema.
func StampMigrationSQL(schema, version string) string {
	return fmt.Sprintf("INSERT INTO %s.%s(version) VALUES ('%s');", schema, MigrationHistoryTable, version)
}

// ListMigrations returns the migration history of schema, oldest first. A
// schema without history table yields an empty list.
func ListMigrations(ctx context.Context, q pgxscan.Querier, schema string) ([]MigrationRecord, error) {
	query := fmt.Sprintf(`SELECT id, version, applied FROM %s ORDER BY applied, id`,
		pgx.Identifier{schema, MigrationHistoryTable}.Sanitize())
	var records []MigrationRecord
	err := pgxscan.Select(ctx, q, &records, query)
	if IsUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return records, nil
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
