package dependency

import (
	"context"
	"fmt"

	"github.com/treeverse/pgpack/pkg/catalog"
)

const (
	tableTypesQuery = `
		SELECT nsp.nspname AS schema, relname AS relation, attname AS column, typname AS type
		FROM pg_attribute a, pg_class c, pg_type t, pg_namespace nsp
		WHERE t.typnamespace = $1
			AND a.atttypid = t.oid
			AND c.oid = a.attrelid
			AND c.relnamespace = nsp.oid
			AND c.relkind = 'r'
		ORDER BY nsp.nspname, relname, attname, typname`

	indexOperatorClassesQuery = `
		SELECT s.idxname, s.oid AS opcoid, nsp.nspname AS schema, s.name AS opcname
		FROM pg_namespace nsp
		JOIN (
			SELECT c.relname AS idxname, c.relnamespace AS namespace, oc.oid AS oid, oc.opcname AS name
			FROM pg_depend d
			JOIN pg_opclass oc ON (d.refclassid = 'pg_opclass'::regclass AND d.refobjid = oc.oid)
			JOIN pg_class c ON (c.oid = d.objid)
			WHERE oc.opcnamespace = $1 AND c.relkind = 'i'
		) s ON (nsp.oid = s.namespace)
		ORDER BY nsp.nspname, s.idxname, s.name`
)

// ColumnDependency is a table column whose type lives in the managed schema.
type ColumnDependency struct {
	Schema string
	Table  string
	Column string
	Type   string
}

// IndexDependency is an index using an operator class of the managed schema.
type IndexDependency struct {
	Schema           string
	Index            string
	OperatorClass    string
	OperatorClassOID string
}

// TableDetector holds the table and index dependencies on the managed schema.
type TableDetector struct {
	Columns []ColumnDependency
	Indexes []IndexDependency
}

// DetectTables reads column and index dependencies from the catalog.
func DetectTables(ctx context.Context, in *catalog.Inspector) (*TableDetector, error) {
	oid, err := in.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	q := in.Querier()
	rows, err := q.Query(ctx, tableTypesQuery, oid)
	if err != nil {
		return nil, fmt.Errorf("detect table dependencies: %w", err)
	}
	d := &TableDetector{}
	for _, r := range rows {
		d.Columns = append(d.Columns, ColumnDependency{
			Schema: r["schema"],
			Table:  r["relation"],
			Column: r["column"],
			Type:   r["type"],
		})
	}
	rows, err = q.Query(ctx, indexOperatorClassesQuery, oid)
	if err != nil {
		return nil, fmt.Errorf("detect index dependencies: %w", err)
	}
	for _, r := range rows {
		d.Indexes = append(d.Indexes, IndexDependency{
			Schema:           r["schema"],
			Index:            r["idxname"],
			OperatorClass:    r["opcname"],
			OperatorClassOID: r["opcoid"],
		})
	}
	return d, nil
}

func (d *TableDetector) HasDependency() bool {
	return len(d.Columns) > 0 || len(d.Indexes) > 0
}

// DependedTypes returns the managed type names used by table columns.
func (d *TableDetector) DependedTypes() map[string]struct{} {
	types := make(map[string]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		types[c.Type] = struct{}{}
	}
	return types
}

// DependedOperatorClassOIDs returns the OIDs of managed operator classes used by indexes.
func (d *TableDetector) DependedOperatorClassOIDs() map[string]struct{} {
	oids := make(map[string]struct{}, len(d.Indexes))
	for _, i := range d.Indexes {
		oids[i.OperatorClassOID] = struct{}{}
	}
	return oids
}

// Report renders one line per dependency.
func (d *TableDetector) Report() []string {
	lines := make([]string, 0, len(d.Columns)+len(d.Indexes))
	for _, c := range d.Columns {
		lines = append(lines, fmt.Sprintf("%s.%s.%s -> %s", c.Schema, c.Table, c.Column, c.Type))
	}
	for _, i := range d.Indexes {
		lines = append(lines, fmt.Sprintf("%s.%s -> %s(oid=%s)", i.Schema, i.Index, i.OperatorClass, i.OperatorClassOID))
	}
	return lines
}
