package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/treeverse/pgpack/pkg/db"
	"github.com/treeverse/pgpack/pkg/version"
)

// Operator is an operator of the managed schema as the catalog reports it.
// Missing operands read as "-".
type Operator struct {
	OID      string
	Name     string
	LeftArg  string
	RightArg string
}

// OperatorClass is an operator class of the managed schema.
type OperatorClass struct {
	OID         string
	Name        string
	IndexMethod string
}

// Routine is the name, return type and comma separated argument types of a
// function or aggregate.
type Routine struct {
	Name       string
	ReturnType string
	Arguments  string
}

// Inspector answers questions about the managed schema.
type Inspector struct {
	q         Querier
	target    Target
	schemaOID string
}

func NewInspector(q Querier, target Target) *Inspector {
	return &Inspector{q: q, target: target}
}

func (i *Inspector) Target() Target {
	return i.target
}

func (i *Inspector) Querier() Querier {
	return i.q
}

// SchemaOID returns the OID of the managed schema, caching it after the
// first lookup.
func (i *Inspector) SchemaOID(ctx context.Context) (string, error) {
	if i.schemaOID != "" {
		return i.schemaOID, nil
	}
	rows, err := i.q.Query(ctx, `SELECT oid FROM pg_namespace WHERE nspname = $1`, i.target.Schema)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0]["oid"] == "" {
		return "", fmt.Errorf("%w: %s", ErrSchemaNotFound, i.target.Schema)
	}
	i.schemaOID = rows[0]["oid"]
	return i.schemaOID, nil
}

// InstalledRevision returns the latest revision recorded in the migration
// history, or a zero revision when the schema has no history table.
func (i *Inspector) InstalledRevision(ctx context.Context) (version.Revision, error) {
	table := i.target.Schema + "." + db.MigrationHistoryTable
	rows, err := i.q.Query(ctx, `SELECT to_regclass($1) IS NOT NULL AS present`, table)
	if err != nil {
		return version.Revision{}, err
	}
	if len(rows) == 0 || rows[0]["present"] != "t" {
		return version.Revision{}, nil
	}
	query := fmt.Sprintf(`SELECT version FROM %s ORDER BY applied DESC, id DESC LIMIT 1`,
		pgx.Identifier{i.target.Schema, db.MigrationHistoryTable}.Sanitize())
	rows, err = i.q.Query(ctx, query)
	if err != nil {
		return version.Revision{}, err
	}
	if len(rows) == 0 {
		return version.Revision{}, nil
	}
	rev, err := version.ParseRevision(rows[0]["version"])
	if err != nil {
		return version.Revision{}, fmt.Errorf("%w: installed version: %w", ErrUnexpectedRow, err)
	}
	return rev, nil
}

// ExistingTypes lists the type names of the managed schema.
func (i *Inspector) ExistingTypes(ctx context.Context) ([]string, error) {
	oid, err := i.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := i.q.Query(ctx, `SELECT typname FROM pg_type AS t WHERE t.typnamespace = $1 ORDER BY typname`, oid)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(rows))
	for _, r := range rows {
		types = append(types, r["typname"])
	}
	return types, nil
}

// ExistingOperators lists the operators of the managed schema.
func (i *Inspector) ExistingOperators(ctx context.Context) ([]Operator, error) {
	oid, err := i.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := i.q.Query(ctx, `
		SELECT o.oid, oprname, oprleft::regtype AS oprleft, oprright::regtype AS oprright
		FROM pg_operator AS o
		WHERE o.oprnamespace = $1
		ORDER BY oprname, o.oid`, oid)
	if err != nil {
		return nil, err
	}
	ops := make([]Operator, 0, len(rows))
	for _, r := range rows {
		ops = append(ops, Operator{OID: r["oid"], Name: r["oprname"], LeftArg: r["oprleft"], RightArg: r["oprright"]})
	}
	return ops, nil
}

// ExistingOperatorClasses lists the operator classes of the managed schema
// with the name of their index access method.
func (i *Inspector) ExistingOperatorClasses(ctx context.Context) ([]OperatorClass, error) {
	oid, err := i.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT oc.oid, opcname, amname AS index
		FROM pg_opclass AS oc, pg_am AS am
		WHERE oc.opcnamespace = $1 AND oc.%s = am.oid
		ORDER BY opcname, oc.oid`, i.target.OperatorClassMethodColumn())
	rows, err := i.q.Query(ctx, query, oid)
	if err != nil {
		return nil, err
	}
	classes := make([]OperatorClass, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, OperatorClass{OID: r["oid"], Name: r["opcname"], IndexMethod: r["index"]})
	}
	return classes, nil
}

// ExistingAggregates lists the aggregates of the managed schema that take at
// least one argument.
func (i *Inspector) ExistingAggregates(ctx context.Context) ([]Routine, error) {
	oid, err := i.SchemaOID(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT
			max(proname) AS proname,
			max(rettype) AS rettype,
			array_to_string(array_agg(argtype ORDER BY i), ', ') AS argument
		FROM (
			SELECT
				p.oid AS procoid,
				proname,
				textin(regtypeout(prorettype::regtype)) AS rettype,
				textin(regtypeout(unnest(proargtypes)::regtype)) AS argtype,
				generate_series(0, array_upper(proargtypes, 1)) AS i
			FROM pg_proc AS p
			WHERE p.pronamespace = $1 AND %s
		) AS f
		GROUP BY procoid
		ORDER BY 1, 3`, i.target.AggregatePredicate("p"))
	rows, err := i.q.Query(ctx, query, oid)
	if err != nil {
		return nil, err
	}
	aggs := make([]Routine, 0, len(rows))
	for _, r := range rows {
		aggs = append(aggs, routineFromRow(r))
	}
	return aggs, nil
}

// FunctionInfo returns the name, return type and argument types of the
// routine with the given OID.
func (i *Inspector) FunctionInfo(ctx context.Context, oid string) (Routine, error) {
	rows, err := i.q.Query(ctx, `SELECT array_upper(proargtypes, 1) AS proargtypes FROM pg_proc WHERE oid = $1`, oid)
	if err != nil {
		return Routine{}, err
	}
	if len(rows) == 0 {
		return Routine{}, fmt.Errorf("%w: no routine with oid %s", ErrUnexpectedRow, oid)
	}
	argTypes, series := `''::varchar`, `1`
	// array_upper of an empty oidvector is -1 on some servers and NULL on others
	if n := rows[0]["proargtypes"]; n != "" && n != "-1" {
		argTypes = `textin(regtypeout(unnest(proargtypes)::regtype))`
		series = `generate_series(0, array_upper(proargtypes, 1))`
	}
	query := fmt.Sprintf(`
		SELECT
			max(proname) AS proname,
			max(rettype) AS rettype,
			array_to_string(array_agg(argtype ORDER BY i), ', ') AS argument
		FROM (
			SELECT
				proname,
				textin(regtypeout(prorettype::regtype)) AS rettype,
				%s AS argtype,
				%s AS i
			FROM pg_proc AS p
			WHERE oid = $1
		) AS f`, argTypes, series)
	rows, err = i.q.Query(ctx, query, oid)
	if err != nil {
		return Routine{}, err
	}
	if len(rows) == 0 {
		return Routine{}, fmt.Errorf("%w: no routine with oid %s", ErrUnexpectedRow, oid)
	}
	return routineFromRow(rows[0]), nil
}

func routineFromRow(r Row) Routine {
	return Routine{
		Name:       r["proname"],
		ReturnType: r["rettype"],
		Arguments:  strings.TrimSpace(r["argument"]),
	}
}
