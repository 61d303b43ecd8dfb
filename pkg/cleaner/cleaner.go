// Package cleaner rewrites a module's full install script for an upgrade so
// that it only recreates managed objects that changed.
package cleaner

import (
	"slices"
	"strings"

	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/sqltext"
)

type Option func(*Cleaner)

// WithPasses selects the passes to run instead of DefaultPasses.
func WithPasses(passes ...Pass) Option {
	return func(c *Cleaner) {
		c.passes = passes
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Cleaner) {
		c.log = logger
	}
}

// Cleaner removes statements for managed objects that already exist and did
// not change between the installed and the target revision.
type Cleaner struct {
	schema  string
	changes *changelist.ChangeSet
	passes  []Pass
	log     logging.Logger

	types      map[string]struct{}
	operators  map[string]struct{}
	opclasses  map[[2]string]struct{}
	aggregates map[[2]string]struct{}
}

func New(changes *changelist.ChangeSet, existing *Existing, opts ...Option) *Cleaner {
	c := &Cleaner{
		schema:     strings.ToLower(changes.Schema()),
		changes:    changes,
		passes:     DefaultPasses,
		log:        logging.Default(),
		types:      make(map[string]struct{}),
		operators:  make(map[string]struct{}),
		opclasses:  make(map[[2]string]struct{}),
		aggregates: make(map[[2]string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if existing == nil {
		existing = &Existing{}
	}
	for _, t := range existing.Types {
		c.types[strings.ToLower(t)] = struct{}{}
	}
	for _, o := range existing.Operators {
		c.operators[changelist.OperatorKey(c.schema, o.Name, o.LeftArg, o.RightArg)] = struct{}{}
	}
	for _, o := range existing.OperatorClasses {
		c.opclasses[[2]string{strings.ToLower(o.Name), strings.ToLower(o.IndexMethod)}] = struct{}{}
	}
	for _, a := range existing.Aggregates {
		c.aggregates[[2]string{strings.ToLower(a.Name), sqltext.CanonicalArgs(c.schema, a.Arguments)}] = struct{}{}
	}
	return c
}

func (c *Cleaner) enabled(p Pass) bool {
	return slices.Contains(c.passes, p)
}

// Clean returns sql with unchanged objects removed. Scripts of modules new in
// this upgrade are returned as is. Statements that match no rule are kept
// byte for byte.
func (c *Cleaner) Clean(sql, module string) string {
	if c.changes.IsNewModule(module) {
		return sql
	}
	if c.enabled(PassComments) {
		sql = sqltext.StripComments(sql)
	}

	var (
		b       strings.Builder
		last    int
		removed int
	)
	b.Grow(len(sql))
	for _, stmt := range sqltext.Split(sql) {
		d, ok := parseDDL(stmt.Text)
		if !ok {
			continue
		}
		switch c.action(d) {
		case actionRemove:
			b.WriteString(sql[last:stmt.Start])
			last = stmt.End
			if last < len(sql) && sql[last] == '\n' {
				last++
			}
			removed++
		case actionReplace:
			b.WriteString(sql[last:stmt.Start])
			b.WriteString(stmt.Text[:d.headStart])
			b.WriteString("CREATE OR REPLACE FUNCTION")
			b.WriteString(stmt.Text[d.headEnd:])
			last = stmt.End
		case actionNarrow:
			b.WriteString(sql[last:stmt.Start])
			b.WriteString(narrowNames(stmt.Text, d, c.keptTypes(d.names)))
			last = stmt.End
			removed++
		}
	}
	b.WriteString(sql[last:])

	c.log.WithFields(logging.Fields{
		logging.ModuleFieldKey: module,
		"removed":              removed,
	}).Debug("Cleaned install script")
	return b.String()
}

type action int

const (
	actionKeep action = iota
	actionRemove
	actionReplace
	// drop only some of the listed names
	actionNarrow
)

func (c *Cleaner) action(d ddl) action {
	switch d.kind {
	case changelist.KindType:
		if !c.enabled(PassTypes) {
			return actionKeep
		}
		switch kept := c.keptTypes(d.names); {
		case len(kept) == 0:
			return actionRemove
		case len(kept) < len(d.names):
			return actionNarrow
		}
	case changelist.KindCast:
		if c.enabled(PassCasts) && !c.changes.HasCast(d.source, d.target) {
			return actionRemove
		}
	case changelist.KindOperator:
		if !c.enabled(PassOperators) || !d.names[0].in(c.schema) {
			return actionKeep
		}
		n := d.names[0]
		if _, ok := c.operators[changelist.OperatorKey(c.schema, n.name, d.left, d.right)]; ok &&
			!c.changes.HasOperator(n.name, d.left, d.right) {
			return actionRemove
		}
	case changelist.KindOperatorClass:
		if !c.enabled(PassOperatorClasses) || !d.names[0].in(c.schema) {
			return actionKeep
		}
		n := d.names[0]
		if _, ok := c.opclasses[[2]string{n.name, d.method}]; ok && !c.changes.HasOperatorClass(n.name, d.method) {
			return actionRemove
		}
	case changelist.KindAggregate:
		if !c.enabled(PassAggregates) || !d.names[0].in(c.schema) {
			return actionKeep
		}
		n := d.names[0]
		key := [2]string{n.name, sqltext.CanonicalArgs(c.schema, d.args)}
		if _, ok := c.aggregates[key]; ok && !c.changes.HasAggregate(n.name, d.args) {
			return actionRemove
		}
	case changelist.KindFunction:
		if !c.enabled(PassFunctions) || !d.names[0].in(c.schema) {
			return actionKeep
		}
		if d.drop {
			return actionRemove
		}
		if !d.orReplace {
			return actionReplace
		}
	}
	return actionKeep
}

// keptTypes returns the indexes of the names that are not existing managed
// types missing from the change set.
func (c *Cleaner) keptTypes(names []qualifiedName) []int {
	var kept []int
	for i, n := range names {
		if !c.unchangedType(n) {
			kept = append(kept, i)
		}
	}
	return kept
}

func (c *Cleaner) unchangedType(n qualifiedName) bool {
	if !n.in(c.schema) {
		return false
	}
	_, ok := c.types[n.name]
	return ok && !c.changes.HasType(n.name)
}

// narrowNames rewrites the name list of text to the names at the kept indexes.
func narrowNames(text string, d ddl, kept []int) string {
	names := make([]string, 0, len(kept))
	for _, k := range kept {
		names = append(names, text[d.spans[k][0]:d.spans[k][1]])
	}
	first, last := d.spans[0], d.spans[len(d.spans)-1]
	return text[:first[0]] + strings.Join(names, ", ") + text[last[1]:]
}
