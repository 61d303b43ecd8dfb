package changelist

import (
	"fmt"
	"slices"
	"strings"

	"github.com/treeverse/pgpack/pkg/modules"
	"github.com/treeverse/pgpack/pkg/sqltext"
)

// ChangeSet is the merged content of every changelist on an upgrade path.
// Declared text is canonical (lower-case, schema placeholder replaced), and
// overloads declared in several documents accumulate.
type ChangeSet struct {
	schema     string
	path       []Ref
	newModules []string
	objects    map[Kind][]Object
}

func newChangeSet(schema string) *ChangeSet {
	return &ChangeSet{
		schema:  schema,
		objects: make(map[Kind][]Object, len(Kinds)),
	}
}

// merge appends the content of doc.
func (c *ChangeSet) merge(doc *Document, n normalizer) error {
	for _, m := range doc.NewModules {
		name := n.text(m.Name)
		if !slices.Contains(c.newModules, name) {
			c.newModules = append(c.newModules, name)
		}
	}
	for _, kind := range Kinds {
		objs, err := doc.objects(kind, n)
		if err != nil {
			return err
		}
		c.objects[kind] = append(c.objects[kind], objs...)
	}
	c.path = append(c.path, doc.Ref)
	return nil
}

func (c *ChangeSet) Schema() string {
	return c.schema
}

// Path returns the changelist documents merged, in revision order.
func (c *ChangeSet) Path() []Ref {
	return slices.Clone(c.path)
}

func (c *ChangeSet) NewModules() []string {
	return slices.Clone(c.newModules)
}

func (c *ChangeSet) IsNewModule(name string) bool {
	return slices.Contains(c.newModules, strings.ToLower(name))
}

// Objects returns the declared objects of kind in declaration order.
func (c *ChangeSet) Objects(kind Kind) []Object {
	return slices.Clone(c.objects[kind])
}

// IsEmpty reports whether the change set declares nothing.
func (c *ChangeSet) IsEmpty() bool {
	if len(c.newModules) > 0 {
		return false
	}
	for _, objs := range c.objects {
		if len(objs) > 0 {
			return false
		}
	}
	return true
}

func objectsOf[T Object](c *ChangeSet, kind Kind) []T {
	out := make([]T, 0, len(c.objects[kind]))
	for _, o := range c.objects[kind] {
		out = append(out, o.(T))
	}
	return out
}

func (c *ChangeSet) Types() []Type { return objectsOf[Type](c, KindType) }
func (c *ChangeSet) Functions() []Function { return objectsOf[Function](c, KindFunction) }
func (c *ChangeSet) Aggregates() []Aggregate { return objectsOf[Aggregate](c, KindAggregate) }
func (c *ChangeSet) Operators() []Operator { return objectsOf[Operator](c, KindOperator) }
func (c *ChangeSet) OperatorClasses() []OperatorClass { return objectsOf[OperatorClass](c, KindOperatorClass) }
func (c *ChangeSet) Casts() []Cast { return objectsOf[Cast](c, KindCast) }

// HasType reports whether the type named name changed.
func (c *ChangeSet) HasType(name string) bool {
	name = strings.ToLower(name)
	return slices.ContainsFunc(c.Types(), func(t Type) bool { return t.Name == name })
}

// HasCast reports whether the cast between the two types changed.
func (c *ChangeSet) HasCast(source, target string) bool {
	key := CastKey(c.schema, source, target)
	return slices.ContainsFunc(c.Casts(), func(cast Cast) bool { return cast.Key(c.schema) == key })
}

// HasOperator reports whether the operator overload changed.
func (c *ChangeSet) HasOperator(name, left, right string) bool {
	key := OperatorKey(c.schema, name, left, right)
	return slices.ContainsFunc(c.Operators(), func(o Operator) bool { return o.Key(c.schema) == key })
}

// HasOperatorClass reports whether the operator class for the index method changed.
func (c *ChangeSet) HasOperatorClass(name, method string) bool {
	name, method = strings.ToLower(name), strings.ToLower(method)
	return slices.ContainsFunc(c.OperatorClasses(), func(o OperatorClass) bool {
		return o.Name == name && o.IndexMethod == method
	})
}

// HasAggregate reports whether the aggregate overload taking args changed.
func (c *ChangeSet) HasAggregate(name, args string) bool {
	name, args = strings.ToLower(name), sqltext.CanonicalArgs(c.schema, args)
	return slices.ContainsFunc(c.Aggregates(), func(a Aggregate) bool {
		return a.Name == name && sqltext.CanonicalArgs(c.schema, a.Arguments) == args
	})
}

// FunctionSignatures returns the signature set of the changed functions.
func (c *ChangeSet) FunctionSignatures() map[string]struct{} {
	sigs := make(map[string]struct{})
	for _, f := range c.Functions() {
		sigs[f.Signature(c.schema)] = struct{}{}
	}
	return sigs
}

// AggregateSignatures returns the signature set of the changed aggregates.
func (c *ChangeSet) AggregateSignatures() map[string]struct{} {
	sigs := make(map[string]struct{})
	for _, a := range c.Aggregates() {
		sigs[a.Signature(c.schema)] = struct{}{}
	}
	return sigs
}

// kindDependencies lists, per kind, the kinds its objects may reference.
// Types and their I/O functions reference each other; that edge is left out
// and broken by dropping such types with CASCADE.
var kindDependencies = map[Kind][]Kind{
	KindType:          {},
	KindFunction:      {KindType},
	KindAggregate:     {KindFunction, KindType},
	KindCast:          {KindFunction, KindType},
	KindOperator:      {KindFunction, KindType},
	KindOperatorClass: {KindOperator, KindFunction, KindType},
}

// DropOrder returns the kinds in an order where every kind comes before the
// kinds it references. Kinds on the same level keep the order of Kinds.
func DropOrder() ([]Kind, error) {
	deps := make(map[string][]string, len(kindDependencies))
	for kind, refs := range kindDependencies {
		names := make([]string, len(refs))
		for i, r := range refs {
			names[i] = r.String()
		}
		deps[kind.String()] = names
	}
	levels, err := modules.TopSort(deps)
	if err != nil {
		return nil, fmt.Errorf("drop order: %w", err)
	}
	order := slices.Clone(Kinds)
	slices.SortStableFunc(order, func(a, b Kind) int {
		return levels[b.String()] - levels[a.String()]
	})
	return order, nil
}

// DropStatements returns a DROP statement for every changed object, grouped
// by kind in DropOrder. Types listed in cascadeTypes are dropped with CASCADE.
func (c *ChangeSet) DropStatements(cascadeTypes []string) ([]string, error) {
	order, err := DropOrder()
	if err != nil {
		return nil, err
	}
	var stmts []string
	for _, kind := range order {
		for _, obj := range c.objects[kind] {
			stmt, err := DropStatement(c.schema, obj, cascadeTypes)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// DropStatement renders the DROP statement of a single object.
func DropStatement(schema string, obj Object, cascadeTypes []string) (string, error) {
	switch o := obj.(type) {
	case Type:
		cascade := ""
		if slices.ContainsFunc(cascadeTypes, func(t string) bool { return strings.EqualFold(t, o.Name) }) {
			cascade = " CASCADE"
		}
		return fmt.Sprintf("DROP TYPE IF EXISTS %s.%s%s;", schema, o.Name, cascade), nil
	case Function:
		return fmt.Sprintf("DROP FUNCTION IF EXISTS %s.%s(%s);", schema, o.Name, o.Arguments), nil
	case Aggregate:
		args := o.Arguments
		if args == "" {
			args = "*"
		}
		return fmt.Sprintf("DROP AGGREGATE IF EXISTS %s.%s(%s);", schema, o.Name, args), nil
	case Operator:
		return fmt.Sprintf("DROP OPERATOR IF EXISTS %s.%s (%s, %s);", schema, o.Name, o.LeftArg, o.RightArg), nil
	case OperatorClass:
		return fmt.Sprintf("DROP OPERATOR CLASS IF EXISTS %s.%s USING %s;", schema, o.Name, o.IndexMethod), nil
	case Cast:
		return fmt.Sprintf("DROP CAST IF EXISTS (%s AS %s);", o.SourceType, o.TargetType), nil
	default:
		return "", fmt.Errorf("%w: cannot drop %T", ErrMalformedDocument, obj)
	}
}
