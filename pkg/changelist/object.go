package changelist

import (
	"fmt"

	"github.com/treeverse/pgpack/pkg/sqltext"
)

// Kind is the kind of a managed object.
type Kind int

const (
	KindType Kind = iota
	KindFunction
	KindAggregate
	KindOperator
	KindOperatorClass
	KindCast
)

// Kinds lists every managed object kind.
var Kinds = []Kind{KindType, KindFunction, KindAggregate, KindOperator, KindOperatorClass, KindCast}

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindFunction:
		return "function"
	case KindAggregate:
		return "aggregate"
	case KindOperator:
		return "operator"
	case KindOperatorClass:
		return "operator class"
	case KindCast:
		return "cast"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// section returns the changelist document key for the kind.
func (k Kind) section() string {
	switch k {
	case KindType:
		return "udt"
	case KindFunction:
		return "udf"
	case KindAggregate:
		return "uda"
	case KindOperator:
		return "udo"
	case KindOperatorClass:
		return "udoc"
	case KindCast:
		return "udc"
	default:
		return ""
	}
}

// Object is a managed object declared by a changelist. The concrete types
// are Type, Function, Aggregate, Operator, OperatorClass and Cast.
type Object interface {
	Kind() Kind
	ObjectName() string
	// Describe renders the object qualified with schema for reports.
	Describe(schema string) string
}

type Type struct {
	Name string
}

type Function struct {
	Name       string
	ReturnType string
	Arguments  string
}

type Aggregate struct {
	Name       string
	ReturnType string
	Arguments  string
}

// Operator arguments are "none" for the missing side of a unary operator.
type Operator struct {
	Name     string
	LeftArg  string
	RightArg string
}

type OperatorClass struct {
	Name        string
	IndexMethod string
}

type Cast struct {
	Name       string
	SourceType string
	TargetType string
}

func (Type) Kind() Kind { return KindType }
func (Function) Kind() Kind { return KindFunction }
func (Aggregate) Kind() Kind { return KindAggregate }
func (Operator) Kind() Kind { return KindOperator }
func (OperatorClass) Kind() Kind { return KindOperatorClass }
func (Cast) Kind() Kind { return KindCast }

func (o Type) ObjectName() string { return o.Name }
func (o Function) ObjectName() string { return o.Name }
func (o Aggregate) ObjectName() string { return o.Name }
func (o Operator) ObjectName() string { return o.Name }
func (o OperatorClass) ObjectName() string { return o.Name }
func (o Cast) ObjectName() string { return o.Name }

func (o Type) Describe(schema string) string {
	return schema + "." + o.Name
}

func (o Function) Describe(schema string) string {
	return o.Signature(schema)
}

func (o Aggregate) Describe(schema string) string {
	return o.Signature(schema)
}

func (o Operator) Describe(schema string) string {
	return fmt.Sprintf("%s.%s(%s, %s)", schema, o.Name, o.LeftArg, o.RightArg)
}

func (o OperatorClass) Describe(schema string) string {
	return fmt.Sprintf("%s.%s using %s", schema, o.Name, o.IndexMethod)
}

func (o Cast) Describe(string) string {
	return fmt.Sprintf("(%s as %s)", o.SourceType, o.TargetType)
}

// Signature is the comparable signature of the function overload.
func (o Function) Signature(schema string) string {
	return sqltext.Signature(schema, o.Name, o.ReturnType, o.Arguments)
}

// Signature is the comparable signature of the aggregate overload.
func (o Aggregate) Signature(schema string) string {
	return sqltext.Signature(schema, o.Name, o.ReturnType, o.Arguments)
}

// Key identifies the operator by name and canonical argument types.
func (o Operator) Key(schema string) string {
	return fmt.Sprintf("%s(%s, %s)", o.Name, canonicalOperand(schema, o.LeftArg), canonicalOperand(schema, o.RightArg))
}

// Key identifies the cast by its canonical source and target types.
func (o Cast) Key(schema string) string {
	return sqltext.CanonicalType(schema, o.SourceType) + " as " + sqltext.CanonicalType(schema, o.TargetType)
}

// canonicalOperand maps the catalog's "-" and an empty side to "none".
func canonicalOperand(schema, t string) string {
	switch c := sqltext.CanonicalType(schema, t); c {
	case "", "-", "none":
		return "none"
	default:
		return c
	}
}

// OperatorKey builds the key of an operator as the catalog reports it.
func OperatorKey(schema, name, left, right string) string {
	return Operator{Name: name, LeftArg: left, RightArg: right}.Key(schema)
}

// CastKey builds the key of a cast as the catalog reports it.
func CastKey(schema, source, target string) string {
	return Cast{SourceType: source, TargetType: target}.Key(schema)
}
