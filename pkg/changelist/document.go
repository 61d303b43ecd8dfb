package changelist

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/treeverse/pgpack/pkg/packerrors"
	"gopkg.in/yaml.v3"
)

var ErrMalformedDocument = fmt.Errorf("%w: malformed changelist", packerrors.ErrConfig)

// entry is a declared name with its optional details.
type entry struct {
	Name    string
	Details map[string]string
}

// entries decodes a changelist section. A section is either a mapping of
// name to details, or a sequence whose items are names or single-key
// mappings. A name whose value is a sequence declares one entry per item,
// which is how overloads are listed.
type entries []entry

func (e *entries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		return fmt.Errorf("line %d: expected a mapping or a sequence", node.Line)
	case yaml.MappingNode:
		return e.appendMapping(node)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				*e = append(*e, entry{Name: item.Value})
			case yaml.MappingNode:
				if err := e.appendMapping(item); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: unexpected sequence item", item.Line)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: unexpected section content", node.Line)
	}
}

func (e *entries) appendMapping(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			*e = append(*e, entry{Name: name})
		case yaml.MappingNode:
			details, err := decodeDetails(value)
			if err != nil {
				return err
			}
			*e = append(*e, entry{Name: name, Details: details})
		case yaml.SequenceNode:
			for _, item := range value.Content {
				details, err := decodeDetails(item)
				if err != nil {
					return err
				}
				*e = append(*e, entry{Name: name, Details: details})
			}
		default:
			return fmt.Errorf("line %d: unexpected value for %s", value.Line, name)
		}
	}
	return nil
}

func decodeDetails(node *yaml.Node) (map[string]string, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected details mapping", node.Line)
	}
	details := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: detail %s must be a scalar", value.Line, key.Value)
		}
		if value.Tag != "!!null" {
			details[key.Value] = value.Value
		}
	}
	return details, nil
}

// Document is a decoded changelist between two consecutive revisions.
type Document struct {
	Ref             Ref     `yaml:"-"`
	NewModules      entries `yaml:"new module"`
	Types           entries `yaml:"udt"`
	Functions       entries `yaml:"udf"`
	Aggregates      entries `yaml:"uda"`
	Operators       entries `yaml:"udo"`
	OperatorClasses entries `yaml:"udoc"`
	Casts           entries `yaml:"udc"`
}

// DecodeDocument reads a changelist body.
func DecodeDocument(r io.Reader, ref Ref) (*Document, error) {
	doc := &Document{Ref: ref}
	if err := yaml.NewDecoder(r).Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w: %s", ref.Name, ErrMalformedDocument, err)
	}
	doc.Ref = ref
	return doc, nil
}

// normalizer lower-cases declared text and replaces the schema placeholder.
type normalizer struct {
	schema      string
	placeholder string
}

func (n normalizer) text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if n.placeholder != "" {
		s = strings.ReplaceAll(s, n.placeholder, n.schema)
	}
	return s
}

// objects converts the document sections into managed objects of the given kind.
func (d *Document) objects(kind Kind, n normalizer) ([]Object, error) {
	var (
		section entries
		out     []Object
	)
	switch kind {
	case KindType:
		section = d.Types
	case KindFunction:
		section = d.Functions
	case KindAggregate:
		section = d.Aggregates
	case KindOperator:
		section = d.Operators
	case KindOperatorClass:
		section = d.OperatorClasses
	case KindCast:
		section = d.Casts
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrMalformedDocument, kind)
	}
	for _, e := range section {
		name := n.text(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: %w: %s entry without a name", d.Ref.Name, ErrMalformedDocument, kind.section())
		}
		detail := func(key string) string {
			return n.text(e.Details[key])
		}
		requireDetails := func(keys ...string) error {
			for _, key := range keys {
				if detail(key) == "" {
					return fmt.Errorf("%s: %w: %s %s missing %s", d.Ref.Name, ErrMalformedDocument, kind.section(), name, key)
				}
			}
			return nil
		}

		var obj Object
		switch kind {
		case KindType:
			obj = Type{Name: name}
		case KindFunction:
			if err := requireDetails("rettype"); err != nil {
				return nil, err
			}
			obj = Function{Name: name, ReturnType: detail("rettype"), Arguments: detail("argument")}
		case KindAggregate:
			if err := requireDetails("rettype"); err != nil {
				return nil, err
			}
			obj = Aggregate{Name: name, ReturnType: detail("rettype"), Arguments: detail("argument")}
		case KindOperator:
			obj = Operator{Name: name, LeftArg: operand(detail("leftarg")), RightArg: operand(detail("rightarg"))}
		case KindOperatorClass:
			if err := requireDetails("index"); err != nil {
				return nil, err
			}
			obj = OperatorClass{Name: name, IndexMethod: detail("index")}
		case KindCast:
			if err := requireDetails("sourcetype", "targettype"); err != nil {
				return nil, err
			}
			obj = Cast{Name: name, SourceType: detail("sourcetype"), TargetType: detail("targettype")}
		}
		out = append(out, obj)
	}
	return out, nil
}

func operand(t string) string {
	if t == "" || t == "-" {
		return "none"
	}
	return t
}
