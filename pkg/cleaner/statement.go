package cleaner

import (
	"strings"

	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/sqltext"
)

// ddl is the identity of the managed object a statement creates or drops.
type ddl struct {
	kind  changelist.Kind
	drop  bool
	names []qualifiedName
	// byte range of each name in the statement text
	spans [][2]int
	// source and target types of a cast
	source, target string
	// operands of an operator
	left, right string
	// index method of an operator class
	method string
	// argument list of an aggregate
	args string
	// byte range of "CREATE [OR REPLACE] FUNCTION"
	headStart, headEnd int
	orReplace          bool
}

type qualifiedName struct {
	schema string
	name   string
}

func (q qualifiedName) in(schema string) bool {
	return q.schema != "" && q.schema == strings.ToLower(schema)
}

type parser struct {
	text string
	toks []sqltext.Token
	i    int
}

func (p *parser) done() bool {
	return p.i >= len(p.toks)
}

// keywords consumes the sequence kws when the next tokens match it.
func (p *parser) keywords(kws ...string) bool {
	if p.i+len(kws) > len(p.toks) {
		return false
	}
	for k, kw := range kws {
		if !p.toks[p.i+k].Is(kw) {
			return false
		}
	}
	p.i += len(kws)
	return true
}

func (p *parser) punct(s string) bool {
	if !p.done() && p.toks[p.i].IsPunct(s) {
		p.i++
		return true
	}
	return false
}

func (p *parser) ident() (string, bool) {
	if p.done() {
		return "", false
	}
	t := p.toks[p.i]
	switch t.Kind {
	case sqltext.TokenWord:
		p.i++
		return strings.ToLower(t.Text), true
	case sqltext.TokenQuotedIdent:
		p.i++
		return t.Text, true
	default:
		return "", false
	}
}

// name reads an optionally schema qualified identifier.
func (p *parser) name() (qualifiedName, bool) {
	first, ok := p.ident()
	if !ok {
		return qualifiedName{}, false
	}
	if !p.punct(".") {
		return qualifiedName{name: first}, true
	}
	second, ok := p.ident()
	if !ok {
		return qualifiedName{}, false
	}
	return qualifiedName{schema: first, name: second}, true
}

// operatorName reads an optionally schema qualified operator symbol.
func (p *parser) operatorName() (qualifiedName, bool) {
	var q qualifiedName
	if !p.done() && p.toks[p.i].Kind != sqltext.TokenOperator {
		schema, ok := p.ident()
		if !ok || !p.punct(".") {
			return qualifiedName{}, false
		}
		q.schema = schema
	}
	if p.done() || p.toks[p.i].Kind != sqltext.TokenOperator {
		return qualifiedName{}, false
	}
	q.name = p.toks[p.i].Text
	p.i++
	return q, true
}

// group consumes a parenthesized group and returns the token range inside it.
func (p *parser) group() (from, to int, ok bool) {
	if !p.punct("(") {
		return 0, 0, false
	}
	from = p.i
	depth := 1
	for ; !p.done(); p.i++ {
		switch {
		case p.toks[p.i].IsPunct("("):
			depth++
		case p.toks[p.i].IsPunct(")"):
			depth--
			if depth == 0 {
				to = p.i
				p.i++
				return from, to, true
			}
		}
	}
	return 0, 0, false
}

// span returns the source text covered by tokens [from, to).
func (p *parser) span(from, to int) string {
	if from >= to {
		return ""
	}
	return p.text[p.toks[from].Start:p.toks[to-1].End]
}

// splitTop splits tokens [from, to) on commas outside parentheses.
func (p *parser) splitTop(from, to int) [][2]int {
	var parts [][2]int
	depth, start := 0, from
	for k := from; k < to; k++ {
		switch {
		case p.toks[k].IsPunct("("), p.toks[k].IsPunct("["):
			depth++
		case p.toks[k].IsPunct(")"), p.toks[k].IsPunct("]"):
			depth--
		case p.toks[k].IsPunct(",") && depth == 0:
			parts = append(parts, [2]int{start, k})
			start = k + 1
		}
	}
	if start < to {
		parts = append(parts, [2]int{start, to})
	}
	return parts
}

// parseDDL recognizes the create and drop statements handled by the passes.
// Anything else yields false.
func parseDDL(text string) (ddl, bool) {
	p := &parser{text: text, toks: sqltext.Tokenize(text)}
	switch {
	case p.keywords("CREATE"):
		orReplace := p.keywords("OR", "REPLACE")
		switch {
		case p.keywords("TYPE"):
			return p.typeNames(false)
		case p.keywords("CAST"):
			return p.cast(false)
		case p.keywords("OPERATOR", "CLASS"):
			return p.operatorClass(false)
		case p.keywords("OPERATOR"):
			return p.operator(false)
		case p.keywords("ORDERED", "AGGREGATE"), p.keywords("AGGREGATE"):
			return p.aggregate(false)
		case p.keywords("FUNCTION"):
			d := ddl{
				kind:      changelist.KindFunction,
				headStart: p.toks[0].Start,
				headEnd:   p.toks[p.i-1].End,
				orReplace: orReplace,
			}
			n, ok := p.name()
			d.names = []qualifiedName{n}
			return d, ok
		}
	case p.keywords("DROP"):
		switch {
		case p.keywords("TYPE"):
			p.keywords("IF", "EXISTS")
			return p.typeNames(true)
		case p.keywords("CAST"):
			p.keywords("IF", "EXISTS")
			return p.cast(true)
		case p.keywords("OPERATOR", "CLASS"):
			p.keywords("IF", "EXISTS")
			return p.operatorClass(true)
		case p.keywords("OPERATOR", "FAMILY"):
			return ddl{}, false
		case p.keywords("OPERATOR"):
			p.keywords("IF", "EXISTS")
			return p.operator(true)
		case p.keywords("AGGREGATE"):
			p.keywords("IF", "EXISTS")
			return p.aggregate(true)
		case p.keywords("FUNCTION"):
			p.keywords("IF", "EXISTS")
			n, ok := p.name()
			return ddl{kind: changelist.KindFunction, drop: true, names: []qualifiedName{n}}, ok
		}
	}
	return ddl{}, false
}

func (p *parser) typeNames(drop bool) (ddl, bool) {
	d := ddl{kind: changelist.KindType, drop: drop}
	for {
		if p.done() {
			return ddl{}, false
		}
		start := p.toks[p.i].Start
		n, ok := p.name()
		if !ok {
			return ddl{}, false
		}
		d.names = append(d.names, n)
		d.spans = append(d.spans, [2]int{start, p.toks[p.i-1].End})
		if !drop || !p.punct(",") {
			return d, true
		}
	}
}

func (p *parser) cast(drop bool) (ddl, bool) {
	from, to, ok := p.group()
	if !ok {
		return ddl{}, false
	}
	depth := 0
	for k := from; k < to; k++ {
		switch {
		case p.toks[k].IsPunct("("):
			depth++
		case p.toks[k].IsPunct(")"):
			depth--
		case p.toks[k].Is("AS") && depth == 0:
			return ddl{
				kind:   changelist.KindCast,
				drop:   drop,
				source: p.span(from, k),
				target: p.span(k+1, to),
			}, true
		}
	}
	return ddl{}, false
}

func (p *parser) operator(drop bool) (ddl, bool) {
	n, ok := p.operatorName()
	if !ok {
		return ddl{}, false
	}
	from, to, ok := p.group()
	if !ok {
		return ddl{}, false
	}
	d := ddl{kind: changelist.KindOperator, drop: drop, names: []qualifiedName{n}}
	parts := p.splitTop(from, to)
	if drop {
		// DROP OPERATOR name (left, right) with NONE for a missing side
		if len(parts) != 2 {
			return ddl{}, false
		}
		d.left, d.right = p.span(parts[0][0], parts[0][1]), p.span(parts[1][0], parts[1][1])
		return d, true
	}
	for _, part := range parts {
		if part[1]-part[0] < 2 {
			continue
		}
		key, eq := p.toks[part[0]], p.toks[part[0]+1]
		if eq.Kind != sqltext.TokenOperator || !strings.HasPrefix(eq.Text, "=") {
			continue
		}
		value := strings.TrimSpace(p.text[eq.Start+1 : p.toks[part[1]-1].End])
		switch {
		case key.Is("LEFTARG"):
			d.left = value
		case key.Is("RIGHTARG"):
			d.right = value
		}
	}
	return d, true
}

func (p *parser) operatorClass(drop bool) (ddl, bool) {
	n, ok := p.name()
	if !ok {
		return ddl{}, false
	}
	depth := 0
	for ; !p.done(); p.i++ {
		switch t := p.toks[p.i]; {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.Is("USING") && depth == 0:
			p.i++
			method, ok := p.ident()
			if !ok {
				return ddl{}, false
			}
			return ddl{kind: changelist.KindOperatorClass, drop: drop, names: []qualifiedName{n}, method: method}, true
		}
	}
	return ddl{}, false
}

func (p *parser) aggregate(drop bool) (ddl, bool) {
	n, ok := p.name()
	if !ok {
		return ddl{}, false
	}
	from, to, ok := p.group()
	if !ok {
		return ddl{}, false
	}
	args := p.span(from, to)
	if args == "*" {
		args = ""
	}
	return ddl{kind: changelist.KindAggregate, drop: drop, names: []qualifiedName{n}, args: args}, true
}
