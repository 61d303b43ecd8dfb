package sqltext

import (
	"fmt"
	"strings"
)

// typeSynonyms maps alternative spellings to the name the catalog prints.
var typeSynonyms = map[string]string{
	"int2":    "smallint",
	"int":     "integer",
	"int4":    "integer",
	"int8":    "bigint",
	"float8":  "double precision",
	"float4":  "real",
	"varchar": "character varying",
	"bool":    "boolean",
}

// CanonicalType normalizes a type name so that spellings of the same type
// compare equal: case, quotes and spacing are normalized, known synonyms are
// replaced by their catalog name and a qualifier naming schema (or
// pg_catalog) is dropped. Array brackets and type modifiers are kept.
func CanonicalType(schema, typ string) string {
	t := strings.ToLower(strings.ReplaceAll(typ, `"`, ""))
	t = strings.Join(strings.Fields(t), " ")
	for _, p := range []string{".", "[", "]", "(", ")", ","} {
		t = strings.ReplaceAll(t, " "+p, p)
		t = strings.ReplaceAll(t, p+" ", p)
	}
	t = strings.ReplaceAll(t, ",", ", ")

	setof := strings.HasPrefix(t, "setof ")
	t = strings.TrimPrefix(t, "setof ")
	if schema != "" {
		t = strings.TrimPrefix(t, strings.ToLower(schema)+".")
	}
	t = strings.TrimPrefix(t, "pg_catalog.")

	base, suffix := t, ""
	if i := strings.IndexAny(t, "[("); i >= 0 {
		base, suffix = strings.TrimSpace(t[:i]), t[i:]
	}
	if canonical, ok := typeSynonyms[base]; ok {
		base = canonical
	}
	if setof {
		return "setof " + base + suffix
	}
	return base + suffix
}

// SplitArgs splits an argument list on top level commas.
func SplitArgs(args string) []string {
	var (
		out   []string
		depth int
		last  int
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(args[last:i]))
				last = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(args[last:]); rest != "" || len(out) > 0 {
		out = append(out, rest)
	}
	return out
}

// CanonicalArgs canonicalizes every type of an argument list and joins them with ", ".
func CanonicalArgs(schema, args string) string {
	parts := SplitArgs(args)
	for i, p := range parts {
		parts[i] = CanonicalType(schema, p)
	}
	return strings.Join(parts, ", ")
}

// Signature identifies a function or aggregate overload as
// "<rettype> <schema>.<name>(<args>)", lower-cased without quotes. A SETOF
// return type is reduced to its element type, as the catalog reports it.
func Signature(schema, name, rettype, args string) string {
	s := fmt.Sprintf("%s %s.%s(%s)",
		strings.TrimPrefix(CanonicalType(schema, rettype), "setof "),
		strings.TrimSpace(schema),
		strings.TrimSpace(name),
		CanonicalArgs(schema, args))
	return strings.ToLower(strings.ReplaceAll(s, `"`, ""))
}
