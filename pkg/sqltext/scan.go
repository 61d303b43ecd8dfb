// Package sqltext splits SQL scripts into statements and canonicalizes the
// object identities found in them. It does not parse SQL: function bodies,
// strings and quoted identifiers are opaque regions that are skipped whole.
package sqltext

import "strings"

type regionKind int

const (
	regionNone regionKind = iota
	regionString
	regionIdentifier
	regionDollar
	regionLineComment
	regionBlockComment
)

// regionAt reports the quoted or commented region starting at i and the index
// just past its end. Unterminated regions run to the end of src.
func regionAt(src string, i int) (regionKind, int) {
	switch c := src[i]; {
	case c == '-' && strings.HasPrefix(src[i:], "--"):
		if n := strings.IndexByte(src[i:], '\n'); n >= 0 {
			return regionLineComment, i + n
		}
		return regionLineComment, len(src)
	case c == '/' && strings.HasPrefix(src[i:], "/*"):
		return regionBlockComment, blockCommentEnd(src, i)
	case c == '\'':
		return regionString, stringEnd(src, i, escapeString(src, i))
	case c == '"':
		return regionIdentifier, stringEnd(src, i, false)
	case c == '$':
		if tag, ok := dollarTag(src, i); ok {
			if n := strings.Index(src[i+len(tag):], tag); n >= 0 {
				return regionDollar, i + len(tag) + n + len(tag)
			}
			return regionDollar, len(src)
		}
	}
	return regionNone, i
}

// blockCommentEnd handles nested comments the way Postgres does.
func blockCommentEnd(src string, i int) int {
	depth := 0
	for j := i; j < len(src)-1; j++ {
		switch {
		case src[j] == '/' && src[j+1] == '*':
			depth++
			j++
		case src[j] == '*' && src[j+1] == '/':
			depth--
			j++
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(src)
}

// escapeString reports whether the quote at i opens an E'...' string.
func escapeString(src string, i int) bool {
	if i == 0 || (src[i-1] != 'E' && src[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentChar(src[i-2])
}

func stringEnd(src string, i int, backslash bool) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if backslash {
				j++
			}
		case quote:
			if j+1 < len(src) && src[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(src)
}

// dollarTag returns the $tag$ opening a dollar-quoted body at i.
func dollarTag(src string, i int) (string, bool) {
	if i > 0 && isIdentChar(src[i-1]) {
		return "", false
	}
	for j := i + 1; j < len(src); j++ {
		c := src[j]
		switch {
		case c == '$':
			return src[i : j+1], true
		case isIdentStart(c), j > i+1 && isDigit(c):
			continue
		default:
			return "", false
		}
	}
	return "", false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// StripComments removes line and block comments outside strings, quoted
// identifiers and dollar-quoted bodies. A block comment becomes a single space
// so the tokens around it stay apart.
func StripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for i := 0; i < len(src); {
		kind, end := regionAt(src, i)
		switch kind {
		case regionNone:
			i++
			continue
		case regionLineComment:
			b.WriteString(src[last:i])
		case regionBlockComment:
			b.WriteString(src[last:i])
			b.WriteByte(' ')
		default:
			i = end
			continue
		}
		i = end
		last = end
	}
	b.WriteString(src[last:])
	return b.String()
}

// Statement is a span of a script ending with its terminating semicolon, or
// with the end of the script for a trailing unterminated statement. Start is
// the first non-space byte.
type Statement struct {
	Start int
	End   int
	Text  string
}

// Split returns the statements of src in order. Whitespace-only fragments are skipped.
func Split(src string) []Statement {
	var stmts []Statement
	begin := 0
	emit := func(end int) {
		start := begin
		for start < end && isSpace(src[start]) {
			start++
		}
		if start < end && strings.TrimSpace(src[start:end]) != ";" {
			stmts = append(stmts, Statement{Start: start, End: end, Text: src[start:end]})
		}
		begin = end
	}
	for i := 0; i < len(src); {
		if src[i] == ';' {
			i++
			emit(i)
			continue
		}
		kind, end := regionAt(src, i)
		if kind == regionNone {
			i++
			continue
		}
		i = end
	}
	if strings.TrimSpace(src[begin:]) != "" {
		emit(len(src))
	}
	return stmts
}
