package sqltext

import "strings"

type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenQuotedIdent
	TokenString
	TokenBody
	TokenNumber
	TokenOperator
	TokenPunct
)

// Token is a lexical unit of a statement. Text holds the raw source text;
// for quoted identifiers it holds the identifier without quotes.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Is reports whether the token is the keyword kw, ignoring case.
func (t Token) Is(kw string) bool {
	return t.Kind == TokenWord && strings.EqualFold(t.Text, kw)
}

// IsPunct reports whether the token is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

const operatorChars = "+-*/<>=~!@#%^&|`?"

// Tokenize lexes a statement. Comments are dropped.
func Tokenize(src string) []Token {
	var tokens []Token
	for i := 0; i < len(src); {
		c := src[i]
		if isSpace(c) {
			i++
			continue
		}
		if kind, end := regionAt(src, i); kind != regionNone {
			switch kind {
			case regionString:
				tokens = append(tokens, Token{Kind: TokenString, Text: src[i:end], Start: i, End: end})
			case regionIdentifier:
				text := strings.TrimSuffix(strings.TrimPrefix(src[i:end], `"`), `"`)
				tokens = append(tokens, Token{Kind: TokenQuotedIdent, Text: strings.ReplaceAll(text, `""`, `"`), Start: i, End: end})
			case regionDollar:
				tokens = append(tokens, Token{Kind: TokenBody, Text: src[i:end], Start: i, End: end})
			}
			i = end
			continue
		}
		start := i
		kind := TokenPunct
		switch {
		case isIdentStart(c):
			kind = TokenWord
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
		case isDigit(c):
			kind = TokenNumber
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
		case strings.IndexByte(operatorChars, c) >= 0:
			kind = TokenOperator
			for i < len(src) && strings.IndexByte(operatorChars, src[i]) >= 0 {
				if strings.HasPrefix(src[i:], "--") || strings.HasPrefix(src[i:], "/*") {
					break
				}
				i++
			}
		default:
			i++
		}
		tokens = append(tokens, Token{Kind: kind, Text: src[start:i], Start: start, End: i})
	}
	return tokens
}
