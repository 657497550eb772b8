package sig

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a token of a type annotation.
type TokenKind int

const (
	// Ident is a possibly dotted identifier that may refer to a type.
	Ident TokenKind = iota
	// BuiltinType is one of Lua's built-in type names.
	BuiltinType
	// Keyword is `fun` when it introduces a function type.
	Keyword
	String
	Number
	Ellipsis
	// Name is a parameter or field name, e.g. the `x` in `x: integer`.
	Name
	// Punct is one of `= : , |`, rendered with surrounding spaces.
	Punct
	// OtherPunct is a run of punctuation copied verbatim.
	OtherPunct
	// Arrow is `->`, equivalent to `:` before a return type.
	Arrow
	// QuestionMark marks the preceding Ident or BuiltinType as optional.
	QuestionMark
	Other
)

// Token is one lexical element of a type annotation.
type Token struct {
	Kind TokenKind
	Text string
}

var builtinTypes = map[string]bool{
	"nil":           true,
	"any":           true,
	"boolean":       true,
	"string":        true,
	"number":        true,
	"integer":       true,
	"function":      true,
	"table":         true,
	"thread":        true,
	"userdata":      true,
	"lightuserdata": true,
}

const otherPunct = "!\"#$%&'()*+/;<>?@[\\]^`{}~"

// Tokenize splits a type annotation into tokens. Whitespace is dropped.
func Tokenize(s string) []Token {
	var toks []Token
	for i := 0; i < len(s); {
		tok, next := lex(s, i)
		if tok.Text != "" {
			toks = append(toks, tok)
		}
		if tok.Kind == Ident || tok.Kind == BuiltinType {
			if qm, ok := optionalMark(s, next); ok {
				toks = append(toks, Token{QuestionMark, "?"})
				next = qm
			}
		}
		i = max(next, i+1)
	}
	return toks
}

// lex reads one token starting at i. Whitespace yields an empty token.
func lex(s string, i int) (Token, int) {
	c := s[i]
	r, size := utf8.DecodeRuneInString(s[i:])

	switch {
	case unicode.IsSpace(r):
		return Token{}, skipSpace(s, i)
	case strings.HasPrefix(s[i:], "..."):
		return Token{Ellipsis, "..."}, i + 3
	case c == '\'' || c == '"' || c == '`':
		if end, ok := stringEnd(s, i); ok {
			return Token{String, s[i:end]}, end
		}
	case strings.HasPrefix(s[i:], "->"):
		return Token{Arrow, "->"}, i + 2
	}

	if end, ok := numberEnd(s, i); ok {
		return Token{Number, s[i:end]}, end
	}
	if strings.HasPrefix(s[i:], "fun") {
		j := skipSpace(s, i+3)
		if j < len(s) && s[j] == '(' {
			return Token{Keyword, "fun"}, j
		}
	}
	if end := identAt(s, i); end > i {
		text := s[i:end]
		if builtinTypes[text] {
			return Token{BuiltinType, text}, end
		}
		return Token{Ident, text}, end
	}
	if end := nameEnd(s, i); end > i {
		return Token{Name, s[i:end]}, end
	}
	if strings.IndexByte("=:,|", c) >= 0 {
		return Token{Punct, string(c)}, i + 1
	}
	if end := punctEnd(s, i); end > i {
		return Token{OtherPunct, s[i:end]}, end
	}
	return Token{Other, s[i : i+size]}, i + size
}

// Normalize renders tokens in canonical spacing.
func Normalize(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		switch t.Kind {
		case Punct:
			if t.Text == "=" || t.Text == "|" {
				b.WriteByte(' ')
			}
			b.WriteString(t.Text)
			b.WriteByte(' ')
		case Arrow:
			b.WriteString(": ")
		default:
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// stringEnd finds the closing quote of a string literal starting at i.
func stringEnd(s string, i int) (int, bool) {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1, true
		}
	}
	return 0, false
}

// numberEnd matches `1`, `1.0`, `.5`, `1.` and exponents. A number directly
// followed by a word rune is an identifier instead.
func numberEnd(s string, i int) (int, bool) {
	j := i
	digits := func() int {
		k := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		return j - k
	}

	if digits() == 0 {
		if j >= len(s) || s[j] != '.' {
			return 0, false
		}
		j++
		if digits() == 0 {
			return 0, false
		}
	} else if j < len(s) && s[j] == '.' && !strings.HasPrefix(s[j:], "..") {
		j++
		digits()
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j
		j++
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if digits() == 0 {
			j = k
		}
	}
	if j < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[j:]); isWordRune(r) {
			return 0, false
		}
	}
	return j, true
}

// identAt matches a dotted identifier that is not immediately followed by
// `:`, `(`, `.`, `?`, `-` or a word rune, unless an optional mark makes it
// valid. Whitespace after the identifier always terminates it. It returns i
// when there is no match.
func identAt(s string, i int) int {
	end := identEnd(s, i)
	if end == i {
		return i
	}
	for end < len(s) && s[end] == '.' {
		next := identEnd(s, end+1)
		if next == end+1 {
			break
		}
		end = next
	}

	if _, ok := optionalMark(s, end); ok {
		return end
	}
	if skipSpace(s, end) > end || end == len(s) || !identStop(s, end) {
		return end
	}
	return i
}

// optionalMark reports whether an identifier ending at i is followed by a
// `?` that belongs to it, and returns the position after the mark.
func optionalMark(s string, i int) (int, bool) {
	ws := skipSpace(s, i)
	if ws >= len(s) || s[ws] != '?' {
		return 0, false
	}
	after := ws + 1
	if after == len(s) || skipSpace(s, after) > after || !identStop(s, after) {
		return after, true
	}
	return 0, false
}

// identStop reports whether the rune at i prevents an identifier match.
func identStop(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return strings.ContainsRune(":(.?-", r) || isWordRune(r)
}

func nameEnd(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != '.' && !isIdentRune(r) {
			break
		}
		i += size
	}
	return i
}

func punctEnd(s string, i int) int {
	for i < len(s) && strings.IndexByte(otherPunct, s[i]) >= 0 {
		i++
	}
	return i
}
