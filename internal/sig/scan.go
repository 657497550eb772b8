// Package sig parses and normalizes Lua type annotations and directive
// signatures.
package sig

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// scanner tracks bracket depth and string literals while walking a
// signature byte by byte.
type scanner struct {
	depth int
	inStr bool
	quote byte
	esc   bool
}

// step consumes c and reports whether it is outside of any string literal
// and at depth zero after bracket accounting for c itself.
func (s *scanner) step(c byte) (top bool) {
	if s.inStr {
		switch {
		case s.esc:
			s.esc = false
		case c == s.quote:
			s.inStr = false
		case c == '\\':
			s.esc = true
		}
		return false
	}
	switch c {
	case '(', '[', '{', '<':
		s.depth++
		return false
	case ')', ']', '}', '>':
		s.depth = max(s.depth-1, 0)
		return false
	case '\'', '"', '`':
		s.inStr = true
		s.quote = c
		return false
	}
	return s.depth == 0
}

// SeparateParenPrefix splits a leading bracketed group from s. If s does not
// start with open, the prefix is empty and the rest is s trimmed. Both results
// are trimmed. An unclosed group consumes the whole string.
func SeparateParenPrefix(s string, open, close byte) (inner, rest string) {
	if len(s) == 0 || s[0] != open {
		return "", strings.TrimSpace(s)
	}
	s = s[1:]

	var sc scanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !sc.inStr && sc.depth == 0 && c == close {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		}
		sc.step(c)
	}
	return strings.TrimSpace(s), ""
}

// Split separates s by sep, ignoring separators nested in brackets or string
// literals. Elements are trimmed and blank elements are dropped.
func Split(s string, sep byte) []string {
	return split(s, sep, true)
}

// SplitNoStrip is like Split but keeps surrounding whitespace of elements.
func SplitNoStrip(s string, sep byte) []string {
	return split(s, sep, false)
}

func split(s string, sep byte, strip bool) []string {
	var res []string
	add := func(elem string) {
		if strip {
			elem = strings.TrimSpace(elem)
		}
		if strings.TrimSpace(elem) != "" {
			res = append(res, elem)
		}
	}

	var sc scanner
	pos := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.step(c) && c == sep {
			add(s[pos:i])
			pos = i + 1
		}
	}
	if pos < len(s) {
		add(s[pos:])
	}
	return res
}

// Pair is one element of a type list: an optional name and a type.
type Pair struct {
	Name string
	Type string
}

// ParseTypes parses a comma-separated list of types or name-type pairs. In
// params mode a lone name without a type is taken as a name.
func ParseTypes(s string, params bool) []Pair {
	var res []Pair
	for _, elem := range Split(s, ',') {
		parts := SplitNoStrip(elem, ':')
		switch {
		case len(parts) == 0:
			continue
		case (len(parts) == 1 && !params) || !isParamName(parts[0]):
			res = append(res, Pair{Type: strings.TrimSpace(strings.Join(parts, ":"))})
		default:
			res = append(res, Pair{
				Name: strings.TrimSpace(parts[0]),
				Type: strings.TrimSpace(strings.Join(parts[1:], ":")),
			})
		}
	}
	return res
}

// isParamName reports whether s is a single bare identifier, possibly
// surrounded by whitespace.
func isParamName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isIdentRune(r rune) bool {
	return r == '-' || isWordRune(r)
}

// identEnd returns the end of a run of identifier runes starting at i.
func identEnd(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isIdentRune(r) {
			break
		}
		i += size
	}
	return i
}
