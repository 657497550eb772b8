package sig

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SyntaxError reports a malformed signature.
type SyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d in %q", e.Msg, e.Offset, e.Input)
}

var normalized = mustCache(4096)

func mustCache(size int) *lru.Cache[string, string] {
	c, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeType returns the canonical spacing of a type annotation. Results
// are memoized; the cache is safe for concurrent use.
func NormalizeType(s string) string {
	if v, ok := normalized.Get(s); ok {
		return v
	}
	v := Normalize(Tokenize(s))
	normalized.Add(s, v)
	return v
}

// Markup renders a type annotation as reST, passing identifiers through xref.
// Everything else is emitted as normalized text.
func Markup(s string, xref func(name string) string) string {
	var b strings.Builder
	var pending []Token
	flush := func() {
		b.WriteString(Normalize(pending))
		pending = pending[:0]
	}
	for _, t := range Tokenize(s) {
		if t.Kind == Ident {
			flush()
			b.WriteString(xref(t.Text))
			continue
		}
		pending = append(pending, t)
	}
	flush()
	return b.String()
}

// SeparateNamePrefix splits a leading object name from s. Names consist of
// dot-separated identifiers and bracketed index segments; bracketed segments
// are normalized.
func SeparateNamePrefix(s string) (name, rest string, err error) {
	input := s
	var parts []string
	s = strings.TrimLeft(s, " \t\n\r")
	for s != "" {
		dotted := false
		if len(parts) > 0 && s[0] == '.' {
			s = s[1:]
			dotted = true
		}
		if s != "" && s[0] == '[' {
			var inner string
			inner, s = SeparateParenPrefix(s, '[', ']')
			parts = append(parts, "["+NormalizeType(inner)+"]")
			continue
		}
		if end := identEnd(s, 0); end > 0 {
			parts = append(parts, s[:end])
			s = s[end:]
			continue
		}
		if dotted {
			return "", "", &SyntaxError{Input: input, Offset: len(input) - len(s), Msg: "incorrect object name"}
		}
		break
	}
	if len(parts) == 0 {
		return "", "", &SyntaxError{Input: input, Offset: 0, Msg: "incorrect object name"}
	}
	return strings.Join(parts, "."), s, nil
}

// NormalizeName normalizes bracketed segments of a dotted name.
func NormalizeName(name string) string {
	if !strings.Contains(name, "[") {
		return name
	}
	parts := Split(name, '.')
	for i, p := range parts {
		if strings.HasPrefix(p, "[") && strings.HasSuffix(p, "]") {
			parts[i] = "[" + NormalizeType(p[1:len(p)-1]) + "]"
		}
	}
	return strings.Join(parts, ".")
}

// FunctionSig is a parsed `name(params) -> returns` signature.
type FunctionSig struct {
	Name    string
	Params  []Pair
	Returns []Pair
}

// ParseFunction parses a function signature. Returns may follow `->` or `:`,
// and one layer of parentheses around them is removed.
func ParseFunction(s string) (FunctionSig, error) {
	name, rest, err := SeparateNamePrefix(s)
	if err != nil {
		return FunctionSig{}, err
	}
	rest = strings.TrimSpace(rest)
	params, returns := SeparateParenPrefix(rest, '(', ')')

	switch {
	case strings.HasPrefix(returns, "->"):
		returns = strings.TrimSpace(returns[2:])
	case strings.HasPrefix(returns, ":"):
		returns = strings.TrimSpace(returns[1:])
	case returns != "":
		return FunctionSig{}, &SyntaxError{
			Input:  s,
			Offset: len(s) - len(returns),
			Msg:    "incorrect function return type",
		}
	}
	returns = stripParens(returns)

	return FunctionSig{
		Name:    name,
		Params:  ParseTypes(params, true),
		Returns: ParseTypes(returns, false),
	}, nil
}

// ClassSig is a parsed `name: base1, base2` signature.
type ClassSig struct {
	Name  string
	Bases []string
}

// ParseClass parses a class signature.
func ParseClass(s string) (ClassSig, error) {
	name, rest, err := SeparateNamePrefix(s)
	if err != nil {
		return ClassSig{}, err
	}
	return ClassSig{Name: name, Bases: Split(trimAssign(rest), ',')}, nil
}

// DataSig is a parsed `name: type` or `name = type` signature.
type DataSig struct {
	Name string
	Type string
}

// ParseData parses a data or alias signature.
func ParseData(s string) (DataSig, error) {
	name, rest, err := SeparateNamePrefix(s)
	if err != nil {
		return DataSig{}, err
	}
	return DataSig{Name: name, Type: trimAssign(rest)}, nil
}

// ParseTable parses a table signature, which is a bare name.
func ParseTable(s string) (string, error) {
	name, rest, err := SeparateNamePrefix(s)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(rest) != "" {
		return "", &SyntaxError{Input: s, Offset: len(s) - len(rest), Msg: "unexpected symbols after table name"}
	}
	return name, nil
}

// DisplayParam moves an optional marker from a parameter's type to its name:
// `arg: (string|nil)?` displays as `arg?: string|nil`.
func DisplayParam(name, typ string) (string, string) {
	if name != "" && strings.HasSuffix(typ, "?") {
		name += "?"
		typ = typ[:len(typ)-1]
		if strings.HasPrefix(typ, "(") && strings.HasSuffix(typ, ")") {
			typ = typ[1 : len(typ)-1]
		}
	}
	return name, typ
}

func trimAssign(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=") || strings.HasPrefix(s, ":") {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

// stripParens removes one layer of parentheses enclosing all of s.
func stripParens(s string) string {
	if !strings.HasPrefix(s, "(") {
		return s
	}
	if inner, rest := SeparateParenPrefix(s, '(', ')'); rest == "" {
		return inner
	}
	return s
}
