// Package toon encodes module indexes in TOON (Token-Oriented Object
// Notation).
package toon

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

var columns = []string{"name", "signature", "synopsis", "file", "line"}

// Encode converts an Index into TOON format: a header followed by one
// table per group.
func Encode(idx *Index) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("module: %s", encodeValue(idx.Module)))
	if idx.Runtime != "" {
		parts = append(parts, fmt.Sprintf("runtime: %s", encodeValue(idx.Runtime)))
	}

	for _, g := range idx.Groups {
		rows := make([][]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			line := ""
			if e.Line > 0 {
				line = fmt.Sprintf("%d", e.Line)
			}
			rows = append(rows, []string{e.Name, e.Signature, e.Synopsis, e.File, line})
		}
		parts = append(parts, formatTabular(g.Kind, columns, rows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
