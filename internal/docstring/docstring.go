// Package docstring extracts `!doc` options, `!doctype` overrides and
// cross-references from raw Lua docstrings.
package docstring

import (
	"maps"
	"regexp"
	"strings"

	"github.com/phobologic/luadoc/internal/model"
)

// Cleaner selects backend-specific cleanup of raw docstrings.
type Cleaner int

const (
	// Plain only dedents. Used for EmmyLua output and source comments.
	Plain Cleaner = iota
	// LuaLS strips generated noise and rewrites `See:` trailers.
	LuaLS
)

var (
	junkLine    = regexp.MustCompile(`(?m)^@\*\w+\*.*$`)
	fencedLua   = regexp.MustCompile("(?ms)^```lua\n.*?\n```")
	optionLine  = regexp.MustCompile(`(?m)^\s*!doc(type)?\s+(.*)$`)
	seeHeader   = regexp.MustCompile(`(?m)^See:\n`)
	seeBullet   = regexp.MustCompile(`^  \* (?:~(.+?)~ (.*)|\[(.+?)\]\(.*?\) (.*))$`)
	seeInline   = regexp.MustCompile(`(?m)^See: (?:~(.+?)~ (.*)|\[(.+?)\]\(.*?\) (.*))$`)
	blankLineRe = regexp.MustCompile(`^[ \t]*$`)
)

// Parse parses a raw docstring. Inferred options and doctype seed the result
// and are overridden by annotations found in the text.
func Parse(raw string, c Cleaner, inferredOptions map[string]string, inferredDoctype string) model.Doc {
	doc := model.Doc{
		Options: make(map[string]string, len(inferredOptions)),
		Doctype: inferredDoctype,
	}
	maps.Copy(doc.Options, inferredOptions)
	if raw == "" {
		return doc
	}

	text := raw
	if c == LuaLS {
		text = junkLine.ReplaceAllString(text, "")
		text = fencedLua.ReplaceAllString(text, "")
	}

	for _, m := range optionLine.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(m[2])
		if m[1] != "" {
			doc.Doctype = value
			continue
		}
		name, arg, _ := strings.Cut(value, ":")
		doc.Options[strings.TrimSpace(name)] = strings.TrimSpace(arg)
	}
	text = optionLine.ReplaceAllString(text, "")

	if c == LuaLS {
		text = reflowSee(text)
	} else {
		text = Dedent(text)
	}

	doc.Text = text
	return doc
}

// reflowSee rewrites the trailing `See:` section into cross-references.
func reflowSee(text string) string {
	var section string
	if locs := seeHeader.FindAllStringIndex(text, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		section = text[last[1]:]
		text = text[:last[0]]
	}

	var refs, rejected []string
	if section != "" {
		for _, line := range strings.Split(section, "\n") {
			if m := seeBullet.FindStringSubmatch(line); m != nil {
				refs = append(refs, xref(m))
			} else {
				rejected = append(rejected, line)
			}
		}
		// A trailing newline in the section yields no extra line.
		if n := len(rejected); n > 0 && rejected[n-1] == "" && strings.HasSuffix(section, "\n") {
			rejected = rejected[:n-1]
		}
	}
	if m := seeInline.FindStringSubmatchIndex(text); m != nil {
		groups := make([]string, 5)
		for i := range groups {
			if m[2*i] >= 0 {
				groups[i] = text[m[2*i]:m[2*i+1]]
			}
		}
		refs = append(refs, xref(groups))
		text = text[:m[0]] + text[m[1]:]
	}

	if len(rejected) > 0 {
		text += "\n\nSee:\n" + strings.Join(rejected, "\n")
	}

	text = Dedent(text)

	switch {
	case len(refs) > 1:
		lines := []string{"", "See:", ""}
		for _, r := range refs {
			lines = append(lines, "- "+r, "")
		}
		text += strings.Join(lines, "\n")
	case len(refs) == 1:
		text += "\nSee: " + refs[0]
	}
	return text
}

// xref formats a matched bullet. Groups 1-2 hold the unresolved `~Type~`
// form, groups 3-4 the link form.
func xref(m []string) string {
	typ, doc := m[3], m[4]
	if m[1] != "" {
		typ, doc = m[1], m[2]
	}
	if doc != "" {
		doc = ": " + doc
	}
	return ":lua:obj:`" + typ + "`" + doc
}

// Dedent removes whitespace common to the start of every non-blank line.
// Blank lines are normalized to empty.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := ""
	first := true
	for i, line := range lines {
		if blankLineRe.MatchString(line) {
			lines[i] = ""
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		switch {
		case first:
			margin = indent
			first = false
		case strings.HasPrefix(indent, margin):
		case strings.HasPrefix(margin, indent):
			margin = indent
		default:
			margin = commonPrefix(margin, indent)
		}
	}
	if margin == "" {
		return strings.Join(lines, "\n")
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
