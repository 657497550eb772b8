package autodoc

import "strings"

// writer accumulates indented reST lines.
type writer struct {
	strings.Builder
}

func (w *writer) line(indent int, s string) {
	if s != "" {
		w.WriteString(strings.Repeat(" ", indent))
		w.WriteString(s)
	}
	w.WriteString("\n")
}

// text writes a multi-line block, keeping its relative indentation.
func (w *writer) text(indent int, s string) {
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		w.line(indent, strings.TrimRight(l, " \t"))
	}
}

// blank ends a paragraph unless one was just ended.
func (w *writer) blank() {
	s := w.String()
	if s == "" || strings.HasSuffix(s, "\n\n") {
		return
	}
	w.WriteString("\n")
}

// section writes a section title. Sections cannot be indented, so titles
// inside directive content are written as rubrics.
func (w *writer) section(indent int, title string) {
	w.blank()
	if indent > 0 {
		w.line(indent, ".. rubric:: "+title)
	} else {
		w.line(0, title)
		w.line(0, strings.Repeat("-", len(title)))
	}
	w.blank()
}
