package docstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	doc := Parse("", LuaLS, map[string]string{"private": ""}, "table")
	assert.Empty(t, doc.Text)
	assert.Equal(t, map[string]string{"private": ""}, doc.Options)
	assert.Equal(t, "table", doc.Doctype)

	doc = Parse("", Plain, nil, "")
	assert.Empty(t, doc.Text)
	assert.Empty(t, doc.Options)
	assert.Empty(t, doc.Doctype)
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	raw := "Summary line.\n!doc private\n  !doc title: Some: Title \n!doctype  const\nMore."
	doc := Parse(raw, Plain, map[string]string{"private": "x", "module": "m"}, "table")

	assert.Equal(t, map[string]string{
		"private": "",
		"title":   "Some: Title",
		"module":  "m",
	}, doc.Options)
	assert.Equal(t, "const", doc.Doctype)
	assert.NotContains(t, doc.Text, "!doc")
	assert.Contains(t, doc.Text, "Summary line.")
	assert.Contains(t, doc.Text, "More.")
}

func TestParseDoesNotMutateInferred(t *testing.T) {
	t.Parallel()

	inferred := map[string]string{"a": "1"}
	_ = Parse("!doc b", Plain, inferred, "")
	assert.Equal(t, map[string]string{"a": "1"}, inferred)
}

func TestParseOnlyAnnotationsIsUndocumented(t *testing.T) {
	t.Parallel()

	doc := Parse("!doc private", Plain, nil, "")
	assert.Empty(t, doc.Text)
	assert.True(t, doc.HasOption("private"))
}

func TestPlainDedent(t *testing.T) {
	t.Parallel()

	doc := Parse("    first\n      nested\n\n    last", Plain, nil, "")
	assert.Equal(t, "first\n  nested\n\nlast", doc.Text)
}

func TestLuaLSStripsJunk(t *testing.T) {
	t.Parallel()

	raw := "```lua\nlocal x = 1\n```\nDescription.\n@*param* `x` - junk"
	doc := Parse(raw, LuaLS, nil, "")
	assert.Equal(t, "\nDescription.\n", doc.Text)
}

func TestPlainKeepsFences(t *testing.T) {
	t.Parallel()

	raw := "```lua\nlocal x = 1\n```"
	doc := Parse(raw, Plain, nil, "")
	assert.Equal(t, raw, doc.Text)
}

func TestSeeSingleIsInline(t *testing.T) {
	t.Parallel()

	raw := "Body.\n\nSee:\n  * [mod.Foo](file:///x.lua#1) the foo\n"
	doc := Parse(raw, LuaLS, nil, "")
	assert.Equal(t, "Body.\n\n\nSee: :lua:obj:`mod.Foo`: the foo", doc.Text)
}

func TestSeeMultipleIsBlock(t *testing.T) {
	t.Parallel()

	raw := "Body.\n\nSee:\n  * [mod.Foo](file:///x.lua#1) the foo\n  * ~mod.Bar~ \n"
	doc := Parse(raw, LuaLS, nil, "")
	want := "Body.\n\n" +
		"\nSee:\n\n" +
		"- :lua:obj:`mod.Foo`: the foo\n\n" +
		"- :lua:obj:`mod.Bar`\n"
	assert.Equal(t, want, doc.Text)
}

func TestSeeZeroRefsHasNoTrailer(t *testing.T) {
	t.Parallel()

	doc := Parse("Body.", LuaLS, nil, "")
	assert.Equal(t, "Body.", doc.Text)
}

func TestSeeRejectedLinesKept(t *testing.T) {
	t.Parallel()

	raw := "Body.\nSee:\n  * [a](b) doc\n  free text\n"
	doc := Parse(raw, LuaLS, nil, "")
	assert.Equal(t, "Body.\n\n\nSee:\n  free text\nSee: :lua:obj:`a`: doc", doc.Text)
}

func TestSeeLastSectionWins(t *testing.T) {
	t.Parallel()

	raw := "See:\n  * [first](x) one\nBody.\nSee:\n  * [second](y) two\n"
	doc := Parse(raw, LuaLS, nil, "")
	assert.Contains(t, doc.Text, ":lua:obj:`second`: two")
	assert.Contains(t, doc.Text, "See:\n  * [first](x) one")
}

func TestSeeInlineLine(t *testing.T) {
	t.Parallel()

	raw := "See: [mod.Foo](file:///x) docs\nBody."
	doc := Parse(raw, LuaLS, nil, "")
	assert.Equal(t, "\nBody.\nSee: :lua:obj:`mod.Foo`: docs", doc.Text)
}

func TestDedent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a\n b", "a\n b"},
		{"  a\n  b", "a\nb"},
		{"  a\n \n    b", "a\n\n  b"},
		{"\t a\n\t b", "a\nb"},
		{"\t a\n  b", "\t a\n  b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Dedent(tt.in), "Dedent(%q)", tt.in)
	}
}
