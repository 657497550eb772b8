package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/luadoc/internal/model"
)

func TestParse(t *testing.T) {
	t.Parallel()

	v, err := Parse("title", "  API  ")
	require.NoError(t, err)
	assert.Equal(t, "API", v)

	_, err = Parse("private", "yes")
	var inv *InvalidOptionError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "private", inv.Name)

	_, err = Parse("member-order", "random")
	require.True(t, errors.As(err, &inv))

	v, err = Parse("member-order", "groupwise")
	require.NoError(t, err)
	assert.Equal(t, "groupwise", v)

	_, err = Parse("bogus", "")
	var unk *UnknownOptionError
	require.True(t, errors.As(err, &unk))
	assert.Equal(t, "bogus", unk.Name)
}

func TestParseMembers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want MemberList
	}{
		{"", MemberList{All: true}},
		{"a b  c", MemberList{Names: []string{"a", "b", "c"}}},
		{"a, b c,, d", MemberList{Names: []string{"a", "b c", "d"}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseMembers(tt.in), "ParseMembers(%q)", tt.in)
	}
}

func TestSetMergeAndNested(t *testing.T) {
	t.Parallel()

	s, err := New(map[string]string{"members": "", "undoc-members": "a b", "member-order": "alphabetical"})
	require.NoError(t, err)

	merged := s.Merge(Set{"members": "x", "recursive": ""})
	assert.Equal(t, "", merged["members"])
	assert.True(t, merged.Has("recursive"))
	assert.False(t, s.Has("recursive"), "merge must not modify the receiver")

	nested := merged.Nested()
	assert.Equal(t, Set{"members": "", "member-order": "alphabetical", "recursive": ""}, nested)

	list, ok := merged.Members("undoc-members")
	require.True(t, ok)
	assert.True(t, list.Contains("b"))
	assert.False(t, list.All)

	assert.Equal(t, "alphabetical", merged.Order())
	assert.Equal(t, "bysource", Set{}.Order())
}

func TestForObject(t *testing.T) {
	t.Parallel()

	o := model.New(&model.Function{})
	o.Visibility = model.Protected
	o.Async = true
	o.Doc.Options = map[string]string{"synopsis": "short"}

	s, err := ForObject(Set{"members": ""}, o)
	require.NoError(t, err)
	assert.Equal(t, Set{"members": "", "protected": "", "async": "", "synopsis": "short"}, s)

	o.Doc.Options = map[string]string{"nonsense": ""}
	_, err = ForObject(nil, o)
	var unk *UnknownOptionError
	assert.True(t, errors.As(err, &unk))
}

func TestNamesSorted(t *testing.T) {
	t.Parallel()

	names := Names()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "globals")
	assert.True(t, Known("index-table"))
	assert.False(t, Known("index_table"))
}
