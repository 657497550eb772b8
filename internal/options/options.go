// Package options implements the option bag of the autodoc directives.
package options

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/luadoc/internal/model"
)

type kind int

const (
	flag kind = iota
	text
	members
	choice
)

var optionKinds = map[string]kind{
	"no-index":          flag,
	"annotation":        text,
	"virtual":           flag,
	"private":           flag,
	"protected":         flag,
	"package":           flag,
	"abstract":          flag,
	"async":             flag,
	"global":            flag,
	"deprecated":        flag,
	"synopsis":          text,
	"members":           members,
	"undoc-members":     members,
	"private-members":   members,
	"protected-members": members,
	"package-members":   members,
	"special-members":   members,
	"inherited-members": members,
	"exclude-members":   members,
	"globals":           members,
	"title":             text,
	"index-title":       text,
	"recursive":         flag,
	"index-table":       flag,
	"member-order":      choice,
	"module":            text,
}

// MemberOrders lists valid values of the member-order option.
var MemberOrders = []string{"alphabetical", "groupwise", "bysource"}

// MemberOptions lists options that take member lists, in gate order.
var MemberOptions = []string{
	"members",
	"undoc-members",
	"private-members",
	"protected-members",
	"package-members",
	"special-members",
	"inherited-members",
}

// UnknownOptionError reports an option name that is not a directive option.
type UnknownOptionError struct {
	Name string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option %q", e.Name)
}

// InvalidOptionError reports a known option with a malformed value.
type InvalidOptionError struct {
	Name   string
	Value  string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid value %q for option %q: %s", e.Value, e.Name, e.Reason)
}

// Known reports whether name is a valid option.
func Known(name string) bool {
	_, ok := optionKinds[name]
	return ok
}

// Names returns all option names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(optionKinds))
}

// Parse validates an option value and returns its normalized form.
func Parse(name, value string) (string, error) {
	k, ok := optionKinds[name]
	if !ok {
		return "", &UnknownOptionError{Name: name}
	}
	value = strings.TrimSpace(value)
	switch k {
	case flag:
		if value != "" {
			return "", &InvalidOptionError{Name: name, Value: value, Reason: "no argument is allowed"}
		}
	case choice:
		if !slices.Contains(MemberOrders, value) {
			return "", &InvalidOptionError{
				Name:   name,
				Value:  value,
				Reason: "expected one of " + strings.Join(MemberOrders, ", "),
			}
		}
	}
	return value, nil
}

// MemberList is the parsed value of a member-list option.
type MemberList struct {
	// All is set when the option was given without names.
	All   bool
	Names []string
}

// Contains reports whether the list names the member explicitly.
func (l MemberList) Contains(name string) bool {
	return slices.Contains(l.Names, name)
}

// ParseMembers parses a member-list value: empty means all members, a value
// with commas is a comma-separated list, anything else is split on spaces.
func ParseMembers(value string) MemberList {
	if value == "" {
		return MemberList{All: true}
	}
	var names []string
	if strings.Contains(value, ",") {
		for _, n := range strings.Split(value, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	} else {
		names = strings.Fields(value)
	}
	return MemberList{Names: names}
}

// Set is a validated option bag. Keys are option names, values are their
// normalized arguments.
type Set map[string]string

// New validates raw options.
func New(raw map[string]string) (Set, error) {
	s := make(Set, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		if err := s.Add(name, raw[name]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add validates and sets one option.
func (s Set) Add(name, value string) error {
	v, err := Parse(name, value)
	if err != nil {
		return err
	}
	s[name] = v
	return nil
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Members returns the parsed member list for name.
func (s Set) Members(name string) (MemberList, bool) {
	v, ok := s[name]
	if !ok {
		return MemberList{}, false
	}
	return ParseMembers(v), true
}

// Order returns the member order, defaulting to bysource.
func (s Set) Order() string {
	if v := s["member-order"]; v != "" {
		return v
	}
	return "bysource"
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	return maps.Clone(s)
}

// Merge returns a copy of s with defaults filled in for missing options.
func (s Set) Merge(defaults Set) Set {
	out := s.Clone()
	if out == nil {
		out = make(Set)
	}
	for k, v := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Nested returns the options inherited by members rendered inside the
// current object: ordering, recursion, indexing, and member lists that
// select all members.
func (s Set) Nested() Set {
	out := make(Set)
	for _, k := range []string{"member-order", "recursive", "no-index"} {
		if v, ok := s[k]; ok {
			out[k] = v
		}
	}
	for _, k := range MemberOptions {
		if v, ok := s[k]; ok && v == "" {
			out[k] = v
		}
	}
	return out
}

// ForObject combines base options with those implied by a symbol: its
// visibility, async and deprecation markers, and its `!doc` annotations.
func ForObject(base Set, o *model.Object) (Set, error) {
	out := base.Clone()
	if out == nil {
		out = make(Set)
	}
	switch o.Visibility {
	case model.Private:
		out["private"] = ""
	case model.Protected:
		out["protected"] = ""
	case model.Package:
		out["package"] = ""
	}
	if o.Async {
		out["async"] = ""
	}
	if o.Deprecated {
		out["deprecated"] = ""
	}
	for _, name := range slices.Sorted(maps.Keys(o.Doc.Options)) {
		if err := out.Add(name, o.Doc.Options[name]); err != nil {
			return nil, errors.Errorf("!doc option: %w", err)
		}
	}
	return out, nil
}
