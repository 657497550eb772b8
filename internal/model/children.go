package model

import "iter"

// Children is an insertion-ordered map of child symbols. The zero value is
// ready to use.
type Children struct {
	names []string
	m     map[string]*Object
}

// Get returns the child with the given name.
func (c *Children) Get(name string) (*Object, bool) {
	o, ok := c.m[name]
	return o, ok
}

// Set adds or replaces a child. Replacing keeps the original position.
func (c *Children) Set(name string, o *Object) {
	if c.m == nil {
		c.m = make(map[string]*Object)
	}
	if _, ok := c.m[name]; !ok {
		c.names = append(c.names, name)
	}
	c.m[name] = o
}

// Delete removes a child and returns it, or nil if absent.
func (c *Children) Delete(name string) *Object {
	o, ok := c.m[name]
	if !ok {
		return nil
	}
	delete(c.m, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i:i], c.names[i+1:]...)
			break
		}
	}
	return o
}

func (c *Children) Len() int {
	return len(c.names)
}

// Names returns child names in insertion order.
func (c *Children) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// All iterates children in insertion order.
func (c *Children) All() iter.Seq2[string, *Object] {
	return func(yield func(string, *Object) bool) {
		for _, n := range c.names {
			if !yield(n, c.m[n]) {
				return
			}
		}
	}
}
