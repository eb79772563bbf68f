// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

// Context is the collaborator-facing handle onto a field's position in the
// live value tree (§6.2), passed to Converters and to Custom serializers so
// they can see past the single value they were handed without being given
// the whole tree. Grounded on the teacher's per-call serialization Context
// in _examples/chaokunyang-fory/go/fory/context.go, narrowed to the one
// lookup this engine's bindings actually need.
type Context struct {
	vn *valueNode
}

// AncestorByType returns the nearest enclosing value whose Go type name
// matches typeName, and whether one was found.
func (c *Context) AncestorByType(typeName string) (any, bool) {
	if c == nil || c.vn == nil {
		return nil, false
	}
	anc := c.vn.ancestorByType(typeName)
	if anc == nil || !anc.rv.IsValid() {
		return nil, false
	}
	return anc.rv.Interface(), true
}
