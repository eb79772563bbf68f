// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package wiregraph

import "reflect"

// valueNode is C5's live counterpart to a TypeNode (§3 ValueNode): one per
// visited field per call, bound to the live Go data and to the stream
// region it occupies. Object-kind valueNodes pre-allocate a placeholder
// per child so that binding resolution (binding.go) can distinguish
// "not yet visited" (a forward reference, deferred on read) from
// "no such field" (a build-time path error).
type valueNode struct {
	tn     *typeNode
	parent *valueNode
	name   string

	rv reflect.Value // the live Go value this node is bound to

	children    []*valueNode
	childByName map[string]*valueNode

	writing bool

	// streamStart/streamEnd bound the octets this node occupies, filled in
	// once the node has been visited. Used by write-back (§4.3) and by the
	// deferred re-read pass (§4.3's forward-reference handling).
	streamStart int64
	streamEnd   int64
	visited     bool

	// deferredEndian queues primitive children read before their governing
	// endian binding was visited; each is resolved as soon as its governing
	// sibling has been visited, and at the latest when this node's child
	// loop finishes (§4.3's forward-reference handling).
	deferredEndian []deferredDecode
}

// newObjectValueNode allocates a valueNode for an Object-kind TypeNode,
// pre-creating unresolved placeholders for every child so siblings can be
// looked up by name before they are visited.
func newObjectValueNode(tn *typeNode, parent *valueNode, name string, rv reflect.Value, writing bool) *valueNode {
	vn := &valueNode{tn: tn, parent: parent, name: name, rv: rv, writing: writing, childByName: map[string]*valueNode{}}
	for _, c := range tn.children {
		var fv reflect.Value
		if rv.IsValid() && len(c.goIndex) > 0 {
			fv = rv.FieldByIndex(c.goIndex)
			if fv.Kind() == reflect.Ptr && c.kind == objectKind {
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				fv = fv.Elem()
			}
		}
		child := newValueNode(c, vn, c.name, fv, writing)
		vn.children = append(vn.children, child)
		vn.childByName[c.name] = child
	}
	return vn
}

// newValueNode builds the correctly-shaped valueNode for tn: Object-kind
// nodes get pre-allocated child placeholders (newObjectValueNode); every
// other kind is a plain leaf wrapping rv directly.
func newValueNode(tn *typeNode, parent *valueNode, name string, rv reflect.Value, writing bool) *valueNode {
	if tn.kind == objectKind && tn.subtypes == nil {
		return newObjectValueNode(tn, parent, name, rv, writing)
	}
	return &valueNode{tn: tn, parent: parent, name: name, rv: rv, writing: writing, childByName: map[string]*valueNode{}}
}

// fieldValue returns the reflect.Value of this node's data, addressable
// whenever the underlying struct is addressable (always true for a
// pointer-rooted walk, which Serialize/Deserialize guarantee).
func (vn *valueNode) fieldValue() reflect.Value { return vn.rv }

// ancestorByLevel walks up n parents.
func (vn *valueNode) ancestorByLevel(n int) *valueNode {
	cur := vn
	for i := 0; i < n && cur != nil; i++ {
		cur = cur.parent
	}
	return cur
}

// ancestorByType walks up until it finds an ancestor whose Go type name
// matches typeName.
func (vn *valueNode) ancestorByType(typeName string) *valueNode {
	for cur := vn.parent; cur != nil; cur = cur.parent {
		if cur.tn != nil && cur.tn.goType != nil && cur.tn.goType.Name() == typeName {
			return cur
		}
	}
	return nil
}

// nearestAncestorWith walks up until it finds an ancestor with a direct
// child named name (the anchorNearest path mode).
func (vn *valueNode) nearestAncestorWith(name string) *valueNode {
	for cur := vn.parent; cur != nil; cur = cur.parent {
		if _, ok := cur.childByName[name]; ok {
			return cur
		}
	}
	return nil
}
