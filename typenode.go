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

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"
)

// typeNode is C3's output: an immutable, cached description of one
// position in a record shape (§3 TypeNode). Variants are distinguished by
// kind; children are owned by their parent and totally ordered per
// invariant 1.
type typeNode struct {
	kind typeNodeKind
	name string // field name; empty for the root node
	goType reflect.Type
	goIndex []int // reflect field-index path from the parent struct, nil for root/elements

	children    []*typeNode
	childByName map[string]*typeNode

	tag parsedTag // this node's own parsed wire tag (empty for root/elements)

	endian   Endianness
	encoding Encoding

	codec primitiveCodec // valueKind only

	elem *typeNode // collectionKind/primitiveArrayKind: the homogeneous item type

	subtypes      *subtypeTable // non-nil when this field is polymorphic
	discriminator string        // sibling field name carrying the subtype key, set via subtypekey=Name

	ctor *constructorThunk // objectKind only, nil if plain field-by-field construction suffices

	structHash int32

	referencable bool
}

// constructorThunk is the compiled "field name -> value -> instance"
// builder discovered per §4.1 step 4. Go has no reflection over
// constructor parameter names, so unlike the teacher's greedy
// parameter-matching thunk compiler, ours is populated only when the user
// explicitly calls RegisterConstructor; otherwise the walker falls back to
// the default path of allocating a zero value and setting fields directly
// (the Go-idiomatic equivalent of the "default constructor").
type constructorThunk struct {
	fn func(fields map[string]any) (reflect.Value, error)
}

var constructorRegistry sync.Map // reflect.Type -> *constructorThunk

// RegisterConstructor registers the constructor to use when building a T
// out of its bound fields during deserialization (§4.1 step 4). fn
// receives every readable field by name and must return a fully
// constructed T.
func RegisterConstructor[T any](fn func(fields map[string]any) (T, error)) {
	var zero T
	t := reflect.TypeOf(zero)
	constructorRegistry.Store(t, &constructorThunk{
		fn: func(fields map[string]any) (reflect.Value, error) {
			v, err := fn(fields)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(v), nil
		},
	})
}

// rawField is one flattened field produced while walking a struct and its
// embedded ancestors (§4.1 step 1).
type rawField struct {
	sf        reflect.StructField
	ownerType reflect.Type
	depth     int
	goIndex   []int
}

// collectFields flattens t's own fields and, recursively, its embedded
// ancestors' fields. Ancestors (Go's analogue of a base class, reached via
// anonymous struct embedding) are assigned a depth strictly less than t's
// own depth, so that sorting by depth ascending places them first —
// invariant 1's "base-class-depth ascending."
func collectFields(t reflect.Type, depth int, prefix []int) []rawField {
	var out []rawField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		idx := append(append([]int{}, prefix...), i)
		if sf.Anonymous {
			ft := sf.Type
			for ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				out = append(out, collectFields(ft, depth-1, idx)...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		out = append(out, rawField{sf: sf, ownerType: t, depth: depth, goIndex: idx})
	}
	return out
}

// orderFields sorts the flattened field list per invariant 1 and checks
// invariant 2 (every field of a multi-field sibling group carries an
// order; a lone field defaults to order 0).
func orderFields(raw []rawField) ([]rawField, error) {
	type group struct {
		owner  reflect.Type
		depth  int
		fields []rawField
	}
	groups := map[reflect.Type]*group{}
	var order []reflect.Type
	for _, rf := range raw {
		g, ok := groups[rf.ownerType]
		if !ok {
			g = &group{owner: rf.ownerType, depth: rf.depth}
			groups[rf.ownerType] = g
			order = append(order, rf.ownerType)
		}
		g.fields = append(g.fields, rf)
	}

	var result []rawField
	for _, owner := range order {
		g := groups[owner]
		missing := -1
		seenOrders := map[int]reflect.StructField{}
		for i := range g.fields {
			pt, err := parseWireTag(g.fields[i].sf.Tag.Get(tagKey))
			if err != nil {
				return nil, fmt.Errorf("wiregraph: field %s.%s: %w", owner, g.fields[i].sf.Name, err)
			}
			if !pt.hasOrder {
				if len(g.fields) == 1 {
					pt.hasOrder = true
					pt.order = 0
				} else {
					if missing >= 0 {
						return nil, fmt.Errorf("%w: %s has more than one field without an order", ErrMissingOrder, owner)
					}
					missing = i
					continue
				}
			}
			if other, dup := seenOrders[pt.order]; dup {
				return nil, fmt.Errorf("%w: %s.%s and %s.%s both declare order %d", ErrDuplicateOrder, owner, g.fields[i].sf.Name, owner, other.Name, pt.order)
			}
			seenOrders[pt.order] = g.fields[i].sf
		}
		if missing >= 0 && len(g.fields) > 1 {
			return nil, fmt.Errorf("%w: %s is missing an order on field %s", ErrMissingOrder, owner, g.fields[missing].sf.Name)
		}
		sort.SliceStable(g.fields, func(i, j int) bool {
			oi, _ := parseWireTag(g.fields[i].sf.Tag.Get(tagKey))
			oj, _ := parseWireTag(g.fields[j].sf.Tag.Get(tagKey))
			return oi.order < oj.order
		})
		result = append(result, g.fields...)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].depth < result[j].depth })
	return result, nil
}

var (
	typeGraphCache sync.Map // reflect.Type -> *typeNode
	typeGraphMu    sync.Mutex
	buildingTypes  = map[reflect.Type]bool{}
)

// buildTypeGraph returns the cached TypeNode for t, building and
// publishing it on first encounter (§3 Lifecycle, §5 single-writer/
// many-reader cache, §9 double-checked publication).
func buildTypeGraph(t reflect.Type) (*typeNode, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if v, ok := typeGraphCache.Load(t); ok {
		return v.(*typeNode), nil
	}
	typeGraphMu.Lock()
	defer typeGraphMu.Unlock()
	if v, ok := typeGraphCache.Load(t); ok {
		return v.(*typeNode), nil
	}
	if buildingTypes[t] {
		return nil, fmt.Errorf("%w: %s", ErrCyclicType, t)
	}
	buildingTypes[t] = true
	defer delete(buildingTypes, t)

	node, err := buildObjectNode(t, "", nil, parsedTag{}, LittleEndian, EncodingUTF8, map[reflect.Type]bool{t: true})
	if err != nil {
		return nil, err
	}
	typeGraphCache.Store(t, node)
	return node, nil
}

// buildObjectNode builds the Object-kind TypeNode for struct type t,
// recursing per §4.1 step 2's classification rules. parentEndian/
// parentEncoding carry the inherited defaults (invariant 6). ancestors
// tracks every struct type already being built on this recursion path, so
// a type that composes itself (directly or through a chain of structs and
// slices) is rejected as ErrCyclicType instead of recursing forever — the
// Type Graph is a finite tree, so value-level recursion (a tree or linked
// list) must go through an interface-typed field and runtime polymorphic
// dispatch (subtype.go), not a literal self-composed struct.
func buildObjectNode(t reflect.Type, name string, goIndex []int, tag parsedTag, parentEndian Endianness, parentEncoding Encoding, ancestors map[reflect.Type]bool) (*typeNode, error) {
	node := &typeNode{
		kind:        objectKind,
		name:        name,
		goType:      t,
		goIndex:     goIndex,
		tag:         tag,
		endian:      effectiveEndian(tag, parentEndian),
		encoding:    effectiveEncoding(tag, parentEncoding),
		childByName: map[string]*typeNode{},
	}
	if thunk, ok := constructorRegistry.Load(t); ok {
		node.ctor = thunk.(*constructorThunk)
	}

	raw := collectFields(t, 0, nil)
	ordered, err := orderFields(raw)
	if err != nil {
		return nil, err
	}

	for _, rf := range ordered {
		ft, err := parseWireTag(rf.sf.Tag.Get(tagKey))
		if err != nil {
			return nil, err
		}
		if ft.ignore {
			continue
		}
		child, err := buildFieldNode(rf.sf, rf.goIndex, ft, node.endian, node.encoding, ancestors)
		if err != nil {
			return nil, fmt.Errorf("wiregraph: field %s.%s: %w", t, rf.sf.Name, err)
		}
		node.children = append(node.children, child)
		node.childByName[rf.sf.Name] = child
	}

	h := murmur3.Sum32([]byte(t.String()))
	for _, c := range node.children {
		h ^= murmur3.Sum32([]byte(c.name))
	}
	node.structHash = int32(h)

	return node, nil
}

// buildFieldNode classifies and builds the TypeNode for a single struct
// field (§4.1 step 2).
func buildFieldNode(sf reflect.StructField, goIndex []int, tag parsedTag, parentEndian Endianness, parentEncoding Encoding, ancestors map[reflect.Type]bool) (*typeNode, error) {
	t := sf.Type
	isPtr := t.Kind() == reflect.Ptr
	elemT := t
	if isPtr {
		elemT = t.Elem()
	}

	switch {
	case implementsCustom(t):
		return &typeNode{kind: customKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding)}, nil

	case isStreamHandle(t):
		return &typeNode{kind: streamKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding)}, nil

	case elemT.Kind() == reflect.String:
		node := &typeNode{kind: valueKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding)}
		return withSubtype(node, sf, tag)

	case t.Kind() == reflect.Interface:
		node := &typeNode{kind: objectKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding),
			childByName: map[string]*typeNode{}}
		return withSubtype(node, sf, tag)

	case (elemT.Kind() == reflect.Slice || elemT.Kind() == reflect.Array) && isFixedWidthKind(elemT.Elem().Kind()) && elemT.Elem().Kind() != reflect.Uint8:
		elem, err := buildValueElem(elemT.Elem(), effectiveEndian(tag, parentEndian), effectiveEncoding(tag, parentEncoding), tag)
		if err != nil {
			return nil, err
		}
		return &typeNode{kind: primitiveArrayKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding), elem: elem}, nil

	case elemT.Kind() == reflect.Slice && elemT.Elem().Kind() == reflect.Uint8:
		return &typeNode{kind: valueKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding)}, nil

	case elemT.Kind() == reflect.Slice || elemT.Kind() == reflect.Array:
		elem, err := buildCollectionElem(elemT.Elem(), effectiveEndian(tag, parentEndian), effectiveEncoding(tag, parentEncoding), tag, ancestors)
		if err != nil {
			return nil, err
		}
		return &typeNode{kind: collectionKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding), elem: elem}, nil

	case elemT.Kind() == reflect.Struct:
		if ancestors[elemT] {
			return nil, fmt.Errorf("%w: %s", ErrCyclicType, elemT)
		}
		childAncestors := extendAncestors(ancestors, elemT)
		obj, err := buildObjectNode(elemT, sf.Name, goIndex, tag, parentEndian, parentEncoding, childAncestors)
		if err != nil {
			return nil, err
		}
		return withSubtype(obj, sf, tag)

	case isNumericKind(elemT.Kind()):
		codec, err := selectPrimitiveCodec(elemT.Kind(), tag.serializeAs)
		if err != nil {
			return nil, err
		}
		return &typeNode{kind: valueKind, name: sf.Name, goType: t, goIndex: goIndex, tag: tag,
			endian: effectiveEndian(tag, parentEndian), encoding: effectiveEncoding(tag, parentEncoding), codec: codec}, nil

	default:
		return nil, fmt.Errorf("wiregraph: field %s has unsupported type %s", sf.Name, t)
	}
}

func buildValueElem(t reflect.Type, endian Endianness, encoding Encoding, tag parsedTag) (*typeNode, error) {
	codec, err := selectPrimitiveCodec(t.Kind(), tag.serializeAs)
	if err != nil {
		return nil, err
	}
	return &typeNode{kind: valueKind, goType: t, endian: endian, encoding: encoding, codec: codec}, nil
}

// buildCollectionElem builds the homogeneous item TypeNode for a
// Collection-kind field (§4.1 step 2, §4.7).
func buildCollectionElem(t reflect.Type, endian Endianness, encoding Encoding, containerTag parsedTag, ancestors map[reflect.Type]bool) (*typeNode, error) {
	isPtr := t.Kind() == reflect.Ptr
	elemT := t
	if isPtr {
		elemT = t.Elem()
	}
	switch {
	case t.Kind() == reflect.Interface:
		node := &typeNode{kind: objectKind, goType: t, endian: endian, encoding: encoding, childByName: map[string]*typeNode{}}
		return withItemSubtype(node, containerTag)
	case elemT.Kind() == reflect.String:
		return &typeNode{kind: valueKind, goType: t, endian: endian, encoding: encoding}, nil
	case elemT.Kind() == reflect.Struct:
		if ancestors[elemT] {
			return nil, fmt.Errorf("%w: %s", ErrCyclicType, elemT)
		}
		obj, err := buildObjectNode(elemT, "", nil, parsedTag{}, endian, encoding, extendAncestors(ancestors, elemT))
		if err != nil {
			return nil, err
		}
		return withItemSubtype(obj, containerTag)
	case isNumericKind(elemT.Kind()):
		codec, err := selectPrimitiveCodec(elemT.Kind(), "")
		if err != nil {
			return nil, err
		}
		return &typeNode{kind: valueKind, goType: t, endian: endian, encoding: encoding, codec: codec}, nil
	default:
		return nil, fmt.Errorf("wiregraph: unsupported collection element type %s", t)
	}
}

// extendAncestors copies ancestors with t added, so sibling branches of the
// same recursive descent don't share (and corrupt) one mutable set.
func extendAncestors(ancestors map[reflect.Type]bool, t reflect.Type) map[reflect.Type]bool {
	next := make(map[reflect.Type]bool, len(ancestors)+1)
	for k := range ancestors {
		next[k] = true
	}
	next[t] = true
	return next
}

func effectiveEndian(tag parsedTag, parent Endianness) Endianness {
	if tag.hasEndian && tag.endianBnd == nil {
		return tag.endian
	}
	return parent
}

func effectiveEncoding(tag parsedTag, parent Encoding) Encoding {
	if tag.hasEncoding {
		return tag.encoding
	}
	return parent
}
