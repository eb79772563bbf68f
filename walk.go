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
	"bytes"
	"context"
	"fmt"
	"reflect"

	"github.com/wiregraph/wiregraph/refl"
)

// walkNode is C5's single recursive step: it applies the attributes common
// to every node kind (SerializeWhen, FieldOffset, alignment, the
// node's own FieldLength framing) and then dispatches to the kind-specific
// content logic (§4.2's phase ordering).
func walkNode(sc *streamContext, vn *valueNode) (err error) {
	if err := sc.enterDepth(); err != nil {
		return err
	}
	defer sc.exitDepth()

	ev := MemberEvent{Name: nodeLabel(vn), GoType: vn.tn.goType, Depth: sc.depth, Offset: sc.Position()}
	if vn.writing {
		sc.fireSerializing(ev)
		defer func() {
			if err == nil {
				after := ev
				after.Offset = vn.streamStart
				after.Value = memberEventValue(vn)
				sc.fireSerialized(after)
			}
		}()
	} else {
		sc.fireDeserializing(ev)
		defer func() {
			if err == nil {
				after := ev
				after.Offset = vn.streamStart
				after.Value = memberEventValue(vn)
				sc.fireDeserialized(after)
			}
		}()
	}

	defer func() {
		if err != nil {
			dir := "writing"
			if !vn.writing {
				dir = "reading"
			}
			err = wrapPath(nodeLabel(vn), sc.Position(), dir, err)
		}
	}()

	tag := vn.tn.tag

	if tag.when != nil {
		if skip, err := conditionSkips(vn, tag.when); err != nil {
			return err
		} else if skip {
			return markEmpty(vn, sc)
		}
	}
	if tag.whenNot != nil {
		if skip, err := conditionSkips(vn, tag.whenNot); err != nil {
			return err
		} else if skip {
			return markEmpty(vn, sc)
		}
	}

	if tag.offset != nil {
		abs, ok, err := resolveBindingValue(vn, tag.offset, vn.writing)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNonDeferrableForwardReference
		}
		mark, err := sc.mark()
		if err != nil {
			return err
		}
		if err := sc.seekTo(abs); err != nil {
			return err
		}
		defer func() {
			if rerr := sc.rewind(mark); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	if tag.hasAlign && (tag.alignMode == AlignLeft || tag.alignMode == AlignBoth) {
		if err := sc.align(tag.alignMultiple); err != nil {
			return err
		}
	}

	framed := tag.length != nil && vn.tn.kind != collectionKind
	var frameStart int64
	if framed {
		if vn.writing {
			if tag.length.isConstant {
				// A constant FieldLength is a fixed wire width, not a
				// measure-then-writeback target: enforce it now so
				// popBounded pads (or rejects overflow) to exactly that
				// width, the way a path-bound length self-measures.
				sc.pushBounded(tag.length.constant)
			} else {
				sc.pushBounded(-1)
			}
			frameStart = sc.Position()
		} else {
			length, ok, err := resolveBindingValue(vn, tag.length, false)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNonDeferrableForwardReference
			}
			sc.pushBounded(length)
		}
	}

	vn.streamStart = sc.Position()

	if err := dispatchNode(sc, vn); err != nil {
		if framed {
			sc.popBounded()
		}
		return err
	}

	if framed {
		if vn.writing {
			measured := sc.Position() - frameStart
			if err := sc.popBounded(); err != nil {
				return err
			}
			if err := writeBackBinding(sc, vn, tag.length, measured); err != nil {
				return err
			}
		} else if err := sc.popBounded(); err != nil {
			return err
		}
	}

	vn.streamEnd = sc.Position()
	vn.visited = true

	if err := applyFieldValues(sc, vn); err != nil {
		return err
	}

	if tag.hasAlign && (tag.alignMode == AlignRight || tag.alignMode == AlignBoth) {
		if err := sc.align(tag.alignMultiple); err != nil {
			return err
		}
	}

	return nil
}

// memberEventValue returns the node's live value for a "...ed" lifecycle
// event (§6.4's optional `value`), or nil if it can't safely be read.
func memberEventValue(vn *valueNode) any {
	if !vn.rv.IsValid() || !vn.rv.CanInterface() {
		return nil
	}
	return vn.rv.Interface()
}

func nodeLabel(vn *valueNode) string {
	if vn.name != "" {
		return vn.name
	}
	if vn.tn != nil && vn.tn.goType != nil {
		return vn.tn.goType.String()
	}
	return "<root>"
}

func markEmpty(vn *valueNode, sc *streamContext) error {
	vn.streamStart = sc.Position()
	vn.streamEnd = vn.streamStart
	vn.visited = true
	return nil
}

func conditionSkips(vn *valueNode, cs *condSpec) (bool, error) {
	match, ok, err := evalCondition(vn, cs, vn.writing)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNonDeferrableForwardReference
	}
	return !match, nil
}

// dispatchNode handles the content of one node, after common framing has
// been applied, by TypeNode kind.
func dispatchNode(sc *streamContext, vn *valueNode) error {
	rv := vn.rv
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
		vn.rv = rv
	}

	switch vn.tn.kind {
	case valueKind:
		return walkValue(sc, vn)
	case objectKind:
		return walkObject(sc, vn)
	case collectionKind:
		if vn.writing {
			return writeCollection(sc, vn)
		}
		return readCollection(sc, vn)
	case primitiveArrayKind:
		return walkPrimitiveArray(sc, vn)
	case customKind:
		return walkCustom(sc, vn)
	case streamKind:
		return walkStream(sc, vn)
	default:
		return fmt.Errorf("wiregraph: unhandled type-node kind %v", vn.tn.kind)
	}
}

// walkValue serializes/deserializes a scalar: string, []byte, or a
// primitive with a codec (§4.4).
func walkValue(sc *streamContext, vn *valueNode) error {
	if vn.tn.codec != nil {
		return walkPrimitiveValue(sc, vn)
	}
	if vn.rv.Kind() == reflect.Slice && vn.rv.Type().Elem().Kind() == reflect.Uint8 {
		return walkByteString(sc, vn)
	}
	if vn.rv.Kind() == reflect.String {
		return walkString(sc, vn)
	}
	return fmt.Errorf("wiregraph: value node %s has no codec and is not string-like", vn.name)
}

// effectiveEndianness resolves vn's own endianness per invariant 6: either
// a direct binding (endian=PATH) or the value inherited top-down through
// the type graph. Shared by the primitive codec path and by walkCustom, so
// a Custom implementation sees the same resolved Endianness a primitive
// sibling would.
func effectiveEndianness(vn *valueNode) (Endianness, bool, error) {
	tag := vn.tn.tag
	if tag.endianBnd != nil {
		return resolveEndianBinding(vn, tag.endianBnd, vn.writing)
	}
	return vn.tn.endian, true, nil
}

func resolveOrder(vn *valueNode) (byteOrderLike, bool, error) {
	e, ok, err := effectiveEndianness(vn)
	if err != nil || !ok {
		return nil, ok, err
	}
	return e.byteOrder(), true, nil
}

// walkPrimitiveValue handles the endian-sensitive fixed/varint numeric
// path, including the deferred-evaluation case: a read-direction field
// whose endian is bound to a not-yet-visited sibling is consumed now (so
// stream position stays correct) and reinterpreted once the sibling is
// available (§4.3's forward-reference handling).
func walkPrimitiveValue(sc *streamContext, vn *valueNode) error {
	order, ok, err := resolveOrder(vn)
	if err != nil {
		return err
	}
	if ok {
		if vn.writing {
			return vn.tn.codec.write(sc, order, vn.rv)
		}
		return vn.tn.codec.read(sc, order, vn.rv)
	}

	// Deferred: read the raw bytes now, queue reinterpretation for when the
	// parent has visited the sibling that governs the endianness.
	width := vn.tn.codec.size()
	if width <= 0 {
		return ErrNonDeferrableForwardReference
	}
	raw, err := sc.readExact(width)
	if err != nil {
		return err
	}
	cp := append([]byte(nil), raw...)
	if vn.parent != nil {
		vn.parent.deferredEndian = append(vn.parent.deferredEndian, deferredDecode{node: vn, raw: cp})
	}
	return nil
}

// deferredDecode is a primitive value read with the wrong (or unknown)
// endianness because its binding referenced a sibling declared later in
// wire order; resolved by the enclosing object as soon as that sibling has
// been visited, and at the latest when its child loop finishes.
type deferredDecode struct {
	node *valueNode
	raw  []byte
}

// resolveReadyDeferred resolves every pending deferred field whose endian
// source has become visited since it was queued, leaving any still-pending
// ones in place. Called after each sibling so a later field (e.g. a
// length binding reading the now-reinterpreted value) sees the resolved
// value rather than the placeholder (§4.3/§9's two-pass model: pass 2 runs
// incrementally as each binding's source resolves, not only once at the
// end of the object).
func resolveReadyDeferred(vn *valueNode) error {
	if len(vn.deferredEndian) == 0 {
		return nil
	}
	var pending []deferredDecode
	for _, d := range vn.deferredEndian {
		order, ok, err := resolveOrder(d.node)
		if err != nil {
			return err
		}
		if !ok {
			pending = append(pending, d)
			continue
		}
		if err := decodeWithOrder(d.node.tn.codec, order, d.raw, d.node.rv); err != nil {
			return err
		}
	}
	vn.deferredEndian = pending
	return nil
}

func resolveDeferred(vn *valueNode) error {
	for _, d := range vn.deferredEndian {
		order, ok, err := resolveOrder(d.node)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s's endian binding never resolved", ErrNonDeferrableForwardReference, d.node.name)
		}
		if err := decodeWithOrder(d.node.tn.codec, order, d.raw, d.node.rv); err != nil {
			return err
		}
	}
	vn.deferredEndian = nil
	return nil
}

// decodeWithOrder reinterprets previously-consumed raw bytes through codec
// with a now-known byte order, by replaying them through a throwaway
// in-memory streamContext.
func decodeWithOrder(codec primitiveCodec, order byteOrderLike, raw []byte, v reflect.Value) error {
	tmp, err := newReadStream(context.Background(), bytes.NewReader(raw), false)
	if err != nil {
		return err
	}
	return codec.read(tmp, order, v)
}

// isCollectionElement reports whether vn is one item of a collection, which
// per §4.7 keeps its own default null-termination even when the enclosing
// collection itself carries a FieldLength bound.
func isCollectionElement(vn *valueNode) bool {
	return vn.parent != nil && vn.parent.tn != nil && vn.parent.tn.kind == collectionKind
}

// hasParentLength reports whether some ancestor frame already bounds vn's
// region (§4.4: "no parent length" is one of the three conditions for
// implying null-termination). Collection elements are exempted since the
// collection's own bound covers the whole list, not each item.
func hasParentLength(sc *streamContext, vn *valueNode) bool {
	return len(sc.frames) > 0 && !isCollectionElement(vn)
}

func walkByteString(sc *streamContext, vn *valueNode) error {
	tag := vn.tn.tag
	drainsFrame := tag.length == nil && tag.count == nil && hasParentLength(sc, vn)
	if vn.writing {
		if err := sc.writeAll(vn.rv.Bytes()); err != nil {
			return err
		}
		if tag.length == nil && tag.count == nil && !drainsFrame {
			return sc.writeAll([]byte{0})
		}
		return nil
	}
	if tag.length != nil || tag.count != nil || drainsFrame {
		n := sc.currentRemaining()
		if n < 0 {
			return fmt.Errorf("wiregraph: byte field %s has no determinable length", vn.name)
		}
		data, err := sc.readExact(int(n))
		if err != nil {
			return err
		}
		vn.rv.SetBytes(data)
		return nil
	}
	data, err := readUntilTerminator(sc, 1)
	if err != nil {
		return err
	}
	vn.rv.SetBytes(data)
	return nil
}

func walkString(sc *streamContext, vn *valueNode) error {
	enc := vn.tn.encoding
	if vn.tn.tag.hasEncoding {
		enc = vn.tn.tag.encoding
	}
	order := vn.tn.endian.byteOrder()
	drainsFrame := vn.tn.tag.length == nil && vn.tn.tag.count == nil && hasParentLength(sc, vn)
	if vn.writing {
		data, err := encodeString(vn.rv.String(), enc, order)
		if err != nil {
			return err
		}
		if err := sc.writeAll(data); err != nil {
			return err
		}
		if vn.tn.tag.length == nil && vn.tn.tag.count == nil && !drainsFrame {
			return sc.writeAll(make([]byte, terminatorWidth(enc)))
		}
		return nil
	}

	if vn.tn.tag.length != nil || vn.tn.tag.count != nil || drainsFrame {
		n := sc.currentRemaining()
		if n < 0 {
			return fmt.Errorf("wiregraph: string field %s has no determinable length", vn.name)
		}
		data, err := sc.readExact(int(n))
		if err != nil {
			return err
		}
		s, err := decodeString(data, enc)
		if err != nil {
			return err
		}
		// popBounded zero-pads a short constant-length field on write;
		// trailing NULs are padding, not part of the value.
		for len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		vn.rv.SetString(s)
		return nil
	}

	data, err := readUntilTerminator(sc, terminatorWidth(enc))
	if err != nil {
		return err
	}
	s, err := decodeString(data, enc)
	if err != nil {
		return err
	}
	vn.rv.SetString(s)
	return nil
}

// readUntilTerminator reads octets up to (and consuming) the next
// all-zero terminator of the given width, used for unbound strings/byte
// buffers (§4.4).
func readUntilTerminator(sc *streamContext, width int) ([]byte, error) {
	var out []byte
	for {
		chunk, err := sc.readExact(width)
		if err != nil {
			return nil, err
		}
		allZero := true
		for _, b := range chunk {
			if b != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

// walkObject serializes/deserializes a struct, dispatching through
// subtype resolution first if the node is polymorphic (§4.1, §4.5).
func walkObject(sc *streamContext, vn *valueNode) error {
	if vn.tn.subtypes != nil {
		return walkPolymorphicObject(sc, vn)
	}
	if vn.tn.ctor != nil && !vn.writing {
		return walkObjectWithConstructor(sc, vn)
	}
	for _, child := range vn.children {
		// Fill discriminators before anything is written, so one declared
		// ahead of its interface-typed polymorphic field carries the key.
		if !vn.writing || child.tn.subtypes == nil || child.tn.discriminator == "" || child.rv.Kind() != reflect.Interface || child.rv.IsNil() {
			continue
		}
		key, _, err := child.tn.subtypes.resolveForWrite(child.rv.Elem())
		if err != nil {
			return err
		}
		if sib, ok := vn.childByName[child.tn.discriminator]; ok && key != "" && sib.rv.Kind() == reflect.String {
			sib.rv.SetString(key)
		}
	}
	for _, child := range vn.children {
		if err := walkNode(sc, child); err != nil {
			return err
		}
		if err := resolveReadyDeferred(vn); err != nil {
			return err
		}
	}
	return resolveDeferred(vn)
}

// walkObjectWithConstructor walks every readable field into a scratch map
// and then calls the registered constructor, instead of setting fields on
// a zero value directly (§4.1 step 4).
func walkObjectWithConstructor(sc *streamContext, vn *valueNode) error {
	fields := map[string]any{}
	for _, child := range vn.children {
		if err := walkNode(sc, child); err != nil {
			return err
		}
		if err := resolveReadyDeferred(vn); err != nil {
			return err
		}
		if child.rv.IsValid() {
			fields[child.name] = child.rv.Interface()
		}
	}
	if err := resolveDeferred(vn); err != nil {
		return err
	}
	built, err := vn.tn.ctor.fn(fields)
	if err != nil {
		return err
	}
	vn.rv.Set(built)
	return nil
}

// walkPolymorphicObject resolves the concrete type for an interface-typed
// field via its subtype table, then walks that concrete type's own object
// graph (§4.5).
func walkPolymorphicObject(sc *streamContext, vn *valueNode) error {
	if vn.writing {
		concrete := vn.rv
		if concrete.Kind() == reflect.Interface {
			concrete = concrete.Elem()
		}
		key, goType, err := vn.tn.subtypes.resolveForWrite(concrete)
		if err != nil {
			return err
		}
		if vn.tn.discriminator != "" && vn.parent != nil {
			if sib, ok := vn.parent.childByName[vn.tn.discriminator]; ok && sib.rv.Kind() == reflect.String {
				sib.rv.SetString(key)
			}
		}
		concreteTN, err := buildTypeGraph(goType)
		if err != nil {
			return err
		}
		inner := newObjectValueNode(concreteTN, vn.parent, vn.name, derefForWrite(concrete), true)
		return walkObject(sc, inner)
	}

	key := ""
	if vn.tn.discriminator != "" && vn.parent != nil {
		if sib, ok := vn.parent.childByName[vn.tn.discriminator]; ok && sib.visited {
			key = fmt.Sprintf("%v", sib.rv.Interface())
		}
	}
	target, err := vn.tn.subtypes.resolveForRead(key)
	if err != nil {
		return err
	}
	concreteTN, err := buildTypeGraph(target.Type())
	if err != nil {
		return err
	}
	inner := newObjectValueNode(concreteTN, vn.parent, vn.name, target, false)
	if err := walkObject(sc, inner); err != nil {
		return err
	}
	vn.rv.Set(target)
	return nil
}

func derefForWrite(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Ptr {
		addr := reflect.New(v.Type())
		addr.Elem().Set(v)
		return addr.Elem()
	}
	return v.Elem()
}

// walkPrimitiveArray serializes/deserializes a fixed-kind []T/[N]T where T
// is a non-byte primitive (§3's PrimitiveArray kind).
func walkPrimitiveArray(sc *streamContext, vn *valueNode) error {
	order := vn.tn.endian.byteOrder()
	elemCodec := vn.tn.elem.codec

	if vn.writing {
		n := vn.rv.Len()
		if vn.tn.tag.count != nil {
			if err := writeBackBinding(sc, vn, vn.tn.tag.count, int64(n)); err != nil {
				return err
			}
		}
		for i := 0; i < n; i++ {
			if err := elemCodec.write(sc, order, vn.rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	var count int64 = -1
	if vn.tn.tag.count != nil {
		n, ok, err := resolveBindingValue(vn, vn.tn.tag.count, false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNonDeferrableForwardReference
		}
		count = n
	}
	width := elemCodec.size()
	if vn.tn.goType.Kind() == reflect.Array {
		n := int64(vn.tn.goType.Len())
		if count < 0 {
			count = n
		}
		out := reflect.New(vn.tn.goType).Elem()
		for i := int64(0); i < count && i < n; i++ {
			if err := elemCodec.read(sc, order, out.Index(int(i))); err != nil {
				return err
			}
		}
		vn.rv.Set(out)
		return nil
	}
	if count < 0 {
		if rem := sc.currentRemaining(); rem >= 0 && width > 0 {
			count = rem / int64(width)
		} else {
			return fmt.Errorf("wiregraph: primitive array %s has no determinable count", vn.name)
		}
	}
	out := reflect.MakeSlice(vn.tn.goType, int(count), int(count))
	for i := int64(0); i < count; i++ {
		if err := elemCodec.read(sc, order, out.Index(int(i))); err != nil {
			return err
		}
	}
	vn.rv.Set(out)
	return nil
}

// walkCustom hands the raw stream to a type implementing Custom (§3's
// CustomSerialized kind).
func walkCustom(sc *streamContext, vn *valueNode) error {
	h := streamHandle{sc: sc}
	c, err := customOf(vn)
	if err != nil {
		return err
	}
	endian, ok, err := effectiveEndianness(vn)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonDeferrableForwardReference
	}
	ctx := &Context{vn: vn}
	if vn.writing {
		return c.WriteWire(h, endian, ctx)
	}
	return c.ReadWire(h, endian, ctx)
}

// customOf resolves vn's live value to the Custom interface, preferring a
// WireAddressable fast path over reflect.Value.Addr() when the value
// offers one.
func customOf(vn *valueNode) (Custom, error) {
	if wa, ok := vn.rv.Interface().(refl.WireAddressable); ok {
		if c, ok := reflect.NewAt(vn.rv.Type(), wa.WireAddr().Ptr).Interface().(Custom); ok {
			return c, nil
		}
	}
	addr := vn.rv
	if addr.CanAddr() {
		addr = addr.Addr()
	}
	c, ok := addr.Interface().(Custom)
	if !ok {
		return nil, fmt.Errorf("wiregraph: %s does not implement Custom", vn.name)
	}
	return c, nil
}

// walkStream hands the node a live Stream passthrough handle (§3's
// StreamPassthrough kind); the field itself does nothing further.
func walkStream(sc *streamContext, vn *valueNode) error {
	vn.rv.Set(reflect.ValueOf(streamHandle{sc: sc}))
	return nil
}
