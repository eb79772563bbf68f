// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"fmt"
	"reflect"
)

// Converter is a named, bidirectional transform applied to a binding's
// value (§6.2): convert(value, parameter, context) on read,
// convert_back(value, parameter, context) on write. parameter is whatever
// a binding's `(name:param)` suffix supplies verbatim (empty string if
// none was given); ctx exposes ancestor-by-type lookup for converters that
// need more than the bound value itself. Bindings with no converter treat
// the source field's value as the bound quantity directly.
type Converter struct {
	ToLogical func(value any, parameter any, ctx *Context) (any, error)
	ToWire    func(value any, parameter any, ctx *Context) (any, error)
}

var converterRegistry = map[string]Converter{}

// RegisterConverter makes a named converter available to `(converterName)`
// suffixes on any binding path.
func RegisterConverter(name string, c Converter) { converterRegistry[name] = c }

// resolvePathNode navigates p against vn's live value tree: an anchor step
// (up n levels, up to a typed ancestor, or up to the nearest ancestor that
// owns the first segment) followed by descent through childByName. It
// returns the target valueNode whether or not it has been visited yet
// (callers check target.visited to detect a forward reference); a path
// that names no existing node is an ErrBindingPathInvalid error.
func resolvePathNode(vn *valueNode, p path) (*valueNode, error) {
	var anchor *valueNode
	segments := p.segments

	switch p.anchor {
	case anchorLevelUp:
		anchor = vn.ancestorByLevel(p.levels)
		if anchor == nil {
			return nil, fmt.Errorf("%w: %q has no ancestor %d levels up", ErrBindingPathInvalid, p.raw, p.levels)
		}
	case anchorTypeMatch:
		anchor = vn.ancestorByType(p.typeName)
		if anchor == nil {
			return nil, fmt.Errorf("%w: %q found no ancestor of type %s", ErrBindingPathInvalid, p.raw, p.typeName)
		}
	default: // anchorNearest
		if len(segments) == 0 {
			return nil, fmt.Errorf("%w: %q has no segment to anchor on", ErrBindingPathInvalid, p.raw)
		}
		anchor = vn.nearestAncestorWith(segments[0])
		if anchor == nil {
			return nil, fmt.Errorf("%w: %q: no ancestor owns a field named %s", ErrBindingPathInvalid, p.raw, segments[0])
		}
	}

	cur := anchor
	for _, seg := range segments {
		child, ok := cur.childByName[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q: %s has no field named %s", ErrBindingPathInvalid, p.raw, cur.name, seg)
		}
		cur = child
	}
	return cur, nil
}

// numericOf extracts an int64 from a resolved node's live value, for
// numeric, string-length, slice-length, or boolean source fields.
func numericOf(rv reflect.Value) (int64, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.String:
		return int64(len(rv.String())), nil
	case reflect.Slice, reflect.Array:
		return int64(rv.Len()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("wiregraph: cannot read a numeric value from kind %v", rv.Kind())
	}
}

// setNumeric writes an int64 into a resolved node's live value, used for
// write-back of measured lengths/counts/offsets (§4.3, §4.6).
func setNumeric(rv reflect.Value, n int64) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv.SetUint(uint64(n))
		return nil
	default:
		return fmt.Errorf("wiregraph: cannot write a numeric value back into kind %v", rv.Kind())
	}
}

// resolveBindingValue resolves bnd to a concrete int64 (§4.3). forWrite
// bindings always succeed immediately (the whole object graph already
// exists in memory). A read-direction binding to an unvisited sibling
// returns ok=false: the caller must defer.
func resolveBindingValue(consumer *valueNode, bnd *bindingSpec, forWrite bool) (value int64, ok bool, err error) {
	if bnd.isConstant {
		return bnd.constant, true, nil
	}
	target, err := resolvePathNode(consumer, bnd.path)
	if err != nil {
		return 0, false, err
	}
	if !forWrite && !target.visited {
		return 0, false, nil
	}
	n, err := numericOf(target.rv)
	if err != nil {
		return 0, false, err
	}
	if bnd.converter != "" {
		conv, ok := converterRegistry[bnd.converter]
		if !ok {
			return 0, false, fmt.Errorf("wiregraph: unknown converter %q", bnd.converter)
		}
		logical, err := conv.ToLogical(n, bnd.converterParam, &Context{vn: consumer})
		if err != nil {
			return 0, false, fmt.Errorf("%w: %v", ErrConverterRejected, err)
		}
		if lv, ok := logical.(int64); ok {
			n = lv
		}
	}
	return n, true, nil
}

// writeBackBinding stores a measured value (a computed length or count)
// into its bound source field, either directly in memory (if the source
// hasn't been serialized yet) or by patching already-emitted wire bytes
// (§4.3's write-back). FieldValue digests go through writeBackFieldValue.
func writeBackBinding(sc *streamContext, consumer *valueNode, bnd *bindingSpec, measured int64) error {
	if bnd.isConstant {
		return nil
	}
	target, err := resolvePathNode(consumer, bnd.path)
	if err != nil {
		return err
	}
	n := measured
	if bnd.converter != "" {
		conv, ok := converterRegistry[bnd.converter]
		if !ok {
			return fmt.Errorf("wiregraph: unknown converter %q", bnd.converter)
		}
		wire, err := conv.ToWire(measured, bnd.converterParam, &Context{vn: consumer})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConverterRejected, err)
		}
		wv, ok := wire.(int64)
		if !ok {
			return fmt.Errorf("wiregraph: converter %q's ToWire did not return an int64 wire value", bnd.converter)
		}
		n = wv
	}
	if !target.visited || target.streamStart == target.streamEnd {
		// Source field hasn't reached the wire yet (write-before-read layout,
		// or a zero-width placeholder): update the live value so the normal
		// walk emits the correct bytes when it gets there.
		return setNumeric(target.rv, n)
	}
	// Source has already been written: patch its bytes in place.
	width := int(target.streamEnd - target.streamStart)
	buf := make([]byte, width)
	order := target.tn.endian.byteOrder()
	switch width {
	case 1:
		buf[0] = byte(n)
	case 2:
		order.PutUint16(buf, uint16(n))
	case 4:
		order.PutUint32(buf, uint32(n))
	case 8:
		order.PutUint64(buf, uint64(n))
	default:
		return fmt.Errorf("wiregraph: cannot patch a %d-octet field from a measured value", width)
	}
	return sc.writeAt(target.streamStart, buf)
}

// writeBackFieldValue stores a computed digest into the sibling field
// named target (§4.6). Numeric siblings receive the digest's trailing
// bytes interpreted big-endian, truncated or zero-extended to the
// sibling's wire width; byte-slice/array siblings receive the digest
// bytes directly, truncated or zero-padded to the sibling's length.
func writeBackFieldValue(sc *streamContext, holder *valueNode, target string, digest []byte) error {
	if holder.parent == nil {
		return fmt.Errorf("wiregraph: field value target %q has no enclosing object", target)
	}
	sibling, ok := holder.parent.childByName[target]
	if !ok {
		return fmt.Errorf("wiregraph: field value target %q is not a sibling of %s", target, holder.name)
	}

	rv := sibling.rv
	raw := digest
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]byte, n)
		if len(raw) >= n {
			copy(out, raw[len(raw)-n:])
		} else {
			copy(out[n-len(raw):], raw)
		}
		return writeBackRawBytes(sc, sibling, out)
	default:
		width := 8
		if sibling.tn != nil && sibling.tn.codec != nil && sibling.tn.codec.size() > 0 {
			width = sibling.tn.codec.size()
		}
		if len(raw) > width {
			raw = raw[len(raw)-width:]
		}
		var n uint64
		for _, b := range raw {
			n = n<<8 | uint64(b)
		}
		if !sibling.visited || sibling.streamStart == sibling.streamEnd {
			return setNumeric(rv, int64(n))
		}
		buf := make([]byte, sibling.streamEnd-sibling.streamStart)
		order := sibling.tn.endian.byteOrder()
		switch len(buf) {
		case 1:
			buf[0] = byte(n)
		case 2:
			order.PutUint16(buf, uint16(n))
		case 4:
			order.PutUint32(buf, uint32(n))
		case 8:
			order.PutUint64(buf, n)
		default:
			return fmt.Errorf("wiregraph: cannot patch a %d-octet field with a computed value", len(buf))
		}
		return sc.writeAt(sibling.streamStart, buf)
	}
}

// writeBackRawBytes stores raw bytes into a byte-slice/array sibling,
// either in memory (not yet emitted) or by patching the wire (already
// emitted).
func writeBackRawBytes(sc *streamContext, target *valueNode, raw []byte) error {
	if !target.visited || target.streamStart == target.streamEnd {
		if target.rv.Kind() == reflect.Array {
			reflect.Copy(target.rv, reflect.ValueOf(raw))
		} else {
			target.rv.Set(reflect.ValueOf(raw))
		}
		return nil
	}
	return sc.writeAt(target.streamStart, raw)
}

// resolveEndianBinding resolves a FieldEndianness binding for an
// endian-selector field (§6.1's endian=PATH form). 0 means little, any
// other value means big, unless a converter maps the wire value directly
// to an Endianness.
func resolveEndianBinding(consumer *valueNode, bnd *bindingSpec, forWrite bool) (Endianness, bool, error) {
	n, ok, err := resolveBindingValue(consumer, bnd, forWrite)
	if err != nil || !ok {
		return LittleEndian, ok, err
	}
	if bnd.converter != "" {
		if conv, ok := converterRegistry[bnd.converter]; ok {
			if logical, err := conv.ToLogical(n, bnd.converterParam, &Context{vn: consumer}); err == nil {
				if e, ok := logical.(Endianness); ok {
					return e, true, nil
				}
			}
		}
	}
	if n == 0 {
		return LittleEndian, true, nil
	}
	return BigEndian, true, nil
}

// evalCondition resolves a SerializeWhen/SerializeWhenNot condition
// (§6.1) against the live value tree.
func evalCondition(consumer *valueNode, cs *condSpec, forWrite bool) (bool, bool, error) {
	target, err := resolvePathNode(consumer, cs.path)
	if err != nil {
		return false, false, err
	}
	if !forWrite && !target.visited {
		return false, false, nil
	}
	actual := fmt.Sprintf("%v", target.rv.Interface())
	match := actual == cs.literal
	if cs.negate {
		match = !match
	}
	return match, true, nil
}
