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
	"errors"
	"fmt"
	"reflect"
)

// collectionMode is C8's four termination strategies, checked in priority
// order per §4.7: an explicit element count wins over a byte-length bound,
// which wins over a per-item sentinel, which wins over a raw stream
// sentinel.
type collectionMode uint8

const (
	modeFieldCount collectionMode = iota
	modeFieldLength
	modeItemUntil
	modeStreamUntil
	modeImplicit // no attribute given: write uses len(slice); read drains the enclosing frame
)

func selectCollectionMode(tag parsedTag) collectionMode {
	switch {
	case tag.count != nil:
		return modeFieldCount
	case tag.length != nil:
		return modeFieldLength
	case tag.itemUntil != nil:
		return modeItemUntil
	case tag.until != nil:
		return modeStreamUntil
	default:
		return modeImplicit
	}
}

// resolveItemLength resolves an `itemlength` binding for element i. A
// binding to a scalar numeric field applies uniformly to every item; a
// binding to a slice/array field is jagged, indexing element i for this
// item's length.
func resolveItemLength(consumer *valueNode, bnd *bindingSpec, i int, forWrite bool) (int, bool, error) {
	if bnd.isConstant {
		return int(bnd.constant), true, nil
	}
	target, err := resolvePathNode(consumer, bnd.path)
	if err != nil {
		return 0, false, err
	}
	if !forWrite && !target.visited {
		return 0, false, nil
	}
	rv := target.rv
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if i >= rv.Len() {
			return 0, false, fmt.Errorf("%w: itemlength source has %d entries, need index %d", ErrItemLengthMismatch, rv.Len(), i)
		}
		n, err := numericOf(rv.Index(i))
		return int(n), err == nil, err
	}
	n, err := numericOf(rv)
	return int(n), err == nil, err
}

// writeCollection serializes vn's slice/array according to its
// termination mode, emitting each element through walkNode (§4.7).
func writeCollection(sc *streamContext, vn *valueNode) error {
	rv := vn.rv
	n := rv.Len()

	if vn.tn.tag.count != nil {
		if err := writeBackBinding(sc, vn, vn.tn.tag.count, int64(n)); err != nil {
			return err
		}
	}

	var frameLen int64 = -1
	if vn.tn.tag.length != nil {
		frameLen = -2 // measured below, after writing elements into a scratch frame
	}

	start := sc.Position()
	if frameLen == -2 {
		sc.pushBounded(-1)
	}

	for i := 0; i < n; i++ {
		ev := newValueNode(vn.tn.elem, vn, fmt.Sprintf("[%d]", i), rv.Index(i), true)
		if vn.tn.tag.itemLength != nil {
			width, ok, err := resolveItemLength(vn, vn.tn.tag.itemLength, i, true)
			if err != nil {
				return err
			}
			if ok {
				sc.pushBounded(int64(width))
			}
			if err := walkNode(sc, ev); err != nil {
				return err
			}
			if ok {
				if err := sc.popBounded(); err != nil {
					return err
				}
			}
			continue
		}
		if err := walkNode(sc, ev); err != nil {
			return err
		}
	}

	if frameLen == -2 {
		if err := sc.popBounded(); err != nil {
			return err
		}
		measured := sc.Position() - start
		if err := writeBackBinding(sc, vn, vn.tn.tag.length, measured); err != nil {
			return err
		}
	}
	return nil
}

// readCollection deserializes into vn's slice field according to its
// termination mode (§4.7).
func readCollection(sc *streamContext, vn *valueNode) error {
	elemType := vn.tn.goType.Elem()
	mode := selectCollectionMode(vn.tn.tag)

	grow := func() reflect.Value {
		rv := vn.rv
		rv.Set(reflect.Append(rv, reflect.New(elemType).Elem()))
		return rv.Index(rv.Len() - 1)
	}
	readOne := func(i int) error {
		slot := grow()
		ev := newValueNode(vn.tn.elem, vn, fmt.Sprintf("[%d]", i), slot, false)
		if vn.tn.tag.itemLength != nil {
			width, ok, err := resolveItemLength(vn, vn.tn.tag.itemLength, i, false)
			if err != nil {
				return err
			}
			if ok {
				sc.pushBounded(int64(width))
			}
			if err := walkNode(sc, ev); err != nil {
				return err
			}
			if ok {
				if err := sc.popBounded(); err != nil {
					return err
				}
			}
			return nil
		}
		return walkNode(sc, ev)
	}

	vn.rv.Set(reflect.MakeSlice(vn.tn.goType, 0, 0))

	switch mode {
	case modeFieldCount:
		count, ok, err := resolveBindingValue(vn, vn.tn.tag.count, false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNonDeferrableForwardReference
		}
		for i := int64(0); i < count; i++ {
			if err := readOne(int(i)); err != nil {
				return err
			}
		}

	case modeFieldLength:
		length, ok, err := resolveBindingValue(vn, vn.tn.tag.length, false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNonDeferrableForwardReference
		}
		sc.pushBounded(length)
		for i := 0; sc.currentRemaining() > 0; i++ {
			if err := readOne(i); err != nil {
				sc.popBounded()
				return err
			}
		}
		if err := sc.popBounded(); err != nil {
			return err
		}

	case modeItemUntil:
		spec := vn.tn.tag.itemUntil
		for i := 0; ; i++ {
			var tok MarkerToken
			if spec.mode == LastItemDefer {
				var err error
				tok, err = sc.mark()
				if err != nil {
					return err
				}
			}
			slot := grow()
			ev := newValueNode(vn.tn.elem, vn, fmt.Sprintf("[%d]", i), slot, false)
			if err := walkNode(sc, ev); err != nil {
				return err
			}
			hit, _, err := evalItemUntil(ev, spec)
			if err != nil {
				return err
			}
			if hit {
				switch spec.mode {
				case LastItemExclude:
					vn.rv.Set(vn.rv.Slice(0, vn.rv.Len()-1))
				case LastItemDefer:
					vn.rv.Set(vn.rv.Slice(0, vn.rv.Len()-1))
					if err := sc.rewind(tok); err != nil {
						return err
					}
				}
				break
			}
		}

	case modeStreamUntil:
		for i := 0; ; i++ {
			b, err := sc.peekByte()
			if err != nil {
				return err
			}
			if fmt.Sprintf("%d", b) == vn.tn.tag.until.literal {
				break
			}
			if err := readOne(i); err != nil {
				return err
			}
		}

	default: // modeImplicit: drain the enclosing bounded frame, or EOF at the root
		for i := 0; sc.currentRemaining() != 0; i++ {
			if err := readOne(i); err != nil {
				if errors.Is(err, ErrUnderflow) {
					// Drop the slot grown for the element that ran out of input.
					vn.rv.Set(vn.rv.Slice(0, vn.rv.Len()-1))
					break
				}
				return err
			}
		}
	}
	return nil
}

// evalItemUntil checks an ItemSerializeUntil condition against a just-read
// element (§4.7's sentinel-item termination).
func evalItemUntil(elemNode *valueNode, spec *itemUntilSpec) (bool, bool, error) {
	target, err := resolvePathNode(elemNode, spec.path)
	if err != nil {
		return false, false, err
	}
	actual := fmt.Sprintf("%v", target.rv.Interface())
	return actual == spec.literal, true, nil
}
