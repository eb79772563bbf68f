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

// Endianness selects the byte order used when reading or writing a
// multi-byte primitive. It is inherited top-down through the type graph
// unless a descendant overrides it (invariant 6).
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) byteOrder() byteOrderLike {
	if e == BigEndian {
		return bigEndianOrder{}
	}
	return littleEndianOrder{}
}

// Encoding names a string codec. Also inherited top-down (invariant 6).
type Encoding uint8

const (
	EncodingUTF8 Encoding = iota
	EncodingASCII
	EncodingLatin1
	EncodingUTF16LE
	EncodingUTF16BE
)

// AlignMode selects which edge of a framed region an alignment applies to.
type AlignMode uint8

const (
	AlignLeft AlignMode = iota
	AlignRight
	AlignBoth
)

// Direction restricts a binding (commonly a subtype mapping) to one walk
// direction. Both is the default.
type Direction uint8

const (
	DirBoth Direction = iota
	DirReadOnly
	DirWriteOnly
)

// LastItemMode controls what happens to the sentinel item that satisfies an
// ItemSerializeUntil termination.
type LastItemMode uint8

const (
	LastItemInclude LastItemMode = iota
	LastItemExclude
	LastItemDefer
)

// typeNodeKind tags the TypeNode variant, matching §3's enumeration:
// Object, Collection, PrimitiveArray, Value, CustomSerialized, StreamPassthrough.
type typeNodeKind uint8

const (
	objectKind typeNodeKind = iota
	collectionKind
	primitiveArrayKind
	valueKind
	customKind
	streamKind
)

// attrKind enumerates every attribute kind the engine recognizes (§6.1).
type attrKind uint8

const (
	attrIgnore attrKind = iota
	attrOrder
	attrLength
	attrCount
	attrAlignment
	attrScale
	attrEndianness
	attrEncoding
	attrOffset
	attrFieldValue
	attrSubtypeKey
	attrSubtypeDefault
	attrSerializeAs
	attrSerializeAsEnum
	attrSerializeWhen
	attrSerializeWhenNot
	attrSerializeUntil
	attrItemLength
	attrItemSerializeUntil
)

// isFixedWidthKind reports whether k is representable as a fixed-width
// primitive wire value (the fast path equivalent of the teacher's
// isFixedSizePrimitive/isVarintPrimitive split).
func isFixedWidthKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isStringKind(k reflect.Kind) bool {
	return k == reflect.String
}
