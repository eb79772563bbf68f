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
	"strconv"
	"strings"
)

// Tag is the concrete, in-process instantiation of the §6.1 attribute
// discovery contract: it parses the `wire:"..."` struct tag on a field into
// a normalized set of attributes. Nothing outside this file needs to know
// that struct tags are the underlying mechanism — typenode.go only calls
// parseWireTag and consumes the result.
const tagKey = "wire"

// bindingSpec is either a compile-time constant or a reference to another
// field's value (§3 Binding/Path), optionally passed through a named
// converter (§6.2).
type bindingSpec struct {
	isConstant     bool
	constant       int64
	path           path
	converter      string
	converterParam string
}

// fieldValueSpec captures one FieldValue-family attribute: `crc16=Crc`
// covers the byte range of the holding field and writes the finalized
// value back into the field named by target.
type fieldValueSpec struct {
	algorithm string // "crc16", "crc32", "murmur3", "blake3", "xxhash"
	target    string
}

type condSpec struct {
	path    path
	literal string
	negate  bool
}

type untilSpec struct {
	literal string
}

type itemUntilSpec struct {
	path    path
	literal string
	mode    LastItemMode
}

// parsedTag is the normalized descriptor produced for one struct field.
type parsedTag struct {
	ignore bool

	hasOrder bool
	order    int

	length *bindingSpec
	count  *bindingSpec
	offset *bindingSpec

	alignMultiple int
	alignMode     AlignMode
	hasAlign      bool

	hasScale bool
	scaleNum int64
	scaleDen int64

	hasEndian bool
	endian    Endianness
	endianBnd *bindingSpec

	hasEncoding bool
	encoding    Encoding

	fieldValues []fieldValueSpec

	subtypeKey     string
	hasSubtypeKey  bool
	subtypeDefault bool

	serializeAs string

	when    *condSpec
	whenNot *condSpec

	until *untilSpec

	itemLength *bindingSpec
	itemUntil  *itemUntilSpec
}

// parseWireTag parses the `wire:"..."` tag value. Grammar: comma-separated
// `key=value` or bare `key` pairs. Unknown keys are a build-time error
// (ErrBindingPathInvalid) so typos fail fast instead of being silently
// ignored.
func parseWireTag(raw string) (parsedTag, error) {
	var pt parsedTag
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pt, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "-" || part == "ignore" {
			pt.ignore = true
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		var err error
		switch key {
		case "order":
			pt.hasOrder = true
			pt.order, err = strconv.Atoi(value)
		case "length":
			pt.length, err = parseBindingSpec(value)
		case "count":
			pt.count, err = parseBindingSpec(value)
		case "offset":
			pt.offset, err = parseBindingSpec(value)
		case "align":
			err = parseAlign(&pt, value, AlignLeft)
		case "alignleft":
			err = parseAlign(&pt, value, AlignLeft)
		case "alignright":
			err = parseAlign(&pt, value, AlignRight)
		case "alignboth":
			err = parseAlign(&pt, value, AlignBoth)
		case "scale":
			err = parseScale(&pt, value)
		case "endian":
			err = parseEndian(&pt, value)
		case "encoding":
			err = parseEncoding(&pt, value)
		case "crc16", "crc32", "murmur3", "blake3", "xxhash":
			if !hasValue || value == "" {
				err = fmt.Errorf("%w: %s requires a target field name", ErrBindingPathInvalid, key)
				break
			}
			pt.fieldValues = append(pt.fieldValues, fieldValueSpec{algorithm: key, target: value})
		case "subtypekey":
			pt.hasSubtypeKey = true
			pt.subtypeKey = value
		case "subtypedefault":
			pt.subtypeDefault = true
		case "as":
			pt.serializeAs = value
		case "when":
			pt.when, err = parseCond(value, false)
		case "whennot":
			pt.whenNot, err = parseCond(value, true)
		case "until":
			pt.until = &untilSpec{literal: value}
		case "itemlength":
			pt.itemLength, err = parseBindingSpec(value)
		case "itemuntil":
			pt.itemUntil, err = parseItemUntil(value)
		default:
			err = fmt.Errorf("%w: unrecognized wire tag key %q", ErrBindingPathInvalid, key)
		}
		if err != nil {
			return pt, err
		}
	}
	return pt, nil
}

func parseBindingSpec(value string) (*bindingSpec, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: empty binding value", ErrBindingPathInvalid)
	}
	// constant?
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return &bindingSpec{isConstant: true, constant: n}, nil
	}
	pathStr, converter, param := splitConverter(value)
	p, err := parsePath(pathStr)
	if err != nil {
		return nil, err
	}
	return &bindingSpec{path: p, converter: converter, converterParam: param}, nil
}

// splitConverter splits "Field(converterName)" into ("Field", "converterName",
// "") and "Field(converterName:param)" into ("Field", "converterName",
// "param") -- the parameter argument of §6.2's convert(value, parameter,
// context) contract, passed through to the converter unchanged.
func splitConverter(value string) (fieldPath, converter, param string) {
	open := strings.IndexByte(value, '(')
	if open < 0 || !strings.HasSuffix(value, ")") {
		return value, "", ""
	}
	inner := value[open+1 : len(value)-1]
	name, p, hasParam := strings.Cut(inner, ":")
	if !hasParam {
		return value[:open], name, ""
	}
	return value[:open], name, p
}

func parseAlign(pt *parsedTag, value string, mode AlignMode) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: align value %q: %v", ErrBindingPathInvalid, value, err)
	}
	pt.hasAlign = true
	pt.alignMultiple = n
	pt.alignMode = mode
	return nil
}

func parseScale(pt *parsedTag, value string) error {
	num, den := value, "1"
	if n, d, ok := strings.Cut(value, "/"); ok {
		num, den = n, d
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: scale numerator %q: %v", ErrBindingPathInvalid, num, err)
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: scale denominator %q: %v", ErrBindingPathInvalid, den, err)
	}
	pt.hasScale = true
	pt.scaleNum = n
	pt.scaleDen = d
	return nil
}

func parseEndian(pt *parsedTag, value string) error {
	switch strings.ToLower(value) {
	case "little", "le":
		pt.hasEndian = true
		pt.endian = LittleEndian
		return nil
	case "big", "be":
		pt.hasEndian = true
		pt.endian = BigEndian
		return nil
	default:
		bnd, err := parseBindingSpec(value)
		if err != nil {
			return fmt.Errorf("%w: endian value %q is neither little/big nor a binding: %v", ErrBindingPathInvalid, value, err)
		}
		pt.hasEndian = true
		pt.endianBnd = bnd
		return nil
	}
}

func parseEncoding(pt *parsedTag, value string) error {
	pt.hasEncoding = true
	switch strings.ToLower(value) {
	case "utf8", "utf-8":
		pt.encoding = EncodingUTF8
	case "ascii":
		pt.encoding = EncodingASCII
	case "latin1":
		pt.encoding = EncodingLatin1
	case "utf16le", "utf-16le":
		pt.encoding = EncodingUTF16LE
	case "utf16be", "utf-16be":
		pt.encoding = EncodingUTF16BE
	default:
		return fmt.Errorf("%w: unknown encoding %q", ErrBindingPathInvalid, value)
	}
	return nil
}

func parseCond(value string, negate bool) (*condSpec, error) {
	pathStr, literal, ok := strings.Cut(value, "==")
	if !ok {
		return nil, fmt.Errorf("%w: condition %q must be PATH==LITERAL", ErrBindingPathInvalid, value)
	}
	p, err := parsePath(pathStr)
	if err != nil {
		return nil, err
	}
	return &condSpec{path: p, literal: literal, negate: negate}, nil
}

func parseItemUntil(value string) (*itemUntilSpec, error) {
	// PATH==LITERAL[:mode]
	body, modeStr, hasMode := strings.Cut(value, ":")
	pathStr, literal, ok := strings.Cut(body, "==")
	if !ok {
		return nil, fmt.Errorf("%w: itemuntil %q must be PATH==LITERAL[:mode]", ErrBindingPathInvalid, value)
	}
	p, err := parsePath(pathStr)
	if err != nil {
		return nil, err
	}
	mode := LastItemInclude
	if hasMode {
		switch strings.ToLower(modeStr) {
		case "include":
			mode = LastItemInclude
		case "exclude":
			mode = LastItemExclude
		case "defer":
			mode = LastItemDefer
		default:
			return nil, fmt.Errorf("%w: unknown itemuntil mode %q", ErrBindingPathInvalid, modeStr)
		}
	}
	return &itemUntilSpec{path: p, literal: literal, mode: mode}, nil
}
