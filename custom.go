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
	"io"
	"reflect"
)

// Custom lets a type take over its own wire representation entirely
// (§3 TypeNode kind CustomSerialized). A field whose type, or whose
// pointer type, implements Custom is never decomposed into further
// TypeNodes — the walker hands it the live stream directly, along with
// the field's effective endianness (inherited per invariant 6, or
// resolved from its own endian binding) and a Context for ancestor
// lookups (§6.2), so a Custom implementation has the same collaborator
// surface as any other node kind.
type Custom interface {
	WriteWire(s Stream, endian Endianness, ctx *Context) error
	ReadWire(s Stream, endian Endianness, ctx *Context) error
}

var customType = reflect.TypeOf((*Custom)(nil)).Elem()

func implementsCustom(t reflect.Type) bool {
	if t.Implements(customType) {
		return true
	}
	if t.Kind() != reflect.Ptr {
		return reflect.PointerTo(t).Implements(customType)
	}
	return false
}

// Stream is the StreamPassthrough contract (§3 TypeNode kind
// StreamPassthrough): a field of this type receives raw, unframed access
// to the position the walker has reached, for handlers that need to do
// something the declarative attribute set cannot express.
type Stream interface {
	io.Reader
	io.Writer
	Position() int64
}

var streamType = reflect.TypeOf((*Stream)(nil)).Elem()

func isStreamHandle(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t == streamType
}

// streamHandle adapts a streamContext to the public Stream contract for a
// StreamPassthrough field.
type streamHandle struct {
	sc *streamContext
}

func (h streamHandle) Read(p []byte) (int, error) {
	n := len(p)
	if h.sc.canSeek() {
		if rem := h.sc.currentRemaining(); rem >= 0 && int64(n) > rem {
			n = int(rem)
		}
	}
	data, err := h.sc.readExact(n)
	copy(p, data)
	return len(data), err
}

func (h streamHandle) Write(p []byte) (int, error) {
	if err := h.sc.writeAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (h streamHandle) Position() int64 { return h.sc.Position() }
