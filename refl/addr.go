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

// Package refl offers an unsafe-pointer fast path for Custom-serialized
// fields, for callers who want to skip the extra reflect.Value.Addr() hop
// the walker otherwise takes before asserting a field to the Custom
// interface.
package refl

import "unsafe"

// Value wraps a raw address handed back by WireAddressable.
type Value struct {
	Ptr unsafe.Pointer
}

// NewValue constructs a Value from a pointer.
func NewValue(ptr unsafe.Pointer) Value { return Value{Ptr: ptr} }

// WireAddressable lets a Custom-serialized type hand back its own address
// directly, bypassing reflect.Value.Addr() for types built outside the
// normal addressable-struct path (e.g. constructed via RegisterConstructor
// and so not reachable through the original field's reflect.Value).
type WireAddressable interface {
	WireAddr() Value
}
