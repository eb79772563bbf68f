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
)

// Build-time errors, raised while constructing a type graph.
var (
	ErrDuplicateOrder      = errors.New("wiregraph: two sibling fields declare the same order")
	ErrMissingOrder        = errors.New("wiregraph: more than one sibling field is missing an order")
	ErrUnresolvedConstructor = errors.New("wiregraph: no constructor accepts the readable fields")
	ErrCyclicType          = errors.New("wiregraph: type is its own ancestor via composition")
	ErrSubtypeKeyAmbiguous = errors.New("wiregraph: subtype key maps to more than one read-eligible type")
	ErrBindingPathInvalid  = errors.New("wiregraph: binding path is malformed")
)

// Bind-time errors, raised while resolving a binding against a value graph.
var (
	ErrBindingNotFound            = errors.New("wiregraph: binding source path did not resolve to a node")
	ErrNonDeferrableForwardReference = errors.New("wiregraph: forward reference cannot be deferred on this stream")
	ErrConverterRejected          = errors.New("wiregraph: converter rejected the value for this direction")
)

// Walk-time errors, raised while serializing or deserializing.
var (
	ErrOverflow            = errors.New("wiregraph: value is wider than its bound length")
	ErrUnderflow           = errors.New("wiregraph: stream ran out of data")
	ErrUnknownSubtype      = errors.New("wiregraph: no table entry, factory, or default for subtype key")
	ErrUnmappedSubtype     = errors.New("wiregraph: no table entry or factory for runtime type")
	ErrItemLengthMismatch  = errors.New("wiregraph: item-length sequence does not match collection length")
	ErrNotSeekable         = errors.New("wiregraph: operation requires a seekable stream")
	ErrStreamClosed        = errors.New("wiregraph: stream was closed mid-walk")
)

// ErrNotAPointer is returned by Engine.Deserialize when the destination is
// not a non-nil pointer.
var ErrNotAPointer = errors.New("wiregraph: Deserialize target must be a non-nil pointer")

// PathError wraps a lower-level error with the breadcrumb of the node that
// was being visited when it occurred. The walker adds one PathError per
// ancestor as the error unwinds, so the outermost caller sees the full
// path from root to failure.
type PathError struct {
	Node      string
	Offset    int64
	Direction string
	Err       error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("wiregraph: %s %s at offset %d: %v", e.Direction, e.Node, e.Offset, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// wrapPath attaches a breadcrumb to err, or extends the existing chain if
// err is already a *PathError produced by a deeper frame.
func wrapPath(node string, offset int64, direction string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Node: node, Offset: offset, Direction: direction, Err: err}
}
