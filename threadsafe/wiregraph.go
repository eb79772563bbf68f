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

// Package threadsafe provides a concurrency-safe wrapper around
// wiregraph.Engine using sync.Pool, for call sites that share one
// configuration across many goroutines.
package threadsafe

import (
	"context"
	"io"
	"sync"

	"github.com/wiregraph/wiregraph"
)

// Engine is a concurrency-safe wrapper around wiregraph.Engine. A single
// wiregraph.Engine is already safe for concurrent use (it holds no
// per-call mutable state), so this wrapper exists purely for call sites
// that want the same acquire/release ergonomics the rest of the ecosystem
// uses for pooled codecs.
type Engine struct {
	pool sync.Pool
}

// New creates a new thread-safe Engine.
func New(opts ...wiregraph.Option) *Engine {
	e := &Engine{}
	e.pool = sync.Pool{
		New: func() any {
			return wiregraph.New(opts...)
		},
	}
	return e
}

func (e *Engine) acquire() *wiregraph.Engine {
	return e.pool.Get().(*wiregraph.Engine)
}

func (e *Engine) release(inner *wiregraph.Engine) {
	e.pool.Put(inner)
}

// Serialize writes v using a pooled Engine.
func (e *Engine) Serialize(ctx context.Context, w io.Writer, v any) (int64, error) {
	inner := e.acquire()
	defer e.release(inner)
	return inner.Serialize(ctx, w, v)
}

// SerializeBytes serializes v using a pooled Engine.
func (e *Engine) SerializeBytes(v any) ([]byte, error) {
	inner := e.acquire()
	defer e.release(inner)
	return inner.SerializeBytes(v)
}

// Deserialize reads into v using a pooled Engine.
func (e *Engine) Deserialize(ctx context.Context, r io.Reader, v any) error {
	inner := e.acquire()
	defer e.release(inner)
	return inner.Deserialize(ctx, r, v)
}

// DeserializeBytes reads into v from data using a pooled Engine.
func (e *Engine) DeserializeBytes(data []byte, v any) error {
	inner := e.acquire()
	defer e.release(inner)
	return inner.DeserializeBytes(data, v)
}

// Serialize serializes value with type T inferred, thread-safe.
func Serialize[T any](e *Engine, value T) ([]byte, error) {
	inner := e.acquire()
	defer e.release(inner)
	return wiregraph.Serialize(inner, value)
}

// Deserialize deserializes data to type T, thread-safe.
func Deserialize[T any](e *Engine, data []byte) (T, error) {
	inner := e.acquire()
	defer e.release(inner)
	return wiregraph.Deserialize[T](inner, data)
}

// Global thread-safe Engine instance for convenience.
var global = New()

// Marshal serializes value using the global thread-safe Engine.
func Marshal[T any](value T) ([]byte, error) {
	return Serialize(global, value)
}

// Unmarshal deserializes data using the global thread-safe Engine.
func Unmarshal[T any](data []byte) (T, error) {
	return Deserialize[T](global, data)
}
