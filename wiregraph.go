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

// Package wiregraph implements a declarative, byte-level binary
// serialization engine: callers describe a record's wire layout with
// struct tags (lengths, counts, endianness, encoding, subtypes, offsets,
// conditions, computed checksums) and the engine builds a cached Type
// Graph once per Go type, then walks a live Value Graph bound to the
// actual data on every Serialize/Deserialize call.
package wiregraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
)

// Config holds the options New applies to a freshly built Engine. The
// yaml tags let it double as the shape LoadConfigFile populates, so an
// Engine's depth guard and buffering policy can live in a deployment's
// config file rather than in Go source.
type Config struct {
	MaxDepth          int  `yaml:"max_depth"`
	DisallowBuffering bool `yaml:"disallow_buffering"`

	onMemberSerializing   []func(MemberEvent)
	onMemberSerialized    []func(MemberEvent)
	onMemberDeserializing []func(MemberEvent)
	onMemberDeserialized  []func(MemberEvent)
}

func defaultConfig() Config {
	return Config{MaxDepth: 1000}
}

// Option configures an Engine at construction time.
type Option func(*Config)

// WithMaxDepth bounds recursion depth (objects nested inside objects,
// collections of objects, and so on). 0 disables the guard.
func WithMaxDepth(depth int) Option {
	return func(c *Config) { c.MaxDepth = depth }
}

// WithDisallowBuffering forbids the engine from buffering a non-seekable
// stream internally; FieldOffset, write-back, and computed values then
// require the caller's io.Reader/io.Writer to already be seekable.
func WithDisallowBuffering(disallow bool) Option {
	return func(c *Config) { c.DisallowBuffering = disallow }
}

// WithOnMemberSerializing registers a hook fired just before each node is
// written; a parent's hook fires before its children's.
func WithOnMemberSerializing(fn func(MemberEvent)) Option {
	return func(c *Config) { c.onMemberSerializing = append(c.onMemberSerializing, fn) }
}

// WithOnMemberSerialized registers a hook fired just after each node has
// been fully written.
func WithOnMemberSerialized(fn func(MemberEvent)) Option {
	return func(c *Config) { c.onMemberSerialized = append(c.onMemberSerialized, fn) }
}

// WithOnMemberDeserializing registers a hook fired just before each node
// is read.
func WithOnMemberDeserializing(fn func(MemberEvent)) Option {
	return func(c *Config) { c.onMemberDeserializing = append(c.onMemberDeserializing, fn) }
}

// WithOnMemberDeserialized registers a hook fired just after each node has
// been fully read.
func WithOnMemberDeserialized(fn func(MemberEvent)) Option {
	return func(c *Config) { c.onMemberDeserialized = append(c.onMemberDeserialized, fn) }
}

// Engine is the entry point: it owns a Config and drives the Type Graph
// cache (typenode.go) and walker (walk.go) against caller data. An Engine
// holds no per-call mutable state, so a single instance is safe to reuse
// (and to share across goroutines — see the threadsafe subpackage for a
// pooled wrapper that mirrors this one's API when call sites need to
// amortize scratch-buffer allocation instead).
type Engine struct {
	config Config
}

// New builds an Engine with the given options applied over the defaults.
func New(opts ...Option) *Engine {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return &Engine{config: c}
}

func (e *Engine) newWriteStream(ctx context.Context, w io.Writer) *streamContext {
	sc := newWriteStream(ctx, w, e.config.DisallowBuffering)
	sc.maxDepth = e.config.MaxDepth
	sc.onSerializing = e.config.onMemberSerializing
	sc.onSerialized = e.config.onMemberSerialized
	return sc
}

func (e *Engine) newReadStream(ctx context.Context, r io.Reader) (*streamContext, error) {
	sc, err := newReadStream(ctx, r, e.config.DisallowBuffering)
	if err != nil {
		return nil, err
	}
	sc.maxDepth = e.config.MaxDepth
	sc.onDeserializing = e.config.onMemberDeserializing
	sc.onDeserialized = e.config.onMemberDeserialized
	return sc, nil
}

// rootValue resolves v (a struct, a pointer to a struct, or a nil pointer
// to allocate into) to an addressable struct reflect.Value plus its
// TypeNode.
func rootValue(v any, forWrite bool) (reflect.Value, *typeNode, error) {
	rv := reflect.ValueOf(v)
	if forWrite {
		for rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return reflect.Value{}, nil, fmt.Errorf("wiregraph: cannot serialize a nil %s", rv.Type())
			}
			rv = rv.Elem()
		}
		if !rv.CanAddr() {
			// A struct passed by value is copied so write-backs can set fields.
			cp := reflect.New(rv.Type()).Elem()
			cp.Set(rv)
			rv = cp
		}
	} else {
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return reflect.Value{}, nil, ErrNotAPointer
		}
		rv = rv.Elem()
	}
	tn, err := buildTypeGraph(rv.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv, tn, nil
}

// Serialize writes v (a struct or pointer to one) to w using its Type
// Graph. Returns the number of octets written.
func (e *Engine) Serialize(ctx context.Context, w io.Writer, v any) (int64, error) {
	rv, tn, err := rootValue(v, true)
	if err != nil {
		return 0, err
	}
	sc := e.newWriteStream(ctx, w)
	root := newObjectValueNode(tn, nil, tn.goType.Name(), rv, true)
	if err := walkObject(sc, root); err != nil {
		return 0, err
	}
	if err := sc.flush(); err != nil {
		return 0, err
	}
	sc.close()
	return sc.Position(), nil
}

// SerializeBytes is the common case of Serialize: write v and return the
// resulting bytes.
func (e *Engine) SerializeBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.Serialize(context.Background(), &buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize reads into v (which must be a non-nil pointer to a struct)
// from r.
func (e *Engine) Deserialize(ctx context.Context, r io.Reader, v any) error {
	rv, tn, err := rootValue(v, false)
	if err != nil {
		return err
	}
	sc, err := e.newReadStream(ctx, r)
	if err != nil {
		return err
	}
	root := newObjectValueNode(tn, nil, tn.goType.Name(), rv, false)
	if err := walkObject(sc, root); err != nil {
		return err
	}
	sc.close()
	return nil
}

// DeserializeBytes is the common case of Deserialize: read from a byte
// slice already fully in memory.
func (e *Engine) DeserializeBytes(data []byte, v any) error {
	return e.Deserialize(context.Background(), bytes.NewReader(data), v)
}

// Serialize is the generic entry point: T is inferred, no pointer
// indirection required at the call site.
func Serialize[T any](e *Engine, value T) ([]byte, error) {
	return e.SerializeBytes(value)
}

// Deserialize is the generic entry point: T is inferred and a zero T is
// allocated, populated, and returned.
func Deserialize[T any](e *Engine, data []byte) (T, error) {
	var out T
	if err := e.DeserializeBytes(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
