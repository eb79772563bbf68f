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
	"reflect"
)

// subtypeEntry is one static table row, a registered factory, or the
// default fallback (§4.5 C6).
type subtypeEntry struct {
	key       string
	goType    reflect.Type
	direction Direction
}

// subtypeTable implements §4.5's dispatch: a static key/type table checked
// first, then a registered factory, then a default, each direction-aware.
// One table is attached to the TypeNode of any interface-typed or
// explicitly-keyed polymorphic field.
type subtypeTable struct {
	ifaceType reflect.Type
	byKey     map[string]*subtypeEntry
	byGoType  map[reflect.Type]*subtypeEntry

	// tryGetType/tryGetKey are the factory tier (§4.5's F.try_get_type(k) on
	// read, F.try_get_key(T) on write), consulted after the static byKey/
	// byGoType rows.
	tryGetType func(key string) (reflect.Value, bool)
	tryGetKey  func(v reflect.Value) (string, bool)

	def *subtypeEntry
}

func newSubtypeTable(ifaceType reflect.Type) *subtypeTable {
	return &subtypeTable{ifaceType: ifaceType, byKey: map[string]*subtypeEntry{}, byGoType: map[reflect.Type]*subtypeEntry{}}
}

// registerStatic adds a static key<->type row and enforces the build-time
// ambiguity check: two entries that are both read-eligible for the same key
// is a build error rather than a silent last-wins overwrite.
func (t *subtypeTable) registerStatic(key string, goType reflect.Type, dir Direction) error {
	e := &subtypeEntry{key: key, goType: goType, direction: dir}
	if dir != DirWriteOnly {
		if existing, ok := t.byKey[key]; ok && existing.direction != DirWriteOnly {
			return fmt.Errorf("%w: key %q", ErrSubtypeKeyAmbiguous, key)
		}
		t.byKey[key] = e
	}
	if dir != DirReadOnly {
		t.byGoType[goType] = e
	}
	return nil
}

func (t *subtypeTable) registerFactory(tryGetType func(string) (reflect.Value, bool), tryGetKey func(reflect.Value) (string, bool)) {
	t.tryGetType = tryGetType
	t.tryGetKey = tryGetKey
}

func (t *subtypeTable) registerDefault(goType reflect.Type) {
	t.def = &subtypeEntry{goType: goType, direction: DirBoth}
}

// resolveForRead returns the concrete value to decode into for a given
// wire-observed key (§4.5 read path: table, then factory, then default).
func (t *subtypeTable) resolveForRead(key string) (reflect.Value, error) {
	if e, ok := t.byKey[key]; ok {
		return reflect.New(e.goType).Elem(), nil
	}
	if t.tryGetType != nil {
		if v, ok := t.tryGetType(key); ok {
			return v, nil
		}
	}
	if t.def != nil && t.def.goType != nil {
		return reflect.New(t.def.goType).Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %q", ErrUnknownSubtype, key)
}

// resolveForWrite returns the key to emit for a live value's runtime type
// (§4.5 write path: table by Go type, then factory, else default).
func (t *subtypeTable) resolveForWrite(v reflect.Value) (string, reflect.Type, error) {
	rt := v.Type()
	if v.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if e, ok := t.byGoType[rt]; ok {
		return e.key, rt, nil
	}
	if t.tryGetKey != nil {
		if k, ok := t.tryGetKey(v); ok {
			return k, rt, nil
		}
	}
	if t.def != nil && t.def.goType == rt {
		return "", rt, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnmappedSubtype, rt)
}

// subtypeRegistry is the process-wide store of RegisterSubtype/
// RegisterSubtypeFactory/RegisterSubtypeDefault calls, keyed by the
// interface type they dispatch for. Field-level tables (withSubtype,
// withItemSubtype) are built lazily from it the first time a type graph
// needs them.
var subtypeRegistry = map[reflect.Type]*subtypeTable{}

func registryFor(ifaceType reflect.Type) *subtypeTable {
	t, ok := subtypeRegistry[ifaceType]
	if !ok {
		t = newSubtypeTable(ifaceType)
		subtypeRegistry[ifaceType] = t
	}
	return t
}

// RegisterSubtype adds a static key<->concrete-type row to the dispatch
// table for interface I (§4.5). Call during init, before any Engine using
// I is built.
func RegisterSubtype[I any, T any](key string, dir Direction) {
	var iface I
	ifaceType := reflect.TypeOf(&iface).Elem()
	var concrete T
	concreteType := reflect.TypeOf(concrete)
	if concreteType == nil {
		concreteType = reflect.TypeOf(&concrete).Elem()
	}
	t := registryFor(ifaceType)
	if err := t.registerStatic(key, concreteType, dir); err != nil {
		panic(err)
	}
}

// RegisterSubtypeFactory registers the key-aware factory tier checked after
// the static table and before the default (§4.5's F.try_get_type(k) on
// read, F.try_get_key(T) on write). Either function may return ok=false to
// fall through to the next tier.
func RegisterSubtypeFactory[I any](tryGetType func(key string) (I, bool), tryGetKey func(v I) (string, bool)) {
	var iface I
	ifaceType := reflect.TypeOf(&iface).Elem()
	t := registryFor(ifaceType)
	t.registerFactory(
		func(key string) (reflect.Value, bool) {
			v, ok := tryGetType(key)
			if !ok {
				return reflect.Value{}, false
			}
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Ptr {
				return rv, true
			}
			// The walk needs an addressable value to set fields into as it
			// reads; a bare reflect.ValueOf(v) of a non-pointer result isn't.
			addr := reflect.New(rv.Type())
			addr.Elem().Set(rv)
			return addr.Elem(), true
		},
		func(rv reflect.Value) (string, bool) {
			v, ok := rv.Interface().(I)
			if !ok {
				return "", false
			}
			return tryGetKey(v)
		},
	)
}

// RegisterSubtypeDefault registers the catch-all concrete type used when
// neither the static table nor a factory resolves a key (§4.5's "default"
// tier).
func RegisterSubtypeDefault[I any, T any]() {
	var iface I
	ifaceType := reflect.TypeOf(&iface).Elem()
	var concrete T
	concreteType := reflect.TypeOf(concrete)
	t := registryFor(ifaceType)
	t.registerDefault(concreteType)
}

// withSubtype attaches the registered dispatch table (if any) for an
// interface- or struct-typed field tagged with subtypekey (§4.1 step 3).
func withSubtype(node *typeNode, sf reflect.StructField, tag parsedTag) (*typeNode, error) {
	if !tag.hasSubtypeKey && sf.Type.Kind() != reflect.Interface {
		return node, nil
	}
	ifaceType := sf.Type
	t, ok := subtypeRegistry[ifaceType]
	if !ok {
		if sf.Type.Kind() == reflect.Interface {
			return node, fmt.Errorf("wiregraph: field %s is an interface with no RegisterSubtype entries", sf.Name)
		}
		return node, nil
	}
	node.subtypes = t
	if tag.hasSubtypeKey {
		node.discriminator = tag.subtypeKey
	}
	return node, nil
}

// withItemSubtype is withSubtype's collection-element counterpart: it
// attaches the registered dispatch table for an interface element type.
// containerTag is not consulted, so elements have no discriminator sibling
// and are read with an empty key.
func withItemSubtype(node *typeNode, containerTag parsedTag) (*typeNode, error) {
	if node.goType == nil || node.goType.Kind() != reflect.Interface {
		return node, nil
	}
	t, ok := subtypeRegistry[node.goType]
	if !ok {
		return node, fmt.Errorf("wiregraph: collection element type %s has no RegisterSubtype entries", node.goType)
	}
	node.subtypes = t
	return node, nil
}
