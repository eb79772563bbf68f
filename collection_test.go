// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteElem is a single-field struct used to force the element type of a
// slice field into collectionKind (§4.1 step 2's classification rules send
// a slice of any fixed-width numeric kind, including uint8, down the
// byte-blob or primitive-array paths instead -- only a slice of structs,
// strings, or interfaces reaches collection.go's termination strategies).
type byteElem struct {
	V uint8 `wire:"order=0"`
}

func byteElemValues(items []byteElem) []uint8 {
	out := make([]uint8, len(items))
	for i, it := range items {
		out[i] = it.V
	}
	return out
}

type lengthBoundHolder struct {
	BodyLen uint32     `wire:"order=0,endian=big"`
	Body    []byteElem `wire:"order=1,length=BodyLen"`
	Trailer uint8      `wire:"order=2"`
}

func TestCollection_FieldLengthBoundsTheSlice(t *testing.T) {
	e := New()
	data, err := e.SerializeBytes(lengthBoundHolder{
		Body:    []byteElem{{V: 1}, {V: 2}, {V: 3}},
		Trailer: 9,
	})
	require.NoError(t, err)

	got, err := Deserialize[lengthBoundHolder](e, data)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, byteElemValues(got.Body))
	assert.Equal(t, uint8(9), got.Trailer)
}

type untilMarkerElem struct {
	Marker uint8 `wire:"order=0"`
}

type itemUntilIncludeHolder struct {
	Items []untilMarkerElem `wire:"order=0,itemuntil=^0.Marker==255"`
}

type itemUntilExcludeHolder struct {
	Items []untilMarkerElem `wire:"order=0,itemuntil=^0.Marker==255:exclude"`
}

func TestCollection_ItemUntilIncludeKeepsSentinelElement(t *testing.T) {
	e := New()
	data, err := e.SerializeBytes(itemUntilIncludeHolder{
		Items: []untilMarkerElem{{Marker: 1}, {Marker: 2}, {Marker: 255}},
	})
	require.NoError(t, err)
	require.Len(t, data, 3)

	got, err := Deserialize[itemUntilIncludeHolder](e, data)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, uint8(255), got.Items[2].Marker)
}

func TestCollection_ItemUntilExcludeDropsSentinelElement(t *testing.T) {
	e := New()
	data, err := e.SerializeBytes(itemUntilExcludeHolder{
		Items: []untilMarkerElem{{Marker: 1}, {Marker: 2}, {Marker: 255}},
	})
	require.NoError(t, err)
	require.Len(t, data, 3)

	got, err := Deserialize[itemUntilExcludeHolder](e, data)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, uint8(1), got.Items[0].Marker)
	assert.Equal(t, uint8(2), got.Items[1].Marker)
}

type streamUntilHolder struct {
	Items []byteElem `wire:"order=0,until=255"`
}

func TestCollection_StreamUntilStopsBeforeSentinelByteWithoutConsumingIt(t *testing.T) {
	e := New()
	got, err := Deserialize[streamUntilHolder](e, []byte{1, 2, 3, 255})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, byteElemValues(got.Items))
}

type implicitDrainHolder struct {
	Items []byteElem `wire:"order=0"`
}

func TestCollection_ImplicitModeDrainsRemainingBytes(t *testing.T) {
	e := New()
	got, err := Deserialize[implicitDrainHolder](e, []byte{4, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 5, 6, 7}, byteElemValues(got.Items))
}

func TestResolveItemLength_ScalarBindingAppliesToEveryElement(t *testing.T) {
	root, _ := newBindingOuterTree(t, true)
	body := root.childByName["Body"]

	p, err := parsePath("Len")
	require.NoError(t, err)
	bnd := &bindingSpec{path: p}

	n, ok, err := resolveItemLength(body, bnd, 0, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok, err = resolveItemLength(body, bnd, 7, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

type jaggedLenHolder struct {
	Lens  []uint8 `wire:"order=0"`
	Other uint8   `wire:"order=1"`
}

func TestResolveItemLength_SliceBindingIsJaggedPerIndex(t *testing.T) {
	tn, err := buildTypeGraph(reflect.TypeOf(jaggedLenHolder{}))
	require.NoError(t, err)
	obj := &jaggedLenHolder{Lens: []uint8{5, 9, 2}}
	root := newValueNode(tn, nil, "", reflect.ValueOf(obj).Elem(), true)
	consumer := root.childByName["Other"]

	p, err := parsePath("Lens")
	require.NoError(t, err)
	bnd := &bindingSpec{path: p}

	n, ok, err := resolveItemLength(consumer, bnd, 1, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, n)

	_, ok, err = resolveItemLength(consumer, bnd, 9, true)
	assert.Error(t, err)
	assert.False(t, ok)
}
