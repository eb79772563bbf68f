// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type treeNode struct {
	V        uint8      `wire:"order=0"`
	Children []treeNode `wire:"order=1"`
}

func TestBuildTypeGraph_RejectsSliceMediatedCycle(t *testing.T) {
	_, err := buildTypeGraph(reflect.TypeOf(treeNode{}))
	assert.ErrorIs(t, err, ErrCyclicType)
}

type linkedNode struct {
	V    uint8       `wire:"order=0"`
	Next *linkedNode `wire:"order=1,when=V==1"`
}

func TestBuildTypeGraph_RejectsPointerMediatedCycle(t *testing.T) {
	_, err := buildTypeGraph(reflect.TypeOf(linkedNode{}))
	assert.ErrorIs(t, err, ErrCyclicType)
}

type repeatedA struct{ X uint8 `wire:"order=0"` }
type repeatedB struct {
	First  repeatedA `wire:"order=0"`
	Second repeatedA `wire:"order=1"`
}

func TestBuildTypeGraph_RepeatedNonCyclicTypeIsFine(t *testing.T) {
	_, err := buildTypeGraph(reflect.TypeOf(repeatedB{}))
	require.NoError(t, err)
}

func TestBuildTypeGraph_CachesByType(t *testing.T) {
	t1, err := buildTypeGraph(reflect.TypeOf(repeatedA{}))
	require.NoError(t, err)
	t2, err := buildTypeGraph(reflect.TypeOf(repeatedA{}))
	require.NoError(t, err)
	assert.Same(t, t1, t2)
}

type orderConflict struct {
	A uint8 `wire:"order=0"`
	B uint8 `wire:"order=0"`
}

func TestBuildTypeGraph_DuplicateOrderRejected(t *testing.T) {
	_, err := buildTypeGraph(reflect.TypeOf(orderConflict{}))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

type orderMissing struct {
	A uint8 `wire:"order=0"`
	B uint8
	C uint8
}

func TestBuildTypeGraph_MultipleMissingOrderRejected(t *testing.T) {
	_, err := buildTypeGraph(reflect.TypeOf(orderMissing{}))
	assert.ErrorIs(t, err, ErrMissingOrder)
}
