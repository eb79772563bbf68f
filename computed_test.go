// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wiregraph/wiregraph/internal/crc"
)

func TestNewAccumulator_CRC32MatchesStandardLibrary(t *testing.T) {
	acc, err := newAccumulator("crc32")
	require.NoError(t, err)
	payload := []byte("the quick brown fox")
	_, err = acc.Write(payload)
	require.NoError(t, err)

	want := make([]byte, 4)
	binary.BigEndian.PutUint32(want, crc32.ChecksumIEEE(payload))
	assert.Equal(t, want, acc.Sum())
}

func TestNewAccumulator_Murmur3MatchesLibrary(t *testing.T) {
	acc, err := newAccumulator("murmur3")
	require.NoError(t, err)
	payload := []byte("the quick brown fox")
	_, err = acc.Write(payload)
	require.NoError(t, err)

	h := murmur3.New64()
	h.Write(payload)
	want := make([]byte, 8)
	binary.BigEndian.PutUint64(want, h.Sum64())
	assert.Equal(t, want, acc.Sum())
}

func TestNewAccumulator_CRC16MatchesInternalHash(t *testing.T) {
	acc, err := newAccumulator("crc16")
	require.NoError(t, err)
	payload := []byte("the quick brown fox")
	_, err = acc.Write(payload)
	require.NoError(t, err)

	h := crc.New()
	h.Write(payload)
	want := make([]byte, 2)
	binary.BigEndian.PutUint16(want, h.Sum16())
	assert.Equal(t, want, acc.Sum())
}

func TestNewAccumulator_UnknownAlgorithmRejected(t *testing.T) {
	_, err := newAccumulator("rot13")
	assert.Error(t, err)
}
