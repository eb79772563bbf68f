// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ipv4Addr struct {
	octets [4]byte
}

func (a *ipv4Addr) WriteWire(s Stream, endian Endianness, ctx *Context) error {
	_, err := s.Write(a.octets[:])
	return err
}

func (a *ipv4Addr) ReadWire(s Stream, endian Endianness, ctx *Context) error {
	_, err := io.ReadFull(s, a.octets[:])
	return err
}

type packet struct {
	Addr ipv4Addr `wire:"order=0"`
	Seq  uint16   `wire:"order=1,endian=big"`
}

func TestCustom_RoundTripsThroughPointerReceiver(t *testing.T) {
	e := New()
	p := packet{Addr: ipv4Addr{octets: [4]byte{10, 0, 0, 1}}, Seq: 99}

	data, err := e.SerializeBytes(p)
	require.NoError(t, err)
	require.Len(t, data, 4+2)
	assert.Equal(t, []byte{10, 0, 0, 1}, data[:4])

	got, err := Deserialize[packet](e, data)
	require.NoError(t, err)
	assert.Equal(t, p.Addr.octets, got.Addr.octets)
	assert.Equal(t, p.Seq, got.Seq)
}

// endianAwareWord exercises the endian argument WriteWire/ReadWire receive:
// its own wire order is exactly the field's effective endianness, the same
// inherited/bound value a primitive sibling would resolve via invariant 6.
type endianAwareWord struct {
	v uint16
}

func (w *endianAwareWord) WriteWire(s Stream, endian Endianness, ctx *Context) error {
	buf := make([]byte, 2)
	if endian == BigEndian {
		buf[0], buf[1] = byte(w.v>>8), byte(w.v)
	} else {
		buf[0], buf[1] = byte(w.v), byte(w.v>>8)
	}
	_, err := s.Write(buf)
	return err
}

func (w *endianAwareWord) ReadWire(s Stream, endian Endianness, ctx *Context) error {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(s, buf); err != nil {
		return err
	}
	if endian == BigEndian {
		w.v = uint16(buf[0])<<8 | uint16(buf[1])
	} else {
		w.v = uint16(buf[1])<<8 | uint16(buf[0])
	}
	return nil
}

type endianAwareHolder struct {
	Word endianAwareWord `wire:"order=0,endian=big"`
}

func TestCustom_ReceivesFieldsOwnEffectiveEndianness(t *testing.T) {
	e := New()
	data, err := e.SerializeBytes(endianAwareHolder{Word: endianAwareWord{v: 0x1234}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, data)

	got, err := Deserialize[endianAwareHolder](e, data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), got.Word.v)
}

type streamField struct {
	Tap Stream `wire:"order=0"`
	V   uint8  `wire:"order=1"`
}

func TestStreamPassthrough_ExposesLivePosition(t *testing.T) {
	e := New()
	data, err := e.SerializeBytes(streamField{V: 5})
	require.NoError(t, err)
	assert.Len(t, data, 1)

	got, err := Deserialize[streamField](e, data)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), got.V)
	// The handle tracks the live stream: after V is read it sits at offset 1.
	require.NotNil(t, got.Tap)
	assert.EqualValues(t, 1, got.Tap.Position())
}
