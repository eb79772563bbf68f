// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWireTag_Empty(t *testing.T) {
	pt, err := parseWireTag("")
	require.NoError(t, err)
	assert.False(t, pt.ignore)
	assert.False(t, pt.hasOrder)
}

func TestParseWireTag_Ignore(t *testing.T) {
	for _, raw := range []string{"-", "ignore", "order=1,ignore"} {
		pt, err := parseWireTag(raw)
		require.NoError(t, err)
		assert.True(t, pt.ignore, "raw=%q", raw)
	}
}

func TestParseWireTag_Order(t *testing.T) {
	pt, err := parseWireTag("order=3")
	require.NoError(t, err)
	require.True(t, pt.hasOrder)
	assert.Equal(t, 3, pt.order)
}

func TestParseWireTag_LengthConstant(t *testing.T) {
	pt, err := parseWireTag("length=16")
	require.NoError(t, err)
	require.NotNil(t, pt.length)
	assert.True(t, pt.length.isConstant)
	assert.Equal(t, int64(16), pt.length.constant)
}

func TestParseWireTag_LengthBindingWithConverter(t *testing.T) {
	pt, err := parseWireTag("length=Header.Len(half)")
	require.NoError(t, err)
	require.NotNil(t, pt.length)
	assert.False(t, pt.length.isConstant)
	assert.Equal(t, "half", pt.length.converter)
}

func TestParseWireTag_Endian(t *testing.T) {
	pt, err := parseWireTag("endian=big")
	require.NoError(t, err)
	require.True(t, pt.hasEndian)
	assert.Equal(t, BigEndian, pt.endian)

	pt, err = parseWireTag("endian=le")
	require.NoError(t, err)
	assert.Equal(t, LittleEndian, pt.endian)

	pt, err = parseWireTag("endian=EndianFlag")
	require.NoError(t, err)
	require.NotNil(t, pt.endianBnd)
}

func TestParseWireTag_Encoding(t *testing.T) {
	cases := map[string]Encoding{
		"utf8":     EncodingUTF8,
		"ascii":    EncodingASCII,
		"latin1":   EncodingLatin1,
		"utf16le":  EncodingUTF16LE,
		"utf16be":  EncodingUTF16BE,
	}
	for raw, want := range cases {
		pt, err := parseWireTag("encoding=" + raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, pt.encoding, raw)
	}

	_, err := parseWireTag("encoding=klingon")
	assert.ErrorIs(t, err, ErrBindingPathInvalid)
}

func TestParseWireTag_FieldValue(t *testing.T) {
	pt, err := parseWireTag("crc32=Checksum")
	require.NoError(t, err)
	require.Len(t, pt.fieldValues, 1)
	assert.Equal(t, "crc32", pt.fieldValues[0].algorithm)
	assert.Equal(t, "Checksum", pt.fieldValues[0].target)

	_, err = parseWireTag("crc32=")
	assert.ErrorIs(t, err, ErrBindingPathInvalid)
}

func TestParseWireTag_Condition(t *testing.T) {
	pt, err := parseWireTag("when=Kind==42")
	require.NoError(t, err)
	require.NotNil(t, pt.when)
	assert.Equal(t, "42", pt.when.literal)
	assert.False(t, pt.when.negate)

	pt, err = parseWireTag("whennot=Kind==42")
	require.NoError(t, err)
	require.NotNil(t, pt.whenNot)
	assert.True(t, pt.whenNot.negate)

	_, err = parseWireTag("when=NoComparison")
	assert.ErrorIs(t, err, ErrBindingPathInvalid)
}

func TestParseWireTag_ItemUntil(t *testing.T) {
	pt, err := parseWireTag("itemuntil=Kind==0:exclude")
	require.NoError(t, err)
	require.NotNil(t, pt.itemUntil)
	assert.Equal(t, "0", pt.itemUntil.literal)
	assert.Equal(t, LastItemExclude, pt.itemUntil.mode)

	pt, err = parseWireTag("itemuntil=Kind==0")
	require.NoError(t, err)
	assert.Equal(t, LastItemInclude, pt.itemUntil.mode)

	_, err = parseWireTag("itemuntil=Kind==0:sideways")
	assert.ErrorIs(t, err, ErrBindingPathInvalid)
}

func TestParseWireTag_Scale(t *testing.T) {
	pt, err := parseWireTag("scale=3/2")
	require.NoError(t, err)
	require.True(t, pt.hasScale)
	assert.Equal(t, int64(3), pt.scaleNum)
	assert.Equal(t, int64(2), pt.scaleDen)

	pt, err = parseWireTag("scale=4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pt.scaleNum)
	assert.Equal(t, int64(1), pt.scaleDen)
}

func TestParseWireTag_UnknownKeyFailsFast(t *testing.T) {
	_, err := parseWireTag("bogus=1")
	assert.ErrorIs(t, err, ErrBindingPathInvalid)
}

func TestParseWireTag_Align(t *testing.T) {
	pt, err := parseWireTag("align=4")
	require.NoError(t, err)
	require.True(t, pt.hasAlign)
	assert.Equal(t, 4, pt.alignMultiple)
	assert.Equal(t, AlignLeft, pt.alignMode)

	pt, err = parseWireTag("alignboth=8")
	require.NoError(t, err)
	assert.Equal(t, AlignBoth, pt.alignMode)
}
