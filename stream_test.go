// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamContext_WriteAllAndReadExactRoundTrip(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte("hello")))
	assert.EqualValues(t, 5, wsc.Position())

	rsc, err := newReadStream(context.Background(), bytes.NewReader(wsc.buf.Bytes()), false)
	require.NoError(t, err)
	got, err := rsc.readExact(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.EqualValues(t, 5, rsc.Position())
}

func TestStreamContext_ReadExactPastEndIsUnderflow(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 2}), false)
	require.NoError(t, err)
	_, err = rsc.readExact(3)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestStreamContext_MarkRewindRestoresPosition(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 2, 3, 4}), false)
	require.NoError(t, err)

	tok, err := rsc.mark()
	require.NoError(t, err)

	_, err = rsc.readExact(2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rsc.Position())

	require.NoError(t, rsc.rewind(tok))
	assert.EqualValues(t, 0, rsc.Position())
}

func TestStreamContext_SeekToJumpsAbsolute(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte{1, 2, 3, 4}))
	require.NoError(t, wsc.seekTo(1))
	assert.EqualValues(t, 1, wsc.Position())
}

func TestStreamContext_PushBoundedPadsShortfallOnWrite(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	wsc.pushBounded(4)
	require.NoError(t, wsc.writeAll([]byte{1, 2}))
	require.NoError(t, wsc.popBounded())
	assert.Equal(t, []byte{1, 2, 0, 0}, wsc.buf.Bytes())
}

func TestStreamContext_PushBoundedSkipsShortfallOnRead(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 2, 0, 0, 9}), false)
	require.NoError(t, err)
	rsc.pushBounded(4)
	got, err := rsc.readExact(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	require.NoError(t, rsc.popBounded())

	tail, err := rsc.readExact(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, tail)
}

func TestStreamContext_PushBoundedOverflowOnWriteFails(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	wsc.pushBounded(1)
	err := wsc.writeAll([]byte{1, 2})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestStreamContext_PopBoundedOverrunFails(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 2, 3}), false)
	require.NoError(t, err)
	rsc.pushBounded(1)
	rsc.pos += 2 // simulate a nested write/read that overran the frame
	assert.ErrorIs(t, rsc.popBounded(), ErrOverflow)
}

func TestStreamContext_AlignPadsToMultipleOnWrite(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte{1, 2, 3}))
	require.NoError(t, wsc.align(4))
	assert.Equal(t, []byte{1, 2, 3, 0}, wsc.buf.Bytes())
}

func TestStreamContext_AlignIsNoopWhenAlreadyAligned(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte{1, 2, 3, 4}))
	require.NoError(t, wsc.align(4))
	assert.Equal(t, []byte{1, 2, 3, 4}, wsc.buf.Bytes())
}

func TestStreamContext_AlignSkipsPaddingOnRead(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 0, 0, 0, 9}), false)
	require.NoError(t, err)
	_, err = rsc.readExact(1)
	require.NoError(t, err)
	require.NoError(t, rsc.align(4))
	assert.EqualValues(t, 4, rsc.Position())

	tail, err := rsc.readExact(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, tail)
}

func TestStreamContext_WriteAtPatchesWithoutDisturbingPosition(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte{0, 0, 0, 0}))
	require.NoError(t, wsc.writeAt(1, []byte{9, 9}))
	assert.Equal(t, []byte{0, 9, 9, 0}, wsc.buf.Bytes())
	assert.EqualValues(t, 4, wsc.Position())
}

func TestStreamContext_ReadAtWorksOnBufferedWriteStream(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	require.NoError(t, wsc.writeAll([]byte{1, 2, 3, 4}))

	got, err := wsc.readAt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, got)
	assert.EqualValues(t, 4, wsc.Position())
}

func TestStreamContext_ReadAtDoesNotDisturbPosition(t *testing.T) {
	rsc, err := newReadStream(context.Background(), bytes.NewReader([]byte{1, 2, 3, 4}), false)
	require.NoError(t, err)
	_, err = rsc.readExact(2)
	require.NoError(t, err)

	got, err := rsc.readAt(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	assert.EqualValues(t, 2, rsc.Position())
}

type nonSeekableWriter struct{ bytes.Buffer }

func TestStreamContext_DisallowBufferingOnNonSeekableRejectsMark(t *testing.T) {
	var w nonSeekableWriter
	wsc := newWriteStream(context.Background(), &w, true)
	_, err := wsc.mark()
	assert.ErrorIs(t, err, ErrNotSeekable)
}

func TestStreamContext_ClosedStreamRejectsFurtherOperations(t *testing.T) {
	wsc := newWriteStream(context.Background(), new(bytes.Buffer), false)
	wsc.close()
	err := wsc.writeAll([]byte{1})
	assert.ErrorIs(t, err, ErrStreamClosed)
}
