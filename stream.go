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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// byteOrderLike is the subset of encoding/binary.ByteOrder the codec layer
// needs; kept as its own interface so Endianness.byteOrder() doesn't leak
// encoding/binary into every call site.
type byteOrderLike interface {
	Uint16([]byte) uint16
	PutUint16([]byte, uint16)
	Uint32([]byte) uint32
	PutUint32([]byte, uint32)
	Uint64([]byte) uint64
	PutUint64([]byte, uint64)
}

type littleEndianOrder struct{}

func (littleEndianOrder) Uint16(b []byte) uint16          { return binary.LittleEndian.Uint16(b) }
func (littleEndianOrder) PutUint16(b []byte, v uint16)    { binary.LittleEndian.PutUint16(b, v) }
func (littleEndianOrder) Uint32(b []byte) uint32          { return binary.LittleEndian.Uint32(b) }
func (littleEndianOrder) PutUint32(b []byte, v uint32)    { binary.LittleEndian.PutUint32(b, v) }
func (littleEndianOrder) Uint64(b []byte) uint64          { return binary.LittleEndian.Uint64(b) }
func (littleEndianOrder) PutUint64(b []byte, v uint64)    { binary.LittleEndian.PutUint64(b, v) }

type bigEndianOrder struct{}

func (bigEndianOrder) Uint16(b []byte) uint16       { return binary.BigEndian.Uint16(b) }
func (bigEndianOrder) PutUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func (bigEndianOrder) Uint32(b []byte) uint32       { return binary.BigEndian.Uint32(b) }
func (bigEndianOrder) PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func (bigEndianOrder) Uint64(b []byte) uint64       { return binary.BigEndian.Uint64(b) }
func (bigEndianOrder) PutUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// boundedFrame is one entry of the bounded-overlay stack pushed by
// push_bounded (§4.2) and popped on exit from a length-bounded node.
type boundedFrame struct {
	start int64 // absolute position at push time
	limit int64 // octets permitted within this frame; -1 means unbounded
}

// remaining reports how many octets are left in the frame given the
// current absolute position. Unbounded frames report -1.
func (f boundedFrame) remaining(pos int64) int64 {
	if f.limit < 0 {
		return -1
	}
	return f.limit - (pos - f.start)
}

// MarkerToken is an opaque rewind point produced by streamContext.mark.
type MarkerToken struct{ pos int64 }

// streamContext is the per-operation stream framer (C2): it layers bounded
// regions, alignment, and position tracking over an underlying io.Reader or
// io.Writer, buffering into memory when the underlying stream is not
// seekable and buffering is allowed (the default) — this is what lets
// FieldOffset, computed-value write-back, and deferred endianness work even
// against a plain network socket.
type streamContext struct {
	ctx context.Context

	writing bool // true for serialize, false for deserialize

	// Buffered mode: serialize output accumulates in buf and is written to
	// the real stream by flush(); deserialize input is read whole into
	// readBuf when the stream is constructed. Always "seekable" from the
	// framer's point of view.
	buffered bool
	buf      *bytes.Buffer
	readBuf  []byte // full input, when buffered deserializing
	pos      int64  // logical absolute position (reader index into readBuf, or writer length in buf)

	// Passthrough mode: direct wrap of the caller's stream. Only seekable
	// if the caller's stream implements io.Seeker.
	w      io.Writer
	r      io.Reader
	seeker io.Seeker

	frames []boundedFrame

	closed bool

	// depth/maxDepth enforce Config.MaxDepth (§9 recursion guard); maxDepth
	// <= 0 means unbounded.
	depth    int
	maxDepth int

	// Lifecycle hooks installed via the engine's WithOnMember... options, fired by
	// walkNode around each node's dispatch.
	onSerializing     []func(MemberEvent)
	onSerialized      []func(MemberEvent)
	onDeserializing   []func(MemberEvent)
	onDeserialized    []func(MemberEvent)
}

// MemberEvent describes one node about to be (de)serialized or just
// (de)serialized, passed to the engine's lifecycle hooks (§6.4).
type MemberEvent struct {
	Name   string
	GoType reflect.Type
	Offset int64
	Depth  int
	Value  any // unset on the "...ing" events; the node's live value on "...ed"
}

func (s *streamContext) fireSerializing(ev MemberEvent) {
	for _, h := range s.onSerializing {
		h(ev)
	}
}

func (s *streamContext) fireSerialized(ev MemberEvent) {
	for _, h := range s.onSerialized {
		h(ev)
	}
}

func (s *streamContext) fireDeserializing(ev MemberEvent) {
	for _, h := range s.onDeserializing {
		h(ev)
	}
}

func (s *streamContext) fireDeserialized(ev MemberEvent) {
	for _, h := range s.onDeserialized {
		h(ev)
	}
}

// enterDepth/exitDepth enforce maxDepth around one walkNode call.
func (s *streamContext) enterDepth() error {
	s.depth++
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		return fmt.Errorf("wiregraph: recursion depth exceeds configured maximum of %d", s.maxDepth)
	}
	return nil
}

func (s *streamContext) exitDepth() { s.depth-- }

// newWriteStream constructs a streamContext for serialization. When w does
// not implement io.Seeker, it buffers internally unless disallowBuffering
// is set (in which case operations that need seeking fail with
// ErrNotSeekable instead of silently buffering).
func newWriteStream(ctx context.Context, w io.Writer, disallowBuffering bool) *streamContext {
	sc := &streamContext{ctx: ctx, writing: true}
	if sk, ok := w.(io.Seeker); ok && !disallowBuffering {
		// A native seeker is driven directly (passthrough, no buffer):
		// seeking and write-back patching go through its Seek.
		sc.w = w
		sc.seeker = sk
		return sc
	}
	if disallowBuffering {
		sc.w = w
		if sk, ok := w.(io.Seeker); ok {
			sc.seeker = sk
		}
		return sc
	}
	sc.buffered = true
	sc.buf = new(bytes.Buffer)
	sc.w = w
	return sc
}

// newReadStream constructs a streamContext for deserialization, buffering
// the entire input into memory (so Mark/Rewind/FieldOffset work) unless
// disallowBuffering is set, in which case r is read directly and is
// seekable only if it is an io.ReadSeeker.
func newReadStream(ctx context.Context, r io.Reader, disallowBuffering bool) (*streamContext, error) {
	sc := &streamContext{ctx: ctx, writing: false}
	if rs, ok := r.(io.ReadSeeker); ok {
		sc.r = r
		sc.seeker = rs
		if disallowBuffering {
			return sc, nil
		}
	}
	if disallowBuffering && sc.seeker == nil {
		sc.r = r
		return sc, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wiregraph: reading input: %w", err)
	}
	sc.buffered = true
	sc.readBuf = data
	return sc, nil
}

func (s *streamContext) checkCancelled() error {
	if s.closed {
		return ErrStreamClosed
	}
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			return ErrStreamClosed
		default:
		}
	}
	return nil
}

// Position returns the logical absolute position (§4.2 position()).
func (s *streamContext) Position() int64 { return s.pos }

// canSeek reports whether Mark/Rewind/FieldOffset-style operations are
// available on this stream.
func (s *streamContext) canSeek() bool {
	return s.buffered || s.seeker != nil
}

// mark/rewind implement §4.2's seekable-only mark()/rewind().
func (s *streamContext) mark() (MarkerToken, error) {
	if !s.canSeek() {
		return MarkerToken{}, ErrNotSeekable
	}
	return MarkerToken{pos: s.pos}, nil
}

func (s *streamContext) rewind(tok MarkerToken) error {
	if !s.canSeek() {
		return ErrNotSeekable
	}
	if s.buffered {
		s.pos = tok.pos
		return nil
	}
	if _, err := s.seeker.Seek(tok.pos, io.SeekStart); err != nil {
		return fmt.Errorf("wiregraph: rewind: %w", err)
	}
	s.pos = tok.pos
	return nil
}

// seekTo implements the absolute jump a FieldOffset binding performs.
func (s *streamContext) seekTo(abs int64) error {
	if !s.canSeek() {
		return ErrNotSeekable
	}
	if s.buffered {
		s.pos = abs
		return nil
	}
	if _, err := s.seeker.Seek(abs, io.SeekStart); err != nil {
		return fmt.Errorf("wiregraph: seek: %w", err)
	}
	s.pos = abs
	return nil
}

// pushBounded implements push_bounded(limit); limit < 0 means unbounded.
func (s *streamContext) pushBounded(limit int64) {
	s.frames = append(s.frames, boundedFrame{start: s.pos, limit: limit})
}

// currentRemaining reports the innermost frame's remaining octets, or -1.
func (s *streamContext) currentRemaining() int64 {
	if len(s.frames) == 0 {
		return -1
	}
	return s.frames[len(s.frames)-1].remaining(s.pos)
}

// popBounded pops the innermost frame, padding (serialize) or skipping
// (deserialize) to its limit if the walk left it short.
func (s *streamContext) popBounded() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("wiregraph: popBounded called with no active frame")
	}
	frame := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if frame.limit < 0 {
		return nil
	}
	consumed := s.pos - frame.start
	remaining := frame.limit - consumed
	if remaining < 0 {
		return fmt.Errorf("%w: frame overran its %d octet limit by %d", ErrOverflow, frame.limit, -remaining)
	}
	if remaining == 0 {
		return nil
	}
	if s.writing {
		return s.writeAll(make([]byte, remaining))
	}
	_, err := s.readExact(int(remaining))
	return err
}

// align implements §4.2's align_left/align_right: consume or
// emit zero octets until position mod multiple == 0.
func (s *streamContext) align(multiple int) error {
	if multiple <= 1 {
		return nil
	}
	rem := s.pos % int64(multiple)
	if rem == 0 {
		return nil
	}
	pad := int64(multiple) - rem
	if s.writing {
		return s.writeAll(make([]byte, pad))
	}
	_, err := s.readExact(int(pad))
	return err
}

// writeAll implements write_all(bytes); it honors the innermost bounded
// frame's remaining capacity.
func (s *streamContext) writeAll(p []byte) error {
	if err := s.checkCancelled(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	if rem := s.currentRemaining(); rem >= 0 && int64(len(p)) > rem {
		return fmt.Errorf("%w: writing %d octets exceeds %d remaining in frame", ErrOverflow, len(p), rem)
	}
	if s.buffered {
		// Write at the logical position, which seekTo/rewind may have moved
		// back into, or past the end of, what is already buffered.
		b := s.buf.Bytes()
		if gap := s.pos - int64(len(b)); gap > 0 {
			s.buf.Write(make([]byte, gap))
			b = s.buf.Bytes()
		}
		n := copy(b[s.pos:], p)
		s.buf.Write(p[n:])
		s.pos += int64(len(p))
		return nil
	}
	n, err := s.w.Write(p)
	s.pos += int64(n)
	if err != nil {
		return fmt.Errorf("wiregraph: write: %w", err)
	}
	return nil
}

// readExact implements read_exact(n) -> bytes.
func (s *streamContext) readExact(n int) ([]byte, error) {
	if err := s.checkCancelled(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if rem := s.currentRemaining(); rem >= 0 && int64(n) > rem {
		return nil, fmt.Errorf("%w: reading %d octets exceeds %d remaining in frame", ErrUnderflow, n, rem)
	}
	if s.buffered {
		if s.pos+int64(n) > int64(len(s.readBuf)) {
			return nil, fmt.Errorf("%w: need %d octets at offset %d, have %d total", ErrUnderflow, n, s.pos, len(s.readBuf))
		}
		out := s.readBuf[s.pos : s.pos+int64(n)]
		s.pos += int64(n)
		return out, nil
	}
	out := make([]byte, n)
	got, err := io.ReadFull(s.r, out)
	s.pos += int64(got)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnderflow, err)
	}
	return out, nil
}

// peekByte reads one octet without advancing position; used by
// SerializeUntil (§4.7) which must decide termination before consuming.
// Requires seekability (the peeked byte is rewound).
func (s *streamContext) peekByte() (byte, error) {
	tok, err := s.mark()
	if err != nil {
		return 0, err
	}
	b, err := s.readExact(1)
	if err != nil {
		return 0, err
	}
	if rerr := s.rewind(tok); rerr != nil {
		return 0, rerr
	}
	return b[0], nil
}

// writeAt patches n octets at an absolute position already visited, used
// for computed-value write-back (§4.6) and binding write-back (§4.3).
// Requires seekability.
func (s *streamContext) writeAt(abs int64, p []byte) error {
	if !s.canSeek() {
		return ErrNotSeekable
	}
	if s.buffered {
		if s.buf != nil {
			b := s.buf.Bytes()
			if abs+int64(len(p)) > int64(len(b)) {
				return fmt.Errorf("wiregraph: writeAt offset %d+%d beyond buffered length %d", abs, len(p), len(b))
			}
			copy(b[abs:], p)
			return nil
		}
	}
	cur := s.pos
	if _, err := s.seeker.Seek(abs, io.SeekStart); err != nil {
		return fmt.Errorf("wiregraph: writeAt seek: %w", err)
	}
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("wiregraph: writeAt: %w", err)
	}
	if _, err := s.seeker.Seek(cur, io.SeekStart); err != nil {
		return fmt.Errorf("wiregraph: writeAt restore: %w", err)
	}
	return nil
}

// readAt reads n octets at an absolute position without disturbing the
// current logical position. Requires seekability.
func (s *streamContext) readAt(abs int64, n int) ([]byte, error) {
	if !s.canSeek() {
		return nil, ErrNotSeekable
	}
	if s.buffered {
		if s.writing {
			b := s.buf.Bytes()
			if abs+int64(n) > int64(len(b)) {
				return nil, fmt.Errorf("%w: readAt %d+%d beyond buffered length %d", ErrUnderflow, abs, n, len(b))
			}
			out := make([]byte, n)
			copy(out, b[abs:abs+int64(n)])
			return out, nil
		}
		if abs+int64(n) > int64(len(s.readBuf)) {
			return nil, fmt.Errorf("%w: readAt %d+%d beyond buffered length %d", ErrUnderflow, abs, n, len(s.readBuf))
		}
		out := make([]byte, n)
		copy(out, s.readBuf[abs:abs+int64(n)])
		return out, nil
	}
	cur := s.pos
	if _, err := s.seeker.Seek(abs, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wiregraph: readAt seek: %w", err)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(s.r, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnderflow, err)
	}
	if _, err := s.seeker.Seek(cur, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wiregraph: readAt restore: %w", err)
	}
	return out, nil
}

// flush writes any buffered output through to the real writer. Only
// meaningful for a buffered write stream; a no-op otherwise.
func (s *streamContext) flush() error {
	if !s.writing || !s.buffered {
		return nil
	}
	_, err := s.w.Write(s.buf.Bytes())
	if err != nil {
		return fmt.Errorf("wiregraph: flush: %w", err)
	}
	return nil
}

func (s *streamContext) close() {
	s.closed = true
}
