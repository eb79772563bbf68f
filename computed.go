// Copyright 2026 The Wiregraph Authors
// SPDX-License-Identifier: Apache-2.0

package wiregraph

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/wiregraph/wiregraph/internal/crc"
	"github.com/zeebo/blake3"
)

// accumulator is C7's tap point: it consumes the raw octets a FieldValue
// attribute covers and produces the finalized digest to write back.
type accumulator interface {
	Write(p []byte) (int, error)
	Sum() []byte
}

type crc16Accum struct{ h *crc.Hash16 }

func (a crc16Accum) Write(p []byte) (int, error) { return a.h.Write(p) }
func (a crc16Accum) Sum() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, a.h.Sum16())
	return b
}

type crc32Accum struct{ h uint32 }

func (a *crc32Accum) Write(p []byte) (int, error) {
	a.h = crc32.Update(a.h, crc32.IEEETable, p)
	return len(p), nil
}
func (a *crc32Accum) Sum() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, a.h)
	return b
}

type murmur3Accum struct{ h hash.Hash64 }

func (a murmur3Accum) Write(p []byte) (int, error) { return a.h.Write(p) }
func (a murmur3Accum) Sum() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, a.h.Sum64())
	return b
}

type blake3Accum struct{ h *blake3.Hasher }

func (a blake3Accum) Write(p []byte) (int, error) { return a.h.Write(p) }
func (a blake3Accum) Sum() []byte                 { return a.h.Sum(nil) }

type xxhashAccum struct{ h *xxhash.Digest }

func (a xxhashAccum) Write(p []byte) (int, error) { return a.h.Write(p) }
func (a xxhashAccum) Sum() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, a.h.Sum64())
	return b
}

// newAccumulator selects the accumulator named by a FieldValue attribute
// (§6.1: crc16, crc32, murmur3, blake3, xxhash).
func newAccumulator(algorithm string) (accumulator, error) {
	switch algorithm {
	case "crc16":
		return crc16Accum{h: crc.New()}, nil
	case "crc32":
		return &crc32Accum{}, nil
	case "murmur3":
		return murmur3Accum{h: murmur3.New64()}, nil
	case "blake3":
		return blake3Accum{h: blake3.New()}, nil
	case "xxhash":
		return xxhashAccum{h: xxhash.New()}, nil
	default:
		return nil, fmt.Errorf("wiregraph: unknown computed-value algorithm %q", algorithm)
	}
}

// applyFieldValues runs every FieldValue attribute declared on tn against
// the octets vn actually occupied on the wire, and write-backs each
// digest to its target sibling field (§4.6). It runs on serialize only: on
// deserialize a digest target is read from the wire as an ordinary field,
// and no digest is computed or compared against it.
func applyFieldValues(sc *streamContext, vn *valueNode) error {
	if !vn.writing || len(vn.tn.tag.fieldValues) == 0 {
		return nil
	}
	width := int(vn.streamEnd - vn.streamStart)
	if width <= 0 {
		return nil
	}
	raw, err := sc.readAt(vn.streamStart, width)
	if err != nil {
		return err
	}
	for _, spec := range vn.tn.tag.fieldValues {
		acc, err := newAccumulator(spec.algorithm)
		if err != nil {
			return err
		}
		if _, err := acc.Write(raw); err != nil {
			return err
		}
		if err := writeBackFieldValue(sc, vn, spec.target, acc.Sum()); err != nil {
			return err
		}
	}
	return nil
}
