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
	"math"
	"reflect"
)

// primitiveCodec is C1: read/write a fixed-width integer, float, or bool.
// One small codec type per wire representation, selected once at
// type-graph build time and cached on the owning typeNode — the same
// "small vtable of codec operations per variant" the teacher uses in
// primitive.go, adapted from Fory's xlang wire format to this engine's
// explicit, attribute-declared layout (no implicit varints unless the
// field opts in via `as=varint`).
type primitiveCodec interface {
	// size returns the fixed wire size in octets, or -1 if variable
	// (varint representations).
	size() int
	write(sc *streamContext, order byteOrderLike, v reflect.Value) error
	read(sc *streamContext, order byteOrderLike, v reflect.Value) error
}

type boolCodec struct{}

func (boolCodec) size() int { return 1 }
func (boolCodec) write(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	b := byte(0)
	if v.Bool() {
		b = 1
	}
	return sc.writeAll([]byte{b})
}
func (boolCodec) read(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(1)
	if err != nil {
		return err
	}
	v.SetBool(p[0] != 0)
	return nil
}

type int8Codec struct{ unsigned bool }

func (int8Codec) size() int { return 1 }
func (c int8Codec) write(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	if c.unsigned {
		return sc.writeAll([]byte{byte(v.Uint())})
	}
	return sc.writeAll([]byte{byte(v.Int())})
}
func (c int8Codec) read(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(1)
	if err != nil {
		return err
	}
	if c.unsigned {
		v.SetUint(uint64(p[0]))
	} else {
		v.SetInt(int64(int8(p[0])))
	}
	return nil
}

type int16Codec struct{ unsigned bool }

func (int16Codec) size() int { return 2 }
func (c int16Codec) write(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	buf := make([]byte, 2)
	if c.unsigned {
		order.PutUint16(buf, uint16(v.Uint()))
	} else {
		order.PutUint16(buf, uint16(v.Int()))
	}
	return sc.writeAll(buf)
}
func (c int16Codec) read(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(2)
	if err != nil {
		return err
	}
	u := order.Uint16(p)
	if c.unsigned {
		v.SetUint(uint64(u))
	} else {
		v.SetInt(int64(int16(u)))
	}
	return nil
}

type int32Codec struct{ unsigned bool }

func (int32Codec) size() int { return 4 }
func (c int32Codec) write(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	buf := make([]byte, 4)
	if c.unsigned {
		order.PutUint32(buf, uint32(v.Uint()))
	} else {
		order.PutUint32(buf, uint32(v.Int()))
	}
	return sc.writeAll(buf)
}
func (c int32Codec) read(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(4)
	if err != nil {
		return err
	}
	u := order.Uint32(p)
	if c.unsigned {
		v.SetUint(uint64(u))
	} else {
		v.SetInt(int64(int32(u)))
	}
	return nil
}

type int64Codec struct{ unsigned bool }

func (int64Codec) size() int { return 8 }
func (c int64Codec) write(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	buf := make([]byte, 8)
	if c.unsigned {
		order.PutUint64(buf, v.Uint())
	} else {
		order.PutUint64(buf, uint64(v.Int()))
	}
	return sc.writeAll(buf)
}
func (c int64Codec) read(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(8)
	if err != nil {
		return err
	}
	u := order.Uint64(p)
	if c.unsigned {
		v.SetUint(u)
	} else {
		v.SetInt(int64(u))
	}
	return nil
}

type float32Codec struct{}

func (float32Codec) size() int { return 4 }
func (float32Codec) write(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	buf := make([]byte, 4)
	order.PutUint32(buf, math.Float32bits(float32(v.Float())))
	return sc.writeAll(buf)
}
func (float32Codec) read(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(4)
	if err != nil {
		return err
	}
	v.SetFloat(float64(math.Float32frombits(order.Uint32(p))))
	return nil
}

type float64Codec struct{}

func (float64Codec) size() int { return 8 }
func (float64Codec) write(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	buf := make([]byte, 8)
	order.PutUint64(buf, math.Float64bits(v.Float()))
	return sc.writeAll(buf)
}
func (float64Codec) read(sc *streamContext, order byteOrderLike, v reflect.Value) error {
	p, err := sc.readExact(8)
	if err != nil {
		return err
	}
	v.SetFloat(math.Float64frombits(order.Uint64(p)))
	return nil
}

// varintCodec implements the `as=varint` SerializeAs override: zigzag
// varint encoding for signed values, plain varint for unsigned — the same
// scheme the teacher uses for its VAR_INT32/VAR_INT64 wire types
// (fory/context.go WriteVarint32/WriteVarint64), offered here as an
// explicit opt-in rather than the default.
type varintCodec struct {
	bits     int // 32 or 64
	unsigned bool
}

func (varintCodec) size() int { return -1 }

func (c varintCodec) write(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	var u uint64
	if c.unsigned {
		u = v.Uint()
	} else {
		n := v.Int()
		if c.bits == 32 {
			u = uint64(uint32((int32(n) << 1) ^ (int32(n) >> 31)))
		} else {
			u = uint64((n << 1) ^ (n >> 63))
		}
	}
	var buf []byte
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return sc.writeAll(buf)
}

func (c varintCodec) read(sc *streamContext, _ byteOrderLike, v reflect.Value) error {
	var u uint64
	shift := 0
	for {
		p, err := sc.readExact(1)
		if err != nil {
			return err
		}
		b := p[0]
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	if c.unsigned {
		v.SetUint(u)
		return nil
	}
	var n int64
	if c.bits == 32 {
		n32 := int32(int32(u>>1) ^ -int32(u&1))
		n = int64(n32)
	} else {
		n = int64(u>>1) ^ -int64(u&1)
	}
	v.SetInt(n)
	return nil
}

// selectPrimitiveCodec picks the codec for a value-kind field based on its
// Go kind and the `as` override (§6.1 SerializeAs).
func selectPrimitiveCodec(k reflect.Kind, as string) (primitiveCodec, error) {
	if as == "varint" {
		switch k {
		case reflect.Int32:
			return varintCodec{bits: 32}, nil
		case reflect.Int64, reflect.Int:
			return varintCodec{bits: 64}, nil
		case reflect.Uint32:
			return varintCodec{bits: 32, unsigned: true}, nil
		case reflect.Uint64, reflect.Uint:
			return varintCodec{bits: 64, unsigned: true}, nil
		default:
			return nil, fmt.Errorf("%w: as=varint is not valid for kind %v", ErrBindingPathInvalid, k)
		}
	}
	switch k {
	case reflect.Bool:
		return boolCodec{}, nil
	case reflect.Int8:
		return int8Codec{}, nil
	case reflect.Uint8:
		return int8Codec{unsigned: true}, nil
	case reflect.Int16:
		return int16Codec{}, nil
	case reflect.Uint16:
		return int16Codec{unsigned: true}, nil
	case reflect.Int32:
		return int32Codec{}, nil
	case reflect.Uint32:
		return int32Codec{unsigned: true}, nil
	case reflect.Int64, reflect.Int:
		return int64Codec{}, nil
	case reflect.Uint64, reflect.Uint:
		return int64Codec{unsigned: true}, nil
	case reflect.Float32:
		return float32Codec{}, nil
	case reflect.Float64:
		return float64Codec{}, nil
	default:
		return nil, fmt.Errorf("wiregraph: no primitive codec for kind %v", k)
	}
}
