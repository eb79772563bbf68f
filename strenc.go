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
	"unicode/utf16"
)

// encodeString converts s to its wire bytes per the effective Encoding,
// mirroring the teacher's per-encoding write helpers in string.go
// (writeLatin1/writeUTF16LE/writeUTF8) but without Fory's length-header
// packing: this engine's string length comes from a FieldLength/FieldCount
// binding or a null terminator, never an inline varint header.
func encodeString(s string, enc Encoding, order byteOrderLike) ([]byte, error) {
	switch enc {
	case EncodingUTF8, EncodingASCII:
		data := []byte(s)
		if enc == EncodingASCII {
			for _, b := range data {
				if b > 127 {
					return nil, fmt.Errorf("wiregraph: %q is not representable as ASCII", s)
				}
			}
		}
		return data, nil
	case EncodingLatin1:
		runes := []rune(s)
		out := make([]byte, len(runes))
		for i, r := range runes {
			if r > 255 {
				return nil, fmt.Errorf("wiregraph: %q is not representable as Latin-1", s)
			}
			out[i] = byte(r)
		}
		return out, nil
	case EncodingUTF16LE, EncodingUTF16BE:
		units := utf16.Encode([]rune(s))
		out := make([]byte, len(units)*2)
		for i, u := range units {
			if enc == EncodingUTF16LE {
				littleEndianOrder{}.PutUint16(out[i*2:], u)
			} else {
				bigEndianOrder{}.PutUint16(out[i*2:], u)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wiregraph: unknown string encoding %v", enc)
	}
}

// decodeString converts wire bytes back into a string per the effective
// Encoding.
func decodeString(data []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingUTF8, EncodingASCII:
		return string(data), nil
	case EncodingLatin1:
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		return string(runes), nil
	case EncodingUTF16LE, EncodingUTF16BE:
		if len(data)%2 != 0 {
			return "", fmt.Errorf("wiregraph: odd byte count %d for UTF-16 string", len(data))
		}
		units := make([]uint16, len(data)/2)
		for i := range units {
			if enc == EncodingUTF16LE {
				units[i] = littleEndianOrder{}.Uint16(data[i*2:])
			} else {
				units[i] = bigEndianOrder{}.Uint16(data[i*2:])
			}
		}
		return string(utf16.Decode(units)), nil
	default:
		return "", fmt.Errorf("wiregraph: unknown string encoding %v", enc)
	}
}

// terminatorWidth reports the width, in octets, of the null terminator
// appended to a string field that has no length binding, no count, and no
// parent-imposed length (§4.4 serialize specifics).
func terminatorWidth(enc Encoding) int {
	switch enc {
	case EncodingUTF16LE, EncodingUTF16BE:
		return 2
	default:
		return 1
	}
}
