// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clarity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Type prefixes of the consensus serialization.
const (
	prefixInt byte = iota
	prefixUInt
	prefixBuffer
	prefixTrue
	prefixFalse
	prefixStandardPrincipal
	prefixContractPrincipal
	prefixOk
	prefixErr
	prefixNone
	prefixSome
	prefixList
	prefixTuple
	prefixASCII
	prefixUTF8
)

const maxDecodeDepth = 64

// Serialize encodes v in the consensus binary format.
func Serialize(v Value) ([]byte, error) {
	p := wrappers.Packer{MaxSize: MaxValueSize, Bytes: make([]byte, 0, 64)}
	pack(&p, v)
	if p.Errored() {
		return nil, fmt.Errorf("%w: %v", ErrValueTooLarge, p.Err)
	}
	return p.Bytes, nil
}

// SerializedSize is the length of the consensus encoding of v.
func SerializedSize(v Value) int {
	b, err := Serialize(v)
	if err != nil {
		return MaxValueSize + 1
	}
	return len(b)
}

func pack(p *wrappers.Packer, v Value) {
	switch x := v.(type) {
	case Int:
		b := x.Bytes16()
		p.PackByte(prefixInt)
		p.PackFixedBytes(b[:])
	case UInt:
		b := x.Bytes16()
		p.PackByte(prefixUInt)
		p.PackFixedBytes(b[:])
	case Bool:
		if x {
			p.PackByte(prefixTrue)
		} else {
			p.PackByte(prefixFalse)
		}
	case Buffer:
		p.PackByte(prefixBuffer)
		p.PackBytes(x.Data)
	case StringASCII:
		p.PackByte(prefixASCII)
		p.PackBytes(x.Data)
	case StringUTF8:
		p.PackByte(prefixUTF8)
		p.PackBytes([]byte(x.Data))
	case Principal:
		packPrincipal(p, x)
	case CallableContract:
		packPrincipal(p, x.Contract)
	case Optional:
		if x.Some == nil {
			p.PackByte(prefixNone)
			return
		}
		p.PackByte(prefixSome)
		pack(p, x.Some)
	case Response:
		if x.Ok {
			p.PackByte(prefixOk)
		} else {
			p.PackByte(prefixErr)
		}
		pack(p, x.Value)
	case List:
		p.PackByte(prefixList)
		p.PackInt(uint32(len(x.Items)))
		for _, item := range x.Items {
			pack(p, item)
		}
	case Tuple:
		p.PackByte(prefixTuple)
		p.PackInt(uint32(x.Len()))
		for i, name := range x.names {
			p.PackByte(byte(len(name)))
			p.PackFixedBytes([]byte(name))
			pack(p, x.values[i])
		}
	default:
		p.Add(fmt.Errorf("cannot serialize %T", v))
	}
}

func packPrincipal(p *wrappers.Packer, x Principal) {
	if x.Name == "" {
		p.PackByte(prefixStandardPrincipal)
	} else {
		p.PackByte(prefixContractPrincipal)
	}
	p.PackByte(x.Version)
	p.PackFixedBytes(x.Hash[:])
	if x.Name != "" {
		p.PackByte(byte(len(x.Name)))
		p.PackFixedBytes([]byte(x.Name))
	}
}

// Deserialize decodes a consensus encoded value. Trailing bytes are an error.
func Deserialize(b []byte) (Value, error) {
	if len(b) > MaxValueSize {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, ErrValueTooLarge)
	}
	p := wrappers.Packer{Bytes: b}
	v, err := unpack(&p, 0)
	if err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, p.Err)
	}
	if p.Offset != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDeserialization, len(b)-p.Offset)
	}
	return v, nil
}

func unpack(p *wrappers.Packer, depth int) (Value, error) {
	if depth > maxDecodeDepth {
		return nil, fmt.Errorf("%w: nesting too deep", ErrDeserialization)
	}
	prefix := p.UnpackByte()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, p.Err)
	}
	switch prefix {
	case prefixInt:
		return IntFromBytes(p.UnpackFixedBytes(16)), nil
	case prefixUInt:
		return UIntFromBytes(p.UnpackFixedBytes(16)), nil
	case prefixTrue:
		return True, nil
	case prefixFalse:
		return False, nil
	case prefixBuffer:
		return Buffer{Data: p.UnpackBytes()}, nil
	case prefixASCII:
		data := p.UnpackBytes()
		for _, c := range data {
			if c >= 0x80 {
				return nil, fmt.Errorf("%w: non-ascii byte in string-ascii", ErrDeserialization)
			}
		}
		return StringASCII{Data: data}, nil
	case prefixUTF8:
		data := p.UnpackBytes()
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: invalid utf-8", ErrDeserialization)
		}
		return StringUTF8{Data: string(data)}, nil
	case prefixStandardPrincipal, prefixContractPrincipal:
		pr := Principal{Version: p.UnpackByte()}
		copy(pr.Hash[:], p.UnpackFixedBytes(20))
		if prefix == prefixContractPrincipal {
			n := p.UnpackByte()
			pr.Name = string(p.UnpackFixedBytes(int(n)))
			if p.Errored() {
				break
			}
			if err := ValidateContractName(pr.Name); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
			}
		}
		return pr, nil
	case prefixOk, prefixErr:
		inner, err := unpack(p, depth+1)
		if err != nil {
			return nil, err
		}
		return Response{Ok: prefix == prefixOk, Value: inner}, nil
	case prefixNone:
		return None, nil
	case prefixSome:
		inner, err := unpack(p, depth+1)
		if err != nil {
			return nil, err
		}
		return Some(inner), nil
	case prefixList:
		n := p.UnpackInt()
		if p.Errored() {
			break
		}
		if int(n) > len(p.Bytes)-p.Offset {
			return nil, fmt.Errorf("%w: list length %d exceeds payload", ErrDeserialization, n)
		}
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := unpack(p, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		l, err := NewList(items)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
		}
		return l, nil
	case prefixTuple:
		n := p.UnpackInt()
		if p.Errored() {
			break
		}
		if int(n) > len(p.Bytes)-p.Offset {
			return nil, fmt.Errorf("%w: tuple length %d exceeds payload", ErrDeserialization, n)
		}
		fields := make([]TupleField, 0, n)
		for i := uint32(0); i < n; i++ {
			nameLen := p.UnpackByte()
			name := string(p.UnpackFixedBytes(int(nameLen)))
			if p.Errored() {
				break
			}
			v, err := unpack(p, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, TupleField{Name: name, Value: v})
		}
		if p.Errored() {
			break
		}
		t, err := NewTuple(fields...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown type prefix 0x%02x", ErrDeserialization, prefix)
	}
	return nil, fmt.Errorf("%w: %v", ErrDeserialization, p.Err)
}

// SerializeHex returns the 0x-prefixed hex of the consensus encoding.
func SerializeHex(v Value) (string, error) {
	b, err := Serialize(v)
	if err != nil {
		return "", err
	}
	return formatting.Encode(formatting.HexNC, b)
}

// DeserializeHex accepts the hex form with or without the 0x prefix.
func DeserializeHex(s string) (Value, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	b, err := formatting.Decode(formatting.HexNC, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return Deserialize(b)
}
