package apiserver

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// wireValue is the decoded payload of one field: a uint64 for varint/fixed
// fields, or a []byte for length-delimited ones (covers both the `bytes`
// and `string` wire representations — callers cast as needed).
type wireValue interface{}

// wireMap is a minimal hand-rolled protobuf message: a field-number-keyed
// map decoded/encoded directly against protowire, standing in for the
// generated message types a `.proto`+protoc-gen-go pipeline would normally
// produce (out of scope for this exercise — see SPEC_FULL.md §6). Every
// apiserver request/response type is a typed view over one of these.
type wireMap map[uint32]wireValue

// wireMessage is implemented by every apiserver request/response type so
// the codec can marshal/unmarshal it generically.
type wireMessage interface {
	toWire() wireMap
	fromWire(wireMap) error
}

func decodeWire(b []byte) (wireMap, error) {
	m := wireMap{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("apiserver: wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("apiserver: wire: bad varint: %w", protowire.ParseError(n))
			}
			m[uint32(num)] = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("apiserver: wire: bad bytes: %w", protowire.ParseError(n))
			}
			m[uint32(num)] = append([]byte(nil), v...)
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("apiserver: wire: bad fixed64: %w", protowire.ParseError(n))
			}
			m[uint32(num)] = v
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("apiserver: wire: bad fixed32: %w", protowire.ParseError(n))
			}
			m[uint32(num)] = uint64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("apiserver: wire: unsupported field type %v: %w", typ, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

// encode serializes m in ascending field-number order, matching what a
// generated marshaler would produce for the same logical message.
func (m wireMap) encode() []byte {
	nums := make([]int, 0, len(m))
	for k := range m {
		nums = append(nums, int(k))
	}
	sort.Ints(nums)

	var out []byte
	for _, n := range nums {
		num := protowire.Number(n)
		switch v := m[uint32(n)].(type) {
		case uint64:
			out = protowire.AppendTag(out, num, protowire.VarintType)
			out = protowire.AppendVarint(out, v)
		case []byte:
			out = protowire.AppendTag(out, num, protowire.BytesType)
			out = protowire.AppendBytes(out, v)
		case string:
			out = protowire.AppendTag(out, num, protowire.BytesType)
			out = protowire.AppendString(out, v)
		}
	}
	return out
}

func (m wireMap) str(n uint32) string {
	if v, ok := m[n].([]byte); ok {
		return string(v)
	}
	return ""
}

func (m wireMap) bytes(n uint32) []byte {
	if v, ok := m[n].([]byte); ok {
		return v
	}
	return nil
}

func (m wireMap) u32(n uint32) uint32 {
	if v, ok := m[n].(uint64); ok {
		return uint32(v)
	}
	return 0
}

func (m wireMap) u64(n uint32) uint64 {
	if v, ok := m[n].(uint64); ok {
		return v
	}
	return 0
}

func (m wireMap) boolean(n uint32) bool {
	return m.u32(n) != 0
}

func setStr(m wireMap, n uint32, s string) {
	if s != "" {
		m[n] = s
	}
}

func setBytes(m wireMap, n uint32, b []byte) {
	if len(b) > 0 {
		m[n] = append([]byte(nil), b...)
	}
}

func setU32(m wireMap, n uint32, v uint32) {
	if v != 0 {
		m[n] = uint64(v)
	}
}

func setU64(m wireMap, n uint32, v uint64) {
	if v != 0 {
		m[n] = v
	}
}

func setBool(m wireMap, n uint32, v bool) {
	if v {
		m[n] = uint64(1)
	}
}
