package metadata

import "encoding/binary"

// Wire layout (spec §6):
//
//	u32 num_gkv
//	struct{u32 k; u32 v}[num_gkv]
//	u32 num_ckv
//	struct{u32 k; u32 v}[num_ckv]
//	u32 num_properties
//	for each property: { u32 prop_id; u32 num_values; u32 values[num_values] }
//
// All integers are little-endian. This is a fixed 8-bytes-per-KV-pair
// layout with no framing flexibility (no length-prefixed strings, no
// optional fields) — encoding/binary is the right tool here, not a
// third-party codec; see DESIGN.md for why this is the one place in the
// module that stays on the standard library.
const (
	u32Size = 4
	pairSize = 2 * u32Size
)

// Copy replaces dst's contents with the bundle decoded from buf, per the
// wire format above. It returns [*ErrMalformed] if any declared count would
// read past the end of buf.
func Copy(dst *Bundle, buf []byte) error {
	r := &reader{buf: buf}

	numGKV, err := r.u32()
	if err != nil {
		return err
	}
	gkv, err := r.pairs(numGKV)
	if err != nil {
		return err
	}

	numCKV, err := r.u32()
	if err != nil {
		return err
	}
	ckv, err := r.pairs(numCKV)
	if err != nil {
		return err
	}

	numProps, err := r.u32()
	if err != nil {
		return err
	}
	props := make([]Property, 0, numProps)
	for i := uint32(0); i < numProps; i++ {
		propID, err := r.u32()
		if err != nil {
			return err
		}
		numValues, err := r.u32()
		if err != nil {
			return err
		}
		values := make([]uint32, numValues)
		for j := range values {
			v, err := r.u32()
			if err != nil {
				return err
			}
			values[j] = v
		}
		props = append(props, Property{ID: propID, Values: values})
	}

	dst.GKV = gkv
	dst.CKV = ckv
	dst.Properties = props
	return nil
}

// Serialize encodes b into the wire format consumed by [Copy]. Serialize and
// Copy round-trip: Copy(&got, Serialize(b)) produces a Bundle deeply equal
// to b.
func Serialize(b *Bundle) []byte {
	if b == nil {
		b = &Bundle{}
	}
	size := 3 * u32Size
	size += len(b.GKV) * pairSize
	size += len(b.CKV) * pairSize
	for _, p := range b.Properties {
		size += 2*u32Size + len(p.Values)*u32Size
	}

	out := make([]byte, 0, size)
	out = appendU32(out, uint32(len(b.GKV)))
	for _, p := range b.GKV {
		out = appendU32(out, p.Key)
		out = appendU32(out, p.Value)
	}
	out = appendU32(out, uint32(len(b.CKV)))
	for _, p := range b.CKV {
		out = appendU32(out, p.Key)
		out = appendU32(out, p.Value)
	}
	out = appendU32(out, uint32(len(b.Properties)))
	for _, p := range b.Properties {
		out = appendU32(out, p.ID)
		out = appendU32(out, uint32(len(p.Values)))
		for _, v := range p.Values {
			out = appendU32(out, v)
		}
	}
	return out
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [u32Size]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32() (uint32, error) {
	if r.pos+u32Size > len(r.buf) {
		return 0, &ErrMalformed{Reason: "buffer truncated reading u32"}
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += u32Size
	return v, nil
}

func (r *reader) pairs(n uint32) ([]Pair, error) {
	out := make([]Pair, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.u32()
		if err != nil {
			return nil, err
		}
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		out = append(out, Pair{Key: k, Value: v})
	}
	return out, nil
}
