// Package metadata implements the key-value vector algebra that selects
// graph topology and calibration data for an audio session.
//
// A [Bundle] carries three pieces: a GKV (graph key-value vector, selects
// which modules the graph engine materializes), a CKV (calibration
// key-value vector, selects tuning data), and a set of properties. Bundles
// are never shared across owners — every merge produces a new, independently
// owned [Bundle].
package metadata

import "fmt"

// Pair is a single (key, value) entry in a key-value vector. Both fields are
// 32-bit per the wire format; Go widens them to uint32 without a behavioral
// change.
type Pair struct {
	Key   uint32
	Value uint32
}

// Property is a named list of values attached to a bundle.
type Property struct {
	ID     uint32
	Values []uint32
}

// Bundle is the `{gkv, ckv, properties}` triple described in spec §3.
// A zero-value Bundle is the "empty" bundle.
type Bundle struct {
	GKV        []Pair
	CKV        []Pair
	Properties []Property
}

// IsEmpty reports whether b carries no graph-selecting data at all. Per the
// data-model invariant, a non-empty bundle must have at least GKV populated.
func (b *Bundle) IsEmpty() bool {
	return b == nil || len(b.GKV) == 0
}

// Clone returns a deep copy of b so that callers may mutate the result
// without affecting the original. A nil receiver clones to an empty Bundle.
func (b *Bundle) Clone() *Bundle {
	out := &Bundle{}
	if b == nil {
		return out
	}
	if b.GKV != nil {
		out.GKV = append([]Pair(nil), b.GKV...)
	}
	if b.CKV != nil {
		out.CKV = append([]Pair(nil), b.CKV...)
	}
	for _, p := range b.Properties {
		out.Properties = append(out.Properties, Property{ID: p.ID, Values: append([]uint32(nil), p.Values...)})
	}
	return out
}

// Merge produces a new [Bundle] whose GKV is the concatenation of every
// input's GKV (order preserved, duplicates retained) and whose CKV is
// likewise concatenated. Properties come from the first input that has any.
// Merge is associative and order-insensitive for lookup purposes, since the
// engine treats a KV list as a multiset; this implementation preserves
// insertion order for determinism in tests and logs.
func Merge(bundles ...*Bundle) *Bundle {
	out := &Bundle{}
	for _, b := range bundles {
		if b == nil {
			continue
		}
		out.GKV = append(out.GKV, b.GKV...)
		out.CKV = append(out.CKV, b.CKV...)
		if len(out.Properties) == 0 && len(b.Properties) > 0 {
			out.Properties = append(out.Properties, b.Properties...)
		}
	}
	return out
}

// UpdateCal applies ckvPatch onto target in place: for each (k, v) in the
// patch, if k already exists in target.CKV its value is replaced; otherwise
// the pair is appended. This is the calibration-overwrite operation of
// spec §4.1 — it guarantees a later set_cal beats earlier defaults.
func UpdateCal(target *Bundle, ckvPatch []Pair) {
	if target == nil {
		return
	}
	index := make(map[uint32]int, len(target.CKV))
	for i, p := range target.CKV {
		index[p.Key] = i
	}
	for _, patch := range ckvPatch {
		if i, ok := index[patch.Key]; ok {
			target.CKV[i].Value = patch.Value
			continue
		}
		index[patch.Key] = len(target.CKV)
		target.CKV = append(target.CKV, patch)
	}
}

// ErrMalformed indicates a wire-format buffer could not be decoded into a
// Bundle: a declared count ran past the end of the buffer.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("metadata: malformed buffer: %s", e.Reason)
}
