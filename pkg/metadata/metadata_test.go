package metadata

import (
	"reflect"
	"testing"
)

func TestMergeConcatenatesInOrder(t *testing.T) {
	a := &Bundle{GKV: []Pair{{1, 10}}, CKV: []Pair{{5, 50}}}
	b := &Bundle{GKV: []Pair{{2, 20}}, CKV: []Pair{{6, 60}}}

	got := Merge(a, b)

	want := []Pair{{1, 10}, {2, 20}}
	if !reflect.DeepEqual(got.GKV, want) {
		t.Errorf("GKV = %v, want %v", got.GKV, want)
	}
}

func TestMergeWithEmptyIsIdentity(t *testing.T) {
	a := &Bundle{GKV: []Pair{{1, 10}}}
	got := Merge(a, &Bundle{})
	if !reflect.DeepEqual(got.GKV, a.GKV) {
		t.Errorf("merge(a, empty).GKV = %v, want %v", got.GKV, a.GKV)
	}
}

func TestMergePropertiesFromFirstNonEmpty(t *testing.T) {
	a := &Bundle{GKV: []Pair{{1, 1}}}
	b := &Bundle{GKV: []Pair{{2, 2}}, Properties: []Property{{ID: 9, Values: []uint32{1, 2}}}}
	c := &Bundle{GKV: []Pair{{3, 3}}, Properties: []Property{{ID: 10}}}

	got := Merge(a, b, c)
	if len(got.Properties) != 1 || got.Properties[0].ID != 9 {
		t.Errorf("Properties = %v, want first non-empty input's properties", got.Properties)
	}
}

func TestUpdateCalOverwritesExistingReplacesAppendsNew(t *testing.T) {
	target := &Bundle{CKV: []Pair{{1, 100}, {2, 200}}}
	UpdateCal(target, []Pair{{2, 999}, {3, 300}})

	want := []Pair{{1, 100}, {2, 999}, {3, 300}}
	if !reflect.DeepEqual(target.CKV, want) {
		t.Errorf("CKV = %v, want %v", target.CKV, want)
	}
}

func TestWireRoundTrip(t *testing.T) {
	b := &Bundle{
		GKV: []Pair{{1, 100}, {2, 200}},
		CKV: []Pair{{5, 50}},
		Properties: []Property{
			{ID: 7, Values: []uint32{1, 2, 3}},
		},
	}

	buf := Serialize(b)

	var got Bundle
	if err := Copy(&got, buf); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if !reflect.DeepEqual(&got, b) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, b)
	}
}

func TestCopyTruncatedBufferIsMalformed(t *testing.T) {
	buf := []byte{0x02, 0x00, 0x00, 0x00} // claims 2 GKV pairs, provides none
	var got Bundle
	err := Copy(&got, buf)
	if err == nil {
		t.Fatal("expected error for truncated buffer")
	}
	var malformed *ErrMalformed
	if _, ok := err.(*ErrMalformed); !ok {
		t.Errorf("err = %v (%T), want *ErrMalformed", err, err)
	}
	_ = malformed
}

func TestIsEmpty(t *testing.T) {
	var b *Bundle
	if !b.IsEmpty() {
		t.Error("nil bundle should be empty")
	}
	b = &Bundle{}
	if !b.IsEmpty() {
		t.Error("zero-value bundle should be empty")
	}
	b = &Bundle{GKV: []Pair{{1, 1}}}
	if b.IsEmpty() {
		t.Error("bundle with GKV should not be empty")
	}
}
