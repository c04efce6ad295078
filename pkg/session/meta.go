package session

import (
	"github.com/qti-audio/agm/pkg/device"
	"github.com/qti-audio/agm/pkg/metadata"
)

// flattenGKV/flattenCKV interleave a Bundle's (key, value) pairs into the
// flat []uint32 form pkg/graph and internal/engine/gsl consume, per the
// wire layout pkg/metadata documents.
func flattenGKV(b *metadata.Bundle) []uint32 {
	if b == nil {
		return nil
	}
	out := make([]uint32, 0, len(b.GKV)*2)
	for _, p := range b.GKV {
		out = append(out, p.Key, p.Value)
	}
	return out
}

func flattenCKV(b *metadata.Bundle) []uint32 {
	if b == nil {
		return nil
	}
	out := make([]uint32, 0, len(b.CKV)*2)
	for _, p := range b.CKV {
		out = append(out, p.Key, p.Value)
	}
	return out
}

// deviceBundleToMetadata lifts a device's flattened endpoint GKV into a
// metadata.Bundle so it can be merged with session/AIF metadata via
// metadata.Merge. device.Bundle carries no CKV of its own (spec §4.2).
func deviceBundleToMetadata(b device.Bundle) *metadata.Bundle {
	out := &metadata.Bundle{}
	for _, k := range b.GKV {
		out.GKV = append(out.GKV, metadata.Pair{Key: k})
	}
	return out
}

// mergedFlat merges the given bundles and returns the flattened (gkv, ckv)
// pair ready to hand to a graph.Graph operation.
func mergedFlat(bundles ...*metadata.Bundle) (gkv, ckv []uint32) {
	merged := metadata.Merge(bundles...)
	return flattenGKV(merged), flattenCKV(merged)
}
