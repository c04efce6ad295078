package runtime

import (
	"github.com/qti-audio/agm/internal/config"
	"github.com/qti-audio/agm/pkg/device"
)

// staticCatalog implements device.EndpointCatalog over the statically
// configured DevicesConfig list (SPEC_FULL.md §10: "a 'devices' list
// analogous in shape to the teacher's NPCs []NPCConfig"). Since
// DeviceConfig is keyed by (card_id, pcm_id) rather than by AIF id — AIF
// ids are only assigned once the platform PCM registry is enumerated in
// order — the catalog is built once per Enumerate call, matching each
// registry entry's (card_id, pcm_id) against the configured list and
// indexing the result by the AIF id the registry assigns it.
type staticCatalog struct {
	byAIF map[uint32]device.Bundle
}

// newStaticCatalog matches entries (already in the order Registry.Enumerate
// will assign AIF ids) against cfg by (CardID, PCMID). An entry with no
// matching config is simply absent from the map, which Registry.Enumerate
// already treats as "no catalogue entry" (SPEC_FULL.md §12: non-fatal,
// empty bundle, logged diagnostic).
func newStaticCatalog(entries []device.Entry, cfg []config.DeviceConfig) *staticCatalog {
	type key struct {
		card, pcm int
	}
	byKey := make(map[key]config.DeviceConfig, len(cfg))
	for _, dc := range cfg {
		byKey[key{dc.CardID, dc.PCMID}] = dc
	}

	byAIF := make(map[uint32]device.Bundle, len(entries))
	for i, e := range entries {
		aifID := uint32(i + 1)
		if dc, ok := byKey[key{e.CardID, e.PCMID}]; ok {
			byAIF[aifID] = device.Bundle{GKV: dc.GKV}
		}
	}
	return &staticCatalog{byAIF: byAIF}
}

func (c *staticCatalog) Lookup(aifID uint32) (device.Bundle, bool) {
	b, ok := c.byAIF[aifID]
	return b, ok
}
