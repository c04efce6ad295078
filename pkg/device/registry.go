package device

import (
	"fmt"
	"log/slog"
	"sync"
)

// Entry is one parsed line from the platform PCM registry (spec §6),
// produced by internal/pcmreg and handed to [Registry.Enumerate].
type Entry struct {
	CardID    int
	PCMID     int
	Name      string
	Direction Direction
}

// EndpointCatalog resolves per-device endpoint metadata (e.g. the hardware
// endpoint id used to match a HW_ENDPOINT_RX/TX tag) by AIF id. Out of
// scope per spec §1 ("codec parameter structs... pure data"); callers
// supply a concrete catalogue sourced from platform configuration.
type EndpointCatalog interface {
	Lookup(aifID uint32) (Bundle, bool)
}

// Registry is the process-wide table of [Device] values, indexed by AIF id
// and kept in a stable-order slice so enumeration indices do not change
// across lookups (spec §4.2: "Store in an ordered array so indices are
// stable").
type Registry struct {
	mu      sync.RWMutex
	byAIF   map[uint32]*Device
	ordered []*Device
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{byAIF: make(map[uint32]*Device)}
}

// Enumerate populates the registry from entries, the parsed platform PCM
// registry, resolving endpoint metadata from catalog. A missing catalogue
// entry is non-fatal — per SPEC_FULL.md §12 (ported from the original's
// device_open behavior), the device is registered with an empty endpoint
// bundle and a diagnostic is logged, rather than aborting enumeration.
//
// AIF ids are assigned sequentially starting at 1, matching the ordered
// array position.
func (r *Registry) Enumerate(entries []Entry, catalog EndpointCatalog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range entries {
		aifID := uint32(i + 1)
		dev := New(aifID, e.CardID, e.PCMID, e.Direction)
		if catalog != nil {
			if bundle, ok := catalog.Lookup(aifID); ok {
				dev.Endpoint = bundle
			} else {
				slog.Warn("device: no endpoint catalogue entry, continuing with empty bundle",
					"aif_id", aifID, "card_id", e.CardID, "pcm_id", e.PCMID, "name", e.Name)
			}
		}
		r.byAIF[aifID] = dev
		r.ordered = append(r.ordered, dev)
	}
}

// Lookup returns the device registered under aifID, or (nil, false).
func (r *Registry) Lookup(aifID uint32) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byAIF[aifID]
	return d, ok
}

// MustLookup is a convenience used by callers that have already validated
// the id exists (e.g. within a session whose attachment pool only holds
// ids resolved at attach time).
func (r *Registry) MustLookup(aifID uint32) (*Device, error) {
	d, ok := r.Lookup(aifID)
	if !ok {
		return nil, fmt.Errorf("device: unknown aif_id %d", aifID)
	}
	return d, nil
}

// List returns a stable-order snapshot of every registered device, used by
// the two-pass get_aif_info_list enumeration (spec §6).
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
