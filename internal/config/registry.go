package config

import (
	"sync"

	"github.com/qti-audio/agm/pkg/device"
)

// DeviceCatalog turns the configured [DeviceConfig] list into the
// [device.Entry]/[device.EndpointCatalog] shapes pkg/device.Registry needs to
// enumerate audio interfaces. It plays the role the teacher's provider
// Registry played — a named lookup table built once from config — scoped to
// AGM's one kind of pluggable thing: device endpoints instead of LLM/STT/TTS
// providers.
type DeviceCatalog struct {
	mu      sync.RWMutex
	byName  map[string]DeviceConfig
	entries []device.Entry
}

// NewDeviceCatalog builds a catalog from the configured device list.
// Entries preserve the config file's order, which becomes AIF enumeration
// order (spec.md §4.2).
func NewDeviceCatalog(devices []DeviceConfig) *DeviceCatalog {
	c := &DeviceCatalog{byName: make(map[string]DeviceConfig, len(devices))}
	for _, d := range devices {
		c.byName[d.Name] = d
		dir := device.TX
		if d.Direction == DirectionPlayback {
			dir = device.RX
		}
		c.entries = append(c.entries, device.Entry{
			CardID:    d.CardID,
			PCMID:     d.PCMID,
			Name:      d.Name,
			Direction: dir,
		})
	}
	return c
}

// Entries returns the device.Entry list in enumeration order, for
// [device.Registry.Enumerate].
func (c *DeviceCatalog) Entries() []device.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]device.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup implements device.EndpointCatalog: it returns the configured GKV
// snapshot for the named device's endpoint metadata. A missing or
// not-yet-configured device is reported via the bool, which
// device.Registry.Enumerate treats as non-fatal (SPEC_FULL.md §12).
func (c *DeviceCatalog) Lookup(aifID uint32) (device.Bundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(aifID) < 1 || int(aifID) > len(c.entries) {
		return device.Bundle{}, false
	}
	entry := c.entries[aifID-1]
	cfg, ok := c.byName[entry.Name]
	if !ok || len(cfg.GKV) == 0 {
		return device.Bundle{}, false
	}
	return device.Bundle{GKV: append([]uint32(nil), cfg.GKV...)}, true
}

// Replace swaps in a new device list, used by the config watcher when the
// devices section changes on reload. It does not remove devices already
// open in the runtime's device.Registry — that rejection is the registry's
// job, not the catalog's.
func (c *DeviceCatalog) Replace(devices []DeviceConfig) {
	replacement := NewDeviceCatalog(devices)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = replacement.byName
	c.entries = replacement.entries
}
