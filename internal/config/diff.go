package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked (SPEC_FULL.md §10:
// log level and the device endpoint-metadata catalogue).
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DevicesChanged bool
	DeviceChanges  []DeviceDiff
}

// DeviceDiff describes what changed for a single device between two configs.
type DeviceDiff struct {
	Name        string
	GKVChanged  bool
	Added       bool
	Removed     bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldDevices := make(map[string]*DeviceConfig, len(old.Devices))
	for i := range old.Devices {
		oldDevices[old.Devices[i].Name] = &old.Devices[i]
	}
	newDevices := make(map[string]*DeviceConfig, len(new.Devices))
	for i := range new.Devices {
		newDevices[new.Devices[i].Name] = &new.Devices[i]
	}

	for name, oldDev := range oldDevices {
		newDev, exists := newDevices[name]
		if !exists {
			d.DeviceChanges = append(d.DeviceChanges, DeviceDiff{Name: name, Removed: true})
			d.DevicesChanged = true
			continue
		}
		if !slices.Equal(oldDev.GKV, newDev.GKV) {
			d.DeviceChanges = append(d.DeviceChanges, DeviceDiff{Name: name, GKVChanged: true})
			d.DevicesChanged = true
		}
	}

	for name := range newDevices {
		if _, exists := oldDevices[name]; !exists {
			d.DeviceChanges = append(d.DeviceChanges, DeviceDiff{Name: name, Added: true})
			d.DevicesChanged = true
		}
	}

	return d
}
