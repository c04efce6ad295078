package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}

	if cfg.Runtime.PCMRegistryPath == "" {
		errs = append(errs, errors.New("runtime.pcm_registry_path is required"))
	}
	if cfg.Runtime.ACDBDir == "" {
		slog.Warn("runtime.acdb_dir is empty; sessions will open with no calibration data")
	}
	if cfg.Runtime.MaxACDBFiles < 0 {
		errs = append(errs, fmt.Errorf("runtime.max_acdb_files %d must be >= 0", cfg.Runtime.MaxACDBFiles))
	}

	deviceNamesSeen := make(map[string]int, len(cfg.Devices))
	cardPCMSeen := make(map[[2]int]string, len(cfg.Devices))

	for i, dev := range cfg.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		if dev.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := deviceNamesSeen[dev.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of devices[%d]", prefix, dev.Name, prev))
			}
			deviceNamesSeen[dev.Name] = i
		}
		if dev.Direction != "" && !dev.Direction.IsValid() {
			errs = append(errs, fmt.Errorf("%s.direction %q is invalid; valid values: playback, capture", prefix, dev.Direction))
		}
		key := [2]int{dev.CardID, dev.PCMID}
		if prevName, ok := cardPCMSeen[key]; ok {
			errs = append(errs, fmt.Errorf("%s: card %d pcm %d already claimed by device %q", prefix, dev.CardID, dev.PCMID, prevName))
		} else {
			cardPCMSeen[key] = dev.Name
		}
	}

	if len(cfg.Devices) == 0 {
		slog.Warn("no devices configured; the device registry will enumerate an empty catalogue")
	}

	return errors.Join(errs...)
}
