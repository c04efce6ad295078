package config_test

import (
	"strings"
	"testing"

	"github.com/qti-audio/agm/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":50051"
  health_addr: ":8080"
  log_level: info

runtime:
  pcm_registry_path: /etc/agm/pcm_registry
  acdb_dir: /etc/agm/acdb
  max_acdb_files: 16
  engine_target: unix:///var/run/gsl.sock

devices:
  - name: speaker
    card_id: 0
    pcm_id: 0
    direction: playback
    gkv: [1, 2, 3]
  - name: mic
    card_id: 0
    pcm_id: 1
    direction: capture
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":50051" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":50051")
	}
	if cfg.Server.LogLevel != config.LogLevelInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogLevelInfo)
	}
	if cfg.Runtime.MaxACDBFiles != 16 {
		t.Errorf("runtime.max_acdb_files: got %d, want 16", cfg.Runtime.MaxACDBFiles)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("devices: got %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Name != "speaker" {
		t.Errorf("devices[0].name: got %q", cfg.Devices[0].Name)
	}
	if cfg.Devices[0].Direction != config.DirectionPlayback {
		t.Errorf("devices[0].direction: got %q, want playback", cfg.Devices[0].Direction)
	}
}

func TestLoadFromReader_EmptyFailsRequiredFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for config missing server.listen_addr and runtime.pcm_registry_path")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  listen_addr: ":50051"
  log_level: verbose
runtime:
  pcm_registry_path: /etc/agm/pcm_registry
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingDeviceName(t *testing.T) {
	yaml := `
server:
  listen_addr: ":50051"
runtime:
  pcm_registry_path: /etc/agm/pcm_registry
devices:
  - card_id: 0
    pcm_id: 0
    direction: playback
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing device name, got nil")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should mention name, got: %v", err)
	}
}

func TestValidate_InvalidDirection(t *testing.T) {
	yaml := `
server:
  listen_addr: ":50051"
runtime:
  pcm_registry_path: /etc/agm/pcm_registry
devices:
  - name: weird
    direction: sideways
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid direction, got nil")
	}
}

func TestValidate_DuplicateCardPCM(t *testing.T) {
	yaml := `
server:
  listen_addr: ":50051"
runtime:
  pcm_registry_path: /etc/agm/pcm_registry
devices:
  - name: a
    card_id: 0
    pcm_id: 0
    direction: playback
  - name: b
    card_id: 0
    pcm_id: 0
    direction: capture
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate card/pcm pair, got nil")
	}
	if !strings.Contains(err.Error(), "already claimed") {
		t.Errorf("error should mention the conflict, got: %v", err)
	}
}

func TestValidate_NegativeMaxACDBFiles(t *testing.T) {
	yaml := `
server:
  listen_addr: ":50051"
runtime:
  pcm_registry_path: /etc/agm/pcm_registry
  max_acdb_files: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_acdb_files, got nil")
	}
}
