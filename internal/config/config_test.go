package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRelayConfigDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := LoadRelayConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "relay.local" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.ListenAddr != ":9400" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.CapacityBytes != 64*1024 {
		t.Fatalf("unexpected capacity: %d", cfg.CapacityBytes)
	}
	if cfg.ReadChunkBytes != 4*1024 {
		t.Fatalf("unexpected read chunk: %d", cfg.ReadChunkBytes)
	}
	if cfg.Separator != "ccfb22aa" {
		t.Fatalf("unexpected separator: %q", cfg.Separator)
	}
}

func TestLoadRelayConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
id = "relay.edge-1"
listen_addr = "127.0.0.1:7700"
admin_addr = "127.0.0.1:7710"
capacity_bytes = 256
read_chunk_bytes = 32
separator = "0d0a"
drop_oldest = true
`)

	cfg, err := LoadRelayConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ID != "relay.edge-1" {
		t.Fatalf("unexpected id: %q", cfg.ID)
	}
	if cfg.AdminAddr != "127.0.0.1:7710" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
	if cfg.CapacityBytes != 256 || cfg.ReadChunkBytes != 32 {
		t.Fatalf("unexpected sizes: %d/%d", cfg.CapacityBytes, cfg.ReadChunkBytes)
	}
	if !cfg.DropOldest {
		t.Fatalf("expected drop_oldest enabled")
	}
	sep, err := ParseSeparator(cfg.Separator)
	if err != nil {
		t.Fatalf("parse separator: %v", err)
	}
	if sep.Value != 0x0D0A || sep.Len != 2 {
		t.Fatalf("unexpected separator: %+v", sep)
	}
}

func TestLoadRelayConfigRejectsChunkOverCapacity(t *testing.T) {
	path := writeConfig(t, `
capacity_bytes = 64
read_chunk_bytes = 128
`)
	if _, err := LoadRelayConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseSeparator(t *testing.T) {
	sep, err := ParseSeparator("0xCCFB22AA")
	if err != nil {
		t.Fatalf("parse separator: %v", err)
	}
	if sep.Value != 0xCCFB22AA || sep.Len != 4 {
		t.Fatalf("unexpected separator: %+v", sep)
	}

	for _, bad := range []string{"", "zz", "0d0a0d0a0d", "d"} {
		if _, err := ParseSeparator(bad); err == nil {
			t.Fatalf("separator %q should fail", bad)
		}
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.toml")
	if err := WriteTemplate(path, "relay", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "relay", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	cfg, err := LoadRelayConfig(path)
	if err != nil {
		t.Fatalf("template should validate: %v", err)
	}
	if cfg.ID != "relay.local" {
		t.Fatalf("unexpected template id: %q", cfg.ID)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
