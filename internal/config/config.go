package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/streamring/framing"
)

// RelayConfig is the on-disk shape of a relay deployment. Separator is
// the hex-encoded wire bytes of the record delimiter, one to four bytes
// (e.g. "ccfb22aa" or "0d0a").
type RelayConfig struct {
	ID             string `toml:"id"`
	ListenAddr     string `toml:"listen_addr"`
	AdminAddr      string `toml:"admin_addr"`
	CapacityBytes  int    `toml:"capacity_bytes"`
	ReadChunkBytes int    `toml:"read_chunk_bytes"`
	Separator      string `toml:"separator"`
	DropOldest     bool   `toml:"drop_oldest"`
}

func LoadRelayConfig(path string) (RelayConfig, error) {
	var cfg RelayConfig
	if err := loadToml(path, &cfg); err != nil {
		return RelayConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "relay.local"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9400"
	}
	if cfg.CapacityBytes == 0 {
		cfg.CapacityBytes = 64 * 1024
	}
	if cfg.ReadChunkBytes == 0 {
		cfg.ReadChunkBytes = 4 * 1024
	}
	if cfg.Separator == "" {
		cfg.Separator = "ccfb22aa"
	}
	if err := ValidateRelayConfig(cfg); err != nil {
		return RelayConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateRelayConfig(cfg RelayConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("relay config missing id")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("relay config missing listen_addr")
	}
	if cfg.CapacityBytes < 2 {
		return fmt.Errorf("relay config capacity_bytes must be at least 2, got %d", cfg.CapacityBytes)
	}
	if cfg.ReadChunkBytes < 1 {
		return fmt.Errorf("relay config read_chunk_bytes must be positive, got %d", cfg.ReadChunkBytes)
	}
	if cfg.ReadChunkBytes > cfg.CapacityBytes {
		return fmt.Errorf("relay config read_chunk_bytes %d exceeds capacity_bytes %d",
			cfg.ReadChunkBytes, cfg.CapacityBytes)
	}
	if _, err := ParseSeparator(cfg.Separator); err != nil {
		return err
	}
	return nil
}

// ParseSeparator decodes the hex wire bytes of a separator into its
// keyword value and length.
func ParseSeparator(raw string) (framing.Separator, error) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(raw), "0x"))
	b, err := hex.DecodeString(s)
	if err != nil {
		return framing.Separator{}, fmt.Errorf("separator %q is not valid hex: %w", raw, err)
	}
	if len(b) < 1 || len(b) > 4 {
		return framing.Separator{}, fmt.Errorf("separator %q must be 1-4 bytes, got %d", raw, len(b))
	}
	var value uint32
	for _, c := range b {
		value = value<<8 | uint32(c)
	}
	return framing.Separator{Value: value, Len: len(b)}, nil
}
