package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/streamring/internal/config"
	"github.com/danmuck/streamring/internal/relay"
)

type fileConfig struct {
	ID             string `toml:"id"`
	ListenAddr     string `toml:"listen_addr"`
	AdminAddr      string `toml:"admin_addr"`
	CapacityBytes  int    `toml:"capacity_bytes"`
	ReadChunkBytes int    `toml:"read_chunk_bytes"`
	Separator      string `toml:"separator"`
	DropOldest     bool   `toml:"drop_oldest"`
	Heartbeat      string `toml:"heartbeat"`
}

func loadServiceConfig(path string) (relay.ServiceConfig, error) {
	cfg := relay.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return relay.ServiceConfig{}, fmt.Errorf("load relay config: %w", err)
	}

	if meta.IsDefined("id") {
		id := strings.TrimSpace(raw.ID)
		if id != "" {
			cfg.RelayID = id
		}
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("capacity_bytes") {
		cfg.CapacityBytes = raw.CapacityBytes
	}

	if meta.IsDefined("read_chunk_bytes") {
		cfg.ReadChunkBytes = raw.ReadChunkBytes
	}

	if meta.IsDefined("separator") {
		sep, err := config.ParseSeparator(raw.Separator)
		if err != nil {
			return relay.ServiceConfig{}, err
		}
		cfg.Separator = sep
	}

	if meta.IsDefined("drop_oldest") {
		cfg.DropOldest = raw.DropOldest
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return relay.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}

	return cfg, nil
}
