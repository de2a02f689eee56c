// Package config defines the indexer's enumerated configuration
// surface (spec.md §6) and loads it by layering an optional TOML file
// over cobra flag values (every non-zero file value wins over the
// flag), the flag-plus-file layering erigon's own cmd/erigon/main.go
// uses.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the indexer's full configuration, spec.md §6 verbatim.
type Config struct {
	RPCURL     string `toml:"rpc_url"`
	DBPath     string `toml:"db_path"`
	StartBlock uint64 `toml:"start_block"`
	BatchSize  int    `toml:"batch_size"`
	BindAddr   string `toml:"bind_addr"`
}

// Default returns the configuration's documented defaults:
// start_block=0, batch_size=1, per spec.md §6.
func Default() Config {
	return Config{
		StartBlock: 0,
		BatchSize:  1,
		BindAddr:   "127.0.0.1:8080",
	}
}

// LoadFile reads a TOML config file and overlays it onto base,
// leaving any zero-valued field in the file's config untouched so a
// partial file only overrides what it sets.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fileCfg Config
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	merged := base
	if fileCfg.RPCURL != "" {
		merged.RPCURL = fileCfg.RPCURL
	}
	if fileCfg.DBPath != "" {
		merged.DBPath = fileCfg.DBPath
	}
	if fileCfg.StartBlock != 0 {
		merged.StartBlock = fileCfg.StartBlock
	}
	if fileCfg.BatchSize != 0 {
		merged.BatchSize = fileCfg.BatchSize
	}
	if fileCfg.BindAddr != "" {
		merged.BindAddr = fileCfg.BindAddr
	}
	return merged, nil
}

// Validate checks the fields the engine cannot run without.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("config: rpc_url is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.BatchSize)
	}
	return nil
}
