// Package config loads the auctiond service configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AssetConfig declares one accepted asset. Supply and Holder seed the demo
// token ledger the service runs against.
type AssetConfig struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
	Supply   string `yaml:"supply"`
	Holder   string `yaml:"holder"`
}

// Config holds all auctiond configuration.
type Config struct {
	Listen     string `yaml:"listen"`
	MaxWorkers int    `yaml:"max_workers"`
	Operator   string `yaml:"operator"`
	Escrow     string `yaml:"escrow"`
	Database   struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Governance struct {
		// Delay is the timelock execution delay, e.g. "48h". Empty disables
		// the governance endpoints.
		Delay string `yaml:"delay"`
	} `yaml:"governance"`
	// Tiers is the duration-tier multiplier table, lowest tier first.
	Tiers  []string      `yaml:"tiers"`
	Assets []AssetConfig `yaml:"assets"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("AUCTION_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("AUCTION_OPERATOR"); v != "" {
		cfg.Operator = v
	}
	if v := os.Getenv("AUCTION_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:7545"
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.Operator == "" {
		cfg.Operator = "operator"
	}
	if cfg.Escrow == "" {
		cfg.Escrow = "auction"
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = []string{"1", "1.5", "2"}
	}

	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("config: at least one accepted asset is required")
	}
	for i, a := range cfg.Assets {
		if a.Address == "" {
			return nil, fmt.Errorf("config: asset %d has no address", i)
		}
	}
	if _, err := cfg.TierMultipliers(); err != nil {
		return nil, err
	}
	if _, err := cfg.GovernanceDelay(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GovernanceDelay parses the timelock delay. Zero means governance is
// disabled.
func (c *Config) GovernanceDelay() (time.Duration, error) {
	if c.Governance.Delay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Governance.Delay)
	if err != nil {
		return 0, fmt.Errorf("config: governance delay %q: %w", c.Governance.Delay, err)
	}
	return d, nil
}

// TierMultipliers parses the tier table into decimals.
func (c *Config) TierMultipliers() ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(c.Tiers))
	for i, s := range c.Tiers {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("config: tier %d multiplier %q: %w", i, s, err)
		}
		out = append(out, d)
	}
	return out, nil
}
