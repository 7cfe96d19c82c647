package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"escrowd/crypto"
)

// GenesisAlloc seeds an account balance the first time the daemon starts
// against an empty database.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

type Config struct {
	ListenAddress string         `toml:"ListenAddress"`
	DataDir       string         `toml:"DataDir"`
	Env           string         `toml:"Env"`
	Alloc         []GenesisAlloc `toml:"Alloc,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./escrowd-data"
	}
	if err := validateAlloc(cfg.Alloc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Allocations parses the configured genesis entries into raw addresses and
// amounts.
func (c *Config) Allocations() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(c.Alloc))
	for _, alloc := range c.Alloc {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(alloc.Address))
		if err != nil {
			return nil, fmt.Errorf("config: alloc address %q: %w", alloc.Address, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Balance), 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("config: alloc balance %q must be a positive integer", alloc.Balance)
		}
		out[addr.Raw()] = amount
	}
	return out, nil
}

func validateAlloc(allocs []GenesisAlloc) error {
	seen := make(map[string]struct{}, len(allocs))
	for _, alloc := range allocs {
		addr := strings.TrimSpace(alloc.Address)
		if addr == "" {
			return fmt.Errorf("config: alloc entry missing address")
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("config: duplicate alloc entry for %s", addr)
		}
		seen[addr] = struct{}{}
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8645",
		DataDir:       "./escrowd-data",
		Env:           "dev",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
