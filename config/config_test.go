package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, "./escrowd-data", cfg.DataDir)

	// The default file must be readable on the next start.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, reloaded.ListenAddress)
}

func TestLoadParsesAllocations(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
ListenAddress = ":9000"
DataDir = "/tmp/escrowd"
Env = "test"

[[Alloc]]
Address = "` + addr.String() + `"
Balance = "1000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)

	allocs, err := cfg.Allocations()
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Zero(t, allocs[addr.Raw()].Cmp(big.NewInt(1000)))
}

func TestLoadRejectsBadAlloc(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address().String()

	cases := []struct {
		name string
		body string
	}{
		{"missing address", "[[Alloc]]\nBalance = \"10\"\n"},
		{"duplicate address", "[[Alloc]]\nAddress = \"" + addr + "\"\nBalance = \"10\"\n[[Alloc]]\nAddress = \"" + addr + "\"\nBalance = \"20\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestAllocationsRejectsNonPositiveBalance(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	cfg := &Config{Alloc: []GenesisAlloc{{Address: key.PubKey().Address().String(), Balance: "0"}}}
	_, err = cfg.Allocations()
	require.Error(t, err)
}
