package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfig = `
[home]
http = "http://localhost:8545"
account = "0x0000000000000000000000000000000000000001"
required_confirmations = 12
poll_interval = "1s"
request_timeout = "5s"
contract_address = "0x0000000000000000000000000000000000000001"
deployed_at_block = 100

[home.sign]
gas = 200000
gas_price = "1000000000"

[foreign]
http = "http://localhost:8546"
account = "0x0000000000000000000000000000000000000001"
required_confirmations = 0
poll_interval = "500ms"
request_timeout = "5s"
contract_address = "0x0000000000000000000000000000000000000dd1"
deployed_at_block = 200

[foreign.sign]
gas = 200000
gas_price = "1000000000"

[authorities]
accounts = ["0x0000000000000000000000000000000000000001", "0x0000000000000000000000000000000000000002"]
required_signatures = 2
`

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.Home.HTTP)
	require.Equal(t, uint64(12), cfg.Home.RequiredConfirmations)
	require.Equal(t, uint64(2), cfg.Authorities.RequiredSignatures)
	require.Len(t, cfg.Authorities.Accounts, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.toml")
	require.Error(t, err)
}

func TestLoadRejectsTooManyRequiredSignatures(t *testing.T) {
	bad := validConfig + "\n" // baseline is valid; mutate via string replace below
	bad = replaceOnce(bad, "required_signatures = 2", "required_signatures = 3")
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateAuthority(t *testing.T) {
	bad := replaceOnce(validConfig, "0x0000000000000000000000000000000000000002", "0x0000000000000000000000000000000000000001")
	path := writeConfig(t, bad)
	_, err := Load(path)
	require.Error(t, err)
}

func TestAuthoritiesSetMembership(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	set := cfg.Authorities.Set()
	require.Equal(t, 2, set.Cardinality())
	require.True(t, set.Contains(cfg.Authorities.Accounts[0]))
}

func replaceOnce(s, old, new string) string {
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			return s[:i] + new + s[i+len(old):]
		}
	}
	return s
}
