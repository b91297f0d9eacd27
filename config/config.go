// Package config loads and validates the bridge's TOML configuration file:
// two per-chain sections, `home` (Main) and `foreign` (Side), plus a
// top-level `authorities` section. Configuration is immutable after load
// — there is no hot-reload.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/naoina/toml"

	"github.com/parity-relay/bridge/bridgeerr"
)

// GasOptions is the gas limit/price pair for one kind of transaction a
// chain section's authority sends.
type GasOptions struct {
	Gas      uint64   `toml:"gas"`
	GasPrice *big.Int `toml:"gas_price"`
}

// Chain is one side's connection and transaction parameters. Main uses it
// for the `home` section, Side for `foreign` — same shape for both.
type Chain struct {
	HTTP                  string        `toml:"http"`
	JWTSecretPath         string        `toml:"jwt_secret_path"`
	Account               common.Address `toml:"account"`
	RequiredConfirmations uint64        `toml:"required_confirmations"`
	PollInterval          duration      `toml:"poll_interval"`
	RequestTimeout        duration      `toml:"request_timeout"`
	MaxParallelRequests   int64         `toml:"max_parallel_requests"`
	ContractAddress       common.Address `toml:"contract_address"`
	DeployedAtBlock       uint64        `toml:"deployed_at_block"`

	Sign GasOptions `toml:"sign"`
}

// Authorities is the committee this daemon's authority account belongs to.
type Authorities struct {
	Accounts           []common.Address `toml:"accounts"`
	RequiredSignatures uint64           `toml:"required_signatures"`
}

// Set returns the authority committee as a set, for checks that don't care
// about ordering; validate uses it to reject a duplicate address. Relay's
// CheckResponsibility step does not use it: it compares the event's
// responsible authority with this daemon's own account.
func (a Authorities) Set() mapset.Set[common.Address] {
	return mapset.NewSet(a.Accounts...)
}

// Config is the full, validated, immutable configuration for one bridge
// process.
type Config struct {
	Home        Chain       `toml:"home"`
	Foreign     Chain       `toml:"foreign"`
	Authorities Authorities `toml:"authorities"`
}

// duration lets the TOML file spell out intervals as "500ms", "2s", using
// time.ParseDuration, rather than forcing operators to compute nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) Duration() time.Duration { return time.Duration(d) }

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := openConfigFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, bridgeerr.New(bridgeerr.Config, fmt.Sprintf("parsing config file %s", path), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Home.validate("home"); err != nil {
		return err
	}
	if err := c.Foreign.validate("foreign"); err != nil {
		return err
	}
	if c.Authorities.RequiredSignatures == 0 {
		return bridgeerr.New(bridgeerr.Config, "authorities.required_signatures must be positive", nil)
	}
	if c.Authorities.RequiredSignatures > uint64(len(c.Authorities.Accounts)) {
		return bridgeerr.New(bridgeerr.Config, fmt.Sprintf(
			"authorities.required_signatures (%d) exceeds number of authority accounts (%d)",
			c.Authorities.RequiredSignatures, len(c.Authorities.Accounts)), nil)
	}
	if c.Authorities.Set().Cardinality() != len(c.Authorities.Accounts) {
		return bridgeerr.New(bridgeerr.Config, "authorities.accounts contains a duplicate address", nil)
	}
	return nil
}

func (c *Chain) validate(section string) error {
	if c.HTTP == "" {
		return bridgeerr.New(bridgeerr.Config, fmt.Sprintf("%s.http must not be empty", section), nil)
	}
	if _, err := url.Parse(c.HTTP); err != nil {
		return bridgeerr.New(bridgeerr.Config, fmt.Sprintf("%s.http is not a valid URL", section), err)
	}
	if c.PollInterval.Duration() <= 0 {
		return bridgeerr.New(bridgeerr.Config, fmt.Sprintf("%s.poll_interval must be positive", section), nil)
	}
	if c.RequestTimeout.Duration() <= 0 {
		return bridgeerr.New(bridgeerr.Config, fmt.Sprintf("%s.request_timeout must be positive", section), nil)
	}
	return nil
}

// MaxParallelOrDefault returns c.MaxParallelRequests, defaulting to 10
// when unset.
func (c *Chain) MaxParallelOrDefault() int64 {
	if c.MaxParallelRequests <= 0 {
		return 10
	}
	return c.MaxParallelRequests
}
