package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"rezerve/core/rebase"
)

// Config describes the daemon's deployment-time settings.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	HistoryDB      string `toml:"HistoryDB"`
	NetworkName    string `toml:"NetworkName"`
	RPCToken       string `toml:"RPCToken"`
	ExecuteLimit   int    `toml:"ExecuteLimitPerMinute"`
	EpochSeconds   int64  `toml:"EpochSeconds"`
	CeilAPR        uint64 `toml:"CeilAPR"`
	CurveQuad      uint64 `toml:"CurveQuad"`
	CurveLin       uint64 `toml:"CurveLin"`
	StakerSplitBps uint32 `toml:"StakerSplitBps"`
	OpsSplitBps    uint32 `toml:"OpsSplitBps"`
	BurnerSplitBps uint32 `toml:"BurnerSplitBps"`

	Genesis Genesis `toml:"Genesis"`
}

// Genesis seeds the reference collaborators at daemon start. Amounts and
// values are decimal strings in 1e18 base units.
type Genesis struct {
	InitialSupply   string `toml:"InitialSupply"`
	SupplyAccount   string `toml:"SupplyAccount"`
	ReserveAsset    string `toml:"ReserveAsset"`
	ReserveValue    string `toml:"ReserveValue"`
	FloorValue      string `toml:"FloorValue"`
	StakingBond     string `toml:"StakingBond"`
	StakingAccount  string `toml:"StakingAccount"`
	OpsAccount      string `toml:"OpsAccount"`
	BurnerAccount   string `toml:"BurnerAccount"`
	InitialStaker   string `toml:"InitialStaker"`
	BondFromGenesis bool   `toml:"BondFromGenesis"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	params := rebase.DefaultParams()
	return &Config{
		RPCAddress:     "127.0.0.1:8645",
		DataDir:        "./data",
		HistoryDB:      "",
		NetworkName:    "rezerve-local",
		ExecuteLimit:   6,
		EpochSeconds:   int64(params.EpochLength / time.Second),
		CeilAPR:        params.CeilAPR,
		CurveQuad:      params.CurveQuad,
		CurveLin:       params.CurveLin,
		StakerSplitBps: params.StakerSplit,
		OpsSplitBps:    params.OpsSplit,
		BurnerSplitBps: params.BurnerSplit,
		Genesis: Genesis{
			InitialSupply:   "1000000000000000000000",
			SupplyAccount:   "genesis",
			ReserveAsset:    "USDC",
			ReserveValue:    "2000000000000000000000",
			FloorValue:      "1000000000000000000000",
			StakingBond:     "500000000000000000000",
			StakingAccount:  "module/staking",
			OpsAccount:      "module/ops",
			BurnerAccount:   "module/burner",
			InitialStaker:   "staker-0",
			BondFromGenesis: true,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.HistoryDB == "" && c.DataDir != "" {
		c.HistoryDB = filepath.Join(c.DataDir, "rebase.db")
	}
	if c.NetworkName == "" {
		c.NetworkName = "rezerve-local"
	}
	if c.ExecuteLimit <= 0 {
		c.ExecuteLimit = 6
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create default config: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return cfg, nil
}

// Params derives the rate engine parameter set from the configuration.
func (c *Config) Params() rebase.Params {
	return rebase.Params{
		EpochLength: time.Duration(c.EpochSeconds) * time.Second,
		CeilAPR:     c.CeilAPR,
		CurveQuad:   c.CurveQuad,
		CurveLin:    c.CurveLin,
		StakerSplit: c.StakerSplitBps,
		OpsSplit:    c.OpsSplitBps,
		BurnerSplit: c.BurnerSplitBps,
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Genesis.validate(); err != nil {
		return err
	}
	return nil
}

func (g Genesis) validate() error {
	for field, value := range map[string]string{
		"InitialSupply": g.InitialSupply,
		"ReserveValue":  g.ReserveValue,
		"FloorValue":    g.FloorValue,
		"StakingBond":   g.StakingBond,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseAmount(value); err != nil {
			return fmt.Errorf("config: genesis %s: %w", field, err)
		}
	}
	if g.StakingAccount == "" || g.OpsAccount == "" || g.BurnerAccount == "" {
		return fmt.Errorf("config: genesis sink accounts must not be empty")
	}
	return nil
}

// ParseAmount parses a decimal base-unit amount.
func ParseAmount(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return parsed, nil
}
