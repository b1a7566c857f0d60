package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "rezerve-local", cfg.NetworkName)
	require.Equal(t, int64(8*60*60), cfg.EpochSeconds)
	require.NoError(t, cfg.Validate())

	params := cfg.Params()
	require.Equal(t, 8*time.Hour, params.EpochLength)
	require.Equal(t, uint64(2000), params.CeilAPR)
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = "127.0.0.1:9999"
DataDir = "./state"
EpochSeconds = 3600
CeilAPR = 1500
CurveQuad = 500
CurveLin = 750
StakerSplitBps = 8000
OpsSplitBps = 1000
BurnerSplitBps = 1000

[Genesis]
InitialSupply = "1000"
SupplyAccount = "genesis"
ReserveAsset = "USDC"
ReserveValue = "2000"
FloorValue = "500"
StakingBond = "100"
StakingAccount = "module/staking"
OpsAccount = "module/ops"
BurnerAccount = "module/burner"
InitialStaker = "staker-0"
BondFromGenesis = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.RPCAddress)
	require.Equal(t, filepath.Join("./state", "rebase.db"), cfg.HistoryDB)
	require.Equal(t, time.Hour, cfg.Params().EpochLength)
	require.Equal(t, uint32(8000), cfg.Params().StakerSplit)
}

func TestLoad_RejectsBrokenSplits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = "127.0.0.1:9999"
DataDir = "./state"
EpochSeconds = 3600
CeilAPR = 1500
CurveQuad = 500
CurveLin = 750
StakerSplitBps = 9000
OpsSplitBps = 1000
BurnerSplitBps = 1000

[Genesis]
StakingAccount = "module/staking"
OpsAccount = "module/ops"
BurnerAccount = "module/burner"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "split weights")
}

func TestParseAmount(t *testing.T) {
	value, err := ParseAmount("1000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", value.String())

	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("not-a-number")
	require.Error(t, err)
}
