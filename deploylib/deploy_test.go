package deploylib

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestInitialStateSeedsCursorsAtDeploymentBlock(t *testing.T) {
	main := Deployed{
		Address: common.HexToAddress("0x01"),
		Receipt: &types.Receipt{BlockNumber: big.NewInt(100)},
	}
	side := Deployed{
		Address: common.HexToAddress("0x0dd1"),
		Receipt: &types.Receipt{BlockNumber: big.NewInt(200)},
	}

	state := InitialState(main, side)
	require.Equal(t, main.Address, state.MainContractAddress)
	require.Equal(t, side.Address, state.SideContractAddress)
	require.Equal(t, uint64(100), state.MainDeployedAtBlock)
	require.Equal(t, uint64(200), state.SideDeployedAtBlock)
	require.Equal(t, uint64(100), state.LastMainToSideSignAtBlock)
	require.Equal(t, uint64(200), state.LastSideToMainSignAtBlock)
	require.Equal(t, uint64(200), state.LastSideToMainSignaturesAtBlock)
}

func TestDumpInfoWritesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment-main-0x01.json")

	d := Deployed{
		Address: common.HexToAddress("0x01"),
		TxHash:  common.HexToHash("0xabc"),
		Receipt: &types.Receipt{BlockNumber: big.NewInt(42)},
	}
	require.NoError(t, d.DumpInfo(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, float64(42), decoded["block_number"])
}
