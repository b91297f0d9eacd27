package relay

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

const depositEventABI = `[{"type":"event","name":"Deposit","inputs":[
	{"name":"recipient","type":"address","indexed":false},
	{"name":"value","type":"uint256","indexed":false}
]}]`

func depositLog(t *testing.T, recipient common.Address, value *big.Int, mainTxHash common.Hash) types.Log {
	parsed, err := abi.JSON(strings.NewReader(depositEventABI))
	require.NoError(t, err)
	data, err := parsed.Events["Deposit"].Inputs.Pack(recipient, value)
	require.NoError(t, err)
	return types.Log{
		Address:     common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Data:        data,
		TxHash:      mainTxHash,
		BlockNumber: 4100,
	}
}

type fakeMainToSideSigner struct {
	alreadySigned bool
	depositTxHash common.Hash

	gotAuthority, gotRecipient common.Address
	gotValue                   *big.Int
	gotMainTxHash              common.Hash
	depositCalled              bool
}

func (f *fakeMainToSideSigner) HasAuthoritySignedMainToSide(ctx context.Context, authority, recipient common.Address, value *big.Int, mainTxHash common.Hash) (bool, error) {
	f.gotAuthority, f.gotRecipient, f.gotValue, f.gotMainTxHash = authority, recipient, value, mainTxHash
	return f.alreadySigned, nil
}

func (f *fakeMainToSideSigner) Deposit(ctx context.Context, recipient common.Address, value *big.Int, mainTxHash common.Hash) (common.Hash, error) {
	f.depositCalled = true
	return f.depositTxHash, nil
}

// TestMainToSideSignNotYetRelayed covers the path where this authority
// hasn't signed the deposit yet: Deposit is called and its tx hash returned.
func TestMainToSideSignNotYetRelayed(t *testing.T) {
	recipient := common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	value := big.NewInt(1000)
	mainTxHash := common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364")
	authority := common.HexToAddress("0x0000000000000000000000000000000000000001")
	wantTxHash := common.HexToHash("0x1db8f385535c0d178b8f40016048f3a3cffee8f94e68978ea4b277f57b638f0b")

	log := depositLog(t, recipient, value, mainTxHash)
	signer := &fakeMainToSideSigner{alreadySigned: false, depositTxHash: wantTxHash}

	job := NewMainToSideSign(context.Background(), log, authority, signer)
	result := waitForResult(t, job)

	require.False(t, result.AlreadySigned)
	require.Equal(t, wantTxHash, result.TxHash)
	require.True(t, signer.depositCalled)
	require.Equal(t, authority, signer.gotAuthority)
	require.Equal(t, recipient, signer.gotRecipient)
	require.Equal(t, 0, value.Cmp(signer.gotValue))
	require.Equal(t, mainTxHash, signer.gotMainTxHash)
}

// TestMainToSideSignAlreadyRelayed covers the path where this authority
// already signed: Deposit must not be called again.
func TestMainToSideSignAlreadyRelayed(t *testing.T) {
	recipient := common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	value := big.NewInt(1000)
	mainTxHash := common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364")
	authority := common.HexToAddress("0x0000000000000000000000000000000000000001")

	log := depositLog(t, recipient, value, mainTxHash)
	signer := &fakeMainToSideSigner{alreadySigned: true}

	job := NewMainToSideSign(context.Background(), log, authority, signer)
	result := waitForResult(t, job)

	require.True(t, result.AlreadySigned)
	require.Equal(t, common.Hash{}, result.TxHash)
	require.False(t, signer.depositCalled)
}
