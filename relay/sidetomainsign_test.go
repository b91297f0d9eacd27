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

const withdrawEventABI = `[{"type":"event","name":"Withdraw","inputs":[
	{"name":"recipient","type":"address","indexed":false},
	{"name":"value","type":"uint256","indexed":false},
	{"name":"mainGasPrice","type":"uint256","indexed":false}
]}]`

func withdrawLog(t *testing.T, recipient common.Address, value, mainGasPrice *big.Int, sideTxHash common.Hash) types.Log {
	parsed, err := abi.JSON(strings.NewReader(withdrawEventABI))
	require.NoError(t, err)
	data, err := parsed.Events["Withdraw"].Inputs.Pack(recipient, value, mainGasPrice)
	require.NoError(t, err)
	return types.Log{
		Address:     common.HexToAddress("0x0000000000000000000000000000000000000dd1"),
		Data:        data,
		TxHash:      sideTxHash,
		BlockNumber: 555,
	}
}

type fakeSideSigner struct {
	sig           []byte
	submitTxHash  common.Hash
	gotMessageLen int
	signCalled    bool
	submitCalled  bool
}

func (f *fakeSideSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	f.signCalled = true
	f.gotMessageLen = len(message)
	return f.sig, nil
}

func (f *fakeSideSigner) SubmitSignature(ctx context.Context, sig []byte, message []byte) (common.Hash, error) {
	f.submitCalled = true
	f.sig = sig
	return f.submitTxHash, nil
}

func TestSideToMainSignBuildsMessageAndSubmits(t *testing.T) {
	recipient := common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	value := big.NewInt(1000)
	mainGasPrice := big.NewInt(0xa0)
	sideTxHash := common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364")
	wantTxHash := common.HexToHash("0x1db8f385535c0d178b8f40016048f3a3cffee8f94e68978ea4b277f57b638f0b")

	var sig Signature
	sig.R[31] = 0xAB
	sig.S[31] = 0xCD
	sig.V = 27

	log := withdrawLog(t, recipient, value, mainGasPrice, sideTxHash)
	signer := &fakeSideSigner{sig: sig.Encode(), submitTxHash: wantTxHash}

	job := NewSideToMainSign(context.Background(), log, signer)
	got := waitForResult(t, job)

	require.Equal(t, wantTxHash, got)
	require.True(t, signer.signCalled)
	require.True(t, signer.submitCalled)
	require.Equal(t, MessageToMainLen, signer.gotMessageLen)
}
