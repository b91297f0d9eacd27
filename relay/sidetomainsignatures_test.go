package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const collectedSignaturesEventABI = `[{"type":"event","name":"CollectedSignatures","inputs":[
	{"name":"authorityResponsibleForRelay","type":"address","indexed":false},
	{"name":"messageHash","type":"bytes32","indexed":false}
]}]`

func collectedSignaturesLog(t *testing.T, authority common.Address, messageHash common.Hash, sideTxHash common.Hash) types.Log {
	parsed, err := abi.JSON(strings.NewReader(collectedSignaturesEventABI))
	require.NoError(t, err)
	data, err := parsed.Events["CollectedSignatures"].Inputs.Pack(authority, messageHash)
	require.NoError(t, err)
	return types.Log{
		Address:     common.HexToAddress("0x0000000000000000000000000000000000000dd1"),
		Data:        data,
		TxHash:      sideTxHash,
		BlockNumber: 777,
	}
}

type fakeSideMessages struct {
	message []byte
	sigs    []Signature
}

func (f *fakeSideMessages) Message(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	return f.message, nil
}

func (f *fakeSideMessages) SignatureAt(ctx context.Context, messageHash common.Hash, index uint64) ([]byte, error) {
	return f.sigs[index].Encode(), nil
}

type fakeMainRelayer struct {
	alreadyRelayed bool
	withdrawTxHash common.Hash
	withdrawCalled bool
	gotV           []uint8
	gotR, gotS     []common.Hash
}

func (f *fakeMainRelayer) Withdraws(ctx context.Context, sideTxHash common.Hash) (bool, error) {
	return f.alreadyRelayed, nil
}

func (f *fakeMainRelayer) Withdraw(ctx context.Context, v []uint8, r, s []common.Hash, message []byte) (common.Hash, error) {
	f.withdrawCalled = true
	f.gotV, f.gotR, f.gotS = v, r, s
	return f.withdrawTxHash, nil
}

type fakeReceiptPoller struct {
	receipt *types.Receipt
}

func (f *fakeReceiptPoller) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func testMessage(t *testing.T) *MessageToMain {
	recipient := common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	msg, err := DecodeMessageToMain((&MessageToMain{
		Recipient:    recipient,
		Value:        uint256.NewInt(1000),
		SideTxHash:   common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364"),
		MainGasPrice: uint256.NewInt(0xa0),
	}).Encode())
	require.NoError(t, err)
	return msg
}

// TestSideToMainSignaturesNotResponsible checks that an authority observing
// a CollectedSignatures log it isn't responsible for relaying does nothing.
func TestSideToMainSignaturesNotResponsible(t *testing.T) {
	authority := common.HexToAddress("0x0000000000000000000000000000000000000001")
	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	messageHash := common.HexToHash("0x01")
	log := collectedSignaturesLog(t, other, messageHash, common.HexToHash("0x02"))

	main := &fakeMainRelayer{}
	side := &fakeSideMessages{}
	receipts := &fakeReceiptPoller{}

	job := NewSideToMainSignatures(context.Background(), log, authority, 2, time.Millisecond, main, side, receipts)
	got := waitForResult(t, job)

	require.Nil(t, got)
	require.False(t, main.withdrawCalled)
}

// TestSideToMainSignaturesAlreadyRelayed checks that an authority
// responsible for relaying a withdrawal someone else already relayed
// does nothing.
func TestSideToMainSignaturesAlreadyRelayed(t *testing.T) {
	authority := common.HexToAddress("0x0000000000000000000000000000000000000001")
	messageHash := common.HexToHash("0x01")
	log := collectedSignaturesLog(t, authority, messageHash, common.HexToHash("0x02"))

	msg := testMessage(t)
	main := &fakeMainRelayer{alreadyRelayed: true}
	side := &fakeSideMessages{message: msg.Encode()}
	receipts := &fakeReceiptPoller{}

	job := NewSideToMainSignatures(context.Background(), log, authority, 2, time.Millisecond, main, side, receipts)
	got := waitForResult(t, job)

	require.Nil(t, got)
	require.False(t, main.withdrawCalled)
}

// TestSideToMainSignaturesFullRelay covers the full happy path with N=2
// authorities: fetch the message, confirm it isn't relayed yet, collect
// both signatures in parallel, submit withdraw, and wait for its receipt.
func TestSideToMainSignaturesFullRelay(t *testing.T) {
	authority := common.HexToAddress("0x0000000000000000000000000000000000000001")
	messageHash := common.HexToHash("0x01")
	log := collectedSignaturesLog(t, authority, messageHash, common.HexToHash("0x02"))

	msg := testMessage(t)
	sigs := []Signature{{V: 27}, {V: 28}}
	main := &fakeMainRelayer{withdrawTxHash: common.HexToHash("0x03")}
	side := &fakeSideMessages{message: msg.Encode(), sigs: sigs}
	wantReceipt := &types.Receipt{TxHash: common.HexToHash("0x03")}
	receipts := &fakeReceiptPoller{receipt: wantReceipt}

	job := NewSideToMainSignatures(context.Background(), log, authority, 2, time.Millisecond, main, side, receipts)
	got := waitForResult(t, job)

	require.NotNil(t, got)
	require.Equal(t, wantReceipt.TxHash, got.TxHash)
	require.True(t, main.withdrawCalled)
	require.Len(t, main.gotV, 2)
	require.Equal(t, uint8(27), main.gotV[0])
	require.Equal(t, uint8(28), main.gotV[1])
}
