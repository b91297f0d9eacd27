package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/chainclient"
)

// Main is a thin, hand-packed binding to the Main-chain bridge contract:
// the side a relayed withdrawal is finally replayed against.
type Main struct {
	client   *chainclient.Client
	address  common.Address
	from     common.Address
	gas      uint64
	gasPrice *big.Int
}

// NewMain returns a Main bound to address, sending transactions as from
// with the given gas and gasPrice.
func NewMain(client *chainclient.Client, address, from common.Address, gas uint64, gasPrice *big.Int) *Main {
	return &Main{client: client, address: address, from: from, gas: gas, gasPrice: gasPrice}
}

// Withdraws reports whether sideTxHash has already been relayed to Main,
// the guard that keeps withdraw() idempotent under at-least-once relay.
func (m *Main) Withdraws(ctx context.Context, sideTxHash common.Hash) (bool, error) {
	calldata, err := mainABI.Pack("withdraws", sideTxHash)
	if err != nil {
		return false, bridgeerr.New(bridgeerr.AbiDecode, "packing withdraws call", err)
	}
	out, err := m.client.CallContract(ctx, m.address, calldata)
	if err != nil {
		return false, bridgeerr.New(bridgeerr.Contract, "calling withdraws", err)
	}
	var relayed bool
	if err := mainABI.UnpackIntoInterface(&relayed, "withdraws", out); err != nil {
		return false, bridgeerr.New(bridgeerr.AbiDecode, "decoding withdraws result", err)
	}
	return relayed, nil
}

// Withdraw replays a collected set of (v, r, s) signatures over message to
// Main, completing the Side-to-Main relay. Returns the main-chain
// transaction hash.
func (m *Main) Withdraw(ctx context.Context, v []uint8, r, s []common.Hash, message []byte) (common.Hash, error) {
	calldata, err := mainABI.Pack("withdraw", v, r, s, message)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.AbiDecode, "packing withdraw call", err)
	}
	txHash, err := m.client.SendTransaction(ctx, m.from, m.address, calldata, m.gas, m.gasPrice)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.Contract, "sending withdraw transaction", err)
	}
	return txHash, nil
}
