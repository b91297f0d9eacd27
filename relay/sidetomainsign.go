package relay

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/contracts"
	"github.com/parity-relay/bridge/orderedstream"
)

// SideSigner is the subset of *contracts.Side a SideToMainSign job needs.
// Signatures cross this boundary as raw 65-byte r||s||v blobs so this
// package, not package contracts, owns decoding them into Signature.
type SideSigner interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
	SubmitSignature(ctx context.Context, sig []byte, message []byte) (common.Hash, error)
}

// NewSideToMainSign builds the SideToMainSign job: for a single Withdraw
// log on Side, have this authority sign the withdrawal's
// MessageToMain encoding and publish the signature back to Side. The
// returned Job resolves to the side-chain transaction hash of the
// submitSignature call.
//
// State is two steps, run in sequence on one goroutine exactly as the
// state tags S0 AwaitSignature / S1 AwaitTransaction describe: Go's
// blocking calls are the suspension points a reactor's poll() would
// otherwise need to express explicitly.
func NewSideToMainSign(ctx context.Context, log types.Log, side SideSigner) orderedstream.Job[common.Hash] {
	return orderedstream.NewJob(ctx, func(ctx context.Context) (common.Hash, error) {
		ev, err := contracts.DecodeWithdraw(log)
		if err != nil {
			return common.Hash{}, err
		}

		value, overflow := uint256.FromBig(ev.Value)
		if overflow {
			return common.Hash{}, bridgeerr.New(bridgeerr.Logic, "withdraw value overflows uint256", nil)
		}
		gasPrice, overflow := uint256.FromBig(ev.MainGasPrice)
		if overflow {
			return common.Hash{}, bridgeerr.New(bridgeerr.Logic, "withdraw main gas price overflows uint256", nil)
		}

		msg := &MessageToMain{
			Recipient:    ev.Recipient,
			Value:        value,
			SideTxHash:   log.TxHash,
			MainGasPrice: gasPrice,
		}
		messageBytes := msg.Encode()
		if len(messageBytes) != MessageToMainLen {
			return common.Hash{}, bridgeerr.New(bridgeerr.Logic,
				fmt.Sprintf("encoded message has length %d, want %d", len(messageBytes), MessageToMainLen), nil)
		}

		rawSig, err := side.Sign(ctx, messageBytes)
		if err != nil {
			return common.Hash{}, err
		}
		if _, err := DecodeSignature(rawSig); err != nil {
			return common.Hash{}, bridgeerr.New(bridgeerr.Logic, "sign returned malformed signature", err)
		}

		txHash, err := side.SubmitSignature(ctx, rawSig, messageBytes)
		if err != nil {
			return common.Hash{}, err
		}
		return txHash, nil
	})
}
