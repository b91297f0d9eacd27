package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parity-relay/bridge/contracts"
	"github.com/parity-relay/bridge/orderedstream"
)

// MainToSideSignResult is what a MainToSideSign job resolves to. When
// AlreadySigned is true no transaction was sent — some other run of this
// same authority (or a prior crash-and-restart) already recorded this
// deposit, and TxHash is the zero hash.
type MainToSideSignResult struct {
	TxHash        common.Hash
	AlreadySigned bool
}

// MainToSideSigner is the subset of *contracts.Side a MainToSideSign job
// needs.
type MainToSideSigner interface {
	HasAuthoritySignedMainToSide(ctx context.Context, authority, recipient common.Address, value *big.Int, mainTxHash common.Hash) (bool, error)
	Deposit(ctx context.Context, recipient common.Address, value *big.Int, mainTxHash common.Hash) (common.Hash, error)
}

// NewMainToSideSign builds the MainToSideSign job: for a single Deposit
// log on Main, record this authority's vote on Side that the deposit
// happened, unless it already has.
//
// S0 AwaitAlreadySigned / S1 AwaitTxSent map directly onto the two
// sequential calls below.
func NewMainToSideSign(ctx context.Context, log types.Log, authority common.Address, side MainToSideSigner) orderedstream.Job[MainToSideSignResult] {
	return orderedstream.NewJob(ctx, func(ctx context.Context) (MainToSideSignResult, error) {
		ev, err := contracts.DecodeDeposit(log)
		if err != nil {
			return MainToSideSignResult{}, err
		}
		mainTxHash := log.TxHash

		already, err := side.HasAuthoritySignedMainToSide(ctx, authority, ev.Recipient, ev.Value, mainTxHash)
		if err != nil {
			return MainToSideSignResult{}, err
		}
		if already {
			return MainToSideSignResult{AlreadySigned: true}, nil
		}

		txHash, err := side.Deposit(ctx, ev.Recipient, ev.Value, mainTxHash)
		if err != nil {
			return MainToSideSignResult{}, err
		}
		return MainToSideSignResult{TxHash: txHash}, nil
	})
}
