package relay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/contracts"
	"github.com/parity-relay/bridge/orderedstream"
)

// SideToMainSignaturesSide is the subset of *contracts.Side a
// SideToMainSignatures job needs to recover the original message and its
// collected signatures.
type SideToMainSignaturesSide interface {
	Message(ctx context.Context, messageHash common.Hash) ([]byte, error)
	SignatureAt(ctx context.Context, messageHash common.Hash, index uint64) ([]byte, error)
}

// SideToMainSignaturesMain is the subset of *contracts.Main a
// SideToMainSignatures job needs to check and perform the final relay.
type SideToMainSignaturesMain interface {
	Withdraws(ctx context.Context, sideTxHash common.Hash) (bool, error)
	Withdraw(ctx context.Context, v []uint8, r, s []common.Hash, message []byte) (common.Hash, error)
}

// ReceiptPoller is the subset of *chainclient.Client a SideToMainSignatures
// job needs to wait for its withdraw transaction to be mined.
type ReceiptPoller interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// NewSideToMainSignatures builds the SideToMainSignatures job: for a
// single CollectedSignatures log on Side, the one authority
// responsible for relaying it fetches the original message and all N
// collected signatures, then replays them to Main as a withdraw()
// transaction and waits for it to be mined.
//
// The job resolves to nil, nil whenever this authority isn't the one
// responsible for relaying (CheckResponsibility), or the withdrawal has
// already been relayed by someone else (AwaitIsRelayed) — both are
// successful no-ops, not errors, matching the "at-least-once, never
// exactly-once" delivery contract.
func NewSideToMainSignatures(
	ctx context.Context,
	log types.Log,
	authority common.Address,
	requiredSignatures uint64,
	receiptPollInterval time.Duration,
	main SideToMainSignaturesMain,
	side SideToMainSignaturesSide,
	receipts ReceiptPoller,
) orderedstream.Job[*types.Receipt] {
	return orderedstream.NewJob(ctx, func(ctx context.Context) (*types.Receipt, error) {
		ev, err := contracts.DecodeCollectedSignatures(log)
		if err != nil {
			return nil, err
		}

		if ev.AuthorityResponsibleForRelay != authority {
			return nil, nil
		}

		messageBytes, err := side.Message(ctx, ev.MessageHash)
		if err != nil {
			return nil, err
		}
		msg, err := DecodeMessageToMain(messageBytes)
		if err != nil {
			return nil, bridgeerr.New(bridgeerr.AbiDecode, "decoding recovered MessageToMain", err)
		}

		alreadyRelayed, err := main.Withdraws(ctx, msg.SideTxHash)
		if err != nil {
			return nil, err
		}
		if alreadyRelayed {
			return nil, nil
		}

		sigs := make([]Signature, requiredSignatures)
		g, gctx := errgroup.WithContext(ctx)
		for i := range sigs {
			i := i
			g.Go(func() error {
				raw, err := side.SignatureAt(gctx, ev.MessageHash, uint64(i))
				if err != nil {
					return err
				}
				sig, err := DecodeSignature(raw)
				if err != nil {
					return bridgeerr.New(bridgeerr.Logic, "signature returned malformed signature", err)
				}
				sigs[i] = sig
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		v, r, s := SplitSignatures(sigs)
		mainTxHash, err := main.Withdraw(ctx, v, r, s, messageBytes)
		if err != nil {
			return nil, err
		}

		return awaitReceipt(ctx, receipts, mainTxHash, receiptPollInterval)
	})
}

// awaitReceipt polls for mainTxHash's receipt, the AwaitTxReceipt state:
// TransactionReceipt returns (nil, nil) while the transaction is still
// pending, so this loops on a ticker rather than treating that as done.
func awaitReceipt(ctx context.Context, receipts ReceiptPoller, txHash common.Hash, pollInterval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := receipts.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
