// Package deploylib implements the one-shot deployment flow cmd/deploy
// drives: deploy the Main contract, deploy the Side contract, then seed a
// fresh statedb.State from both transaction receipts, mirroring
// original_source/deploy/src/main.rs and src/app.rs's State::from_transaction_receipts.
package deploylib

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/chainclient"
	"github.com/parity-relay/bridge/statedb"
)

// Bytecode is the compiled contract init code for one side of the bridge.
// Compiling the Solidity source is out of scope here; an operator supplies
// the already-compiled bytecode (e.g. loaded from a build artifact).
type Bytecode []byte

// Deployed is the result of deploying one contract: its address, the
// transaction that created it, and the receipt confirming it landed.
type Deployed struct {
	Address common.Address
	TxHash  common.Hash
	Receipt *types.Receipt
}

// DumpInfo mirrors original_source/deploy/src/main.rs's dump_info call: a
// small JSON file an operator can hand to the counterparty authority when
// wiring up config files by hand.
func (d Deployed) DumpInfo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return bridgeerr.New(bridgeerr.IO, fmt.Sprintf("creating deployment dump %s", path), err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ContractAddress common.Address `json:"contract_address"`
		TransactionHash common.Hash    `json:"transaction_hash"`
		BlockNumber     uint64         `json:"block_number"`
	}{
		ContractAddress: d.Address,
		TransactionHash: d.TxHash,
		BlockNumber:     d.Receipt.BlockNumber.Uint64(),
	})
}

// Deploy sends a contract-creation transaction combining bytecode with
// constructorArgs ABI-encoded per constructorABI, then blocks (polling
// every receiptPollInterval) until it's mined.
func Deploy(ctx context.Context, client *chainclient.Client, constructorABI abi.ABI, bytecode Bytecode, constructorArgs []interface{}, from common.Address, gas uint64, gasPrice *big.Int, receiptPollInterval time.Duration) (Deployed, error) {
	packedArgs, err := constructorABI.Pack("", constructorArgs...)
	if err != nil {
		return Deployed{}, bridgeerr.New(bridgeerr.AbiDecode, "packing constructor arguments", err)
	}

	data := append(append([]byte{}, bytecode...), packedArgs...)

	txHash, err := client.DeployContract(ctx, from, data, gas, gasPrice)
	if err != nil {
		return Deployed{}, bridgeerr.New(bridgeerr.Contract, "sending deployment transaction", err)
	}

	receipt, err := awaitReceipt(ctx, client, txHash, receiptPollInterval)
	if err != nil {
		return Deployed{}, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return Deployed{}, bridgeerr.New(bridgeerr.Contract, "deployment receipt carries no contract address", nil)
	}

	return Deployed{Address: receipt.ContractAddress, TxHash: txHash, Receipt: receipt}, nil
}

// InitialState builds the State a fresh deployment seeds the database
// with: all three cursors start at the block their chain's contract was
// deployed at (Main for main-to-side, Side for the two side-to-main ones), so
// the daemon's first poll only ever looks forward (original_source/src/app.rs's
// Database{mainnet_deploy, checked_deposit_relay, ...} all set from the two
// deployment receipts).
func InitialState(main, side Deployed) statedb.State {
	return statedb.State{
		MainContractAddress:             main.Address,
		SideContractAddress:             side.Address,
		MainDeployedAtBlock:             main.Receipt.BlockNumber.Uint64(),
		SideDeployedAtBlock:             side.Receipt.BlockNumber.Uint64(),
		LastMainToSideSignAtBlock:       main.Receipt.BlockNumber.Uint64(),
		LastSideToMainSignAtBlock:       side.Receipt.BlockNumber.Uint64(),
		LastSideToMainSignaturesAtBlock: side.Receipt.BlockNumber.Uint64(),
	}
}

func awaitReceipt(ctx context.Context, client *chainclient.Client, txHash common.Hash, pollInterval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
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
