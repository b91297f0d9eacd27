package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/parity-relay/bridge/bridgeerr"
)

// Topic hashes (log.Topics[0]) for the three events the relay engine's log
// streams filter on. These are keccak256 of the canonical event signature
// and don't depend on argument names or indexed-ness.
var (
	DepositTopic             = crypto.Keccak256Hash([]byte("Deposit(address,uint256)"))
	WithdrawTopic            = crypto.Keccak256Hash([]byte("Withdraw(address,uint256,uint256)"))
	CollectedSignaturesTopic = crypto.Keccak256Hash([]byte("CollectedSignatures(address,bytes32)"))
)

// DepositEvent is Main's Deposit log, the trigger for MainToSideSign.
type DepositEvent struct {
	Recipient common.Address
	Value     *big.Int
}

// DecodeDeposit unpacks a Main Deposit log.
func DecodeDeposit(log types.Log) (DepositEvent, error) {
	var ev DepositEvent
	if err := mainABI.UnpackIntoInterface(&ev, "Deposit", log.Data); err != nil {
		return ev, bridgeerr.New(bridgeerr.AbiDecode, "decoding Deposit event", err)
	}
	return ev, nil
}

// WithdrawEvent is Side's Withdraw log, the trigger for SideToMainSign.
type WithdrawEvent struct {
	Recipient    common.Address
	Value        *big.Int
	MainGasPrice *big.Int
}

// DecodeWithdraw unpacks a Side Withdraw log.
func DecodeWithdraw(log types.Log) (WithdrawEvent, error) {
	var ev WithdrawEvent
	if err := sideABI.UnpackIntoInterface(&ev, "Withdraw", log.Data); err != nil {
		return ev, bridgeerr.New(bridgeerr.AbiDecode, "decoding Withdraw event", err)
	}
	return ev, nil
}

// CollectedSignaturesEvent is Side's CollectedSignatures log, the trigger
// for SideToMainSignatures: authorityResponsibleForRelay names the single
// authority CheckResponsibility designates to submit the withdraw.
type CollectedSignaturesEvent struct {
	AuthorityResponsibleForRelay common.Address
	MessageHash                  common.Hash
}

// DecodeCollectedSignatures unpacks a Side CollectedSignatures log.
func DecodeCollectedSignatures(log types.Log) (CollectedSignaturesEvent, error) {
	var ev CollectedSignaturesEvent
	if err := sideABI.UnpackIntoInterface(&ev, "CollectedSignatures", log.Data); err != nil {
		return ev, bridgeerr.New(bridgeerr.AbiDecode, "decoding CollectedSignatures event", err)
	}
	return ev, nil
}
