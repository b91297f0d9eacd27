package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parity-relay/bridge/bridgeerr"
	"github.com/parity-relay/bridge/chainclient"
)

// Side is a thin, hand-packed binding to the Side-chain bridge contract: the
// half of the pair that the withdraw side of a relay talks to, and that the
// deposit side writes to once a Main deposit is confirmed.
type Side struct {
	client   *chainclient.Client
	address  common.Address
	from     common.Address
	gas      uint64
	gasPrice *big.Int
}

// NewSide returns a Side bound to address, sending transactions as from
// with the given gas and gasPrice.
func NewSide(client *chainclient.Client, address, from common.Address, gas uint64, gasPrice *big.Int) *Side {
	return &Side{client: client, address: address, from: from, gas: gas, gasPrice: gasPrice}
}

// HasAuthoritySignedMainToSide reports whether this authority has already
// deposited for this exact (recipient, value, main_tx_hash) triple.
func (s *Side) HasAuthoritySignedMainToSide(ctx context.Context, authority, recipient common.Address, value *big.Int, mainTxHash common.Hash) (bool, error) {
	calldata, err := sideABI.Pack("hasAuthoritySignedMainToSide", authority, recipient, value, mainTxHash)
	if err != nil {
		return false, bridgeerr.New(bridgeerr.AbiDecode, "packing hasAuthoritySignedMainToSide call", err)
	}
	out, err := s.client.CallContract(ctx, s.address, calldata)
	if err != nil {
		return false, bridgeerr.New(bridgeerr.Contract, "calling hasAuthoritySignedMainToSide", err)
	}
	var signed bool
	if err := sideABI.UnpackIntoInterface(&signed, "hasAuthoritySignedMainToSide", out); err != nil {
		return false, bridgeerr.New(bridgeerr.AbiDecode, "decoding hasAuthoritySignedMainToSide result", err)
	}
	return signed, nil
}

// Deposit records this authority's vote that (recipient, value) was
// deposited on Main in mainTxHash. Returns the side-chain transaction hash.
func (s *Side) Deposit(ctx context.Context, recipient common.Address, value *big.Int, mainTxHash common.Hash) (common.Hash, error) {
	calldata, err := sideABI.Pack("deposit", recipient, value, mainTxHash)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.AbiDecode, "packing deposit call", err)
	}
	txHash, err := s.client.SendTransaction(ctx, s.from, s.address, calldata, s.gas, s.gasPrice)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.Contract, "sending deposit transaction", err)
	}
	return txHash, nil
}

// Sign asks the Side contract (backed by this authority's own node) to
// sign message, the
// 116-byte MessageToMain encoding, and return the resulting raw 65-byte
// r||s||v signature. Decoding it into relay.Signature is the caller's job,
// to keep this package free of a dependency on package relay.
func (s *Side) Sign(ctx context.Context, message []byte) ([]byte, error) {
	calldata, err := sideABI.Pack("sign", message)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "packing sign call", err)
	}
	out, err := s.client.CallContract(ctx, s.address, calldata)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.Contract, "calling sign", err)
	}
	var raw []byte
	if err := sideABI.UnpackIntoInterface(&raw, "sign", out); err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "decoding sign result", err)
	}
	return raw, nil
}

// SubmitSignature publishes this authority's raw 65-byte signature over
// message so it can later be collected by SideToMainSignatures. Returns
// the side-chain transaction hash.
func (s *Side) SubmitSignature(ctx context.Context, sig []byte, message []byte) (common.Hash, error) {
	calldata, err := sideABI.Pack("submitSignature", sig, message)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.AbiDecode, "packing submitSignature call", err)
	}
	txHash, err := s.client.SendTransaction(ctx, s.from, s.address, calldata, s.gas, s.gasPrice)
	if err != nil {
		return common.Hash{}, bridgeerr.New(bridgeerr.Contract, "sending submitSignature transaction", err)
	}
	return txHash, nil
}

// Message fetches the MessageToMain bytes the contract recorded for
// messageHash, used by SideToMainSignatures to recover what was actually
// signed.
func (s *Side) Message(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	calldata, err := sideABI.Pack("message", messageHash)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "packing message call", err)
	}
	out, err := s.client.CallContract(ctx, s.address, calldata)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.Contract, "calling message", err)
	}
	var raw []byte
	if err := sideABI.UnpackIntoInterface(&raw, "message", out); err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "decoding message result", err)
	}
	return raw, nil
}

// SignatureAt fetches the raw index'th signature collected for
// messageHash, used by SideToMainSignatures' fan-out across all N
// authorities.
func (s *Side) SignatureAt(ctx context.Context, messageHash common.Hash, index uint64) ([]byte, error) {
	calldata, err := sideABI.Pack("signature", messageHash, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "packing signature call", err)
	}
	out, err := s.client.CallContract(ctx, s.address, calldata)
	if err != nil {
		return nil, bridgeerr.New(bridgeerr.Contract, "calling signature", err)
	}
	var raw []byte
	if err := sideABI.UnpackIntoInterface(&raw, "signature", out); err != nil {
		return nil, bridgeerr.New(bridgeerr.AbiDecode, "decoding signature result", err)
	}
	return raw, nil
}
