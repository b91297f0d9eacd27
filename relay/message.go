// Package relay implements the per-event relay state machines (MainToSideSign,
// SideToMainSign, SideToMainSignatures) and the wire format they share for
// carrying a withdrawal from Side back to Main.
package relay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// MessageToMainLen is the fixed, bit-exact size of an encoded MessageToMain.
const MessageToMainLen = 20 + 32 + 32 + 32

// MessageToMain is the message an authority signs off-chain and that, once
// enough signatures are collected, is replayed to the Main contract to
// authorize a withdrawal. The wire layout is fixed and consumed directly by
// the Side and Main contracts, so field order and width must never change.
type MessageToMain struct {
	Recipient     common.Address
	Value         *uint256.Int
	SideTxHash    common.Hash
	MainGasPrice  *uint256.Int
}

// Encode serializes m to its 116-byte wire form:
// recipient(20) || value(32, big-endian) || side_tx_hash(32) || main_gas_price(32, big-endian).
func (m *MessageToMain) Encode() []byte {
	buf := make([]byte, 0, MessageToMainLen)
	buf = append(buf, m.Recipient.Bytes()...)
	v := m.Value.Bytes32()
	buf = append(buf, v[:]...)
	buf = append(buf, m.SideTxHash.Bytes()...)
	g := m.MainGasPrice.Bytes32()
	buf = append(buf, g[:]...)
	return buf
}

// DecodeMessageToMain parses the 116-byte wire form written by Encode.
func DecodeMessageToMain(b []byte) (*MessageToMain, error) {
	if len(b) != MessageToMainLen {
		return nil, fmt.Errorf("relay: message_to_main has wrong length %d, want %d", len(b), MessageToMainLen)
	}
	m := &MessageToMain{
		Value:        new(uint256.Int),
		MainGasPrice: new(uint256.Int),
	}
	m.Recipient = common.BytesToAddress(b[0:20])
	m.Value.SetBytes(b[20:52])
	m.SideTxHash = common.BytesToHash(b[52:84])
	m.MainGasPrice.SetBytes(b[84:116])
	return m, nil
}

// Keccak256 returns the hash authorities sign over and the contracts index
// collected signatures by.
func (m *MessageToMain) Keccak256() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

// SignatureLen is the fixed size of a 65-byte r||s||v ECDSA signature.
const SignatureLen = 65

// Signature is a 65-byte r||s||v signature, the layout produced by
// go-ethereum's crypto.Sign and expected by the Side/Main contracts.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// DecodeSignature parses a 65-byte r||s||v signature as returned by the
// Side contract's signature(hash, index) accessor.
func DecodeSignature(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLen {
		return sig, fmt.Errorf("relay: signature has wrong length %d, want %d", len(b), SignatureLen)
	}
	copy(sig.R[:], b[0:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	return sig, nil
}

// Encode serializes the signature back to its 65-byte r||s||v form.
func (s Signature) Encode() []byte {
	out := make([]byte, 0, SignatureLen)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	out = append(out, s.V)
	return out
}

// SplitSignatures decomposes an ordered slice of signatures into the three
// equal-length v/r/s arrays the Main contract's withdraw(v[], r[], s[], message)
// expects, ordered by authority index (the order signatures were collected in).
func SplitSignatures(sigs []Signature) (v []uint8, r []common.Hash, s []common.Hash) {
	v = make([]uint8, len(sigs))
	r = make([]common.Hash, len(sigs))
	s = make([]common.Hash, len(sigs))
	for i, sig := range sigs {
		v[i] = sig.V
		r[i] = common.BytesToHash(sig.R[:])
		s[i] = common.BytesToHash(sig.S[:])
	}
	return v, r, s
}
