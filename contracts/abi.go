// Package contracts provides thin, hand-written accounts/abi bindings for
// the Main and Side bridge contracts. The Solidity source and its ABI
// encoding scheme are fixed, external dependencies -- this package is just
// the minimal Go-side calling convention the relay engine needs, grounded
// on accounts/abi/bind's usual generated-binding shape.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const mainABIJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"requiredSignatures","type":"uint256"},
		{"name":"authorities","type":"address[]"}
	]},
	{"type":"event","name":"Deposit","inputs":[
		{"name":"recipient","type":"address","indexed":false},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"function","name":"withdraws","stateMutability":"view","inputs":[
		{"name":"sideTxHash","type":"bytes32"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
		{"name":"v","type":"uint8[]"},
		{"name":"r","type":"bytes32[]"},
		{"name":"s","type":"bytes32[]"},
		{"name":"message","type":"bytes"}
	],"outputs":[]}
]`

const sideABIJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"requiredSignatures","type":"uint256"},
		{"name":"authorities","type":"address[]"}
	]},
	{"type":"event","name":"Withdraw","inputs":[
		{"name":"recipient","type":"address","indexed":false},
		{"name":"value","type":"uint256","indexed":false},
		{"name":"mainGasPrice","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"CollectedSignatures","inputs":[
		{"name":"authorityResponsibleForRelay","type":"address","indexed":false},
		{"name":"messageHash","type":"bytes32","indexed":false}
	]},
	{"type":"function","name":"hasAuthoritySignedMainToSide","stateMutability":"view","inputs":[
		{"name":"authority","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"mainTxHash","type":"bytes32"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[
		{"name":"recipient","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"mainTxHash","type":"bytes32"}
	],"outputs":[]},
	{"type":"function","name":"sign","stateMutability":"view","inputs":[
		{"name":"message","type":"bytes"}
	],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"submitSignature","stateMutability":"nonpayable","inputs":[
		{"name":"signature","type":"bytes"},
		{"name":"message","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"message","stateMutability":"view","inputs":[
		{"name":"messageHash","type":"bytes32"}
	],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"signature","stateMutability":"view","inputs":[
		{"name":"messageHash","type":"bytes32"},
		{"name":"index","type":"uint256"}
	],"outputs":[{"name":"","type":"bytes"}]}
]`

func mustParseABI(json string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic("contracts: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

var (
	mainABI = mustParseABI(mainABIJSON)
	sideABI = mustParseABI(sideABIJSON)
)

// MainABI exposes the Main contract's parsed ABI, notably its constructor,
// to deploylib; everything else in this package calls mainABI directly.
func MainABI() abi.ABI { return mainABI }

// SideABI exposes the Side contract's parsed ABI, notably its constructor,
// to deploylib.
func SideABI() abi.ABI { return sideABI }
