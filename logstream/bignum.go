package logstream

import "math/big"

func blockNumberToBigInt(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}
