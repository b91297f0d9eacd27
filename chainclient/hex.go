package chainclient

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func hexBytes(b []byte) hexutil.Bytes   { return hexutil.Bytes(b) }
func hexUint64(v uint64) hexutil.Uint64 { return hexutil.Uint64(v) }

func hexBigInt(v *big.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	b := hexutil.Big(*v)
	return &b
}
