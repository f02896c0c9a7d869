package internal

import (
	"fmt"
	"math/big"
	"strings"
)

// use Base58 (like Bitcoin)
const (
	alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	base     = 58
)

var bigBase = big.NewInt(base)
var bigZero = big.NewInt(0)
var maxUint64 = new(big.Int).SetUint64(^uint64(0))

func EncodeID(id uint64) string {
	if id == 0 {
		return string(alphabet[0])
	}

	num := new(big.Int).SetUint64(id)

	var result strings.Builder
	mod := new(big.Int)
	for num.Cmp(bigZero) > 0 {
		num.DivMod(num, bigBase, mod)
		result.WriteByte(alphabet[mod.Int64()])
	}

	b := []byte(result.String())
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}

	return string(b)
}

// DecodeID reverses EncodeID. Unknown characters and values that overflow
// uint64 are rejected.
func DecodeID(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}
	num := new(big.Int)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return 0, fmt.Errorf("invalid base58 character %q", s[i])
		}
		num.Mul(num, bigBase)
		num.Add(num, big.NewInt(int64(idx)))
		if num.Cmp(maxUint64) > 0 {
			return 0, fmt.Errorf("id out of range")
		}
	}
	return num.Uint64(), nil
}
