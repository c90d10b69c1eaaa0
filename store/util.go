package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

func tsToBytes(ts time.Time) []byte {
	buf := make([]byte, 8)
	d := ts.UnixNano()
	binary.BigEndian.PutUint64(buf, uint64(d))
	return buf
}

func timedKey(prefix string, ts time.Time, id string) []byte {
	key := append([]byte(prefix), tsToBytes(ts)...)
	return append(key, id...)
}

func encodeAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func decodeAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(s)
}

// pairKey length-prefixes the owner so that no two pairs share a key,
// whatever characters the ids contain.
func pairKey(owner, spender string) string {
	return fmt.Sprintf("%d:%s:%s", len(owner), owner, spender)
}
