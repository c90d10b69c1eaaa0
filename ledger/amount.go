package ledger

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

const (
	NativeBits = 128
	TokenBits  = 256

	// the first minted token id is TokenIdSeed + 1
	TokenIdSeed = 10000

	// registered fungible assets hold 1000 base units per approvable token
	DepositScale = 1000
)

func zero() *uint256.Int {
	return uint256.NewInt(0)
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return zero()
	}
	return v.Clone()
}

// ParseAmount reads a base-10 unsigned amount of at most bits width. The
// empty string is zero.
func ParseAmount(s string, bits int) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zero(), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %s", s)
	}
	if v.BitLen() > bits {
		return nil, errors.Errorf("amount %s exceeds %d bits", s, bits)
	}
	return v, nil
}
