package mathutil

import (
	"errors"
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPrecision is the number of decimals of the ledger's native unit.
	DefaultPrecision = 8
)

var (
	//BigOne represents a single unit of an asset with precision 8
	BigOne = uint64(math.Pow10(DefaultPrecision))
	//BigOneDecimal represents a single unit of an asset with precision 8 as decimal.Decimal
	BigOneDecimal = decimal.NewFromInt(int64(BigOne))

	// ErrNegativeAmount ...
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrAmountTooPrecise ...
	ErrAmountTooPrecise = errors.New("amount exceeds the precision of the unit")
	// ErrAmountOverflow ...
	ErrAmountOverflow = errors.New("amount overflows 64 bits")
)

// Dec converts an uint64 amount to decimal.Decimal
func Dec(x uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
}

// ToBaseUnits converts an amount expressed in units of the given precision
// (ie. 0.1) into base units (ie. 10000000 for precision 8).
func ToBaseUnits(amount decimal.Decimal, precision int32) (uint64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	shifted := amount.Shift(precision)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrAmountTooPrecise
	}
	v := shifted.BigInt()
	if !v.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return v.Uint64(), nil
}

// FromBaseUnits converts an amount in base units to units of the given
// precision.
func FromBaseUnits(amount uint64, precision int32) decimal.Decimal {
	return Dec(amount).Shift(-precision)
}

// Sub returns x - y, or 0 if y > x.
func Sub(x, y uint64) uint64 {
	if y > x {
		return 0
	}
	return x - y
}

// Add returns x + y and whether the sum overflows 64 bits.
func Add(x, y uint64) (uint64, bool) {
	sum, carry := bits.Add64(x, y, 0)
	return sum, carry != 0
}

// Mul returns x * y and whether the product overflows 64 bits.
func Mul(x, y uint64) (uint64, bool) {
	z := new(big.Int).Mul(new(big.Int).SetUint64(x), new(big.Int).SetUint64(y))
	if !z.IsUint64() {
		return 0, true
	}
	return z.Uint64(), false
}
