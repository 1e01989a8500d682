package mathutil

import (
	"github.com/shopspring/decimal"
)

// TenThousands ...
var TenThousands = uint64(10000)

// BasisPointsOf returns the share of the amount expressed in basis points (ie.
// 100 = 1%), rounded down.
func BasisPointsOf(amount, basisPoints uint64) uint64 {
	share := Dec(amount).Mul(Dec(basisPoints)).Div(Dec(TenThousands))
	return share.Floor().BigInt().Uint64()
}

// LessFee calculates an amount with a fee subtracted given an amount and a fee
// expressed in basis point (ie. 0.25% = 25)
func LessFee(amount, feeAsBasisPoint uint64) (withFee, calculatedFee uint64) {
	calculatedFee = BasisPointsOf(amount, feeAsBasisPoint)
	return amount - calculatedFee, calculatedFee
}

// ToBasisPoints returns the ratio part/total in basis points.
func ToBasisPoints(part, total uint64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return Dec(part).Mul(Dec(TenThousands)).Div(Dec(total))
}
