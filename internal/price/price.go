// Package price implements the confidence-interval-adjusted fee engine (C3):
// converting a foreign-chain gas requirement into a conservative, always
// round-up fee denominated in a locally-priced asset, using two Pyth-style
// price quotes.
package price

import (
	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
)

// Quote is a Pyth-style price with a signed exponent and a confidence
// interval, both expressed in the same base units.
type Quote struct {
	AssetID     string
	Price       int64
	Conf        uint64
	Expo        int32
	PublishTime int64
}

// Rate holds the engine's input prices and decimals for a single fee
// computation.
type Rate struct {
	// This is the price of the asset the caller is paying with.
	This Quote
	// Into is the price of the foreign chain's native gas token.
	Into Quote
	// DecimalsThis / DecimalsInto are the respective token decimals.
	DecimalsThis uint8
	DecimalsInto uint8
	// FeeRateNum / FeeRateDenom apply a chain-local multiplicative markup on
	// top of the market conversion.
	FeeRateNum   uint64
	FeeRateDenom uint64
}

// maxExponentMagnitude bounds |e| so that 10^|e| stays within what this
// engine is willing to compute; beyond this the request is rejected rather
// than attempting an unbounded power computation.
const maxExponentMagnitude = 77 // 10^77 is the largest power of ten that fits in 256 bits

// ten is reused as the base for repeated multiplication.
var ten = uint256.NewInt(10)

// pow10 returns 10^n as a uint256, erroring if the result would overflow.
func pow10(n int) (*uint256.Int, error) {
	result := uint256.NewInt(1)
	for i := 0; i < n; i++ {
		overflow := result.MulOverflow(result, ten)
		if overflow {
			return nil, &errs.Overflow{Reason: "10^n exceeds 256 bits"}
		}
	}
	return result, nil
}

// ComputeFee converts the foreign-gas quantity q (in the foreign chain's
// smallest native unit) into a fee denominated in the local payment asset,
// per spec §4.3 steps 1-6. The result is always rounded up.
func ComputeFee(q *uint256.Int, r Rate) (*uint256.Int, error) {
	if r.This.Price <= 0 {
		return nil, &errs.NegativePrice{AssetID: r.This.AssetID}
	}
	if r.Into.Price <= 0 {
		return nil, &errs.NegativePrice{AssetID: r.Into.AssetID}
	}

	// Step 1: confidence must be strictly below price.
	if uint64(r.This.Price) <= r.This.Conf {
		return nil, &errs.ConfidenceIntervalTooLarge{AssetID: r.This.AssetID}
	}
	if uint64(r.Into.Price) <= r.Into.Conf {
		return nil, &errs.ConfidenceIntervalTooLarge{AssetID: r.Into.AssetID}
	}

	// Step 2: pessimistic rate — held asset undervalued, owed asset overvalued.
	thisLow := uint64(r.This.Price) - r.This.Conf
	intoHigh := uint64(r.Into.Price) + r.Into.Conf

	rNum := uint256.NewInt(thisLow)
	rDenom := uint256.NewInt(intoHigh)

	// Step 3: combined exponent.
	e := int(r.This.Expo) - int(r.Into.Expo) + int(r.DecimalsInto) - int(r.DecimalsThis)
	if e > maxExponentMagnitude || e < -maxExponentMagnitude {
		return nil, &errs.ExponentTooLarge{Exponent: int32(e)}
	}

	// Step 4: fold exponent into numerator or denominator.
	if e < 0 {
		factor, err := pow10(-e)
		if err != nil {
			return nil, err
		}
		if overflow := rDenom.MulOverflow(rDenom, factor); overflow {
			return nil, &errs.Overflow{Reason: "denominator overflow applying exponent"}
		}
	} else if e > 0 {
		factor, err := pow10(e)
		if err != nil {
			return nil, err
		}
		if overflow := rNum.MulOverflow(rNum, factor); overflow {
			return nil, &errs.Overflow{Reason: "numerator overflow applying exponent"}
		}
	}

	// Step 5: fee = ceil( q * rNum * feeRateNum / (rDenom * feeRateDenom) ).
	feeRateNum := uint256.NewInt(r.FeeRateNum)
	feeRateDenom := uint256.NewInt(r.FeeRateDenom)

	numerator := new(uint256.Int)
	if overflow := numerator.MulOverflow(q, rNum); overflow {
		return nil, &errs.Overflow{Reason: "q * rate numerator overflow"}
	}
	if overflow := numerator.MulOverflow(numerator, feeRateNum); overflow {
		return nil, &errs.Overflow{Reason: "numerator * fee rate overflow"}
	}

	denominator := new(uint256.Int)
	if overflow := denominator.MulOverflow(rDenom, feeRateDenom); overflow {
		return nil, &errs.Overflow{Reason: "rate denominator * fee rate overflow"}
	}
	if denominator.IsZero() {
		return nil, &errs.Overflow{Reason: "zero denominator in fee computation"}
	}

	fee, rem := new(uint256.Int).DivMod(numerator, denominator, new(uint256.Int))
	if !rem.IsZero() {
		one := uint256.NewInt(1)
		if overflow := fee.AddOverflow(fee, one); overflow {
			return nil, &errs.Overflow{Reason: "ceil rounding overflow"}
		}
	}
	return fee, nil
}
