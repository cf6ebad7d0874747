package price

import (
	"testing"

	"github.com/holiman/uint256"
)

func baseRate() Rate {
	return Rate{
		This:         Quote{AssetID: "wrap.testnet", Price: 1, Conf: 0, Expo: -24},
		Into:         Quote{AssetID: "weth.fakes.testnet", Price: 1, Conf: 0, Expo: -20},
		DecimalsThis: 24,
		DecimalsInto: 18,
		FeeRateNum:   120,
		FeeRateDenom: 100,
	}
}

func TestComputeFeeHappyPath(t *testing.T) {
	q := uint256.NewInt(21000 * 100) // (gas + transfer_gas) * max_fee_per_gas, roughly
	fee, err := ComputeFee(q, baseRate())
	if err != nil {
		t.Fatalf("ComputeFee: %v", err)
	}
	if fee.IsZero() {
		t.Fatal("expected non-zero fee")
	}
}

func TestComputeFeeConfidenceIntervalTooLarge(t *testing.T) {
	r := baseRate()
	r.This.Conf = uint64(r.This.Price) // conf == price triggers the boundary
	_, err := ComputeFee(uint256.NewInt(1), r)
	if err == nil {
		t.Fatal("expected ConfidenceIntervalTooLarge error")
	}
}

func TestComputeFeeExponentTooLarge(t *testing.T) {
	r := baseRate()
	r.This.Expo = 100 // combined exponent exceeds maxExponentMagnitude
	_, err := ComputeFee(uint256.NewInt(1), r)
	if err == nil {
		t.Fatal("expected ExponentTooLarge error")
	}
}

func TestComputeFeeAlwaysRoundsUp(t *testing.T) {
	r := Rate{
		This:         Quote{AssetID: "a", Price: 3, Conf: 0, Expo: 0},
		Into:         Quote{AssetID: "b", Price: 1, Conf: 0, Expo: 0},
		DecimalsThis: 0,
		DecimalsInto: 0,
		FeeRateNum:   1,
		FeeRateDenom: 1,
	}
	// q=1: fee = ceil(1*3/1) = 3, exact, no rounding needed to prove.
	// Use a case requiring a non-exact ceiling instead:
	r.FeeRateNum = 1
	r.FeeRateDenom = 7
	fee, err := ComputeFee(uint256.NewInt(10), r)
	if err != nil {
		t.Fatalf("ComputeFee: %v", err)
	}
	// 10*3*1 / (1*7) = 30/7 = 4.28... -> ceil = 5
	if fee.Uint64() != 5 {
		t.Fatalf("fee = %d, want 5 (ceil rounding)", fee.Uint64())
	}
}

func TestComputeFeeRejectsNonPositivePrice(t *testing.T) {
	r := baseRate()
	r.This.Price = 0
	if _, err := ComputeFee(uint256.NewInt(1), r); err == nil {
		t.Fatal("expected error for non-positive price")
	}
}
