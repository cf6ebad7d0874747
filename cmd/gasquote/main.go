// Command gasquote fetches a live price quote from the gas station's oracle
// and prints the fee the engine would charge for a given foreign-gas
// quantity, for manual sanity checking against the running service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/oracle"
	"github.com/umbra-network/xchain-gas-station/internal/price"
)

func main() {
	oracleURL := flag.String("oracle-url", "http://localhost:3040", "price oracle base URL")
	thisAsset := flag.String("this-asset", "wrap.testnet", "oracle asset id of the asset the caller pays with")
	intoAsset := flag.String("into-asset", "", "oracle asset id of the foreign chain's native gas token")
	decimalsThis := flag.Uint("decimals-this", 24, "decimals of the local payment asset")
	decimalsInto := flag.Uint("decimals-into", 18, "decimals of the foreign chain's native asset")
	feeRateNum := flag.Uint64("fee-rate-num", 120, "fee rate markup numerator")
	feeRateDenom := flag.Uint64("fee-rate-denom", 100, "fee rate markup denominator")
	gas := flag.Uint64("gas", 21000, "gas limit of the user's transaction")
	transferGas := flag.Uint64("transfer-gas", 21000, "gas limit of the synthesized paymaster leg")
	maxFeePerGas := flag.Uint64("max-fee-per-gas", 0, "max_fee_per_gas of the user's transaction, in the foreign chain's smallest unit")
	flag.Parse()

	if *intoAsset == "" {
		fmt.Fprintln(os.Stderr, "gasquote: -into-asset is required")
		os.Exit(2)
	}

	client := oracle.NewHTTPClient(*oracleURL)
	priceData, err := client.GetPriceData(context.Background(), []string{*thisAsset, *intoAsset})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasquote: fetching price data: %v\n", err)
		os.Exit(1)
	}

	thisQuote, err := priceData.Lookup(*thisAsset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasquote: %v\n", err)
		os.Exit(1)
	}
	intoQuote, err := priceData.Lookup(*intoAsset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasquote: %v\n", err)
		os.Exit(1)
	}

	gasTotal := uint256.NewInt(*gas + *transferGas)
	q := new(uint256.Int).Mul(gasTotal, uint256.NewInt(*maxFeePerGas))

	fee, err := price.ComputeFee(q, price.Rate{
		This:         thisQuote,
		Into:         intoQuote,
		DecimalsThis: uint8(*decimalsThis),
		DecimalsInto: uint8(*decimalsInto),
		FeeRateNum:   *feeRateNum,
		FeeRateDenom: *feeRateDenom,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasquote: computing fee: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("this asset  (%s): price=%d conf=%d expo=%d\n", *thisAsset, thisQuote.Price, thisQuote.Conf, thisQuote.Expo)
	fmt.Printf("into asset  (%s): price=%d conf=%d expo=%d\n", *intoAsset, intoQuote.Price, intoQuote.Conf, intoQuote.Expo)
	fmt.Printf("foreign gas quantity: %s\n", q.String())
	fmt.Printf("fee: %s\n", fee.String())
}
