package oracle

import (
	"context"

	"github.com/umbra-network/xchain-gas-station/internal/price"
)

// Mock is a deterministic in-memory oracle used by tests and the reference
// vectors in spec §8.a.
type Mock struct {
	Data *PriceData
	Err  error
}

// NewMock creates a Mock returning the given fixed prices, keyed by asset id.
func NewMock(prices map[string]price.Quote) *Mock {
	return &Mock{Data: &PriceData{Prices: prices}}
}

func (m *Mock) GetPriceData(ctx context.Context, assetIDs []string) (*PriceData, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}
