// Package oracle defines the price-oracle collaborator (§6): a single
// get_price_data call returning Pyth-style prices for a set of requested
// asset ids, plus an HTTP implementation grounded in a simple POST/JSON
// facilitator-style client.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
	"github.com/umbra-network/xchain-gas-station/internal/price"
)

// PriceData is the oracle's response to get_price_data: a recency window and
// one price per successfully resolved asset id. Assets the oracle has no
// quote for are simply absent from Prices.
type PriceData struct {
	Timestamp          int64
	RecencyDurationSec int64
	Prices             map[string]price.Quote
}

// Client is the price-oracle collaborator interface.
type Client interface {
	GetPriceData(ctx context.Context, assetIDs []string) (*PriceData, error)
}

// Lookup returns the quote for assetID, or errs.OracleFailure if the oracle
// did not return a price for it (spec §6: "missing prices abort the
// sequence").
func (d *PriceData) Lookup(assetID string) (price.Quote, error) {
	q, ok := d.Prices[assetID]
	if !ok {
		return price.Quote{}, &errs.OracleFailure{Reason: fmt.Sprintf("no price for asset %s", assetID)}
	}
	return q, nil
}

// HTTPClient talks to a remote Pyth-style price oracle over a small REST
// API: POST {asset_ids} to /get_price_data.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient creates an HTTPClient pointed at oracleURL.
func NewHTTPClient(oracleURL string) *HTTPClient {
	return &HTTPClient{
		url:    strings.TrimSuffix(oracleURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type wirePrice struct {
	AssetID string `json:"asset_id"`
	Price   *struct {
		Price       int64  `json:"price"`
		Conf        uint64 `json:"conf"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

func (c *HTTPClient) GetPriceData(ctx context.Context, assetIDs []string) (*PriceData, error) {
	reqBody, err := json.Marshal(map[string]interface{}{"asset_ids": assetIDs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/get_price_data", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("oracle request", "url", req.URL.String(), "asset_ids", assetIDs)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.OracleFailure{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.OracleFailure{Reason: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, &errs.OracleFailure{Reason: fmt.Sprintf("oracle returned %d: %s", resp.StatusCode, body)}
	}

	var wire struct {
		Timestamp          int64       `json:"timestamp"`
		RecencyDurationSec int64       `json:"recency_duration_sec"`
		Prices             []wirePrice `json:"prices"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &errs.OracleFailure{Reason: err.Error()}
	}

	out := &PriceData{
		Timestamp:          wire.Timestamp,
		RecencyDurationSec: wire.RecencyDurationSec,
		Prices:             make(map[string]price.Quote, len(wire.Prices)),
	}
	for _, p := range wire.Prices {
		if p.Price == nil {
			continue
		}
		out.Prices[p.AssetID] = price.Quote{
			AssetID:     p.AssetID,
			Price:       p.Price.Price,
			Conf:        p.Price.Conf,
			Expo:        p.Price.Expo,
			PublishTime: p.Price.PublishTime,
		}
	}
	return out, nil
}
