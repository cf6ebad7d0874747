// Package signer defines the MPC threshold-signer collaborator (§6): an
// external oracle holding non-extractable key shares that produces ECDSA
// signatures from a 32-byte prehash, plus an HTTP client implementation and
// the recovery-id reconstruction used by the rest of the engine.
package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// secp256k1N is the order of the secp256k1 group, used to decide whether
// R.x overflowed the curve order when reconstructing the recovery id.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// Signature is a reconstructed ECDSA signature with its recovery id.
type Signature struct {
	R       *big.Int
	S       *big.Int
	YParity uint64
}

// Client is the interface every MPC signer collaborator must satisfy.
type Client interface {
	PublicKey(ctx context.Context) ([]byte, error)
	LatestKeyVersion(ctx context.Context) (uint32, error)
	Sign(ctx context.Context, payload [32]byte, path string, keyVersion uint32) (Signature, error)
}

// HTTPClient talks to a remote MPC signer over a small JSON-RPC-shaped REST
// API: POST {payload, path, key_version} to /sign, GET /public_key and
// /latest_key_version.
type HTTPClient struct {
	url    string
	client *http.Client
	// ReversePayload matches the protocol quirk where this particular signer
	// expects the sighash byte-reversed (a signer-adapter concern, not a
	// core invariant — see SPEC_FULL.md §9).
	ReversePayload bool
}

// NewHTTPClient creates an HTTPClient pointed at signerURL.
func NewHTTPClient(signerURL string) *HTTPClient {
	return &HTTPClient{
		url:            strings.TrimSuffix(signerURL, "/"),
		client:         &http.Client{Timeout: 30 * time.Second},
		ReversePayload: true,
	}
}

// PublicKey fetches the signer's base secp256k1 public key, uncompressed.
func (c *HTTPClient) PublicKey(ctx context.Context) ([]byte, error) {
	var resp struct {
		PublicKeyHex string `json:"public_key"`
	}
	if err := c.get(ctx, "/public_key", &resp); err != nil {
		return nil, fmt.Errorf("fetching signer public key: %w", err)
	}
	return hex.DecodeString(strings.TrimPrefix(resp.PublicKeyHex, "0x"))
}

// LatestKeyVersion fetches the signer's current key version.
func (c *HTTPClient) LatestKeyVersion(ctx context.Context) (uint32, error) {
	var resp struct {
		KeyVersion uint32 `json:"key_version"`
	}
	if err := c.get(ctx, "/latest_key_version", &resp); err != nil {
		return 0, fmt.Errorf("fetching latest key version: %w", err)
	}
	return resp.KeyVersion, nil
}

// Sign requests a threshold signature over payload under the given
// derivation path and key version, and reconstructs the full (r, s, v).
func (c *HTTPClient) Sign(ctx context.Context, payload [32]byte, path string, keyVersion uint32) (Signature, error) {
	sendPayload := payload
	if c.ReversePayload {
		sendPayload = reversed(payload)
	}

	reqBody := map[string]interface{}{
		"payload":     "0x" + hex.EncodeToString(sendPayload[:]),
		"path":        path,
		"key_version": keyVersion,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Signature{}, err
	}

	var resp struct {
		BigRHex string `json:"big_r_hex"`
		SHex    string `json:"s_hex"`
	}
	if err := c.post(ctx, "/sign", body, &resp); err != nil {
		return Signature{}, fmt.Errorf("signer sign: %w", err)
	}

	return ReconstructSignature(resp.BigRHex, resp.SHex)
}

// ReconstructSignature parses the signer's big_r (compressed point,
// 33 bytes: 0x02/0x03 prefix || x) and s into a full signature, deriving the
// recovery id as v = (R.y is odd) XOR (R.x >= N).
func ReconstructSignature(bigRHex, sHex string) (Signature, error) {
	bigR, err := hex.DecodeString(strings.TrimPrefix(bigRHex, "0x"))
	if err != nil || len(bigR) != 33 {
		return Signature{}, fmt.Errorf("bad signature encoding: big_r must be a 33-byte compressed point")
	}
	sBytes, err := hex.DecodeString(strings.TrimPrefix(sHex, "0x"))
	if err != nil {
		return Signature{}, fmt.Errorf("bad signature encoding: s is not hex")
	}

	rX := new(big.Int).SetBytes(bigR[1:])
	yIsOdd := bigR[0] == 0x03
	xOverflowed := rX.Cmp(secp256k1N) >= 0

	yParity := uint64(0)
	if yIsOdd != xOverflowed {
		yParity = 1
	}

	return Signature{
		R:       rX,
		S:       new(big.Int).SetBytes(sBytes),
		YParity: yParity,
	}, nil
}

func reversed(payload [32]byte) [32]byte {
	var out [32]byte
	for i, b := range payload {
		out[31-i] = b
	}
	return out
}

func (c *HTTPClient) get(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *HTTPClient) do(req *http.Request, dst interface{}) error {
	slog.Debug("signer request", "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("signer returned %d: %s", resp.StatusCode, respBody)
	}
	return json.Unmarshal(respBody, dst)
}
