package signer

import (
	"context"
	"encoding/hex"
	"math/big"
)

// Mock is a deterministic in-memory signer used by tests: it returns a
// fixed signature and records the paths it was asked to sign over.
type Mock struct {
	PubKey      []byte
	KeyVersion  uint32
	FixedR      *big.Int
	FixedS      *big.Int
	FixedParity uint64
	Err         error

	// Block, when non-nil, is received from (or must be closed) before Sign
	// returns. Tests use it to hold a request in flight long enough to
	// observe the InFlight state from another goroutine.
	Block chan struct{}

	SignedPaths []string
}

// NewMock creates a Mock with a default non-trivial signature, using the
// secp256k1 generator point as its base public key so derived addresses are
// valid curve points.
func NewMock() *Mock {
	pub, _ := hex.DecodeString(
		"0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
			"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
	)
	return &Mock{
		PubKey:      pub,
		KeyVersion:  0,
		FixedR:      big.NewInt(1),
		FixedS:      big.NewInt(2),
		FixedParity: 0,
	}
}

func (m *Mock) PublicKey(ctx context.Context) ([]byte, error) {
	return m.PubKey, nil
}

func (m *Mock) LatestKeyVersion(ctx context.Context) (uint32, error) {
	return m.KeyVersion, nil
}

func (m *Mock) Sign(ctx context.Context, payload [32]byte, path string, keyVersion uint32) (Signature, error) {
	if m.Block != nil {
		<-m.Block
	}
	if m.Err != nil {
		return Signature{}, m.Err
	}
	m.SignedPaths = append(m.SignedPaths, path)
	return Signature{R: m.FixedR, S: m.FixedS, YParity: m.FixedParity}, nil
}
