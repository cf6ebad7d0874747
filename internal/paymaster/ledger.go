// Package paymaster implements the per-foreign-chain paymaster pool (C4):
// an ordered collection of paymaster key-tokens, deterministic round-robin
// rotation, nonce issuance, and pessimistic balance accounting.
package paymaster

import (
	"sync"

	"github.com/google/btree"
	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
)

// Entry is one paymaster key-token's bookkeeping: its signing nonce and the
// pessimistic lower bound on its foreign-chain native balance.
type Entry struct {
	TokenID                 uint32
	Nonce                   uint32
	MinimumAvailableBalance *uint256.Int
}

// Less implements btree.Item, ordering entries by token id. The tree may
// compare an *Entry against either another *Entry or a tokenKey pivot used
// for rotation lookups.
func (e *Entry) Less(than btree.Item) bool {
	return e.TokenID < tokenIDOf(than)
}

// tokenKey is a lightweight btree.Item used to query by token id without
// allocating a full Entry.
type tokenKey uint32

func (k tokenKey) Less(than btree.Item) bool {
	return uint32(k) < tokenIDOf(than)
}

func tokenIDOf(item btree.Item) uint32 {
	switch v := item.(type) {
	case *Entry:
		return v.TokenID
	case tokenKey:
		return uint32(v)
	}
	return 0
}

// Config is a single foreign chain's paymaster configuration: the fixed gas
// reserved for the paymaster leg, the fee-rate markup, the oracle asset id,
// and native decimals, alongside the paymaster pool itself.
type Config struct {
	ChainID       uint64
	TransferGas   uint64
	FeeRateNum    uint64
	FeeRateDenom  uint64
	OracleAssetID string
	Decimals      uint8

	mu            sync.Mutex
	paymasters    *btree.BTree
	nextPaymaster uint32
	hasCursor     bool
}

// NewConfig creates an empty paymaster pool for a foreign chain.
func NewConfig(chainID uint64, transferGas uint64, feeRateNum, feeRateDenom uint64, oracleAssetID string, decimals uint8) *Config {
	return &Config{
		ChainID:       chainID,
		TransferGas:   transferGas,
		FeeRateNum:    feeRateNum,
		FeeRateDenom:  feeRateDenom,
		OracleAssetID: oracleAssetID,
		Decimals:      decimals,
		paymasters:    btree.New(32),
	}
}

// AddPaymaster registers a new paymaster key-token with the given initial
// balance and nonce 0. It does not disturb the rotation cursor.
func (c *Config) AddPaymaster(tokenID uint32, initialBalance *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymasters.ReplaceOrInsert(&Entry{
		TokenID:                 tokenID,
		Nonce:                   0,
		MinimumAvailableBalance: initialBalance.Clone(),
	})
}

// Len returns the number of registered paymasters.
func (c *Config) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paymasters.Len()
}

// rotate selects the next paymaster per the ceil_key(next)-or-min rule and
// advances the cursor to higher_key(selected)-or-min. Caller must hold c.mu.
func (c *Config) rotate() (*Entry, error) {
	if c.paymasters.Len() == 0 {
		return nil, &errs.NoPaymasters{ChainID: c.ChainID}
	}

	var selected *Entry
	if c.hasCursor {
		c.paymasters.AscendGreaterOrEqual(tokenKey(c.nextPaymaster), func(i btree.Item) bool {
			selected = i.(*Entry)
			return false
		})
	}
	if selected == nil {
		selected = c.paymasters.Min().(*Entry)
	}

	var next *Entry
	c.paymasters.AscendGreaterOrEqual(tokenKey(selected.TokenID+1), func(i btree.Item) bool {
		next = i.(*Entry)
		return false
	})
	if next == nil {
		next = c.paymasters.Min().(*Entry)
	}
	c.nextPaymaster = next.TokenID
	c.hasCursor = true

	return selected, nil
}

// Reserve selects the next paymaster in rotation and deducts amount from its
// minimum available balance, returning the selected entry's token id and the
// nonce to use for the paymaster-leg transaction. The deduction is checked:
// on insufficient funds the entry is left untouched.
func (c *Config) Reserve(amount *uint256.Int) (tokenID uint32, nonce uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected, err := c.rotate()
	if err != nil {
		return 0, 0, err
	}

	if selected.MinimumAvailableBalance.Lt(amount) {
		return 0, 0, &errs.PaymasterInsufficientFunds{
			MinAvailable: selected.MinimumAvailableBalance.String(),
			Amount:       amount.String(),
		}
	}

	selected.MinimumAvailableBalance.Sub(selected.MinimumAvailableBalance, amount)
	nonce = selected.Nonce
	selected.Nonce++
	return selected.TokenID, nonce, nil
}

// Refund credits amount back to a paymaster's minimum available balance,
// e.g. when a sequence holding its reservation is cancelled or expires.
func (c *Config) Refund(tokenID uint32, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.paymasters.Get(tokenKey(tokenID))
	if item == nil {
		return &errs.NoPaymasters{ChainID: c.ChainID}
	}
	entry := item.(*Entry)
	entry.MinimumAvailableBalance.Add(entry.MinimumAvailableBalance, amount)
	return nil
}

// Balance returns a copy of the paymaster's current minimum available
// balance, for tests and introspection endpoints.
func (c *Config) Balance(tokenID uint32) (*uint256.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.paymasters.Get(tokenKey(tokenID))
	if item == nil {
		return nil, false
	}
	return item.(*Entry).MinimumAvailableBalance.Clone(), true
}
