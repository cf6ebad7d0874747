// Package ledger is a minimal in-memory per-account, per-asset balance
// table standing in for the host runtime's asset-transfer primitive
// (NEAR's AssetId::transfer). It backs refund flows (excess deposit,
// cancellation escrow) and owner withdrawals of collected fees.
package ledger

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]*uint256.Int // accountID -> assetID -> balance
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[string]map[string]*uint256.Int)}
}

// Credit increases account's balance of asset by amount.
func (l *Ledger) Credit(account, asset string, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[account]
	if !ok {
		assets = make(map[string]*uint256.Int)
		l.balances[account] = assets
	}
	bal, ok := assets[asset]
	if !ok {
		bal = uint256.NewInt(0)
		assets[asset] = bal
	}
	bal.Add(bal, amount)
}

// Debit decreases account's balance of asset by amount. It returns
// errs.Overflow if the balance would go negative, leaving state untouched.
func (l *Ledger) Debit(account, asset string, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[account]
	if !ok {
		return &errs.Overflow{Reason: "debit from unknown account balance"}
	}
	bal, ok := assets[asset]
	if !ok || bal.Lt(amount) {
		return &errs.Overflow{Reason: "debit exceeds balance"}
	}
	bal.Sub(bal, amount)
	return nil
}

// Balance returns a copy of account's balance of asset, defaulting to zero.
func (l *Ledger) Balance(account, asset string) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[account]
	if !ok {
		return uint256.NewInt(0)
	}
	bal, ok := assets[asset]
	if !ok {
		return uint256.NewInt(0)
	}
	return bal.Clone()
}
