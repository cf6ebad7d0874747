package paymaster

import (
	"testing"

	"github.com/holiman/uint256"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	c := NewConfig(1, 21000, 120, 100, "weth.fakes.testnet", 18)
	c.AddPaymaster(5, uint256.NewInt(1000))
	c.AddPaymaster(2, uint256.NewInt(1000))
	c.AddPaymaster(8, uint256.NewInt(1000))
	return c
}

func TestReserveVisitsEveryPaymasterBeforeRepeating(t *testing.T) {
	c := newTestConfig(t)

	seen := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		id, _, err := c.Reserve(uint256.NewInt(1))
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if seen[id] {
			t.Fatalf("paymaster %d visited twice before rotation completed", id)
		}
		seen[id] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct paymasters visited, got %d", len(seen))
	}

	// Fourth call should repeat an already-visited paymaster.
	id, _, err := c.Reserve(uint256.NewInt(1))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !seen[id] {
		t.Fatalf("expected rotation to repeat, got unseen paymaster %d", id)
	}
}

func TestReserveIssuesStrictlyIncreasingNoncePerPaymaster(t *testing.T) {
	c := NewConfig(1, 21000, 120, 100, "weth.fakes.testnet", 18)
	c.AddPaymaster(1, uint256.NewInt(1_000_000))

	var nonces []uint32
	for i := 0; i < 5; i++ {
		_, nonce, err := c.Reserve(uint256.NewInt(1))
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		nonces = append(nonces, nonce)
	}
	for i := 1; i < len(nonces); i++ {
		if nonces[i] != nonces[i-1]+1 {
			t.Fatalf("nonces not strictly increasing: %v", nonces)
		}
	}
}

func TestReserveInsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	c := NewConfig(1, 21000, 120, 100, "weth.fakes.testnet", 18)
	c.AddPaymaster(1, uint256.NewInt(10))

	_, _, err := c.Reserve(uint256.NewInt(100))
	if err == nil {
		t.Fatal("expected PaymasterInsufficientFunds error")
	}

	bal, ok := c.Balance(1)
	if !ok {
		t.Fatal("expected paymaster 1 to exist")
	}
	if bal.Uint64() != 10 {
		t.Fatalf("balance = %d, want unchanged 10", bal.Uint64())
	}
}

func TestReserveNoPaymasters(t *testing.T) {
	c := NewConfig(1, 21000, 120, 100, "weth.fakes.testnet", 18)
	if _, _, err := c.Reserve(uint256.NewInt(1)); err == nil {
		t.Fatal("expected NoPaymasters error")
	}
}

func TestRefundCreditsBalance(t *testing.T) {
	c := NewConfig(1, 21000, 120, 100, "weth.fakes.testnet", 18)
	c.AddPaymaster(1, uint256.NewInt(100))

	if _, _, err := c.Reserve(uint256.NewInt(40)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := c.Refund(1, uint256.NewInt(40)); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	bal, _ := c.Balance(1)
	if bal.Uint64() != 100 {
		t.Fatalf("balance after refund = %d, want 100", bal.Uint64())
	}
}
