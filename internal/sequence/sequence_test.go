package sequence

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	gethrlp "github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
	"github.com/umbra-network/xchain-gas-station/internal/eventlog"
	"github.com/umbra-network/xchain-gas-station/internal/keytoken"
	"github.com/umbra-network/xchain-gas-station/internal/ledger"
	"github.com/umbra-network/xchain-gas-station/internal/oracle"
	"github.com/umbra-network/xchain-gas-station/internal/paymaster"
	"github.com/umbra-network/xchain-gas-station/internal/price"
	"github.com/umbra-network/xchain-gas-station/internal/signer"
)

// rlpBody mirrors internal/txrequest's unexported fixture type: RLP encodes
// by field order, so a same-shaped local struct produces identical bytes.
type rlpBody struct {
	ChainID              *big.Int
	Nonce                uint64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	Gas                  uint64
	To                   []byte
	Value                *big.Int
	Data                 []byte
	AccessList           gethrlp.RawValue
}

func sampleAddr(last byte) []byte {
	a := make([]byte, 20)
	a[19] = last
	return a
}

func encodeTx(t *testing.T, chainID uint64, gas, nonce uint64, maxFee, maxPriority, value int64) string {
	t.Helper()
	body := rlpBody{
		ChainID:              new(big.Int).SetUint64(chainID),
		Nonce:                nonce,
		MaxPriorityFeePerGas: big.NewInt(maxPriority),
		MaxFeePerGas:         big.NewInt(maxFee),
		Gas:                  gas,
		To:                   sampleAddr(0x01),
		Value:                big.NewInt(value),
		AccessList:           []byte{0xc0},
	}
	raw, err := gethrlp.EncodeToBytes(&body)
	if err != nil {
		t.Fatalf("encoding test fixture: %v", err)
	}
	return "0x" + hex.EncodeToString(raw)
}

type harness struct {
	engine   *Engine
	keytoks  *keytoken.Registry
	ledger   *ledger.Ledger
	log      *eventlog.Log
	signer   *signer.Mock
	chain    *paymaster.Config
	fee      *uint256.Int
}

const chainID = 1

func baseRate() price.Rate {
	return price.Rate{
		This:         price.Quote{AssetID: "wrap.testnet", Price: 1, Conf: 0, Expo: -24},
		Into:         price.Quote{AssetID: "weth.fakes.testnet", Price: 1, Conf: 0, Expo: -20},
		DecimalsThis: 24,
		DecimalsInto: 18,
		FeeRateNum:   120,
		FeeRateDenom: 100,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sgnr := signer.NewMock()
	keytoks := keytoken.NewRegistry(sgnr)
	led := ledger.New()
	log := eventlog.NewLog(100)

	om := oracle.NewMock(map[string]price.Quote{
		"wrap.testnet":        baseRate().This,
		"weth.fakes.testnet":  baseRate().Into,
	})

	chain := paymaster.NewConfig(chainID, 21000, 120, 100, "weth.fakes.testnet", 18)

	engine := NewEngine(Config{
		OracleClient:              om,
		SignerClient:              sgnr,
		KeyTokens:                 keytoks,
		Ledger:                    led,
		Log:                       log,
		ServiceAccountID:          "relay.testnet",
		LocalAssetOracleID:        "wrap.testnet",
		LocalAssetDecimals:        24,
		ExpireSequenceAfterBlocks: 300,
		Owner:                     "owner.testnet",
	})
	engine.RegisterChain(chain)

	// Q = (gas + transfer_gas) * max_fee_per_gas = (21000+21000)*100.
	q := uint256.NewInt((21000 + 21000) * 100)
	fee, err := price.ComputeFee(q, baseRate())
	if err != nil {
		t.Fatalf("computing expected fee: %v", err)
	}

	return &harness{engine: engine, keytoks: keytoks, ledger: led, log: log, signer: sgnr, chain: chain, fee: fee}
}

func (h *harness) mintPaymaster(t *testing.T, balance *uint256.Int) uint32 {
	t.Helper()
	tok, err := h.keytoks.Mint(context.Background(), "relay.testnet")
	if err != nil {
		t.Fatalf("minting paymaster token: %v", err)
	}
	h.chain.AddPaymaster(tok.ID, balance)
	return tok.ID
}

func (h *harness) mintUser(t *testing.T, owner string) uint32 {
	t.Helper()
	tok, err := h.keytoks.Mint(context.Background(), owner)
	if err != nil {
		t.Fatalf("minting user token: %v", err)
	}
	return tok.ID
}

func TestCreateTransactionNonPaymasterSingleLegNoEscrow(t *testing.T) {
	h := newHarness(t)
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransaction(context.Background(), "alice.testnet", userTok, nil, "", txHex)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if len(seq.Requests) != 1 {
		t.Fatalf("len(Requests) = %d, want 1", len(seq.Requests))
	}
	if seq.Escrow != nil {
		t.Fatal("expected no escrow for non-paymaster path")
	}
	if seq.Requests[0].Status != StatusPending {
		t.Fatalf("status = %v, want Pending", seq.Requests[0].Status)
	}
}

func TestCreateTransactionWithPaymasterTwoLegsAndEscrow(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}
	if len(seq.Requests) != 2 {
		t.Fatalf("len(Requests) = %d, want 2", len(seq.Requests))
	}
	if !seq.Requests[0].IsPaymaster || seq.Requests[1].IsPaymaster {
		t.Fatal("expected paymaster leg first, user leg second")
	}
	if seq.Escrow == nil || seq.Escrow.Amount.Cmp(h.fee) != 0 {
		t.Fatalf("escrow = %+v, want amount %s", seq.Escrow, h.fee.String())
	}
}

func TestCreateTransactionWithPaymasterExactDepositNoRefund(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	_, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}
	if got := h.ledger.Balance("alice.testnet", "wrap.testnet"); !got.IsZero() {
		t.Fatalf("unexpected refund credited: %s", got.String())
	}
}

func TestCreateTransactionWithPaymasterInsufficientDeposit(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	short := new(uint256.Int).Sub(h.fee, uint256.NewInt(1))
	_, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", short,
	)
	var insufficient *errs.InsufficientDeposit
	if !asErr(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientDeposit", err)
	}
}

func TestCreateTransactionWithPaymasterExcessDepositRefunds(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	excess := new(uint256.Int).Add(h.fee, uint256.NewInt(7))
	_, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", excess,
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}
	if got := h.ledger.Balance("alice.testnet", "wrap.testnet"); got.Uint64() != 7 {
		t.Fatalf("refund = %s, want 7", got.String())
	}
}

func TestSignNextTwiceCompletesSequenceAndCreditsFees(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}

	hex1, completed1, err := h.engine.SignNext(context.Background(), "alice.testnet", seq.ID)
	if err != nil {
		t.Fatalf("SignNext (leg 1): %v", err)
	}
	if completed1 {
		t.Fatal("sequence should not be complete after first leg")
	}
	if hex1[:2] != "0x" {
		t.Fatalf("leg1 hex = %s, want 0x-prefixed", hex1)
	}

	hex2, completed2, err := h.engine.SignNext(context.Background(), "alice.testnet", seq.ID)
	if err != nil {
		t.Fatalf("SignNext (leg 2): %v", err)
	}
	if !completed2 {
		t.Fatal("sequence should be complete after second leg")
	}
	if hex2[:2] != "0x" {
		t.Fatalf("leg2 hex = %s, want 0x-prefixed", hex2)
	}

	if _, err := h.engine.GetPending(seq.ID); err == nil {
		t.Fatal("expected sequence to be removed after completion")
	}
	if got := h.engine.CollectedFees("wrap.testnet"); got.Cmp(h.fee) != 0 {
		t.Fatalf("collected fees = %s, want %s", got.String(), h.fee.String())
	}
	signed := h.log.ListAfter(0, 0, 0)
	if len(signed) != 1 {
		t.Fatalf("len(signed log) = %d, want 1", len(signed))
	}
	if len(signed[0].SignedTransactions) != 2 {
		t.Fatalf("len(SignedTransactions) = %d, want 2", len(signed[0].SignedTransactions))
	}
}

func TestSignNextNonPaymasterSingleLeg(t *testing.T) {
	h := newHarness(t)
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransaction(context.Background(), "alice.testnet", userTok, nil, "", txHex)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	_, completed, err := h.engine.SignNext(context.Background(), "alice.testnet", seq.ID)
	if err != nil {
		t.Fatalf("SignNext: %v", err)
	}
	if !completed {
		t.Fatal("single-leg sequence should complete after one sign_next")
	}
}

func TestSignNextRejectsNonCreator(t *testing.T) {
	h := newHarness(t)
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)
	seq, err := h.engine.CreateTransaction(context.Background(), "alice.testnet", userTok, nil, "", txHex)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	_, _, err = h.engine.SignNext(context.Background(), "mallory.testnet", seq.ID)
	var notCreator *errs.NotCreator
	if !asErr(err, &notCreator) {
		t.Fatalf("err = %v, want NotCreator", err)
	}
}

func TestSignNextExpiredSequenceThenRemoveRefunds(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}

	// Force the block-height surrogate well past expiry.
	h.engine.mu.Lock()
	h.engine.clock = seq.CreatedAtBlockHeight + h.engine.expireAfterBlocks + 1
	h.engine.mu.Unlock()

	_, _, err = h.engine.SignNext(context.Background(), "alice.testnet", seq.ID)
	var expired *errs.Expired
	if !asErr(err, &expired) {
		t.Fatalf("err = %v, want Expired", err)
	}

	if err := h.engine.RemoveTransaction("alice.testnet", seq.ID); err != nil {
		t.Fatalf("RemoveTransaction: %v", err)
	}
	if got := h.ledger.Balance("alice.testnet", "wrap.testnet"); got.Cmp(h.fee) != 0 {
		t.Fatalf("refunded escrow = %s, want %s", got.String(), h.fee.String())
	}
}

func TestRemoveTransactionRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}

	gate := make(chan struct{})
	h.signer.Block = gate
	done := make(chan struct{})
	go func() {
		h.engine.SignNext(context.Background(), "alice.testnet", seq.ID)
		close(done)
	}()

	waitForInFlight(t, h.engine, seq.ID)

	if err := h.engine.RemoveTransaction("alice.testnet", seq.ID); err == nil {
		t.Fatal("expected InFlightCannotRemove while a leg is in flight")
	}

	close(gate)
	<-done
}

func waitForInFlight(t *testing.T, e *Engine, id uint64) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		e.mu.Lock()
		seq, ok := e.sequences[id]
		inFlight := false
		if ok {
			for _, r := range seq.Requests {
				if r.Status == StatusInFlight {
					inFlight = true
				}
			}
		}
		e.mu.Unlock()
		if inFlight {
			return
		}
	}
	t.Fatal("timed out waiting for request to enter InFlight")
}

func TestPauseBlocksCreateTransaction(t *testing.T) {
	h := newHarness(t)
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	if err := h.engine.Pause("owner.testnet"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	_, err := h.engine.CreateTransaction(context.Background(), "alice.testnet", userTok, nil, "", txHex)
	var paused *errs.Paused
	if !asErr(err, &paused) {
		t.Fatalf("err = %v, want Paused", err)
	}
}

func TestPauseRejectsNonOwner(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Pause("mallory.testnet"); err == nil {
		t.Fatal("expected NotOwner error")
	}
}

func TestWithdrawFeesAtomicSubtraction(t *testing.T) {
	h := newHarness(t)
	h.mintPaymaster(t, uint256.NewInt(1_000_000_000))
	userTok := h.mintUser(t, "alice.testnet")
	txHex := encodeTx(t, chainID, 21000, 0, 100, 100, 100)

	seq, err := h.engine.CreateTransactionWithPaymaster(
		context.Background(), "alice.testnet", userTok, nil, "", txHex,
		"wrap.testnet", h.fee.Clone(),
	)
	if err != nil {
		t.Fatalf("CreateTransactionWithPaymaster: %v", err)
	}
	if _, _, err := h.engine.SignNext(context.Background(), "alice.testnet", seq.ID); err != nil {
		t.Fatalf("SignNext: %v", err)
	}
	if _, _, err := h.engine.SignNext(context.Background(), "alice.testnet", seq.ID); err != nil {
		t.Fatalf("SignNext: %v", err)
	}

	if err := h.engine.WithdrawFees("owner.testnet", "wrap.testnet", h.fee.Clone(), "treasury.testnet"); err != nil {
		t.Fatalf("WithdrawFees: %v", err)
	}
	if got := h.engine.CollectedFees("wrap.testnet"); !got.IsZero() {
		t.Fatalf("collected fees after withdrawal = %s, want 0", got.String())
	}
	if got := h.ledger.Balance("treasury.testnet", "wrap.testnet"); got.Cmp(h.fee) != 0 {
		t.Fatalf("treasury balance = %s, want %s", got.String(), h.fee.String())
	}
}

// asErr is a small errors.As helper so tests read as one-liners.
func asErr(err error, target interface{}) bool {
	switch t := target.(type) {
	case **errs.InsufficientDeposit:
		e, ok := err.(*errs.InsufficientDeposit)
		*t = e
		return ok
	case **errs.NotCreator:
		e, ok := err.(*errs.NotCreator)
		*t = e
		return ok
	case **errs.Expired:
		e, ok := err.(*errs.Expired)
		*t = e
		return ok
	case **errs.Paused:
		e, ok := err.(*errs.Paused)
		*t = e
		return ok
	}
	return false
}
