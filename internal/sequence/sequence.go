// Package sequence implements the transaction-sequence state machine (C6):
// the two-leg (paymaster-leg, then user-leg) signing job, escrow, the
// sign-next protocol against the external MPC signer, and completion,
// expiry, and cancellation handling.
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/address"
	"github.com/umbra-network/xchain-gas-station/internal/errs"
	"github.com/umbra-network/xchain-gas-station/internal/eventlog"
	"github.com/umbra-network/xchain-gas-station/internal/keytoken"
	"github.com/umbra-network/xchain-gas-station/internal/ledger"
	"github.com/umbra-network/xchain-gas-station/internal/oracle"
	"github.com/umbra-network/xchain-gas-station/internal/paymaster"
	"github.com/umbra-network/xchain-gas-station/internal/price"
	"github.com/umbra-network/xchain-gas-station/internal/signer"
	"github.com/umbra-network/xchain-gas-station/internal/txrequest"
)

// Status is a signature request's position in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusSigned
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInFlight:
		return "InFlight"
	case StatusSigned:
		return "Signed"
	default:
		return "Unknown"
	}
}

// SignedSignature is the resolved (r, s, v) once a request transitions to
// StatusSigned.
type SignedSignature struct {
	R       []byte
	S       []byte
	YParity uint64
}

// Request is a single signing job within a sequence: either the
// system-synthesised paymaster leg, or the user's own leg.
type Request struct {
	Status  Status
	TokenID uint32
	Path    string
	// AuthCaller is the account id that was authorized (as owner or
	// approval holder) for TokenID at creation time; SignNext replays this
	// identity against the key-token registry's own sign_hash authorization
	// check rather than trusting Authorization blindly.
	AuthCaller    string
	Authorization keytoken.Authorization
	IsPaymaster   bool
	Transaction   *txrequest.Valid
	Signature     *SignedSignature
	SignedRLPHex  string
}

// AssetBalance is an amount of a single asset, used for escrow.
type AssetBalance struct {
	AssetID string
	Amount  *uint256.Int
}

// Pending is an in-flight multi-leg signing job.
type Pending struct {
	ID                   uint64
	CreatedBy            string
	CreatedAtBlockHeight uint64
	ChainID              uint64
	Requests             []*Request
	Escrow               *AssetBalance
}

// Engine owns every pending sequence, the paymaster pools, the key-token
// registry, and the signed-sequence event log. Each exported method is an
// atomic unit from the caller's perspective (§5).
type Engine struct {
	mu sync.Mutex

	clock     uint64
	nextID    uint64
	sequences map[uint64]*Pending

	chains             map[uint64]*paymaster.Config
	keytokens          *keytoken.Registry
	oracleClient       oracle.Client
	signerClient       signer.Client
	ledger             *ledger.Ledger
	log                *eventlog.Log
	collectedFees      map[string]*uint256.Int
	basePublicKey      []byte
	serviceAccountID   string
	localAssetOracle   string
	localAssetDecimals uint8
	expireAfterBlocks  uint64
	owner              string
	debugEnabled       bool

	paused                   bool
	senderWhitelistEnabled   bool
	receiverWhitelistEnabled bool
	senderWhitelist          map[string]bool
	receiverWhitelist        map[string]bool
}

// Config bundles an Engine's fixed dependencies and feature flags.
type Config struct {
	OracleClient       oracle.Client
	SignerClient       signer.Client
	KeyTokens          *keytoken.Registry
	Ledger             *ledger.Ledger
	Log                *eventlog.Log
	ServiceAccountID   string
	LocalAssetOracleID string
	// LocalAssetDecimals is d_this in §4.3: the decimals of the asset the
	// caller pays the fee with.
	LocalAssetDecimals        uint8
	ExpireSequenceAfterBlocks uint64
	SenderWhitelistEnabled    bool
	ReceiverWhitelistEnabled  bool
	// Owner is the account id permitted to call admin operations (pause,
	// whitelist management, fee withdrawal, chain configuration, debug reset).
	Owner string
	// DebugEndpointsEnabled gates DebugReset, mirroring the original
	// contract's cfg(feature = "debug") build gate with a runtime flag.
	DebugEndpointsEnabled bool
}

// NewEngine creates an Engine with no registered chains and no pending
// sequences. RegisterChain must be called once per supported foreign chain
// before CreateTransaction{,WithPaymaster} will accept requests for it.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		sequences:                cfg.orEmptySequences(),
		chains:                   make(map[uint64]*paymaster.Config),
		keytokens:                cfg.KeyTokens,
		oracleClient:             cfg.OracleClient,
		signerClient:             cfg.SignerClient,
		ledger:                   cfg.Ledger,
		log:                      cfg.Log,
		collectedFees:            make(map[string]*uint256.Int),
		serviceAccountID:         cfg.ServiceAccountID,
		localAssetOracle:         cfg.LocalAssetOracleID,
		localAssetDecimals:       cfg.LocalAssetDecimals,
		expireAfterBlocks:        cfg.ExpireSequenceAfterBlocks,
		owner:                    cfg.Owner,
		debugEnabled:             cfg.DebugEndpointsEnabled,
		senderWhitelistEnabled:   cfg.SenderWhitelistEnabled,
		receiverWhitelistEnabled: cfg.ReceiverWhitelistEnabled,
		senderWhitelist:          make(map[string]bool),
		receiverWhitelist:        make(map[string]bool),
	}
}

func (c Config) orEmptySequences() map[uint64]*Pending {
	return make(map[uint64]*Pending)
}

// RegisterChain adds or replaces a foreign chain's paymaster configuration.
func (e *Engine) RegisterChain(cfg *paymaster.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chains[cfg.ChainID] = cfg
}

// SetWhitelists replaces the sender/receiver whitelist membership sets.
func (e *Engine) SetWhitelists(senders, receivers []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.senderWhitelist = toSet(senders)
	e.receiverWhitelist = toSet(receivers)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}

// Pause / Unpause gate every mutating operation, mirroring the original
// contract's owner-controlled pause hook. Both are owner-gated.
func (e *Engine) Pause(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = true
	return nil
}

func (e *Engine) Unpause(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = false
	return nil
}

func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// BlockHeight returns the engine's current block-height surrogate.
func (e *Engine) BlockHeight() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// tick advances the block-height surrogate. It is called when a sequence is
// created, when sign_next moves a leg to InFlight, and when a sequence
// completes; other operations do not advance it. Caller must hold e.mu.
func (e *Engine) tick() uint64 {
	e.clock++
	return e.clock
}

func (e *Engine) requireUnpaused() error {
	if e.paused {
		return &errs.Paused{}
	}
	return nil
}

func (e *Engine) requireSenderWhitelisted(account string) error {
	if !e.senderWhitelistEnabled {
		return nil
	}
	if !e.senderWhitelist[account] {
		return &errs.SenderNotWhitelisted{AccountID: account}
	}
	return nil
}

func (e *Engine) requireReceiverWhitelisted(addr string) error {
	if !e.receiverWhitelistEnabled {
		return nil
	}
	if !e.receiverWhitelist[addr] {
		return &errs.ReceiverNotWhitelisted{Address: addr}
	}
	return nil
}

// requireOwner gates admin operations to the configured owner account.
// Caller must hold e.mu.
func (e *Engine) requireOwner(caller string) error {
	if e.owner == "" || caller != e.owner {
		return &errs.NotOwner{AccountID: caller}
	}
	return nil
}

// deriveAddress computes the foreign address a given (token, path) pair
// signs from, fetching the signer's base public key on first use.
func (e *Engine) deriveAddress(ctx context.Context, tokenID uint32, path string) (address.Foreign, error) {
	if e.basePublicKey == nil {
		pk, err := e.signerClient.PublicKey(ctx)
		if err != nil {
			return address.Foreign{}, &errs.SignerFailure{Reason: err.Error()}
		}
		e.basePublicKey = pk
	}
	derivationPath := keytoken.DerivationPath(tokenID, path)
	return address.Derive(e.basePublicKey, e.serviceAccountID, derivationPath)
}

// DeriveAddress exposes the foreign address derivation for a (token, path)
// pair, used by the key-token `public_key_for` surface (§6).
func (e *Engine) DeriveAddress(ctx context.Context, tokenID uint32, path string) (address.Foreign, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deriveAddress(ctx, tokenID, path)
}

// CreateTransaction is the non-paymaster entry point (§4.6 entry point 1): a
// single-leg sequence authorized over the caller's own key-token, no
// escrow.
func (e *Engine) CreateTransaction(ctx context.Context, caller string, tokenID uint32, approvalID *uint32, path string, txRLPHex string) (*Pending, error) {
	tx, err := txrequest.FromHexRLP(txRLPHex)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if err := e.requireSenderWhitelisted(caller); err != nil {
		return nil, err
	}
	if err := e.requireReceiverWhitelisted(tx.To.Hex()); err != nil {
		return nil, err
	}

	auth, err := e.keytokens.Authorize(caller, tokenID, approvalID)
	if err != nil {
		return nil, err
	}

	seq := &Pending{
		ID:                   e.nextSequenceID(),
		CreatedBy:            caller,
		CreatedAtBlockHeight: e.tick(),
		ChainID:              tx.ChainID,
		Requests: []*Request{{
			Status:        StatusPending,
			TokenID:       tokenID,
			Path:          path,
			AuthCaller:    caller,
			Authorization: auth,
			IsPaymaster:   false,
			Transaction:   tx,
		}},
	}
	e.sequences[seq.ID] = seq
	created := eventlog.TransactionSequenceCreated{
		ID:              seq.ID,
		ForeignChainID:  seq.ChainID,
		PendingSequence: seq,
	}
	slog.Info("sequence created", "event", created, "legs", 1, "created_by", caller)
	return seq, nil
}

// CreateTransactionWithPaymaster is the paymaster entry point (§4.6 entry
// point 2): quotes the fee via the oracle, reserves a paymaster, and
// produces a two-leg sequence [paymaster-leg, user-leg].
func (e *Engine) CreateTransactionWithPaymaster(
	ctx context.Context,
	caller string,
	tokenID uint32,
	approvalID *uint32,
	path string,
	txRLPHex string,
	depositAssetID string,
	depositAmount *uint256.Int,
) (*Pending, error) {
	tx, err := txrequest.FromHexRLP(txRLPHex)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireUnpaused(); err != nil {
		return nil, err
	}
	if err := e.requireSenderWhitelisted(caller); err != nil {
		return nil, err
	}
	if err := e.requireReceiverWhitelisted(tx.To.Hex()); err != nil {
		return nil, err
	}

	userAuth, err := e.keytokens.Authorize(caller, tokenID, approvalID)
	if err != nil {
		return nil, err
	}

	chain, ok := e.chains[tx.ChainID]
	if !ok {
		return nil, &errs.ChainConfigurationDoesNotExist{ChainID: tx.ChainID}
	}

	// Step 2: Q = (gas + transfer_gas) * max_fee_per_gas.
	gasTotal := new(uint256.Int).AddUint64(uint256.NewInt(tx.Gas), chain.TransferGas)
	q := new(uint256.Int).Mul(gasTotal, tx.MaxFeePerGas)

	priceData, err := e.oracleClient.GetPriceData(ctx, []string{e.localAssetOracle, chain.OracleAssetID})
	if err != nil {
		return nil, &errs.OracleFailure{Reason: err.Error()}
	}
	thisQuote, err := priceData.Lookup(e.localAssetOracle)
	if err != nil {
		return nil, err
	}
	intoQuote, err := priceData.Lookup(chain.OracleAssetID)
	if err != nil {
		return nil, err
	}

	fee, err := price.ComputeFee(q, price.Rate{
		This:         thisQuote,
		Into:         intoQuote,
		DecimalsThis: e.localAssetDecimals,
		DecimalsInto: chain.Decimals,
		FeeRateNum:   chain.FeeRateNum,
		FeeRateDenom: chain.FeeRateDenom,
	})
	if err != nil {
		return nil, err
	}

	// Step 4: compare deposit to fee.
	if depositAmount.Lt(fee) {
		return nil, &errs.InsufficientDeposit{Required: fee.String(), Given: depositAmount.String()}
	}
	if depositAmount.Gt(fee) {
		excess := new(uint256.Int).Sub(depositAmount, fee)
		e.ledger.Credit(caller, depositAssetID, excess)
	}

	// Step 5: select paymaster, deduct Q pessimistically.
	paymasterTokenID, nonce, err := chain.Reserve(q)
	if err != nil {
		return nil, err
	}
	paymasterToken, err := e.keytokens.Get(paymasterTokenID)
	if err != nil {
		return nil, err
	}

	// Step 6: synthesize the paymaster-leg transaction.
	userForeignAddr, err := e.deriveAddress(ctx, tokenID, path)
	if err != nil {
		return nil, err
	}
	paymasterTx := &txrequest.Valid{
		To:                   common.BytesToAddress(userForeignAddr.Bytes()),
		Gas:                  chain.TransferGas,
		Value:                q,
		Nonce:                uint64(nonce),
		MaxFeePerGas:         tx.MaxFeePerGas,
		MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
		Data:                 nil,
		AccessListRLP:        []byte{0xc0},
		ChainID:              tx.ChainID,
	}

	seq := &Pending{
		ID:                   e.nextSequenceID(),
		CreatedBy:            caller,
		CreatedAtBlockHeight: e.tick(),
		ChainID:              tx.ChainID,
		Requests: []*Request{
			{
				Status:        StatusPending,
				TokenID:       paymasterTokenID,
				Path:          path,
				AuthCaller:    paymasterToken.Owner,
				Authorization: keytoken.Authorization{Owned: true},
				IsPaymaster:   true,
				Transaction:   paymasterTx,
			},
			{
				Status:        StatusPending,
				TokenID:       tokenID,
				Path:          path,
				AuthCaller:    caller,
				Authorization: userAuth,
				IsPaymaster:   false,
				Transaction:   tx,
			},
		},
		Escrow: &AssetBalance{AssetID: depositAssetID, Amount: fee},
	}
	e.sequences[seq.ID] = seq
	created := eventlog.TransactionSequenceCreated{
		ID:              seq.ID,
		ForeignChainID:  seq.ChainID,
		PendingSequence: seq,
	}
	slog.Info("sequence created", "event", created, "legs", 2, "created_by", caller, "fee", fee.String())
	return seq, nil
}

func (e *Engine) nextSequenceID() uint64 {
	id := e.nextID
	e.nextID++
	return id
}

// GetPending returns the pending sequence by id.
func (e *Engine) GetPending(id uint64) (*Pending, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq, ok := e.sequences[id]
	if !ok {
		return nil, &errs.SequenceDoesNotExist{ID: id}
	}
	return seq, nil
}

// ListPending returns pending sequences, optionally filtered by creator,
// honoring offset/limit (limit of 0 means unbounded). Order is ascending by
// sequence id.
func (e *Engine) ListPending(accountID string, offset, limit int) []*Pending {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]uint64, 0, len(e.sequences))
	for id := range e.sequences {
		ids = append(ids, id)
	}
	sortUint64(ids)

	var matched []*Pending
	for _, id := range ids {
		seq := e.sequences[id]
		if accountID != "" && seq.CreatedBy != accountID {
			continue
		}
		matched = append(matched, seq)
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

func sortUint64(ids []uint64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// errInconsistent wraps fmt.Errorf-style context onto an InconsistentState.
func errInconsistent(format string, args ...interface{}) error {
	return &errs.InconsistentState{Reason: fmt.Sprintf(format, args...)}
}

// inFlightWork is the data SignNext needs to drive the external signer call
// outside the engine lock.
type inFlightWork struct {
	index       int
	tokenID     uint32
	path        string
	sighash     [32]byte
	isPaymaster bool
	authCaller  string
	approvalID  *uint32
}

// SignNext advances one pending leg of sequence id (§4.6 sign_next, plus its
// callback, run back-to-back since this port has no promise scheduler to
// suspend against). It returns the hex-prefixed signed RLP of the leg just
// signed and whether that was the sequence's last pending leg (in which case
// the sequence is now complete and has been removed).
func (e *Engine) SignNext(ctx context.Context, caller string, id uint64) (string, bool, error) {
	work, err := e.beginSignNext(caller, id)
	if err != nil {
		return "", false, err
	}

	sig, signErr := e.keytokens.SignHash(ctx, work.authCaller, work.tokenID, work.path, work.sighash, work.approvalID)
	if signErr != nil {
		e.revertToPending(id, work.index)
		return "", false, &errs.SignerFailure{Reason: signErr.Error()}
	}

	return e.commitSignature(id, work.index, sig)
}

// beginSignNext validates the request and transitions the first pending leg
// to InFlight, returning the data needed to call the external signer.
func (e *Engine) beginSignNext(caller string, id uint64) (inFlightWork, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq, ok := e.sequences[id]
	if !ok {
		return inFlightWork{}, &errs.SequenceDoesNotExist{ID: id}
	}
	if seq.CreatedBy != caller {
		return inFlightWork{}, &errs.NotCreator{AccountID: caller}
	}
	if e.clock > seq.CreatedAtBlockHeight+e.expireAfterBlocks {
		return inFlightWork{}, &errs.Expired{SequenceID: id}
	}

	index := -1
	for i, req := range seq.Requests {
		if req.Status == StatusPending {
			index = i
			break
		}
	}
	if index == -1 {
		return inFlightWork{}, &errs.NoPendingRequests{SequenceID: id}
	}

	req := seq.Requests[index]
	sighash, err := req.Transaction.Sighash()
	if err != nil {
		return inFlightWork{}, &errs.BadRlp{Reason: err.Error()}
	}

	req.Status = StatusInFlight
	e.tick()

	var approvalID *uint32
	if !req.Authorization.Owned {
		id := req.Authorization.ApprovalID
		approvalID = &id
	}

	return inFlightWork{
		index:       index,
		tokenID:     req.TokenID,
		path:        req.Path,
		sighash:     sighash,
		isPaymaster: req.IsPaymaster,
		authCaller:  req.AuthCaller,
		approvalID:  approvalID,
	}, nil
}

// revertToPending resets an in-flight request back to Pending after a
// signer failure (DESIGN.md Open Question #1: automatic transition back to
// Pending rather than leaving the request stuck InFlight).
func (e *Engine) revertToPending(id uint64, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq, ok := e.sequences[id]
	if !ok || index >= len(seq.Requests) {
		return
	}
	if seq.Requests[index].Status == StatusInFlight {
		seq.Requests[index].Status = StatusPending
	}
}

// commitSignature is sign_next_callback (§4.6): it applies the signer's
// result to the in-flight request, promotes escrow into collected fees, and,
// if every leg is now signed, emits TransactionSequenceSigned and drops the
// sequence.
func (e *Engine) commitSignature(id uint64, index int, sig signer.Signature) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq, ok := e.sequences[id]
	if !ok {
		return "", false, errInconsistent("sequence %d vanished while in flight", id)
	}
	if index >= len(seq.Requests) {
		return "", false, errInconsistent("sequence %d request %d vanished while in flight", id, index)
	}
	req := seq.Requests[index]
	if req.Status != StatusInFlight {
		return "", false, errInconsistent("sequence %d request %d is not in flight", id, index)
	}

	signedHex, err := req.Transaction.WithSignature(sig.R, sig.S, sig.YParity)
	if err != nil {
		req.Status = StatusPending
		return "", false, &errs.BadSignatureEncoding{Reason: err.Error()}
	}

	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()
	req.Signature = &SignedSignature{R: rBytes, S: sBytes, YParity: sig.YParity}
	req.SignedRLPHex = signedHex
	req.Status = StatusSigned

	if seq.Escrow != nil {
		bal, ok := e.collectedFees[seq.Escrow.AssetID]
		if !ok {
			bal = uint256.NewInt(0)
			e.collectedFees[seq.Escrow.AssetID] = bal
		}
		if overflow := bal.AddOverflow(bal, seq.Escrow.Amount); overflow {
			return "", false, errInconsistent("collected fees overflow for asset %s", seq.Escrow.AssetID)
		}
		seq.Escrow = nil
	}

	for _, r := range seq.Requests {
		if r.Status != StatusSigned {
			return signedHex, false, nil
		}
	}

	signedTxs := make([]string, len(seq.Requests))
	for i, r := range seq.Requests {
		signedTxs[i] = r.SignedRLPHex
	}
	event := eventlog.TransactionSequenceSigned{
		ID:                 seq.ID,
		ForeignChainID:     seq.ChainID,
		CreatedByAccountID: seq.CreatedBy,
		SignedTransactions: signedTxs,
	}
	blockHeight := e.tick()
	e.log.Append(blockHeight, event)
	delete(e.sequences, id)
	slog.Info("sequence signed", "id", seq.ID, "chain_id", seq.ChainID, "legs", len(seq.Requests))

	return signedHex, true, nil
}

// RemoveTransaction cancels a pending sequence: the caller must be its
// creator, no leg may be InFlight, and any escrow or paymaster reservation
// held by a not-yet-signed leg is refunded.
func (e *Engine) RemoveTransaction(caller string, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq, ok := e.sequences[id]
	if !ok {
		return &errs.SequenceDoesNotExist{ID: id}
	}
	if seq.CreatedBy != caller {
		return &errs.NotCreator{AccountID: caller}
	}
	for _, req := range seq.Requests {
		if req.Status == StatusInFlight {
			return &errs.InFlightCannotRemove{SequenceID: id}
		}
	}

	if seq.Escrow != nil {
		e.ledger.Credit(seq.CreatedBy, seq.Escrow.AssetID, seq.Escrow.Amount)
	}
	for _, req := range seq.Requests {
		if req.IsPaymaster && req.Status == StatusPending {
			if chain, ok := e.chains[seq.ChainID]; ok {
				_ = chain.Refund(req.TokenID, req.Transaction.Value)
			}
		}
	}

	delete(e.sequences, id)
	return nil
}

// ListAfter is a pass-through to the signed-sequence log's query surface
// (C7), exposed here so callers holding only an *Engine can reach it.
func (e *Engine) ListAfter(afterBlockHeight uint64, offset, limit int) []eventlog.TransactionSequenceSigned {
	return e.log.ListAfter(afterBlockHeight, offset, limit)
}

// CollectedFees returns a copy of the collected-fee balance for assetID.
func (e *Engine) CollectedFees(assetID string) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	bal, ok := e.collectedFees[assetID]
	if !ok {
		return uint256.NewInt(0)
	}
	return bal.Clone()
}

// WithdrawFees is an owner-gated admin operation (supplemented from the
// original's impl_management.rs, dropped by the distillation): atomic
// single-step subtraction from collected_fees, credited to `to` via the
// local asset ledger.
func (e *Engine) WithdrawFees(caller, assetID string, amount *uint256.Int, to string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	bal, ok := e.collectedFees[assetID]
	if !ok || bal.Lt(amount) {
		avail := "0"
		if ok {
			avail = bal.String()
		}
		return &errs.Overflow{Reason: fmt.Sprintf("collected fees for %s are %s, cannot withdraw %s", assetID, avail, amount.String())}
	}
	bal.Sub(bal, amount)
	e.ledger.Credit(to, assetID, amount)
	return nil
}

// AddOrUpdateChain is the owner-gated admin counterpart to RegisterChain,
// used by the admin HTTP surface rather than process bootstrap.
func (e *Engine) AddOrUpdateChain(caller string, cfg *paymaster.Config) error {
	e.mu.Lock()
	if err := e.requireOwner(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	e.RegisterChain(cfg)
	return nil
}

// AddPaymaster registers a new paymaster key-token on an existing chain
// configuration. Owner-gated.
func (e *Engine) AddPaymaster(caller string, chainID uint64, tokenID uint32, initialBalance *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	chain, ok := e.chains[chainID]
	if !ok {
		return &errs.ChainConfigurationDoesNotExist{ChainID: chainID}
	}
	chain.AddPaymaster(tokenID, initialBalance)
	return nil
}

// AddSenderWhitelist / RemoveSenderWhitelist and their receiver-side
// counterparts manage the owner-controlled whitelists named in spec.md §6
// (is_sender_whitelist_enabled / is_receiver_whitelist_enabled).
func (e *Engine) AddSenderWhitelist(caller, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.senderWhitelist[account] = true
	return nil
}

func (e *Engine) RemoveSenderWhitelist(caller, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	delete(e.senderWhitelist, account)
	return nil
}

func (e *Engine) AddReceiverWhitelist(caller, address string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.receiverWhitelist[address] = true
	return nil
}

func (e *Engine) RemoveReceiverWhitelist(caller, address string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	delete(e.receiverWhitelist, address)
	return nil
}

// DebugReset drops every pending sequence without refunding escrow or
// paymaster reservations. Owner-gated and additionally requires the process
// to have been started with debug endpoints enabled, mirroring the
// original's cfg(feature = "debug") gate (§9 supplemented features).
func (e *Engine) DebugReset(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !e.debugEnabled {
		return &errs.DebugDisabled{}
	}
	e.sequences = make(map[uint64]*Pending)
	e.nextID = 0
	return nil
}
