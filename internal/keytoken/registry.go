// Package keytoken implements the key-token (NFT-like) registry (C5):
// ownership, transfer, burn, approvals with revoke-on-transfer semantics,
// and the signing-authorization check consumed by the sequence engine.
package keytoken

import (
	"context"
	"strconv"
	"sync"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
	"github.com/umbra-network/xchain-gas-station/internal/signer"
)

// Token is one key-token's state: owner, signer key version, and the set of
// accounts currently approved to sign on the owner's behalf.
type Token struct {
	ID         uint32
	Owner      string
	KeyVersion uint32
	// Approvals maps an approved account to the approval id granted to it.
	Approvals map[string]uint32
}

// Authorization records how a caller is allowed to act on a token: either as
// its owner, or as an approved account holding a specific approval id.
type Authorization struct {
	Owned      bool
	ApprovalID uint32
}

// Registry owns all key-tokens and the shared token/approval id counter.
type Registry struct {
	mu     sync.Mutex
	tokens map[uint32]*Token
	nextID uint32
	signer signer.Client
}

// NewRegistry creates an empty registry backed by the given MPC signer.
func NewRegistry(signerClient signer.Client) *Registry {
	return &Registry{
		tokens: make(map[uint32]*Token),
		signer: signerClient,
	}
}

// allocateID draws the next id from the single counter shared by token
// issuance and approval-id issuance.
func (r *Registry) allocateID() uint32 {
	r.nextID++
	return r.nextID
}

// Mint creates a new token owned by owner, fetching the signer's current
// latest key version.
func (r *Registry) Mint(ctx context.Context, owner string) (*Token, error) {
	version, err := r.signer.LatestKeyVersion(ctx)
	if err != nil {
		return nil, &errs.SignerFailure{Reason: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tok := &Token{
		ID:         r.allocateID(),
		Owner:      owner,
		KeyVersion: version,
		Approvals:  make(map[string]uint32),
	}
	r.tokens[tok.ID] = tok
	return tok, nil
}

// Get returns the token by id, or errs.UnauthorizedForToken-flavoured
// lookup failure.
func (r *Registry) Get(tokenID uint32) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[tokenID]
	if !ok {
		return nil, &errs.UnauthorizedForToken{TokenID: tokenID}
	}
	// Return a shallow copy of the approvals map so callers cannot mutate
	// registry state without going through the registry's methods.
	cp := *tok
	cp.Approvals = make(map[string]uint32, len(tok.Approvals))
	for k, v := range tok.Approvals {
		cp.Approvals[k] = v
	}
	return &cp, nil
}

// Transfer moves ownership from caller to recipient. Caller must be the
// current owner. Approvals are cleared atomically with the ownership change.
func (r *Registry) Transfer(caller string, tokenID uint32, recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner != caller {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	tok.Owner = recipient
	tok.Approvals = make(map[string]uint32)
	return nil
}

// Burn removes a token entirely. Caller must be the owner (burn-by-approval
// is intentionally not exposed, mirroring the NFT-like interface's ckt_*
// surface). Approvals are cleared as part of removal.
func (r *Registry) Burn(caller string, tokenID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner != caller {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	delete(r.tokens, tokenID)
	return nil
}

// Approve grants account the right to sign on behalf of tokenID, returning
// the freshly allocated approval id. Caller must be the owner.
func (r *Registry) Approve(caller string, tokenID uint32, account string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return 0, &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner != caller {
		return 0, &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}

	approvalID := r.allocateID()
	tok.Approvals[account] = approvalID
	return approvalID, nil
}

// ApproveCallback is implemented by approval-receiver contracts' on_approved
// hook: return false to roll back the approval just granted.
type ApproveCallback func(owner string, tokenID uint32, approvalID uint32, msg string) bool

// ApproveCall grants an approval and then invokes cb; if cb returns false,
// the approval is rolled back.
func (r *Registry) ApproveCall(caller string, tokenID uint32, account string, msg string, cb ApproveCallback) (uint32, error) {
	approvalID, err := r.Approve(caller, tokenID, account)
	if err != nil {
		return 0, err
	}
	if cb != nil && !cb(caller, tokenID, approvalID, msg) {
		r.Revoke(caller, tokenID, account)
		return 0, nil
	}
	return approvalID, nil
}

// Revoke removes a single account's approval. Caller must be the owner.
func (r *Registry) Revoke(caller string, tokenID uint32, account string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner != caller {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	delete(tok.Approvals, account)
	return nil
}

// RevokeAll clears every approval on the token. Caller must be the owner.
func (r *Registry) RevokeAll(caller string, tokenID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner != caller {
		return &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	tok.Approvals = make(map[string]uint32)
	return nil
}

// Authorize checks whether caller may sign under tokenID, either as its
// owner or as an account holding a still-valid approval id.
func (r *Registry) Authorize(caller string, tokenID uint32, approvalID *uint32) (Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[tokenID]
	if !ok {
		return Authorization{}, &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	if tok.Owner == caller {
		return Authorization{Owned: true}, nil
	}
	granted, ok := tok.Approvals[caller]
	if !ok || (approvalID != nil && granted != *approvalID) {
		return Authorization{}, &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	return Authorization{Owned: false, ApprovalID: granted}, nil
}

// SignHash forwards a signing request to the MPC signer under this token's
// derivation path "{token_id},{path}" and current key version. caller must
// be the token's owner, or an account holding a still-valid approval id
// (§4.5: "caller ≡ owner OR approvals[caller] == approval_id").
func (r *Registry) SignHash(ctx context.Context, caller string, tokenID uint32, path string, payload [32]byte, approvalID *uint32) (signer.Signature, error) {
	if _, err := r.Authorize(caller, tokenID, approvalID); err != nil {
		return signer.Signature{}, err
	}

	r.mu.Lock()
	tok, ok := r.tokens[tokenID]
	if !ok {
		r.mu.Unlock()
		return signer.Signature{}, &errs.UnauthorizedForToken{AccountID: caller, TokenID: tokenID}
	}
	version := tok.KeyVersion
	r.mu.Unlock()

	derivationPath := DerivationPath(tokenID, path)
	sig, err := r.signer.Sign(ctx, payload, derivationPath, version)
	if err != nil {
		return signer.Signature{}, &errs.SignerFailure{Reason: err.Error()}
	}
	return sig, nil
}

func DerivationPath(tokenID uint32, path string) string {
	return strconv.FormatUint(uint64(tokenID), 10) + "," + path
}
