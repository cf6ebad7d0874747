package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/umbra-network/xchain-gas-station/internal/keytoken"
)

// dispatchKeytoken routes the key-token (NFT-like) interface (§6):
// /v1/keytokens/mint, and /v1/keytokens/{id}/{action}.
func (s *Server) dispatchKeytoken(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/keytokens/")
	rest = strings.Trim(rest, "/")

	if rest == "mint" && r.Method == http.MethodPost {
		s.handleMint(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	tokenID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid token id"})
		return
	}

	switch {
	case parts[1] == "transfer" && r.Method == http.MethodPost:
		s.handleTransfer(w, r, uint32(tokenID))
	case parts[1] == "burn" && r.Method == http.MethodPost:
		s.handleBurn(w, r, uint32(tokenID))
	case parts[1] == "approve" && r.Method == http.MethodPost:
		s.handleApprove(w, r, uint32(tokenID))
	case parts[1] == "approve_call" && r.Method == http.MethodPost:
		s.handleApproveCall(w, r, uint32(tokenID))
	case parts[1] == "revoke" && r.Method == http.MethodPost:
		s.handleRevoke(w, r, uint32(tokenID))
	case parts[1] == "revoke_all" && r.Method == http.MethodPost:
		s.handleRevokeAll(w, r, uint32(tokenID))
	case parts[1] == "sign_hash" && r.Method == http.MethodPost:
		s.handleSignHash(w, r, uint32(tokenID))
	case parts[1] == "public_key_for" && r.Method == http.MethodGet:
		s.handlePublicKeyFor(w, r, uint32(tokenID))
	case parts[1] == "" && r.Method == http.MethodGet:
		s.handleGetToken(w, r, uint32(tokenID))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerAccountID string `json:"owner_account_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	owner := req.OwnerAccountID
	if owner == "" {
		owner = callerFromContext(r.Context())
	}
	tok, err := s.keytokens.Mint(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenToJSON(tok))
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	tok, err := s.keytokens.Get(tokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenToJSON(tok))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())
	if err := s.keytokens.Transfer(caller, tokenID, req.Recipient); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	caller := callerFromContext(r.Context())
	if err := s.keytokens.Burn(caller, tokenID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())
	approvalID, err := s.keytokens.Approve(caller, tokenID, req.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"approval_id": approvalID})
}

// handleApproveCall grants the approval; this HTTP port has no cross-service
// on_approved callback to invoke (the account approved is an off-process
// caller, not another component in this binary), so it always keeps the
// approval — equivalent to a callback that always returns true.
func (s *Server) handleApproveCall(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	var req struct {
		AccountID string `json:"account_id"`
		Msg       string `json:"msg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())
	approvalID, err := s.keytokens.ApproveCall(caller, tokenID, req.AccountID, req.Msg, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"approval_id": approvalID})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())
	if err := s.keytokens.Revoke(caller, tokenID, req.AccountID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	caller := callerFromContext(r.Context())
	if err := s.keytokens.RevokeAll(caller, tokenID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSignHash(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	var req struct {
		Path       string  `json:"path"`
		PayloadHex string  `json:"payload_hex"`
		ApprovalID *uint32 `json:"approval_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(req.PayloadHex, "0x"))
	if err != nil || len(raw) != 32 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload_hex must be 32 bytes of hex"})
		return
	}
	var payload [32]byte
	copy(payload[:], raw)

	caller := callerFromContext(r.Context())
	sig, err := s.keytokens.SignHash(r.Context(), caller, tokenID, req.Path, payload, req.ApprovalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"r_hex":    hex.EncodeToString(sig.R.Bytes()),
		"s_hex":    hex.EncodeToString(sig.S.Bytes()),
		"y_parity": sig.YParity,
	})
}

func (s *Server) handlePublicKeyFor(w http.ResponseWriter, r *http.Request, tokenID uint32) {
	path := r.URL.Query().Get("path")
	addr, err := s.engine.DeriveAddress(r.Context(), tokenID, path)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.String()})
}

func tokenToJSON(tok *keytoken.Token) map[string]interface{} {
	return map[string]interface{}{
		"id":          tok.ID,
		"owner":       tok.Owner,
		"key_version": tok.KeyVersion,
		"approvals":   tok.Approvals,
	}
}
