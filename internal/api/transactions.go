package api

import (
	"encoding/json"
	"net/http"

	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/sequence"
)

// depositPayload is the §6 deposit shape attached to a paymaster-path
// create_transaction call: the asset the caller is paying the fee with.
type depositPayload struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

type createTransactionRequest struct {
	TokenID           uint32          `json:"token_id"`
	ApprovalID        *uint32         `json:"approval_id,omitempty"`
	Path              string          `json:"path"`
	TransactionRLPHex string          `json:"transaction_rlp_hex"`
	UsePaymaster      bool            `json:"use_paymaster"`
	Deposit           *depositPayload `json:"deposit,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())

	if !req.UsePaymaster {
		seq, err := s.engine.CreateTransaction(r.Context(), caller, req.TokenID, req.ApprovalID, req.Path, req.TransactionRLPHex)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, pendingToJSON(seq))
		return
	}

	if req.Deposit == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deposit is required when use_paymaster is true"})
		return
	}
	amount, err := uint256.FromDecimal(req.Deposit.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deposit.amount is not a valid decimal integer"})
		return
	}

	seq, err := s.engine.CreateTransactionWithPaymaster(
		r.Context(), caller, req.TokenID, req.ApprovalID, req.Path, req.TransactionRLPHex,
		req.Deposit.AssetID, amount,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pendingToJSON(seq))
}

func (s *Server) handleSignNext(w http.ResponseWriter, r *http.Request, id uint64) {
	caller := callerFromContext(r.Context())
	signedHex, completed, err := s.engine.SignNext(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signed_rlp_hex": signedHex,
		"completed":      completed,
	})
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request, id uint64) {
	caller := callerFromContext(r.Context())
	if err := s.engine.RemoveTransaction(caller, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request, id uint64) {
	seq, err := s.engine.GetPending(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingToJSON(seq))
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	seqs := s.engine.ListPending(accountID, offset, limit)
	out := make([]interface{}, len(seqs))
	for i, seq := range seqs {
		out[i] = pendingToJSON(seq)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sequences": out})
}

func (s *Server) handleListSigned(w http.ResponseWriter, r *http.Request) {
	after := uint64(queryInt(r, "after", 0))
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	events := s.engine.ListAfter(after, offset, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"signed": events})
}

// ftOnTransferMsg is the §6 fungible-token-receiver message payload.
type ftOnTransferMsg struct {
	TokenID           uint32 `json:"token_id"`
	TransactionRLPHex string `json:"transaction_rlp_hex"`
	UsePaymaster      bool   `json:"use_paymaster"`
}

type ftOnTransferRequest struct {
	SenderID string `json:"sender_id"`
	Amount   string `json:"amount"`
	AssetID  string `json:"asset_id"`
	Msg      string `json:"msg"`
}

// handleFtOnTransfer mirrors the NEP-141 ft_on_transfer convention: it
// returns how much of the transferred amount was NOT consumed, so the
// (simulated) token contract knows how much to refund the sender. Unparseable
// amounts or messages, and any create failure, return the full amount
// untouched (§9 decision #4: the created sequence id is not returned here).
// asset_id is not checked against a set of supported assets: any asset id is
// accepted and, on the paymaster path, becomes the escrow asset.
func (s *Server) handleFtOnTransfer(w http.ResponseWriter, r *http.Request) {
	var req ftOnTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}

	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": req.Amount})
		return
	}

	var msg ftOnTransferMsg
	if err := json.Unmarshal([]byte(req.Msg), &msg); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": amount.String()})
		return
	}

	if !msg.UsePaymaster {
		// The non-paymaster path needs no deposit; nothing to consume.
		if _, err := s.engine.CreateTransaction(r.Context(), req.SenderID, msg.TokenID, nil, "", msg.TransactionRLPHex); err != nil {
			writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": amount.String()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": amount.String()})
		return
	}

	_, err = s.engine.CreateTransactionWithPaymaster(
		r.Context(), req.SenderID, msg.TokenID, nil, "", msg.TransactionRLPHex,
		req.AssetID, amount,
	)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": amount.String()})
		return
	}
	// Any excess over the computed fee was already credited back to the
	// sender via the ledger inside CreateTransactionWithPaymaster.
	writeJSON(w, http.StatusOK, map[string]string{"unconsumed_amount": "0"})
}

func pendingToJSON(seq *sequence.Pending) map[string]interface{} {
	requests := make([]map[string]interface{}, len(seq.Requests))
	for i, req := range seq.Requests {
		requests[i] = map[string]interface{}{
			"status":         req.Status.String(),
			"token_id":       req.TokenID,
			"path":           req.Path,
			"is_paymaster":   req.IsPaymaster,
			"signed_rlp_hex": req.SignedRLPHex,
		}
	}
	out := map[string]interface{}{
		"id":                      seq.ID,
		"created_by":              seq.CreatedBy,
		"created_at_block_height": seq.CreatedAtBlockHeight,
		"chain_id":                seq.ChainID,
		"requests":                requests,
	}
	if seq.Escrow != nil {
		out["escrow"] = map[string]interface{}{
			"asset_id": seq.Escrow.AssetID,
			"amount":   seq.Escrow.Amount.String(),
		}
	}
	return out
}
