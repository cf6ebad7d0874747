package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/paymaster"
)

// dispatchAdmin routes the owner-gated management surface added in
// SPEC_FULL.md's supplemented-features section (impl_management.rs,
// impl_debug.rs in the original).
func (s *Server) dispatchAdmin(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/"), "/")

	switch {
	case rest == "pause" && r.Method == http.MethodPost:
		s.handlePause(w, r)
	case rest == "unpause" && r.Method == http.MethodPost:
		s.handleUnpause(w, r)
	case rest == "withdraw-fees" && r.Method == http.MethodPost:
		s.handleWithdrawFees(w, r)
	case rest == "whitelist/sender" && r.Method == http.MethodPost:
		s.handleWhitelist(w, r, true, true)
	case rest == "whitelist/sender" && r.Method == http.MethodDelete:
		s.handleWhitelist(w, r, true, false)
	case rest == "whitelist/receiver" && r.Method == http.MethodPost:
		s.handleWhitelist(w, r, false, true)
	case rest == "whitelist/receiver" && r.Method == http.MethodDelete:
		s.handleWhitelist(w, r, false, false)
	case rest == "chains" && r.Method == http.MethodPost:
		s.handleAddOrUpdateChain(w, r)
	case strings.HasPrefix(rest, "chains/") && strings.HasSuffix(rest, "/paymasters") && r.Method == http.MethodPost:
		s.handleAddPaymaster(w, r, strings.TrimSuffix(strings.TrimPrefix(rest, "chains/"), "/paymasters"))
	case rest == "debug/reset" && r.Method == http.MethodPost:
		s.handleDebugReset(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if err := s.engine.Pause(caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if err := s.engine.Unpause(caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetID string `json:"asset_id"`
		Amount  string `json:"amount"`
		To      string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is not a valid decimal integer"})
		return
	}
	caller := callerFromContext(r.Context())
	if err := s.engine.WithdrawFees(caller, req.AssetID, amount, req.To); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request, sender, add bool) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())

	var err error
	switch {
	case sender && add:
		err = s.engine.AddSenderWhitelist(caller, req.Value)
	case sender && !add:
		err = s.engine.RemoveSenderWhitelist(caller, req.Value)
	case !sender && add:
		err = s.engine.AddReceiverWhitelist(caller, req.Value)
	default:
		err = s.engine.RemoveReceiverWhitelist(caller, req.Value)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddOrUpdateChain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChainID       uint64 `json:"chain_id"`
		TransferGas   uint64 `json:"transfer_gas"`
		FeeRateNum    uint64 `json:"fee_rate_num"`
		FeeRateDenom  uint64 `json:"fee_rate_denom"`
		OracleAssetID string `json:"oracle_asset_id"`
		Decimals      uint8  `json:"decimals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	caller := callerFromContext(r.Context())
	cfg := paymaster.NewConfig(req.ChainID, req.TransferGas, req.FeeRateNum, req.FeeRateDenom, req.OracleAssetID, req.Decimals)
	if err := s.engine.AddOrUpdateChain(caller, cfg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPaymaster(w http.ResponseWriter, r *http.Request, chainIDRaw string) {
	chainID, err := strconv.ParseUint(chainIDRaw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chain id"})
		return
	}
	var req struct {
		TokenID        uint32 `json:"token_id"`
		InitialBalance string `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	balance, err := uint256.FromDecimal(req.InitialBalance)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "initial_balance is not a valid decimal integer"})
		return
	}
	caller := callerFromContext(r.Context())
	if err := s.engine.AddPaymaster(caller, chainID, req.TokenID, balance); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDebugReset(w http.ResponseWriter, r *http.Request) {
	caller := callerFromContext(r.Context())
	if err := s.engine.DebugReset(caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
