package api

import (
	"encoding/json"
	"net/http"
)

type issueSessionRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	var req issueSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
		return
	}
	token, err := s.sessions.IssueSession(req.AccountID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
