package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/umbra-network/xchain-gas-station/internal/auth"
	"github.com/umbra-network/xchain-gas-station/internal/keytoken"
	"github.com/umbra-network/xchain-gas-station/internal/sequence"
)

// Server is the gas station's HTTP API. It owns no state of its own beyond
// its collaborators; every request is an atomic call into the sequence
// engine or key-token registry.
type Server struct {
	engine    *sequence.Engine
	keytokens *keytoken.Registry
	sessions  *auth.Manager
}

// NewServer wires a Server against its collaborators.
func NewServer(engine *sequence.Engine, keytokens *keytoken.Registry, sessions *auth.Manager) *Server {
	return &Server{engine: engine, keytokens: keytokens, sessions: sessions}
}

type callerKey struct{}

// callerFromContext returns the bearer-authenticated account id, set by
// requireAuth.
func callerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(callerKey{}).(string)
	return v
}

// requireAuth validates the Authorization: Bearer <token> header and, on
// success, invokes next with the caller's account id injected into the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		claims, err := s.sessions.ValidateSession(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		ctx := context.WithValue(r.Context(), callerKey{}, claims.AccountID)
		next(w, r.WithContext(ctx))
	}
}

// ServeHTTP implements http.Handler with a small manual path dispatch,
// matching the teacher's no-router-library style.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/v1/auth/session" && r.Method == http.MethodPost:
		s.handleIssueSession(w, r)

	case path == "/v1/transactions" && r.Method == http.MethodPost:
		s.requireAuth(s.handleCreateTransaction)(w, r)
	case path == "/v1/transactions" && r.Method == http.MethodGet:
		s.requireAuth(s.handleListPending)(w, r)
	case path == "/v1/transactions/signed" && r.Method == http.MethodGet:
		s.requireAuth(s.handleListSigned)(w, r)

	case path == "/v1/assets/ft-on-transfer" && r.Method == http.MethodPost:
		s.requireAuth(s.handleFtOnTransfer)(w, r)

	case strings.HasPrefix(path, "/v1/transactions/") && strings.HasSuffix(path, "/sign-next") && r.Method == http.MethodPost:
		s.requireAuth(s.withSequenceID(s.handleSignNext, "/v1/transactions/", "/sign-next"))(w, r)
	case strings.HasPrefix(path, "/v1/transactions/") && r.Method == http.MethodDelete:
		s.requireAuth(s.withSequenceID(s.handleRemoveTransaction, "/v1/transactions/", ""))(w, r)
	case strings.HasPrefix(path, "/v1/transactions/") && r.Method == http.MethodGet:
		s.requireAuth(s.withSequenceID(s.handleGetPending, "/v1/transactions/", ""))(w, r)

	case strings.HasPrefix(path, "/v1/keytokens/"):
		s.requireAuth(s.dispatchKeytoken)(w, r)

	case strings.HasPrefix(path, "/v1/admin/"):
		s.requireAuth(s.dispatchAdmin)(w, r)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

// withSequenceID extracts the {id} path segment between prefix and suffix and
// hands it to next as a uint64, responding 400 on a malformed id.
func (s *Server) withSequenceID(next func(http.ResponseWriter, *http.Request, uint64), prefix, suffix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), suffix)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sequence id"})
			return
		}
		next(w, r, id)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
