// Package api implements the HTTP JSON surface (C8): bearer-JWT caller
// identity per request and one handler per operation named in spec.md §6,
// restructured from the teacher's x402 payment-gate middleware around the
// gas-station's own endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a typed internal/errs error to an HTTP status and a small
// JSON body, the same "typed error → response" shape as the teacher's
// send402WithReason.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor implements the fixed table from SPEC_FULL.md §4.8: Validation →
// 400, Authorization → 403, State → 409, Economic → 402, Oracle/signer → 502.
func statusFor(err error) int {
	switch err.(type) {
	// Validation
	case *errs.BadHex, *errs.BadRlp, *errs.MissingField, *errs.InvalidReceiver,
		*errs.UnsupportedDepositAsset, *errs.ChainConfigurationDoesNotExist:
		return http.StatusBadRequest

	// Authorization
	case *errs.SenderNotWhitelisted, *errs.ReceiverNotWhitelisted, *errs.NotCreator,
		*errs.UnauthorizedForToken, *errs.UnknownNftContract, *errs.Paused,
		*errs.NotOwner, *errs.DebugDisabled:
		return http.StatusForbidden

	// State
	case *errs.SequenceDoesNotExist, *errs.SignatureRequestDoesNotExist,
		*errs.NoPendingRequests, *errs.NotInFlight, *errs.Expired,
		*errs.InFlightCannotRemove, *errs.InconsistentState:
		return http.StatusConflict

	// Economic / pricing
	case *errs.InsufficientDeposit, *errs.PaymasterInsufficientFunds,
		*errs.NoPaymasters, *errs.Overflow, *errs.NegativePrice,
		*errs.ConfidenceIntervalTooLarge, *errs.ExponentTooLarge:
		return http.StatusPaymentRequired

	// Oracle / signer
	case *errs.OracleFailure, *errs.SignerFailure, *errs.BadSignatureEncoding:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
