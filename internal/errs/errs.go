// Package errs defines the typed error taxonomy shared across the gas
// station engine: validation, authorization, state, pricing, economic, and
// external-collaborator failures. Each kind is its own struct implementing
// error so callers can errors.As into the specific shape they need instead
// of string-matching.
package errs

import "fmt"

// --- Validation ---

type BadHex struct{ Field string }

func (e *BadHex) Error() string { return fmt.Sprintf("%s: not valid hex", e.Field) }

type BadRlp struct{ Reason string }

func (e *BadRlp) Error() string { return fmt.Sprintf("malformed rlp: %s", e.Reason) }

type MissingField struct{ Name string }

func (e *MissingField) Error() string { return fmt.Sprintf("missing required field: %s", e.Name) }

type InvalidReceiver struct{ Value string }

func (e *InvalidReceiver) Error() string {
	return fmt.Sprintf("receiver %q is not a literal address", e.Value)
}

type UnsupportedDepositAsset struct{ AssetID string }

func (e *UnsupportedDepositAsset) Error() string {
	return fmt.Sprintf("unsupported deposit asset: %s", e.AssetID)
}

type ChainConfigurationDoesNotExist struct{ ChainID uint64 }

func (e *ChainConfigurationDoesNotExist) Error() string {
	return fmt.Sprintf("no chain configuration for chain id %d", e.ChainID)
}

// --- Authorization ---

type SenderNotWhitelisted struct{ AccountID string }

func (e *SenderNotWhitelisted) Error() string {
	return fmt.Sprintf("sender %s is not whitelisted", e.AccountID)
}

type ReceiverNotWhitelisted struct{ Address string }

func (e *ReceiverNotWhitelisted) Error() string {
	return fmt.Sprintf("receiver %s is not whitelisted", e.Address)
}

type NotCreator struct{ AccountID string }

func (e *NotCreator) Error() string {
	return fmt.Sprintf("%s is not the sequence creator", e.AccountID)
}

type UnauthorizedForToken struct {
	AccountID string
	TokenID   uint32
}

func (e *UnauthorizedForToken) Error() string {
	return fmt.Sprintf("%s is not authorized for token %d", e.AccountID, e.TokenID)
}

type UnknownNftContract struct{ ContractID string }

func (e *UnknownNftContract) Error() string {
	return fmt.Sprintf("unknown nft contract: %s", e.ContractID)
}

type Paused struct{}

func (e *Paused) Error() string { return "contract is paused" }

// NotOwner gates the admin surface (pause, whitelist/chain management, fee
// withdrawal, debug reset) added in this port's supplemented-features set.
type NotOwner struct{ AccountID string }

func (e *NotOwner) Error() string {
	return fmt.Sprintf("%s is not the contract owner", e.AccountID)
}

// DebugDisabled gates the debug reset surface behind a runtime flag,
// mirroring the original contract's cfg(feature = "debug") build gate.
type DebugDisabled struct{}

func (e *DebugDisabled) Error() string { return "debug endpoints are disabled" }

// --- State ---

type SequenceDoesNotExist struct{ ID uint64 }

func (e *SequenceDoesNotExist) Error() string {
	return fmt.Sprintf("sequence %d does not exist", e.ID)
}

type SignatureRequestDoesNotExist struct {
	SequenceID uint64
	Index      int
}

func (e *SignatureRequestDoesNotExist) Error() string {
	return fmt.Sprintf("sequence %d has no request at index %d", e.SequenceID, e.Index)
}

type NoPendingRequests struct{ SequenceID uint64 }

func (e *NoPendingRequests) Error() string {
	return fmt.Sprintf("sequence %d has no pending requests", e.SequenceID)
}

type NotInFlight struct {
	SequenceID uint64
	Index      int
}

func (e *NotInFlight) Error() string {
	return fmt.Sprintf("sequence %d request %d is not in flight", e.SequenceID, e.Index)
}

type Expired struct{ SequenceID uint64 }

func (e *Expired) Error() string { return fmt.Sprintf("sequence %d has expired", e.SequenceID) }

type InFlightCannotRemove struct{ SequenceID uint64 }

func (e *InFlightCannotRemove) Error() string {
	return fmt.Sprintf("sequence %d has an in-flight request and cannot be removed", e.SequenceID)
}

// InconsistentState is raised when the host's own bookkeeping contradicts
// itself; the original reports this as a panic. This port returns it as an
// error rather than crashing the process.
type InconsistentState struct{ Reason string }

func (e *InconsistentState) Error() string { return fmt.Sprintf("inconsistent state: %s", e.Reason) }

// --- Arithmetic / pricing ---

type NegativePrice struct{ AssetID string }

func (e *NegativePrice) Error() string {
	return fmt.Sprintf("price for %s is not positive", e.AssetID)
}

type ConfidenceIntervalTooLarge struct{ AssetID string }

func (e *ConfidenceIntervalTooLarge) Error() string {
	return fmt.Sprintf("confidence interval for %s is too large relative to price", e.AssetID)
}

type ExponentTooLarge struct{ Exponent int32 }

func (e *ExponentTooLarge) Error() string {
	return fmt.Sprintf("exponent %d exceeds computable range", e.Exponent)
}

type Overflow struct{ Reason string }

func (e *Overflow) Error() string { return fmt.Sprintf("arithmetic overflow: %s", e.Reason) }

// --- Economic ---

type InsufficientDeposit struct {
	Required string
	Given    string
}

func (e *InsufficientDeposit) Error() string {
	return fmt.Sprintf("deposit %s is insufficient, required %s", e.Given, e.Required)
}

type PaymasterInsufficientFunds struct {
	MinAvailable string
	Amount       string
}

func (e *PaymasterInsufficientFunds) Error() string {
	return fmt.Sprintf("paymaster has %s available, needs %s", e.MinAvailable, e.Amount)
}

type NoPaymasters struct{ ChainID uint64 }

func (e *NoPaymasters) Error() string {
	return fmt.Sprintf("chain %d has no configured paymasters", e.ChainID)
}

// --- Oracle / signer ---

type OracleFailure struct{ Reason string }

func (e *OracleFailure) Error() string { return fmt.Sprintf("oracle call failed: %s", e.Reason) }

type SignerFailure struct{ Reason string }

func (e *SignerFailure) Error() string { return fmt.Sprintf("signer call failed: %s", e.Reason) }

type BadSignatureEncoding struct{ Reason string }

func (e *BadSignatureEncoding) Error() string {
	return fmt.Sprintf("bad signature encoding: %s", e.Reason)
}
