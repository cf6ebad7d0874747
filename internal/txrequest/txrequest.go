// Package txrequest normalizes user-supplied EIP-1559 transaction bodies
// (C2): decoding hex-RLP into a Valid request, and converting a Valid
// request back into a signable typed transaction whose sighash matches the
// caller's encoding byte-for-byte.
package txrequest

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/errs"
)

// defaultAccessListRLP is the RLP encoding of an empty list, 0xc0.
var defaultAccessListRLP = []byte{0xc0}

// Valid is a normalized EIP-1559 transaction request, captured verbatim from
// the caller's RLP so the eventual signed sighash matches byte-for-byte.
type Valid struct {
	To                   common.Address
	Gas                  uint64
	Value                *uint256.Int
	Nonce                uint64
	MaxFeePerGas         *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	Data                 []byte
	AccessListRLP        []byte
	ChainID              uint64
}

// rlpBody mirrors the unsigned EIP-1559 transaction body field order:
// [chainId, nonce, maxPriorityFeePerGas, maxFeePerGas, gas, to, value, data, accessList].
type rlpBody struct {
	ChainID              *big.Int
	Nonce                uint64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	Gas                  uint64
	To                   []byte
	Value                *big.Int
	Data                 []byte
	AccessList           rlp.RawValue
}

// FromHexRLP decodes a hex-encoded (optionally 0x-prefixed) RLP body into a
// Valid request.
func FromHexRLP(hexStr string) (*Valid, error) {
	trimmed := strings.TrimPrefix(hexStr, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &errs.BadHex{Field: "transaction_rlp_hex"}
	}

	var body rlpBody
	if err := rlp.DecodeBytes(raw, &body); err != nil {
		return nil, &errs.BadRlp{Reason: err.Error()}
	}

	if body.ChainID == nil {
		return nil, &errs.MissingField{Name: "chain_id"}
	}
	if body.MaxFeePerGas == nil {
		return nil, &errs.MissingField{Name: "max_fee_per_gas"}
	}
	if body.MaxPriorityFeePerGas == nil {
		return nil, &errs.MissingField{Name: "max_priority_fee_per_gas"}
	}
	if body.Value == nil {
		return nil, &errs.MissingField{Name: "value"}
	}
	if len(body.To) != common.AddressLength {
		return nil, &errs.InvalidReceiver{Value: hex.EncodeToString(body.To)}
	}

	accessListRLP := defaultAccessListRLP
	if len(body.AccessList) > 0 {
		accessListRLP = []byte(body.AccessList)
	}

	maxFee, overflow := uint256.FromBig(body.MaxFeePerGas)
	if overflow {
		return nil, &errs.Overflow{Reason: "max_fee_per_gas exceeds 256 bits"}
	}
	maxPriority, overflow := uint256.FromBig(body.MaxPriorityFeePerGas)
	if overflow {
		return nil, &errs.Overflow{Reason: "max_priority_fee_per_gas exceeds 256 bits"}
	}
	value, overflow := uint256.FromBig(body.Value)
	if overflow {
		return nil, &errs.Overflow{Reason: "value exceeds 256 bits"}
	}

	return &Valid{
		To:                   common.BytesToAddress(body.To),
		Gas:                  body.Gas,
		Value:                value,
		Nonce:                body.Nonce,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: maxPriority,
		Data:                 body.Data,
		AccessListRLP:        accessListRLP,
		ChainID:              body.ChainID.Uint64(),
	}, nil
}

// ToTypedTransaction converts the Valid request into a go-ethereum typed
// transaction ready for sighash computation and, once signed, RLP encoding.
func (v *Valid) ToTypedTransaction() (*types.Transaction, error) {
	var accessList types.AccessList
	if err := rlp.DecodeBytes(v.AccessListRLP, &accessList); err != nil {
		return nil, fmt.Errorf("decoding access list: %w", err)
	}

	to := v.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:    new(big.Int).SetUint64(v.ChainID),
		Nonce:      v.Nonce,
		GasTipCap:  v.MaxPriorityFeePerGas.ToBig(),
		GasFeeCap:  v.MaxFeePerGas.ToBig(),
		Gas:        v.Gas,
		To:         &to,
		Value:      v.Value.ToBig(),
		Data:       v.Data,
		AccessList: accessList,
	})
	return tx, nil
}

// Sighash returns the 32-byte EIP-1559 signing hash for this request.
func (v *Valid) Sighash() ([32]byte, error) {
	tx, err := v.ToTypedTransaction()
	if err != nil {
		return [32]byte{}, err
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(v.ChainID))
	hash := signer.Hash(tx)
	var out [32]byte
	copy(out[:], hash.Bytes())
	return out, nil
}

// WithSignature applies an (r, s, v) signature to the typed transaction and
// returns the RLP-encoded signed bytes, 0x-prefixed.
func (v *Valid) WithSignature(r, s *big.Int, yParity uint64) (string, error) {
	tx, err := v.ToTypedTransaction()
	if err != nil {
		return "", err
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(v.ChainID))
	signed, err := tx.WithSignature(signer, encodeSignature(r, s, yParity))
	if err != nil {
		return "", fmt.Errorf("applying signature: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encoding signed transaction: %w", err)
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// encodeSignature packs (r, s, yParity) into go-ethereum's 65-byte signature
// layout (R || S || V, V in {0,1} for typed transactions).
func encodeSignature(r, s *big.Int, yParity uint64) []byte {
	sig := make([]byte, 65)
	rBytes := r.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	sBytes := s.Bytes()
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(yParity)
	return sig
}
