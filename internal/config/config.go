// Package config loads the gas station's environment-driven configuration:
// signer/oracle endpoints, sequence expiry, whitelist feature flags, auth
// secret, and the per-chain paymaster configuration file.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ChainConfig is one foreign chain's configuration as loaded from the JSON
// chain-config file, analogous to the contract constructor's chain-config
// arguments.
type ChainConfig struct {
	ChainID       uint64 `json:"chain_id"`
	OracleAssetID string `json:"oracle_asset_id"`
	TransferGas   uint64 `json:"transfer_gas"`
	FeeRateNum    uint64 `json:"fee_rate_num"`
	FeeRateDenom  uint64 `json:"fee_rate_denom"`
	Decimals      uint8  `json:"decimals"`
	Paymasters    []struct {
		TokenID        uint32 `json:"token_id"`
		InitialBalance string `json:"initial_balance"`
	} `json:"paymasters"`
}

// Config holds all gas-station process configuration.
type Config struct {
	// SignerURL is the MPC signer's base URL.
	SignerURL string
	// OracleURL is the price oracle's base URL.
	OracleURL string
	// LocalAssetOracleID is the oracle_asset_id for the local payment asset
	// used on the "this" side of every fee computation.
	LocalAssetOracleID string

	// ExpireSequenceAfterBlocks bounds how long a pending sequence may be
	// advanced before sign_next starts refusing it (default 300).
	ExpireSequenceAfterBlocks uint64

	// IsSenderWhitelistEnabled / IsReceiverWhitelistEnabled gate
	// create_transaction on membership in the owner-managed whitelists.
	IsSenderWhitelistEnabled   bool
	IsReceiverWhitelistEnabled bool

	// DebugEndpointsEnabled gates the owner-only debug reset surface,
	// mirroring the original contract's cfg(feature = "debug") gate with a
	// runtime flag since this port has no build-time contract features.
	DebugEndpointsEnabled bool

	// Owner is the account id allowed to call admin/management endpoints.
	Owner string

	// JWTSecret signs and verifies caller-identity session tokens.
	JWTSecret []byte
	// SessionExpiry is how long issued session tokens remain valid.
	SessionExpiry time.Duration

	// EventLogCapacity bounds the in-memory signed-sequence log (C7).
	EventLogCapacity int

	// Port is the HTTP listen port.
	Port int

	// Chains is the set of foreign chains loaded from the JSON file named by
	// CHAINS_CONFIG_PATH.
	Chains []ChainConfig
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first, if present.
func Load() (*Config, error) {
	_ = godotenv.Load() // no-op if .env absent

	cfg := &Config{
		SignerURL:                  getEnv("SIGNER_URL", "http://localhost:3030"),
		OracleURL:                  getEnv("ORACLE_URL", "http://localhost:3040"),
		LocalAssetOracleID:         getEnv("LOCAL_ASSET_ORACLE_ID", "wrap.testnet"),
		ExpireSequenceAfterBlocks:  uint64(getEnvInt("EXPIRE_SEQUENCE_AFTER_BLOCKS", 300)),
		IsSenderWhitelistEnabled:   getEnvBool("IS_SENDER_WHITELIST_ENABLED", false),
		IsReceiverWhitelistEnabled: getEnvBool("IS_RECEIVER_WHITELIST_ENABLED", false),
		DebugEndpointsEnabled:      getEnvBool("DEBUG_ENDPOINTS_ENABLED", false),
		Owner:                      getEnv("OWNER_ACCOUNT_ID", ""),
		SessionExpiry:              time.Duration(getEnvInt("TOKEN_EXPIRY_HOURS", 168)) * time.Hour,
		EventLogCapacity:           getEnvInt("EVENT_LOG_CAPACITY", 10_000),
		Port:                       getEnvInt("PORT", 8080),
	}

	jwtHex := getEnv("JWT_SECRET", "")
	if jwtHex == "" {
		return nil, fmt.Errorf("JWT_SECRET env var is required (32-byte hex)")
	}
	secret, err := hex.DecodeString(jwtHex)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET must be valid hex: %w", err)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes (64 hex chars)")
	}
	cfg.JWTSecret = secret

	if path := getEnv("CHAINS_CONFIG_PATH", ""); path != "" {
		chains, err := loadChains(path)
		if err != nil {
			return nil, fmt.Errorf("loading chain config: %w", err)
		}
		cfg.Chains = chains
	}

	return cfg, nil
}

func loadChains(path string) ([]ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chains []ChainConfig
	if err := json.Unmarshal(data, &chains); err != nil {
		return nil, fmt.Errorf("parsing chain config json: %w", err)
	}
	return chains, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
