package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/holiman/uint256"

	"github.com/umbra-network/xchain-gas-station/internal/api"
	"github.com/umbra-network/xchain-gas-station/internal/auth"
	"github.com/umbra-network/xchain-gas-station/internal/config"
	"github.com/umbra-network/xchain-gas-station/internal/eventlog"
	"github.com/umbra-network/xchain-gas-station/internal/keytoken"
	"github.com/umbra-network/xchain-gas-station/internal/ledger"
	"github.com/umbra-network/xchain-gas-station/internal/oracle"
	"github.com/umbra-network/xchain-gas-station/internal/paymaster"
	"github.com/umbra-network/xchain-gas-station/internal/sequence"
	"github.com/umbra-network/xchain-gas-station/internal/signer"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	oracleClient := oracle.NewHTTPClient(cfg.OracleURL)
	signerClient := signer.NewHTTPClient(cfg.SignerURL)
	keytokens := keytoken.NewRegistry(signerClient)
	assetLedger := ledger.New()
	log := eventlog.NewLog(cfg.EventLogCapacity)
	sessions := auth.NewManager(cfg.JWTSecret, cfg.SessionExpiry)

	engine := sequence.NewEngine(sequence.Config{
		OracleClient:              oracleClient,
		SignerClient:              signerClient,
		KeyTokens:                 keytokens,
		Ledger:                    assetLedger,
		Log:                       log,
		ServiceAccountID:          "gas-station.near",
		LocalAssetOracleID:        cfg.LocalAssetOracleID,
		LocalAssetDecimals:        24,
		ExpireSequenceAfterBlocks: cfg.ExpireSequenceAfterBlocks,
		SenderWhitelistEnabled:    cfg.IsSenderWhitelistEnabled,
		ReceiverWhitelistEnabled:  cfg.IsReceiverWhitelistEnabled,
		Owner:                     cfg.Owner,
		DebugEndpointsEnabled:     cfg.DebugEndpointsEnabled,
	})

	for _, chainCfg := range cfg.Chains {
		chain := paymaster.NewConfig(
			chainCfg.ChainID, chainCfg.TransferGas, chainCfg.FeeRateNum, chainCfg.FeeRateDenom,
			chainCfg.OracleAssetID, chainCfg.Decimals,
		)
		for _, pm := range chainCfg.Paymasters {
			balance, err := uint256.FromDecimal(pm.InitialBalance)
			if err != nil {
				slog.Error("invalid paymaster initial_balance in chain config", "chain_id", chainCfg.ChainID, "token_id", pm.TokenID, "err", err)
				os.Exit(1)
			}
			chain.AddPaymaster(pm.TokenID, balance)
		}
		engine.RegisterChain(chain)
		slog.Info("registered chain", "chain_id", chainCfg.ChainID, "paymasters", chain.Len())
	}

	server := api.NewServer(engine, keytokens, sessions)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("gas station starting",
		"addr", addr,
		"signer_url", cfg.SignerURL,
		"oracle_url", cfg.OracleURL,
		"chains", len(cfg.Chains),
		"sender_whitelist_enabled", cfg.IsSenderWhitelistEnabled,
		"receiver_whitelist_enabled", cfg.IsReceiverWhitelistEnabled,
	)

	if err := http.ListenAndServe(addr, server); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
