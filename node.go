package main

import (
	"context"
	"fmt"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/metrics"
	"github.com/geotrust-match/matchnode/pkg/sign"
)

// node bundles the components every command works with.
type node struct {
	cfg      *Config
	logger   log.Logger
	metrics  *metrics.Metrics
	client   *ledger.RPCClient
	signer   sign.Signer
	invoker  *contract.Invoker
	geotrust *contract.GeoTrust
}

// newNode loads the configuration and connects to the network's RPC. Without
// MATCHNODE_SIGNER_SEED the node can only read.
func newNode(ctx context.Context) (*node, error) {
	bootstrap := log.NewZapLogger(log.Config{Format: "console", Level: log.LevelInfo, Output: "stderr"})
	cfg, err := LoadConfig(bootstrap)
	if err != nil {
		return nil, err
	}

	logger := log.NewZapLogger(cfg.Env.Log).WithName("matchnode").WithKV("network", cfg.Network.Name)
	m := metrics.New()

	client, err := ledger.Dial(ctx, cfg.RPCURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC: %w", err)
	}

	var signer sign.Signer
	source := cfg.Env.SourceAccount
	if cfg.Env.SignerSeed != "" {
		ks, err := sign.NewKeySigner(cfg.Env.SignerSeed)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialise signer: %w", err)
		}
		signer = ks
		if source == "" {
			source = ks.Address()
		}
		logger.Info("signer initialised", "address", ks.Address())
	}

	inv := contract.NewInvoker(client, signer, contract.Config{
		ContractID:        cfg.Network.ContractID,
		NetworkPassphrase: cfg.Network.Passphrase,
		Source:            source,
	}, contract.WithLogger(logger), contract.WithMetrics(m))

	return &node{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		client:   client,
		signer:   signer,
		invoker:  inv,
		geotrust: contract.NewGeoTrust(inv),
	}, nil
}

func (n *node) Close() {
	n.client.Close()
}

// requireSigner fails write commands early when no signer is configured.
func (n *node) requireSigner() error {
	if n.signer == nil {
		return fmt.Errorf("MATCHNODE_SIGNER_SEED is required for this command")
	}
	return nil
}
