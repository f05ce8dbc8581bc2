// Package main runs xchaind, a market-maker node: an in-memory order
// book and HTLC transaction state machine (internal/exchange) exposed
// over a libp2p gossip network (internal/transport) and backed by
// per-chain wallet connectors (internal/walletconn).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klingon-exchange/klingon-v2/internal/backend"
	"github.com/klingon-exchange/klingon-v2/internal/chain"
	xconfig "github.com/klingon-exchange/klingon-v2/internal/config"
	"github.com/klingon-exchange/klingon-v2/internal/coordinator"
	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/internal/node"
	"github.com/klingon-exchange/klingon-v2/internal/rpc"
	"github.com/klingon-exchange/klingon-v2/internal/storage"
	"github.com/klingon-exchange/klingon-v2/internal/transport"
	"github.com/klingon-exchange/klingon-v2/internal/walletconn"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir        = flag.String("data-dir", "~/.xchaind", "Data directory")
		configFile     = flag.String("config", "", "Config file path; only its directory is used, the file read there is always config.yaml (default: <data-dir>/config.yaml)")
		registryFile   = flag.String("registry", "", "Currency registry config path (default: <data-dir>/registry.yaml)")
		listenAddr     = flag.String("listen", "", "Listen address (multiaddr), overrides config")
		controlAddr    = flag.String("control-addr", "127.0.0.1:8766", "Local control-plane (UI websocket) listen address")
		testnet        = flag.Bool("testnet", false, "Run on testnet (separate network and data)")
		bootstrapPeers = flag.String("bootstrap", "", "Bootstrap peers (comma-separated multiaddrs)")
		logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion    = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("xchaind %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	cfgDir := effectiveDataDir
	if *configFile != "" {
		cfgDir = filepath.Dir(*configFile)
	}
	nodeCfg, err := node.LoadConfig(cfgDir)
	if err != nil {
		log.Fatal("failed to load node config", "error", err)
	}
	if *listenAddr != "" {
		nodeCfg.Network.ListenAddrs = []string{*listenAddr}
	}
	if *bootstrapPeers != "" {
		nodeCfg.Network.BootstrapPeers = parseBootstrapPeers(*bootstrapPeers)
	}
	if *testnet {
		nodeCfg.NetworkType = node.NetworkTestnet
	} else {
		nodeCfg.NetworkType = node.NetworkMainnet
	}
	nodeCfg.Storage.DataDir = effectiveDataDir

	registryPath := *registryFile
	if registryPath == "" {
		registryPath = filepath.Join(effectiveDataDir, "registry.yaml")
	}
	regCfg, err := xconfig.LoadRegistryConfig(registryPath)
	if err != nil {
		log.Warn("failed to load registry config, using defaults", "path", registryPath, "error", err)
		regCfg = &xconfig.RegistryConfig{}
	}
	registry := exchange.NewRegistry(regCfg.Resolve(*testnet))
	log.Info("currency registry initialized", "currencies", registry.EnabledCurrencies())

	network := chain.Mainnet
	if *testnet {
		network = chain.Testnet
	}
	backendRegistry := backend.NewDefaultRegistry(network)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := backendRegistry.ConnectAll(ctx); err != nil {
		log.Warn("one or more chain backends failed to connect", "error", err)
	}
	defer backendRegistry.CloseAll()

	connector := walletconn.New(backendRegistry)

	store, err := storage.New(&storage.Config{DataDir: effectiveDataDir})
	if err != nil {
		log.Fatal("failed to open peer store", "error", err)
	}
	defer store.Close()

	if passphrase := os.Getenv("XCHAIND_CREDENTIAL_PASSPHRASE"); passphrase != "" {
		persistEncryptedCredentials(store, passphrase, log)
	}

	n, err := node.New(ctx, nodeCfg)
	if err != nil {
		log.Fatal("failed to create p2p node", "error", err)
	}
	n.SetPeerStoreAdapter(node.NewPeerStoreAdapter(store))
	if err := n.Start(); err != nil {
		log.Fatal("failed to start p2p node", "error", err)
	}
	defer n.Stop()

	svc := exchange.New(exchange.Config{
		Registry: registry,
		Logger:   log,
	})
	defer svc.Close()
	svc.Subscribe(storage.NewHistorySink(store))

	wallet := coordinator.New(coordinator.Config{
		Service:   svc,
		Connector: connector,
		Backends:  backendRegistry,
		Network:   network,
		Logger:    log,
	})
	svc.SetActions(wallet)
	svc.Subscribe(wallet)

	gossip, err := transport.New(n.Host(), n.PubSub(), svc)
	if err != nil {
		log.Fatal("failed to start gossip transport", "error", err)
	}
	gossip.Start(ctx)
	defer gossip.Stop()
	svc.SetSender(gossip)

	sweeper := exchange.NewSweeper(svc, exchange.SweeperConfig{Heights: connector})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	controlPlane := rpc.NewServer(svc)
	if err := controlPlane.Start(*controlAddr); err != nil {
		log.Warn("failed to start control-plane server", "error", err)
	}
	defer controlPlane.Stop()

	log.Info("xchaind started", "peer_id", n.ID().String(), "network", nodeCfg.NetworkType)
	for _, addr := range n.Addrs() {
		log.Infof("listening on %s/p2p/%s", addr.String(), n.ID().String())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}

// persistEncryptedCredentials encrypts any RPC credentials present in the
// default backend configs and stores them in the local settings table, so
// an operator who set a passphrase never has one sitting in plaintext on
// disk. Backend construction itself still reads credentials from the
// plaintext registry/backend config; this only affects the copy retained
// for audit/inspection via the settings table.
func persistEncryptedCredentials(store *storage.Storage, passphrase string, log *logging.Logger) {
	for symbol, cfg := range backend.DefaultConfigs() {
		if cfg.RPCPass == "" {
			continue
		}
		enc, err := xconfig.EncryptCredential(cfg.RPCPass, passphrase)
		if err != nil {
			log.Warn("failed to encrypt backend credential", "chain", symbol, "error", err)
			continue
		}
		blob, err := json.Marshal(enc)
		if err != nil {
			log.Warn("failed to marshal encrypted credential", "chain", symbol, "error", err)
			continue
		}
		if err := store.SetSetting("rpc_pass:"+symbol, string(blob)); err != nil {
			log.Warn("failed to persist encrypted credential", "chain", symbol, "error", err)
		}
	}
}

func parseBootstrapPeers(s string) []string {
	if s == "" {
		return nil
	}
	var peers []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if p := s[start:i]; p != "" {
				peers = append(peers, p)
			}
			start = i + 1
		}
	}
	return peers
}
