// Package config provides centralized configuration for the exchange.
// Coin metadata, chain timeout parameters, and credential encryption all
// live here so no chain-specific constant is hardcoded elsewhere.
package config

// =============================================================================
// Coin Definitions
// =============================================================================

// CoinType represents the type/family of a coin.
type CoinType string

const (
	CoinTypeBitcoin CoinType = "bitcoin" // BTC and forks (LTC, DOGE)
	CoinTypeMonero  CoinType = "monero"  // XMR
	CoinTypeEVM     CoinType = "evm"     // ETH, BSC, POLYGON, ARBITRUM, etc.
	CoinTypeSolana  CoinType = "solana"  // SOL
)

// Coin represents a supported cryptocurrency.
type Coin struct {
	Symbol    string   // e.g., "BTC", "ETH"
	Name      string   // e.g., "Bitcoin", "Ethereum"
	Type      CoinType // Coin family
	Decimals  uint8    // Decimal places (8 for BTC, 18 for ETH)
	MinAmount uint64   // Minimum trade amount in smallest unit
	MaxAmount uint64   // Maximum trade amount in smallest unit (0 = no limit)
}

// SupportedCoins defines all supported cryptocurrencies. This is the base
// table the currency registry (registry.go) resolves into per-node
// CurrencyParams; it carries only HTLC-relevant metadata — every currency
// here settles over an HTLC (see internal/htlc), there is no alternate
// swap method to select between.
var SupportedCoins = map[string]Coin{
	// Bitcoin and forks
	"BTC": {
		Symbol:    "BTC",
		Name:      "Bitcoin",
		Type:      CoinTypeBitcoin,
		Decimals:  8,
		MinAmount: 10000,        // 0.0001 BTC
		MaxAmount: 100000000000, // 1000 BTC
	},
	"LTC": {
		Symbol:    "LTC",
		Name:      "Litecoin",
		Type:      CoinTypeBitcoin,
		Decimals:  8,
		MinAmount: 100000, // 0.001 LTC
		MaxAmount: 0,      // No limit
	},
	"DOGE": {
		Symbol:    "DOGE",
		Name:      "Dogecoin",
		Type:      CoinTypeBitcoin,
		Decimals:  8,
		MinAmount: 100000000, // 1 DOGE
		MaxAmount: 0,
	},

	// Monero
	"XMR": {
		Symbol:    "XMR",
		Name:      "Monero",
		Type:      CoinTypeMonero,
		Decimals:  12,
		MinAmount: 1000000000, // 0.001 XMR
		MaxAmount: 0,
	},

	// EVM chains
	"ETH": {
		Symbol:    "ETH",
		Name:      "Ethereum",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000, // 0.001 ETH
		MaxAmount: 0,
	},
	"BSC": {
		Symbol:    "BNB",
		Name:      "BNB Smart Chain",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000,
		MaxAmount: 0,
	},
	"POLYGON": {
		Symbol:    "POL",
		Name:      "Polygon",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000000, // 1 POL
		MaxAmount: 0,
	},
	"ARBITRUM": {
		Symbol:    "ETH",
		Name:      "Arbitrum One",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000,
		MaxAmount: 0,
	},
	"OPTIMISM": {
		Symbol:    "ETH",
		Name:      "Optimism",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000,
		MaxAmount: 0,
	},
	"BASE": {
		Symbol:    "ETH",
		Name:      "Base",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000,
		MaxAmount: 0,
	},
	"AVAX": {
		Symbol:    "AVAX",
		Name:      "Avalanche C-Chain",
		Type:      CoinTypeEVM,
		Decimals:  18,
		MinAmount: 1000000000000000,
		MaxAmount: 0,
	},

	// Solana
	"SOL": {
		Symbol:    "SOL",
		Name:      "Solana",
		Type:      CoinTypeSolana,
		Decimals:  9,
		MinAmount: 10000000, // 0.01 SOL
		MaxAmount: 0,
	},
}

// =============================================================================
// Chain Parameters
// =============================================================================

// ChainParams holds network-specific parameters for a coin.
type ChainParams struct {
	ChainID       uint64 // EVM chain ID (0 for non-EVM)
	Confirmations uint32 // Required confirmations for finality
}

// MainnetChainParams contains mainnet parameters for each coin.
var MainnetChainParams = map[string]ChainParams{
	"BTC":      {ChainID: 0, Confirmations: 3},
	"LTC":      {ChainID: 0, Confirmations: 6},
	"DOGE":     {ChainID: 0, Confirmations: 6},
	"XMR":      {ChainID: 0, Confirmations: 10},
	"ETH":      {ChainID: 1, Confirmations: 12},
	"BSC":      {ChainID: 56, Confirmations: 15},
	"POLYGON":  {ChainID: 137, Confirmations: 128},
	"ARBITRUM": {ChainID: 42161, Confirmations: 12},
	"OPTIMISM": {ChainID: 10, Confirmations: 12},
	"BASE":     {ChainID: 8453, Confirmations: 12},
	"AVAX":     {ChainID: 43114, Confirmations: 12},
	"SOL":      {ChainID: 0, Confirmations: 32},
}

// TestnetChainParams contains testnet parameters for each coin.
var TestnetChainParams = map[string]ChainParams{
	"BTC":      {ChainID: 0, Confirmations: 1},
	"LTC":      {ChainID: 0, Confirmations: 1},
	"DOGE":     {ChainID: 0, Confirmations: 1},
	"XMR":      {ChainID: 0, Confirmations: 1},
	"ETH":      {ChainID: 11155111, Confirmations: 2}, // Sepolia
	"BSC":      {ChainID: 97, Confirmations: 3},       // BSC Testnet
	"POLYGON":  {ChainID: 80002, Confirmations: 5},    // Polygon Amoy
	"ARBITRUM": {ChainID: 421614, Confirmations: 2},   // Arbitrum Sepolia
	"OPTIMISM": {ChainID: 11155420, Confirmations: 2}, // Optimism Sepolia
	"BASE":     {ChainID: 84532, Confirmations: 2},    // Base Sepolia
	"AVAX":     {ChainID: 43113, Confirmations: 2},    // Avalanche Fuji
	"SOL":      {ChainID: 0, Confirmations: 1},
}

// =============================================================================
// Chain Timeout Configuration (for Atomic Swaps)
// =============================================================================

// ChainTimeoutConfig holds chain-specific timeout parameters for atomic swaps.
type ChainTimeoutConfig struct {
	// AvgBlockTimeSeconds is the average block time for this chain. It is
	// the input to the lock-time formula used when a leg is created:
	// lock_time = current_height + ceil(lock_window / AvgBlockTimeSeconds).
	AvgBlockTimeSeconds uint32
}

// ChainTimeouts defines chain-specific timeout configurations for mainnet.
var ChainTimeouts = map[string]ChainTimeoutConfig{
	"BTC":      {AvgBlockTimeSeconds: 600}, // 10 minutes
	"LTC":      {AvgBlockTimeSeconds: 150}, // 2.5 minutes
	"DOGE":     {AvgBlockTimeSeconds: 60},  // 1 minute
	"XMR":      {AvgBlockTimeSeconds: 120}, // 2 minutes
	"ETH":      {AvgBlockTimeSeconds: 12},
	"BSC":      {AvgBlockTimeSeconds: 3},
	"POLYGON":  {AvgBlockTimeSeconds: 2},
	"ARBITRUM": {AvgBlockTimeSeconds: 1},
	"OPTIMISM": {AvgBlockTimeSeconds: 2},
	"BASE":     {AvgBlockTimeSeconds: 2},
	"AVAX":     {AvgBlockTimeSeconds: 2},
	"SOL":      {AvgBlockTimeSeconds: 1},
}

// TestnetChainTimeouts defines chain-specific timeout configurations for
// testnet. Block cadence tracks mainnet closely; what differs on testnet
// is confirmation depth (TestnetChainParams), not block time.
var TestnetChainTimeouts = map[string]ChainTimeoutConfig{
	"BTC":      {AvgBlockTimeSeconds: 600},
	"LTC":      {AvgBlockTimeSeconds: 150},
	"DOGE":     {AvgBlockTimeSeconds: 60},
	"XMR":      {AvgBlockTimeSeconds: 120},
	"ETH":      {AvgBlockTimeSeconds: 12},
	"BSC":      {AvgBlockTimeSeconds: 3},
	"POLYGON":  {AvgBlockTimeSeconds: 2},
	"ARBITRUM": {AvgBlockTimeSeconds: 1},
	"OPTIMISM": {AvgBlockTimeSeconds: 2},
	"BASE":     {AvgBlockTimeSeconds: 2},
	"AVAX":     {AvgBlockTimeSeconds: 2},
	"SOL":      {AvgBlockTimeSeconds: 1},
}

// GetChainTimeout returns the timeout configuration for a chain.
func GetChainTimeout(symbol string, isTestnet bool) (ChainTimeoutConfig, bool) {
	if isTestnet {
		cfg, ok := TestnetChainTimeouts[symbol]
		return cfg, ok
	}
	cfg, ok := ChainTimeouts[symbol]
	return cfg, ok
}
