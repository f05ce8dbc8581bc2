package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurrencyParams holds the per-currency parameters the wallet registry
// exposes to the exchange core (spec §4.1): fee schedule, amount bounds,
// confirmation policy, and the values needed to translate an HTLC
// timelock between block height and wall-clock time.
type CurrencyParams struct {
	MinAmount            uint64  `yaml:"min_amount"`
	MaxAmount            uint64  `yaml:"max_amount"` // 0 = no limit
	FeePerByte           uint64  `yaml:"fee_per_byte"`
	MinTxFee             uint64  `yaml:"min_tx_fee"`
	RequiredConfirmations uint32 `yaml:"required_confirmations"`
	BlockTimeSeconds     float64 `yaml:"block_time_seconds"`
	AddressPrefix        string  `yaml:"address_prefix"`
}

// defaultCurrencyParams seeds the registry from the static coin table this
// repo ships with (SupportedCoins + the per-network ChainTimeouts/ChainParams
// tables), the same "static map + deployment override" split config.go
// already uses elsewhere. isTestnet selects the testnet confirmation depths.
func defaultCurrencyParams(isTestnet bool) map[string]CurrencyParams {
	timeouts := ChainTimeouts
	chainParams := MainnetChainParams
	if isTestnet {
		timeouts = TestnetChainTimeouts
		chainParams = TestnetChainParams
	}

	out := make(map[string]CurrencyParams, len(SupportedCoins))
	for symbol, coin := range SupportedCoins {
		timeout, ok := timeouts[symbol]
		blockTime := float64(600)
		confirmations := uint32(1)
		if ok {
			blockTime = float64(timeout.AvgBlockTimeSeconds)
		}
		if params, ok := chainParams[symbol]; ok {
			confirmations = params.Confirmations
		}
		out[symbol] = CurrencyParams{
			MinAmount:            coin.MinAmount,
			MaxAmount:            coin.MaxAmount,
			FeePerByte:           1,
			MinTxFee:             1000,
			RequiredConfirmations: confirmations,
			BlockTimeSeconds:     blockTime,
			AddressPrefix:        "",
		}
	}
	return out
}

// RegistryConfig is the on-disk (YAML) configuration for the wallet
// registry: which currencies this node market-makes, and any overrides to
// the built-in defaults for each.
type RegistryConfig struct {
	EnabledCurrencies []string                   `yaml:"enabled_currencies"`
	Overrides         map[string]CurrencyParams  `yaml:"overrides"`
}

// LoadRegistryConfig reads a RegistryConfig from a YAML file.
func LoadRegistryConfig(path string) (*RegistryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry config: %w", err)
	}
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse registry config: %w", err)
	}
	return &cfg, nil
}

// Resolve merges the static defaults with any per-currency overrides and
// restricts the result to EnabledCurrencies. isTestnet picks the testnet
// confirmation depths and block-time table over the mainnet ones.
func (c *RegistryConfig) Resolve(isTestnet bool) map[string]CurrencyParams {
	defaults := defaultCurrencyParams(isTestnet)
	enabled := c.EnabledCurrencies
	if len(enabled) == 0 {
		for symbol := range defaults {
			enabled = append(enabled, symbol)
		}
	}

	out := make(map[string]CurrencyParams, len(enabled))
	for _, symbol := range enabled {
		params, ok := defaults[symbol]
		if !ok {
			// Currency with no built-in default: only usable if fully
			// specified by an override.
			params = CurrencyParams{}
		}
		if override, ok := c.Overrides[symbol]; ok {
			params = mergeCurrencyParams(params, override)
		}
		out[symbol] = params
	}
	return out
}

// mergeCurrencyParams applies non-zero fields from override on top of base.
func mergeCurrencyParams(base, override CurrencyParams) CurrencyParams {
	if override.MinAmount != 0 {
		base.MinAmount = override.MinAmount
	}
	if override.MaxAmount != 0 {
		base.MaxAmount = override.MaxAmount
	}
	if override.FeePerByte != 0 {
		base.FeePerByte = override.FeePerByte
	}
	if override.MinTxFee != 0 {
		base.MinTxFee = override.MinTxFee
	}
	if override.RequiredConfirmations != 0 {
		base.RequiredConfirmations = override.RequiredConfirmations
	}
	if override.BlockTimeSeconds != 0 {
		base.BlockTimeSeconds = override.BlockTimeSeconds
	}
	if override.AddressPrefix != "" {
		base.AddressPrefix = override.AddressPrefix
	}
	return base
}
