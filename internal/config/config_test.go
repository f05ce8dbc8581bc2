package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSupportedCoinsIncludesAllChains(t *testing.T) {
	expectedCoins := []string{"BTC", "LTC", "DOGE", "XMR", "ETH", "BSC", "POLYGON", "ARBITRUM", "OPTIMISM", "BASE", "AVAX", "SOL"}

	for _, symbol := range expectedCoins {
		if _, ok := SupportedCoins[symbol]; !ok {
			t.Errorf("expected %s to be supported", symbol)
		}
	}
}

func TestCoinMetadata(t *testing.T) {
	btc := SupportedCoins["BTC"]
	if btc.Decimals != 8 || btc.Type != CoinTypeBitcoin {
		t.Errorf("unexpected BTC metadata: %+v", btc)
	}

	eth := SupportedCoins["ETH"]
	if eth.Decimals != 18 || eth.Type != CoinTypeEVM {
		t.Errorf("unexpected ETH metadata: %+v", eth)
	}

	xmr := SupportedCoins["XMR"]
	if xmr.Decimals != 12 || xmr.Type != CoinTypeMonero {
		t.Errorf("unexpected XMR metadata: %+v", xmr)
	}
}

func TestCoinMinMaxAmounts(t *testing.T) {
	btc := SupportedCoins["BTC"]
	if btc.MinAmount != 10000 {
		t.Errorf("BTC min amount should be 10000 satoshis, got %d", btc.MinAmount)
	}
	expectedMax := uint64(100000000000)
	if btc.MaxAmount != expectedMax {
		t.Errorf("BTC max amount should be %d, got %d", expectedMax, btc.MaxAmount)
	}

	ltc := SupportedCoins["LTC"]
	if ltc.MaxAmount != 0 {
		t.Errorf("LTC max amount should be 0 (no limit), got %d", ltc.MaxAmount)
	}
}

func TestChainConfirmationsMainnetVsTestnet(t *testing.T) {
	if MainnetChainParams["BTC"].Confirmations <= TestnetChainParams["BTC"].Confirmations {
		t.Error("mainnet should require more confirmations than testnet")
	}
	if MainnetChainParams["ETH"].ChainID != 1 {
		t.Errorf("ETH mainnet chain ID should be 1, got %d", MainnetChainParams["ETH"].ChainID)
	}
	if TestnetChainParams["ETH"].ChainID != 11155111 {
		t.Errorf("ETH testnet chain ID should be Sepolia (11155111), got %d", TestnetChainParams["ETH"].ChainID)
	}
}

func TestGetChainTimeout(t *testing.T) {
	mainnet, ok := GetChainTimeout("BTC", false)
	if !ok || mainnet.AvgBlockTimeSeconds != 600 {
		t.Errorf("expected mainnet BTC block time 600s, got %+v (ok=%v)", mainnet, ok)
	}

	testnet, ok := GetChainTimeout("BTC", true)
	if !ok || testnet.AvgBlockTimeSeconds != 600 {
		t.Errorf("expected testnet BTC block time 600s, got %+v (ok=%v)", testnet, ok)
	}

	if _, ok := GetChainTimeout("NOPE", false); ok {
		t.Error("unknown symbol should not resolve a timeout")
	}
}

// =============================================================================
// EVM Contract Tests
// =============================================================================

func TestGetHTLCContract(t *testing.T) {
	// Sepolia should have HTLC deployed
	sepoliaHTLC := GetHTLCContract(11155111)
	expectedAddr := common.HexToAddress("0x628c677e7b8889e64564d3f381565a9e6656aade")
	if sepoliaHTLC != expectedAddr {
		t.Errorf("Sepolia HTLC = %s, want %s", sepoliaHTLC.Hex(), expectedAddr.Hex())
	}

	// Mainnet should NOT have HTLC deployed (pending audit)
	mainnetHTLC := GetHTLCContract(1)
	if mainnetHTLC.Hex() != "0x0000000000000000000000000000000000000000" {
		t.Errorf("Mainnet HTLC should be zero address (not deployed), got %s", mainnetHTLC.Hex())
	}

	// Unknown chain should return zero address
	unknownHTLC := GetHTLCContract(999999)
	if unknownHTLC.Hex() != "0x0000000000000000000000000000000000000000" {
		t.Errorf("Unknown chain HTLC should be zero address, got %s", unknownHTLC.Hex())
	}
}

func TestIsHTLCDeployed(t *testing.T) {
	if !IsHTLCDeployed(11155111) {
		t.Error("HTLC should be deployed on Sepolia")
	}
	if IsHTLCDeployed(1) {
		t.Error("HTLC should NOT be deployed on mainnet yet")
	}
	if IsHTLCDeployed(999999) {
		t.Error("HTLC should NOT be deployed on unknown chain")
	}
}

func TestListDeployedHTLCChains(t *testing.T) {
	chains := ListDeployedHTLCChains()

	found := false
	for _, chainID := range chains {
		if chainID == 11155111 {
			found = true
			break
		}
	}
	if !found {
		t.Error("Sepolia (11155111) should be in deployed chains list")
	}
	for _, chainID := range chains {
		if chainID == 1 {
			t.Error("Mainnet (1) should NOT be in deployed chains list")
		}
	}
}

func TestGetEVMContracts(t *testing.T) {
	sepolia := GetEVMContracts(11155111)
	if sepolia == nil {
		t.Fatal("GetEVMContracts(11155111) should not return nil")
	}
	expectedAddr := common.HexToAddress("0x628c677e7b8889e64564d3f381565a9e6656aade")
	if sepolia.HTLCContract != expectedAddr {
		t.Errorf("Sepolia HTLC = %s, want %s", sepolia.HTLCContract.Hex(), expectedAddr.Hex())
	}

	unknown := GetEVMContracts(999999)
	if unknown != nil {
		t.Error("GetEVMContracts(999999) should return nil")
	}
}
