package config

import "strings"

// 常用 ERC20 代币地址，按链区分
var knownTokens = map[int64]map[string]string{
	1: {
		"USDC": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		"USDT": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		"DAI":  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		"WETH": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	},
	11155111: {
		// USDC (USD Coin) - Circle official on Sepolia
		"USDC": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		"DAI":  "0xff34b3d4Aee8ddCd6F9AFFFB6Fe49bD371b8a357",
		"WETH": "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9",
		"UNI":  "0xa3382DfFcA847B84592C05AB05937aE1A38623BC",
	},
}

// TokenAddress resolves a token symbol for chainID. Anything that is not a
// known symbol is returned unchanged so callers can pass raw addresses.
func TokenAddress(chainID int64, symbolOrAddress string) string {
	if addr, ok := knownTokens[chainID][strings.ToUpper(symbolOrAddress)]; ok {
		return addr
	}
	return symbolOrAddress
}
