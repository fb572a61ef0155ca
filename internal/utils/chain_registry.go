package utils

import (
	"fmt"
	"strings"
)

// ChainKind tags the transaction-building path for a chain. It is always
// chosen explicitly by the caller, never inferred from payload shape.
type ChainKind string

const (
	ChainKindEVM    ChainKind = "evm"
	ChainKindSolana ChainKind = "solana"
)

// ChainInfo describes one supported chain.
type ChainInfo struct {
	Label         string    `json:"label"`          // internal label ("base", "solana")
	Kind          ChainKind `json:"kind"`           // evm | solana
	VendorNetwork string    `json:"vendor_network"` // CAIP-2 network id used by the custody vendor
	NativeChainID uint64    `json:"native_chain_id"`
	NativeSymbol  string    `json:"native_symbol"`
	RPCEndpoints  []string  `json:"rpc_endpoints"`
	ExplorerTx    string    `json:"explorer_tx"` // printf template with one %s for the tx hash
}

// TokenInfo describes an asset on a specific chain.
type TokenInfo struct {
	Symbol   string
	Decimals int
	Contract string // empty for the native asset
}

// ChainRegistry is a fixed lookup table over the supported chains and the
// assets the bot can move on each of them.
type ChainRegistry struct {
	byLabel map[string]*ChainInfo
	tokens  map[string]map[string]*TokenInfo // label -> SYMBOL -> info
}

// NewChainRegistry builds the registry with all supported chains.
func NewChainRegistry() *ChainRegistry {
	r := &ChainRegistry{
		byLabel: make(map[string]*ChainInfo),
		tokens:  make(map[string]map[string]*TokenInfo),
	}

	chains := []*ChainInfo{
		{
			Label:         "ethereum",
			Kind:          ChainKindEVM,
			VendorNetwork: "eip155:1",
			NativeChainID: 1,
			NativeSymbol:  "ETH",
			RPCEndpoints:  []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth"},
			ExplorerTx:    "https://etherscan.io/tx/%s",
		},
		{
			Label:         "base",
			Kind:          ChainKindEVM,
			VendorNetwork: "eip155:8453",
			NativeChainID: 8453,
			NativeSymbol:  "ETH",
			RPCEndpoints:  []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			ExplorerTx:    "https://basescan.org/tx/%s",
		},
		{
			Label:         "polygon",
			Kind:          ChainKindEVM,
			VendorNetwork: "eip155:137",
			NativeChainID: 137,
			NativeSymbol:  "POL",
			RPCEndpoints:  []string{"https://polygon-rpc.com", "https://rpc.ankr.com/polygon"},
			ExplorerTx:    "https://polygonscan.com/tx/%s",
		},
		{
			Label:         "bsc",
			Kind:          ChainKindEVM,
			VendorNetwork: "eip155:56",
			NativeChainID: 56,
			NativeSymbol:  "BNB",
			RPCEndpoints:  []string{"https://bsc-dataseed1.binance.org"},
			ExplorerTx:    "https://bscscan.com/tx/%s",
		},
		{
			Label:         "arbitrum",
			Kind:          ChainKindEVM,
			VendorNetwork: "eip155:42161",
			NativeChainID: 42161,
			NativeSymbol:  "ETH",
			RPCEndpoints:  []string{"https://arb1.arbitrum.io/rpc"},
			ExplorerTx:    "https://arbiscan.io/tx/%s",
		},
		{
			Label:         "solana",
			Kind:          ChainKindSolana,
			VendorNetwork: "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
			NativeSymbol:  "SOL",
			RPCEndpoints:  []string{"https://api.mainnet-beta.solana.com"},
			ExplorerTx:    "https://solscan.io/tx/%s",
		},
	}
	for _, c := range chains {
		r.byLabel[c.Label] = c
	}

	// Asset table. Decimals come from the token contracts, not a blanket
	// 18-decimal assumption.
	register := func(label string, t *TokenInfo) {
		if r.tokens[label] == nil {
			r.tokens[label] = make(map[string]*TokenInfo)
		}
		r.tokens[label][t.Symbol] = t
	}
	register("ethereum", &TokenInfo{Symbol: "ETH", Decimals: 18})
	register("ethereum", &TokenInfo{Symbol: "USDC", Decimals: 6, Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"})
	register("ethereum", &TokenInfo{Symbol: "USDT", Decimals: 6, Contract: "0xdAC17F958D2ee523a2206206994597C13D831ec7"})
	register("base", &TokenInfo{Symbol: "ETH", Decimals: 18})
	register("base", &TokenInfo{Symbol: "USDC", Decimals: 6, Contract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"})
	register("polygon", &TokenInfo{Symbol: "POL", Decimals: 18})
	register("polygon", &TokenInfo{Symbol: "USDC", Decimals: 6, Contract: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"})
	register("polygon", &TokenInfo{Symbol: "USDT", Decimals: 6, Contract: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"})
	register("bsc", &TokenInfo{Symbol: "BNB", Decimals: 18})
	register("bsc", &TokenInfo{Symbol: "USDT", Decimals: 18, Contract: "0x55d398326f99059fF775485246999027B3197955"})
	register("arbitrum", &TokenInfo{Symbol: "ETH", Decimals: 18})
	register("arbitrum", &TokenInfo{Symbol: "USDC", Decimals: 6, Contract: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"})
	register("solana", &TokenInfo{Symbol: "SOL", Decimals: 9})
	register("solana", &TokenInfo{Symbol: "USDC", Decimals: 6, Contract: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"})

	return r
}

// Get returns the chain info for an internal label.
func (r *ChainRegistry) Get(label string) (*ChainInfo, bool) {
	info, ok := r.byLabel[strings.ToLower(strings.TrimSpace(label))]
	return info, ok
}

// VendorNetwork maps an internal chain label to the custody vendor's network
// identifier. Unknown chains map to the empty string rather than an error so
// callers can branch on presence.
func (r *ChainRegistry) VendorNetwork(label string) string {
	info, ok := r.Get(label)
	if !ok {
		return ""
	}
	return info.VendorNetwork
}

// ExplorerTxURL renders the explorer link for a transaction hash. Unknown
// chains or empty hashes yield an empty string.
func (r *ChainRegistry) ExplorerTxURL(label, txHash string) string {
	info, ok := r.Get(label)
	if !ok || txHash == "" {
		return ""
	}
	return fmt.Sprintf(info.ExplorerTx, txHash)
}

// Token returns the asset info for a symbol on a chain.
func (r *ChainRegistry) Token(label, symbol string) (*TokenInfo, bool) {
	assets, ok := r.tokens[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return nil, false
	}
	t, ok := assets[strings.ToUpper(strings.TrimSpace(symbol))]
	return t, ok
}

// RPCEndpoint returns the first configured RPC endpoint for a chain.
func (r *ChainRegistry) RPCEndpoint(label string) (string, error) {
	info, ok := r.Get(label)
	if !ok || len(info.RPCEndpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoint for chain: %s", label)
	}
	return info.RPCEndpoints[0], nil
}

// Kind returns the transaction-building path for a chain.
func (r *ChainRegistry) Kind(label string) (ChainKind, bool) {
	info, ok := r.Get(label)
	if !ok {
		return "", false
	}
	return info.Kind, true
}

// AllChains lists every registered chain.
func (r *ChainRegistry) AllChains() []*ChainInfo {
	out := make([]*ChainInfo, 0, len(r.byLabel))
	for _, c := range r.byLabel {
		out = append(out, c)
	}
	return out
}
