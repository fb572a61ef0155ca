package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEveryChainIsComplete(t *testing.T) {
	r := NewChainRegistry()

	for _, info := range r.AllChains() {
		assert.NotEmpty(t, info.VendorNetwork, "chain %s has no vendor network", info.Label)
		assert.NotEmpty(t, info.RPCEndpoints, "chain %s has no rpc endpoints", info.Label)
		assert.NotEmpty(t, info.ExplorerTx, "chain %s has no explorer template", info.Label)
		assert.Contains(t, info.ExplorerTx, "%s", "chain %s explorer template has no hash slot", info.Label)

		kind, ok := r.Kind(info.Label)
		require.True(t, ok)
		assert.Contains(t, []ChainKind{ChainKindEVM, ChainKindSolana}, kind)

		// The native asset must always be spendable.
		native, ok := r.Token(info.Label, info.NativeSymbol)
		require.True(t, ok, "chain %s has no native token entry", info.Label)
		assert.Empty(t, native.Contract)
		assert.Positive(t, native.Decimals)
	}
}

func TestRegistryUnknownChainNeverPanics(t *testing.T) {
	r := NewChainRegistry()

	_, ok := r.Get("dogecoin")
	assert.False(t, ok)
	assert.Equal(t, "", r.VendorNetwork("dogecoin"))
	assert.Equal(t, "", r.ExplorerTxURL("dogecoin", "0xabc"))
	_, ok = r.Kind("dogecoin")
	assert.False(t, ok)
	_, err := r.RPCEndpoint("dogecoin")
	assert.Error(t, err)
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := NewChainRegistry()

	info, ok := r.Get("Base")
	require.True(t, ok)
	assert.Equal(t, "base", info.Label)

	token, ok := r.Token("base", "usdc")
	require.True(t, ok)
	assert.Equal(t, "USDC", token.Symbol)
	assert.Equal(t, 6, token.Decimals)
}

func TestRegistryPerAssetDecimals(t *testing.T) {
	r := NewChainRegistry()

	// USDT is 6 decimals on most chains but 18 on BSC; the table carries
	// the real values rather than a blanket assumption.
	base, ok := r.Token("ethereum", "USDT")
	require.True(t, ok)
	assert.Equal(t, 6, base.Decimals)

	bsc, ok := r.Token("bsc", "USDT")
	require.True(t, ok)
	assert.Equal(t, 18, bsc.Decimals)

	sol, ok := r.Token("solana", "SOL")
	require.True(t, ok)
	assert.Equal(t, 9, sol.Decimals)
}

func TestRegistryExplorerURL(t *testing.T) {
	r := NewChainRegistry()
	assert.Equal(t,
		"https://basescan.org/tx/0xdeadbeef",
		r.ExplorerTxURL("base", "0xdeadbeef"))
	assert.Equal(t, "", r.ExplorerTxURL("base", ""))
}
