package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := Default()

	fox, err := r.BySymbol("fox", "")
	require.NoError(t, err)
	assert.Equal(t, FOX.AssetID, fox.AssetID)

	byID, err := r.ByID("EIP155:1/ERC20:0xC770EEFAD204B5180DF6A14EE197D99D808EE52D")
	require.NoError(t, err)
	assert.Equal(t, "FOX", byID.Symbol)

	_, err = r.BySymbol("DOGE", "")
	assert.Error(t, err)

	_, err = r.BySymbol("ETH", BitcoinChainID)
	assert.Error(t, err)
}

func TestRegistryAmbiguousSymbol(t *testing.T) {
	r := Default()
	bridged := ETH
	bridged.AssetID = "eip155:42161/slip44:60"
	bridged.ChainID = "eip155:42161"
	r.Add(bridged)

	_, err := r.BySymbol("ETH", "")
	assert.Error(t, err)

	a, err := r.BySymbol("ETH", "eip155:42161")
	require.NoError(t, err)
	assert.Equal(t, bridged.AssetID, a.AssetID)
}

func TestResolve(t *testing.T) {
	r := Default()
	a, err := r.Resolve(ATOM.AssetID, "")
	require.NoError(t, err)
	assert.Equal(t, "ATOM", a.Symbol)

	a, err = r.Resolve("osmo", "")
	require.NoError(t, err)
	assert.Equal(t, OSMO.AssetID, a.AssetID)

	assert.Len(t, r.IDs(), 9)
	assert.Equal(t, "ATOM", r.All()[0].Symbol)
}
