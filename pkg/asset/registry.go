package asset

import (
	"fmt"
	"sort"
	"strings"

	"multiswap/pkg/types"
)

// Chain ids used across the router
const (
	EthereumChainID  = "eip155:1"
	AvalancheChainID = "eip155:43114"
	BitcoinChainID   = "bip122:000000000019d6689c085ae165831e93"
	CosmosHubChainID = "cosmos:cosmoshub-4"
	OsmosisChainID   = "cosmos:osmosis-1"
	ThorchainChainID = "cosmos:thorchain-mainnet-v1"
)

// Well-known assets
var (
	ETH = types.Asset{
		AssetID: EthereumChainID + "/slip44:60", ChainID: EthereumChainID,
		Precision: 18, Symbol: "ETH", Name: "Ethereum",
	}
	WETH = types.Asset{
		AssetID: EthereumChainID + "/erc20:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", ChainID: EthereumChainID,
		Precision: 18, Symbol: "WETH", Name: "Wrapped Ether",
	}
	FOX = types.Asset{
		AssetID: EthereumChainID + "/erc20:0xc770eefad204b5180df6a14ee197d99d808ee52d", ChainID: EthereumChainID,
		Precision: 18, Symbol: "FOX", Name: "Fox",
	}
	USDC = types.Asset{
		AssetID: EthereumChainID + "/erc20:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", ChainID: EthereumChainID,
		Precision: 6, Symbol: "USDC", Name: "USD Coin",
	}
	AVAX = types.Asset{
		AssetID: AvalancheChainID + "/slip44:60", ChainID: AvalancheChainID,
		Precision: 18, Symbol: "AVAX", Name: "Avalanche",
	}
	BTC = types.Asset{
		AssetID: BitcoinChainID + "/slip44:0", ChainID: BitcoinChainID,
		Precision: 8, Symbol: "BTC", Name: "Bitcoin",
	}
	ATOM = types.Asset{
		AssetID: CosmosHubChainID + "/slip44:118", ChainID: CosmosHubChainID,
		Precision: 6, Symbol: "ATOM", Name: "Cosmos",
	}
	OSMO = types.Asset{
		AssetID: OsmosisChainID + "/slip44:118", ChainID: OsmosisChainID,
		Precision: 6, Symbol: "OSMO", Name: "Osmosis",
	}
	RUNE = types.Asset{
		AssetID: ThorchainChainID + "/slip44:931", ChainID: ThorchainChainID,
		Precision: 8, Symbol: "RUNE", Name: "THORChain",
	}
)

// Registry indexes known assets by id and symbol
type Registry struct {
	byID     map[string]types.Asset
	bySymbol map[string][]types.Asset
}

// NewRegistry creates a registry holding the given assets
func NewRegistry(assets ...types.Asset) *Registry {
	r := &Registry{
		byID:     make(map[string]types.Asset),
		bySymbol: make(map[string][]types.Asset),
	}
	for _, a := range assets {
		r.Add(a)
	}
	return r
}

// Default returns a registry with the well-known assets
func Default() *Registry {
	return NewRegistry(ETH, WETH, FOX, USDC, AVAX, BTC, ATOM, OSMO, RUNE)
}

// Add registers an asset, replacing any asset with the same id
func (r *Registry) Add(a types.Asset) {
	a.AssetID = strings.ToLower(a.AssetID)
	if _, exists := r.byID[a.AssetID]; !exists {
		sym := strings.ToUpper(a.Symbol)
		r.bySymbol[sym] = append(r.bySymbol[sym], a)
	}
	r.byID[a.AssetID] = a
}

// ByID looks up an asset by its CAIP-19 id (case-insensitive)
func (r *Registry) ByID(assetID string) (types.Asset, error) {
	a, ok := r.byID[strings.ToLower(assetID)]
	if !ok {
		return types.Asset{}, fmt.Errorf("asset %q not found", assetID)
	}
	return a, nil
}

// BySymbol looks up an asset by symbol. When a symbol exists on several chains,
// chainID selects one; an empty chainID is then an error.
func (r *Registry) BySymbol(symbol, chainID string) (types.Asset, error) {
	candidates := r.bySymbol[strings.ToUpper(symbol)]
	if len(candidates) == 0 {
		return types.Asset{}, fmt.Errorf("token '%s' not found", symbol)
	}

	if chainID == "" {
		if len(candidates) > 1 {
			return types.Asset{}, fmt.Errorf("token '%s' exists on several chains, specify one", symbol)
		}
		return candidates[0], nil
	}

	for _, a := range candidates {
		if a.ChainID == chainID {
			return a, nil
		}
	}
	return types.Asset{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chainID)
}

// Resolve accepts either a CAIP-19 id or a symbol
func (r *Registry) Resolve(ref, chainID string) (types.Asset, error) {
	if strings.Contains(ref, "/") {
		return r.ByID(ref)
	}
	return r.BySymbol(ref, chainID)
}

// IDs returns all asset ids, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns all assets sorted by symbol
func (r *Registry) All() []types.Asset {
	all := make([]types.Asset, 0, len(r.byID))
	for _, a := range r.byID {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Symbol == all[j].Symbol {
			return all[i].AssetID < all[j].AssetID
		}
		return all[i].Symbol < all[j].Symbol
	})
	return all
}
