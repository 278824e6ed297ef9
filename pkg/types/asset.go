package types

import (
	"fmt"
	"strings"
)

// Chain namespaces understood by the router (CAIP-2).
const (
	NamespaceEIP155 = "eip155"
	NamespaceBIP122 = "bip122"
	NamespaceCosmos = "cosmos"
)

// Asset namespaces (CAIP-19).
const (
	AssetNamespaceSlip44 = "slip44"
	AssetNamespaceERC20  = "erc20"
	AssetNamespaceIBC    = "ibc"
	AssetNamespaceNative = "native"
)

// Asset describes a tradable asset on a specific chain
type Asset struct {
	AssetID   string `json:"assetId"`
	ChainID   string `json:"chainId"`
	Precision int32  `json:"precision"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
}

// AssetIDParts is a CAIP-19 asset id split into its components
type AssetIDParts struct {
	ChainNamespace string
	ChainReference string
	AssetNamespace string
	AssetReference string
}

// ChainID returns the CAIP-2 chain id of the asset
func (p AssetIDParts) ChainID() string {
	return p.ChainNamespace + ":" + p.ChainReference
}

// ParseAssetID splits a CAIP-19 asset id such as "eip155:1/erc20:0xabc".
func ParseAssetID(assetID string) (AssetIDParts, error) {
	chainPart, assetPart, ok := strings.Cut(assetID, "/")
	if !ok {
		return AssetIDParts{}, fmt.Errorf("invalid asset id %q: missing asset part", assetID)
	}

	chainNS, chainRef, ok := strings.Cut(chainPart, ":")
	if !ok || chainNS == "" || chainRef == "" {
		return AssetIDParts{}, fmt.Errorf("invalid asset id %q: malformed chain id", assetID)
	}

	assetNS, assetRef, ok := strings.Cut(assetPart, ":")
	if !ok || assetNS == "" || assetRef == "" {
		return AssetIDParts{}, fmt.Errorf("invalid asset id %q: malformed asset reference", assetID)
	}

	return AssetIDParts{
		ChainNamespace: chainNS,
		ChainReference: chainRef,
		AssetNamespace: assetNS,
		AssetReference: assetRef,
	}, nil
}

// ChainIDOf returns the chain part of an asset id, or "" when the id is malformed.
func ChainIDOf(assetID string) string {
	parts, err := ParseAssetID(assetID)
	if err != nil {
		return ""
	}
	return parts.ChainID()
}

// Parts returns the parsed asset id. Malformed ids yield zero parts.
func (a Asset) Parts() AssetIDParts {
	parts, _ := ParseAssetID(a.AssetID)
	return parts
}

// ChainNamespace returns the CAIP-2 namespace of the asset's chain
func (a Asset) ChainNamespace() string {
	return a.Parts().ChainNamespace
}

// IsERC20 reports whether the asset is an ERC-20 token
func (a Asset) IsERC20() bool {
	return a.Parts().AssetNamespace == AssetNamespaceERC20
}

// ContractAddress returns the token contract for ERC-20 assets, "" otherwise.
func (a Asset) ContractAddress() string {
	parts := a.Parts()
	if parts.AssetNamespace != AssetNamespaceERC20 {
		return ""
	}
	return parts.AssetReference
}

// IsFeeAsset reports whether the asset is its chain's native fee asset.
func (a Asset) IsFeeAsset() bool {
	return a.Parts().AssetNamespace == AssetNamespaceSlip44
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.AssetID
}
