package swapper

import (
	"github.com/shopspring/decimal"

	"multiswap/pkg/types"
)

// SlippageTolerance resolves the tolerance to use, rejecting values outside [0, 1].
func SlippageTolerance(tol *decimal.Decimal, fallback decimal.Decimal) (decimal.Decimal, error) {
	if tol == nil {
		return fallback, nil
	}
	if tol.IsNegative() || tol.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, NewError(KindValidationFailed, "slippage tolerance %s outside [0, 1]", tol.String())
	}
	return *tol, nil
}

// ValidateSellAmount rejects non-positive or fractional base-unit amounts
func ValidateSellAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewError(KindValidationFailed, "sell amount must be positive, got %s", amount.String())
	}
	if !amount.Equal(amount.Truncate(0)) {
		return NewError(KindValidationFailed, "sell amount %s is not an integral base-unit amount", amount.String())
	}
	return nil
}

// CheckBounds verifies minimum <= sellAmount <= maximum in display units.
// It never touches the network.
func CheckBounds(quote *types.TradeQuote) error {
	if quote == nil {
		return NewError(KindValidationFailed, "quote is required")
	}
	amount := types.FromBaseUnit(quote.SellAmount, quote.SellAsset.Precision)
	if amount.LessThan(quote.Minimum) {
		return NewError(KindValidationFailed, "sell amount %s %s below minimum %s",
			amount.String(), quote.SellAsset.Symbol, quote.Minimum.String()).
			WithDetails(map[string]any{"minimum": quote.Minimum.String(), "sellAmount": amount.String()})
	}
	if !quote.Maximum.IsZero() && amount.GreaterThan(quote.Maximum) {
		return NewError(KindValidationFailed, "sell amount %s %s above maximum %s",
			amount.String(), quote.SellAsset.Symbol, quote.Maximum.String()).
			WithDetails(map[string]any{"maximum": quote.Maximum.String(), "sellAmount": amount.String()})
	}
	return nil
}

// CheckSameChain fails with UnsupportedPair when the assets live on different chains
func CheckSameChain(sell, buy types.Asset) error {
	if sell.ChainID != buy.ChainID {
		return NewError(KindUnsupportedPair, "%s and %s are on different chains", sell.AssetID, buy.AssetID)
	}
	return nil
}

// ContainsAsset reports whether ids holds id
func ContainsAsset(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
