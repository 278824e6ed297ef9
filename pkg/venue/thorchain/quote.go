package thorchain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/approval"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// market is a snapshot of the pools and vaults a pair trades through
type market struct {
	sellPoolID string
	buyPoolID  string
	pools      map[string]types.Pool
	inbound    map[string]inboundAddress
}

// route is the result of swapping an input through the hub
type route struct {
	output   decimal.Decimal
	rate     decimal.Decimal
	slippage decimal.Decimal
}

func (s *Swapper) loadMarket(ctx context.Context, sell, buy types.Asset) (*market, error) {
	sellPoolID, err := PoolID(sell)
	if err != nil {
		return nil, err
	}
	buyPoolID, err := PoolID(buy)
	if err != nil {
		return nil, err
	}
	pools, err := s.fetchPools(ctx)
	if err != nil {
		return nil, err
	}
	inbound, err := s.fetchInbound(ctx)
	if err != nil {
		return nil, err
	}

	m := &market{sellPoolID: sellPoolID, buyPoolID: buyPoolID, pools: pools, inbound: inbound}
	for _, id := range []string{sellPoolID, buyPoolID} {
		if id == RunePoolID {
			continue
		}
		if _, err := lookupPool(pools, id); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *market) pool(id string) types.Pool {
	return m.pools[strings.ToUpper(id)]
}

// toRune values amount of poolID's asset in RUNE
func (m *market) toRune(amount decimal.Decimal, poolID string) (decimal.Decimal, error) {
	if poolID == RunePoolID {
		return amount, nil
	}
	pool, err := lookupPool(m.pools, poolID)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(pool.CounterBalance).DivRound(pool.AssetBalance, amm.DivisionPrecision), nil
}

// fromRune values a RUNE amount in poolID's asset
func (m *market) fromRune(amount decimal.Decimal, poolID string) (decimal.Decimal, error) {
	if poolID == RunePoolID {
		return amount, nil
	}
	pool, err := lookupPool(m.pools, poolID)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(pool.AssetBalance).DivRound(pool.CounterBalance, amm.DivisionPrecision), nil
}

// swap routes a hub-precision input. RUNE on either side is a single hop.
func (m *market) swap(input decimal.Decimal) route {
	ratio := func(out decimal.Decimal) decimal.Decimal {
		if input.IsZero() {
			return decimal.Zero
		}
		return out.DivRound(input, amm.DivisionPrecision)
	}

	switch {
	case m.sellPoolID == RunePoolID:
		pool := m.pool(m.buyPoolID)
		out := amm.SwapOutput(input, pool, false)
		return route{output: out, rate: ratio(out), slippage: amm.SingleSwapSlippage(input, pool, false)}
	case m.buyPoolID == RunePoolID:
		pool := m.pool(m.sellPoolID)
		out := amm.SwapOutput(input, pool, true)
		return route{output: out, rate: ratio(out), slippage: amm.SingleSwapSlippage(input, pool, true)}
	}
	from, to := m.pool(m.sellPoolID), m.pool(m.buyPoolID)
	return route{
		output:   amm.DoubleSwapOutput(input, from, to),
		rate:     amm.DoubleSwapRate(input, from, to),
		slippage: amm.DoubleSwapSlippage(input, from, to),
	}
}

// outboundFee is the network's fee for paying out the buy asset, in hub
// units of the buy asset.
func (m *market) outboundFee() (decimal.Decimal, error) {
	if m.buyPoolID == RunePoolID {
		return runeOutboundFee, nil
	}
	chainName := poolChain(m.buyPoolID)
	gas, ok := gasAssets[chainName]
	if !ok {
		return decimal.Zero, swapper.NewError(swapper.KindUnsupportedChain, "no gas asset for %s", chainName)
	}
	in, err := lookupInbound(m.inbound, chainName)
	if err != nil {
		return decimal.Zero, err
	}

	fee := gas.hubFee(in.GasRate).Mul(outboundMultiplier)
	if strings.EqualFold(gas.poolID, m.buyPoolID) {
		return fee, nil
	}
	runeFee, err := m.toRune(fee, gas.poolID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.fromRune(runeFee, m.buyPoolID)
}

// minMax bounds the sell amount in display units. The minimum keeps the
// outbound fee under the configured fraction of the input; the maximum
// caps the sell-side pool slippage.
func (s *Swapper) minMax(m *market) (*swapper.MinMax, error) {
	feeBuy, err := m.outboundFee()
	if err != nil {
		return nil, err
	}
	feeRune, err := m.toRune(feeBuy, m.buyPoolID)
	if err != nil {
		return nil, err
	}
	feeSell, err := m.fromRune(feeRune, m.sellPoolID)
	if err != nil {
		return nil, err
	}

	var maximum decimal.Decimal
	if m.sellPoolID == RunePoolID {
		maximum = amm.MaxInputForSlippage(m.pool(m.buyPoolID), false, s.maxSlippage)
	} else {
		maximum = amm.MaxInputForSlippage(m.pool(m.sellPoolID), true, s.maxSlippage)
	}

	return &swapper.MinMax{
		Minimum: feeSell.Shift(-amm.HubPrecision).DivRound(s.maxFeeFraction, amm.DivisionPrecision),
		Maximum: maximum.Shift(-amm.HubPrecision),
	}, nil
}

// inboundFee estimates the sell-side network fee in base units of the
// sell chain's fee asset
func (m *market) inboundFee() (types.FeeData, error) {
	chainName := poolChain(m.sellPoolID)
	gas, ok := gasAssets[chainName]
	if !ok {
		return types.FeeData{}, swapper.NewError(swapper.KindUnsupportedChain, "no gas asset for %s", chainName)
	}
	in, err := lookupInbound(m.inbound, chainName)
	if err != nil {
		return types.FeeData{}, err
	}

	fee := types.FeeData{
		Fee: gas.hubFee(in.GasRate).Shift(gas.precision - amm.HubPrecision).Truncate(0),
	}
	switch chainName {
	case ChainBTC:
		fee.ChainSpecific.SatsPerByte = in.GasRate
	case ChainETH:
		fee.ChainSpecific.EstimatedGas = gas.units
		fee.ChainSpecific.GasPrice = in.GasRate.Shift(9)
	}
	return fee, nil
}

// GetUsdRate prices asset through RUNE and the configured USD pool:
// (rune/asset) * (usd/rune).
func (s *Swapper) GetUsdRate(ctx context.Context, asset types.Asset) (decimal.Decimal, error) {
	poolID, err := PoolID(asset)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", asset)
	}
	if strings.EqualFold(poolID, s.cfg.USDPool) {
		return decimal.NewFromInt(1), nil
	}

	pools, err := s.fetchPools(ctx)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", asset)
	}
	usdPool, err := lookupPool(pools, s.cfg.USDPool)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", asset)
	}
	if poolID == RunePoolID {
		return usdPool.AssetBalance.DivRound(usdPool.CounterBalance, amm.DivisionPrecision), nil
	}

	pool, err := lookupPool(pools, poolID)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed,
			swapper.Wrap(swapper.KindPriceUnavailable, err, "no price"), "usd rate for %s", asset)
	}
	return pool.CounterBalance.Mul(usdPool.AssetBalance).
		DivRound(pool.AssetBalance.Mul(usdPool.CounterBalance), amm.DivisionPrecision), nil
}

// GetMinMax derives trade bounds from current pool depths and outbound fees
func (s *Swapper) GetMinMax(ctx context.Context, input swapper.MinMaxInput) (*swapper.MinMax, error) {
	m, err := s.loadMarket(ctx, input.SellAsset, input.BuyAsset)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s -> %s", input.SellAsset, input.BuyAsset)
	}
	bounds, err := s.minMax(m)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s -> %s", input.SellAsset, input.BuyAsset)
	}
	return bounds, nil
}

// GetTradeQuote prices the swap against live pools. The buy amount is the
// expected output before the outbound fee, which is reported as TradeFee.
// A zero sell amount quotes the minimum.
func (s *Swapper) GetTradeQuote(ctx context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	if _, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage); err != nil {
		return nil, err
	}
	if input.SellAsset.AssetID == input.BuyAsset.AssetID || !sellable(input.SellAsset.AssetID) || !buyable(input.BuyAsset.AssetID) {
		return nil, swapper.NewError(swapper.KindUnsupportedPair, "thorchain does not trade %s -> %s", input.SellAsset, input.BuyAsset)
	}
	if input.SellAmount.IsNegative() {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount must not be negative")
	}

	fail := func(err error) (*types.TradeQuote, error) {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}

	m, err := s.loadMarket(ctx, input.SellAsset, input.BuyAsset)
	if err != nil {
		return fail(err)
	}
	bounds, err := s.minMax(m)
	if err != nil {
		return fail(err)
	}

	sellAmount := input.SellAmount.Truncate(0)
	if sellAmount.IsZero() {
		sellAmount = types.ToBaseUnit(bounds.Minimum, input.SellAsset.Precision)
	}

	r := m.swap(toHub(sellAmount, input.SellAsset.Precision))
	outbound, err := m.outboundFee()
	if err != nil {
		return fail(err)
	}
	feeData, err := m.inboundFee()
	if err != nil {
		return fail(err)
	}
	feeData.TradeFee = fromHub(outbound, input.BuyAsset.Precision)

	quote := &types.TradeQuote{
		Rate:                   r.rate,
		Minimum:                bounds.Minimum,
		Maximum:                bounds.Maximum,
		SellAmount:             sellAmount,
		BuyAmount:              fromHub(r.output, input.BuyAsset.Precision),
		FeeData:                feeData,
		Sources:                []types.SwapSource{{Name: string(swapper.TypeThorchain), Proportion: decimal.NewFromInt(1)}},
		SellAsset:              input.SellAsset,
		BuyAsset:               input.BuyAsset,
		SellAssetAccountNumber: input.SellAssetAccountNumber,
	}

	if poolChain(m.sellPoolID) == ChainETH && input.SellAsset.IsERC20() {
		in, err := lookupInbound(m.inbound, ChainETH)
		if err != nil {
			return fail(err)
		}
		quote.AllowanceContract = in.Router
	}
	if input.Wallet != nil && input.SellAsset.IsERC20() {
		adapter, err := s.adapters.EVM(input.SellAsset.ChainID)
		if err != nil {
			return fail(err)
		}
		approvalFee, err := approval.NewChecker(adapter, s.logger).ApprovalFee(ctx, quote, input.Wallet, feeData.ChainSpecific.GasPrice)
		if err != nil {
			return fail(err)
		}
		quote.FeeData.ChainSpecific.ApprovalFee = approvalFee
	}

	s.logger.Debug("quoted",
		"sell", m.sellPoolID, "buy", m.buyPoolID, "sellAmount", sellAmount,
		"expected", r.output, "slippage", r.slippage, "outboundFee", outbound)
	return quote, nil
}
