package osmosis

import (
	"context"

	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/asset"
	"multiswap/pkg/chain"
	"multiswap/pkg/settlement"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// chainAdapters returns the Cosmos Hub and Osmosis signers
func (s *Swapper) chainAdapters() (hub, osmo chain.Adapter, err error) {
	if hub, err = s.adapters.Get(asset.CosmosHubChainID); err != nil {
		return nil, nil, err
	}
	if osmo, err = s.adapters.Get(asset.OsmosisChainID); err != nil {
		return nil, nil, err
	}
	return hub, osmo, nil
}

func (s *Swapper) buildTx(ctx context.Context, adapter chain.Adapter, lcd LCD, wallet chain.Wallet, accountNumber int, sender string, msg types.CosmosMsg, gas string, fee types.Coin) (*types.UnsignedTx, error) {
	acct, err := lcd.Account(ctx, sender)
	if err != nil {
		return nil, err
	}
	return adapter.BuildTransaction(ctx, chain.BuildTxInput{
		Wallet:        wallet,
		AccountNumber: accountNumber,
		Msgs:          []types.CosmosMsg{msg},
		Gas:           gas,
		Fee:           []types.Coin{fee},
		Account:       acct,
	})
}

// swapTx builds a pool swap on Osmosis with the minimum output derived
// from the pool as it is now
func (s *Swapper) swapTx(ctx context.Context, adapter chain.Adapter, wallet chain.Wallet, accountNumber int, sender string, atomIn bool, amount, slippage decimal.Decimal) (*types.UnsignedTx, error) {
	inDenom, outDenom := s.poolDenoms(atomIn)
	pool, err := s.fetchPool(ctx, s.cfg.PoolID, inDenom, outDenom)
	if err != nil {
		return nil, err
	}
	minOut := amm.LimitAmount(expectedOutput(amount, pool), slippage, decimal.Zero, 0)
	msg := swapMsg(s.cfg.PoolID, types.Coin{Denom: inDenom, Amount: amount.String()}, outDenom, sender, minOut.String())
	return s.buildTx(ctx, adapter, s.osmosis, wallet, accountNumber, sender, msg, s.cfg.SwapGas,
		types.Coin{Denom: denomOSMO, Amount: s.osmosisFee.String()})
}

// BuildTrade builds leg 1: an IBC transfer of ATOM to the wallet's Osmosis
// address, or the OSMO -> ATOM pool swap. Leg 2 is built at execution time
// from the balance that actually arrives.
func (s *Swapper) BuildTrade(ctx context.Context, input swapper.BuildTradeInput) (*types.Trade, error) {
	if err := swapper.CheckBounds(input.Quote); err != nil {
		return nil, err
	}
	quote := input.Quote
	slippage, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage)
	if err != nil {
		return nil, err
	}
	atomIn, err := sellsATOM(quote.SellAsset, quote.BuyAsset)
	if err != nil {
		return nil, err
	}
	fail := func(err error, what string) (*types.Trade, error) {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "%s", what)
	}

	hub, osmo, err := s.chainAdapters()
	if err != nil {
		return fail(err, "no adapter")
	}
	params := chain.AddressParams{AccountNumber: quote.SellAssetAccountNumber}
	hubAddr, err := hub.GetAddress(ctx, input.Wallet, params)
	if err != nil {
		return fail(err, "derive cosmos hub address")
	}
	osmoAddr, err := osmo.GetAddress(ctx, input.Wallet, params)
	if err != nil {
		return fail(err, "derive osmosis address")
	}

	trade := &types.Trade{TradeQuote: *quote, SlippageTolerance: slippage}
	if atomIn {
		// leg 2 swaps from the wallet's own Osmosis address
		if input.ReceiveAddress != "" && input.ReceiveAddress != osmoAddr {
			return nil, swapper.NewError(swapper.KindValidationFailed,
				"receive address must be the wallet's osmosis address %s", osmoAddr)
		}
		height, err := s.osmosis.LatestHeight(ctx)
		if err != nil {
			return fail(err, "osmosis height")
		}
		msg := transferMsg(s.cfg.ChannelToOsmosis,
			types.Coin{Denom: denomATOM, Amount: quote.SellAmount.String()},
			hubAddr, osmoAddr, s.cfg.OsmosisRevision, height+s.cfg.TimeoutHeightOffset)
		trade.Tx, err = s.buildTx(ctx, hub, s.cosmosHub, input.Wallet, quote.SellAssetAccountNumber, hubAddr, msg,
			s.cfg.TransferGas, types.Coin{Denom: denomATOM, Amount: s.cosmosHubFee.String()})
		if err != nil {
			return fail(err, "build ibc transfer")
		}
		trade.SellAddress, trade.ReceiveAddress = hubAddr, osmoAddr
	} else {
		trade.Tx, err = s.swapTx(ctx, osmo, input.Wallet, quote.SellAssetAccountNumber, osmoAddr, false, quote.SellAmount, slippage)
		if err != nil {
			return fail(err, "build swap")
		}
		trade.SellAddress, trade.ReceiveAddress = osmoAddr, hubAddr
		if input.ReceiveAddress != "" {
			trade.ReceiveAddress = input.ReceiveAddress
		}
	}
	return trade, nil
}

func signAndBroadcast(ctx context.Context, adapter chain.Adapter, tx *types.UnsignedTx, wallet chain.Wallet) (string, error) {
	signed, err := adapter.SignTransaction(ctx, tx, wallet)
	if err != nil {
		return "", swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "sign")
	}
	txid, err := adapter.BroadcastTransaction(ctx, signed)
	if err != nil {
		return "", swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "broadcast")
	}
	return txid, nil
}

// ExecuteTrade runs both legs to confirmation. The trade id is the leg 2
// txid. Once leg 1 is broadcast, cancelling ctx no longer stops settlement.
func (s *Swapper) ExecuteTrade(ctx context.Context, input swapper.ExecuteTradeInput) (*types.TradeResult, error) {
	trade := input.Trade
	if trade == nil || trade.Tx == nil {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "trade has no transaction")
	}
	atomIn, err := sellsATOM(trade.SellAsset, trade.BuyAsset)
	if err != nil {
		return nil, err
	}
	hub, osmo, err := s.chainAdapters()
	if err != nil {
		return nil, swapper.Wrap(swapper.KindExecuteTradeFailed, err, "no adapter")
	}

	leg1, leg1Status, osmoAddr := osmo, s.osmosis, trade.SellAddress
	if atomIn {
		leg1, leg1Status, osmoAddr = hub, s.cosmosHub, trade.ReceiveAddress
	}

	leg2 := func(ctx context.Context, amount decimal.Decimal) (string, error) {
		var (
			tx  *types.UnsignedTx
			err error
		)
		if atomIn {
			tx, err = s.swapTx(ctx, osmo, input.Wallet, trade.SellAssetAccountNumber, osmoAddr, true, amount, trade.SlippageTolerance)
		} else {
			var height int64
			if height, err = s.cosmosHub.LatestHeight(ctx); err != nil {
				return "", err
			}
			msg := transferMsg(s.cfg.ChannelToCosmosHub,
				types.Coin{Denom: s.cfg.AtomDenomOnOsmosis, Amount: amount.String()},
				osmoAddr, trade.ReceiveAddress, s.cfg.CosmosHubRevision, height+s.cfg.TimeoutHeightOffset)
			tx, err = s.buildTx(ctx, osmo, s.osmosis, input.Wallet, trade.SellAssetAccountNumber, osmoAddr, msg,
				s.cfg.TransferGas, types.Coin{Denom: denomOSMO, Amount: s.osmosisFee.String()})
		}
		if err != nil {
			return "", err
		}
		return signAndBroadcast(ctx, osmo, tx, input.Wallet)
	}

	seq := &settlement.Sequencer{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.PollTimeout,
		Observer: s.observer,
		Logger:   s.logger,
	}
	res, err := seq.Run(ctx, settlement.Legs{
		Leg1: func(ctx context.Context) (string, error) {
			return signAndBroadcast(ctx, leg1, trade.Tx, input.Wallet)
		},
		Leg1Status: leg1Status,
		BridgedBalance: func(ctx context.Context) (decimal.Decimal, error) {
			return s.osmosis.Balance(ctx, osmoAddr, s.cfg.AtomDenomOnOsmosis)
		},
		Leg2:       leg2,
		Leg2Status: s.osmosis,
	})
	if err != nil {
		if res == nil {
			return nil, swapper.Wrap(swapper.KindExecuteTradeFailed, err, "settlement")
		}
		kind := swapper.KindExecuteTradeFailed
		if res.Leg1TxID == "" {
			kind = swapper.KindSignAndBroadcastFailed
		}
		return nil, &swapper.Error{
			Kind:    kind,
			Message: "settlement failed",
			Cause:   err,
			Details: map[string]any{
				"runId":    res.RunID,
				"leg1TxId": res.Leg1TxID,
				"leg2TxId": res.Leg2TxID,
			},
		}
	}

	s.logger.Info("settled", "run", res.RunID, "leg1", res.Leg1TxID, "bridged", res.BridgedAmount, "leg2", res.Leg2TxID)
	return &types.TradeResult{TradeID: res.Leg2TxID}, nil
}
