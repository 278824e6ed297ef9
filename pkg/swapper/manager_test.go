package swapper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/pkg/types"
)

type fakeSwapper struct {
	typ      Type
	sellable map[string]bool
	buyable  map[string]bool
}

func (f *fakeSwapper) Type() Type { return f.typ }

func (f *fakeSwapper) FilterAssetIDsBySellable(ids []string) []string {
	var out []string
	for _, id := range ids {
		if f.sellable[id] {
			out = append(out, id)
		}
	}
	return out
}

func (f *fakeSwapper) FilterBuyAssetsBySellAssetID(in BuyAssetFilterInput) []string {
	if !f.sellable[in.SellAssetID] {
		return nil
	}
	var out []string
	for _, id := range in.AssetIDs {
		if f.buyable[id] && id != in.SellAssetID {
			out = append(out, id)
		}
	}
	return out
}

func (f *fakeSwapper) GetUsdRate(context.Context, types.Asset) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func (f *fakeSwapper) GetMinMax(context.Context, MinMaxInput) (*MinMax, error) {
	return &MinMax{}, nil
}

func (f *fakeSwapper) GetTradeQuote(context.Context, TradeQuoteInput) (*types.TradeQuote, error) {
	return &types.TradeQuote{}, nil
}

func (f *fakeSwapper) ApprovalNeeded(context.Context, ApprovalInput) (bool, error) { return false, nil }

func (f *fakeSwapper) ApproveInfinite(context.Context, ApprovalInput) (string, error) { return "", nil }

func (f *fakeSwapper) BuildTrade(context.Context, BuildTradeInput) (*types.Trade, error) {
	return &types.Trade{}, nil
}

func (f *fakeSwapper) ExecuteTrade(context.Context, ExecuteTradeInput) (*types.TradeResult, error) {
	return &types.TradeResult{}, nil
}

func newFake(t Type, sell, buy []string) *fakeSwapper {
	f := &fakeSwapper{typ: t, sellable: map[string]bool{}, buyable: map[string]bool{}}
	for _, id := range sell {
		f.sellable[id] = true
	}
	for _, id := range buy {
		f.buyable[id] = true
	}
	return f
}

func factoryOf(s Swapper) Factory {
	return func() (Swapper, error) { return s, nil }
}

func TestManagerAddAndLookup(t *testing.T) {
	m := NewManager(nil)
	zrx := newFake(TypeZrx, []string{"a"}, []string{"b"})

	require.NoError(t, m.AddSwapper(TypeZrx, factoryOf(zrx)))

	err := m.AddSwapper(TypeZrx, factoryOf(zrx))
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := m.BySwapper(TypeZrx)
	require.NoError(t, err)
	assert.Same(t, zrx, got)

	_, err = m.BySwapper(TypeCowSwap)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManagerFactoryErrorPropagates(t *testing.T) {
	m := NewManager(nil)
	boom := errors.New("missing api key")
	calls := 0
	require.NoError(t, m.AddSwapper(TypeCowSwap, func() (Swapper, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return newFake(TypeCowSwap, nil, nil), nil
	}))

	_, err := m.BySwapper(TypeCowSwap)
	assert.ErrorIs(t, err, boom)

	s, err := m.BySwapper(TypeCowSwap)
	require.NoError(t, err)
	assert.Equal(t, TypeCowSwap, s.Type())
	assert.Equal(t, 2, calls)
}

func TestGetBestSwapperRegistrationOrder(t *testing.T) {
	m := NewManager(nil)
	first := newFake(TypeThorchain, []string{"eth"}, []string{"btc"})
	second := newFake(TypeZrx, []string{"eth"}, []string{"btc", "fox"})
	require.NoError(t, m.AddSwapper(TypeThorchain, factoryOf(first)))
	require.NoError(t, m.AddSwapper(TypeZrx, factoryOf(second)))

	s, err := m.GetBestSwapper("eth", "btc")
	require.NoError(t, err)
	assert.Equal(t, TypeThorchain, s.Type())

	s, err = m.GetBestSwapper("eth", "fox")
	require.NoError(t, err)
	assert.Equal(t, TypeZrx, s.Type())

	_, err = m.GetBestSwapper("btc", "eth")
	assert.True(t, errors.Is(err, ErrUnsupportedPair))

	assert.Equal(t, []Type{TypeThorchain, TypeZrx}, m.Swappers())
}

func TestGetBestSwapperSkipsBrokenFactory(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.AddSwapper(TypeOsmosis, func() (Swapper, error) {
		return nil, errors.New("no lcd url")
	}))
	require.NoError(t, m.AddSwapper(TypeZrx, factoryOf(newFake(TypeZrx, []string{"eth"}, []string{"fox"}))))

	s, err := m.GetBestSwapper("eth", "fox")
	require.NoError(t, err)
	assert.Equal(t, TypeZrx, s.Type())
}
