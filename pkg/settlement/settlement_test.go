package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/pkg/chain"
	"multiswap/pkg/chain/chaintest"
	"multiswap/pkg/swapper"
)

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recorder) Observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.To
	}
	return out
}

type fixture struct {
	hub     *chaintest.Adapter
	osmosis *chaintest.Adapter
	leg2In  []decimal.Decimal
	legs    Legs
}

func newFixture() *fixture {
	f := &fixture{
		hub:     chaintest.New("cosmos:cosmoshub-4", "cosmos:cosmoshub-4/slip44:118", "cosmos1abc"),
		osmosis: chaintest.New("cosmos:osmosis-1", "cosmos:osmosis-1/slip44:118", "osmo1abc"),
	}
	f.hub.TxIDs = []string{"LEG1"}
	f.osmosis.TxIDs = []string{"LEG2"}
	f.legs = Legs{
		Leg1: func(ctx context.Context) (string, error) {
			return f.hub.BroadcastTransaction(ctx, "leg1")
		},
		Leg1Status: f.hub,
		BridgedBalance: func(ctx context.Context) (decimal.Decimal, error) {
			return f.osmosis.Balance(ctx, "osmo1abc", "ibc/ATOM")
		},
		Leg2: func(ctx context.Context, amount decimal.Decimal) (string, error) {
			f.leg2In = append(f.leg2In, amount)
			return f.osmosis.BroadcastTransaction(ctx, "leg2")
		},
		Leg2Status: f.osmosis,
	}
	return f
}

func newSequencer(obs Observer) *Sequencer {
	return &Sequencer{Interval: time.Millisecond, Timeout: 200 * time.Millisecond, Observer: obs}
}

func TestRunSuccess(t *testing.T) {
	f := newFixture()
	f.hub.Statuses = map[string][]chain.TxStatus{"LEG1": {chain.TxPending, chain.TxPending, chain.TxConfirmed}}
	f.osmosis.Balances = map[string][]decimal.Decimal{"ibc/ATOM": {decimal.Zero, decimal.NewFromInt(1000000)}}
	rec := &recorder{}

	res, err := newSequencer(rec).Run(context.Background(), f.legs)
	require.NoError(t, err)

	assert.Equal(t, StateLeg2Confirmed, res.State)
	assert.Equal(t, "LEG1", res.Leg1TxID)
	assert.Equal(t, "LEG2", res.Leg2TxID)
	assert.Equal(t, []State{
		StateBuilt, StateLeg1Broadcast, StateLeg1Confirmed,
		StateBridgedBalanceObserved, StateLeg2Broadcast, StateLeg2Confirmed,
	}, rec.states())
	assert.Equal(t, 3, f.hub.Called("TxStatus"))
	assert.NotEmpty(t, res.RunID)
}

func TestRunUsesObservedBalance(t *testing.T) {
	f := newFixture()
	observed := decimal.NewFromInt(995000)
	f.osmosis.Balances = map[string][]decimal.Decimal{"ibc/ATOM": {observed}}

	res, err := newSequencer(nil).Run(context.Background(), f.legs)
	require.NoError(t, err)

	require.Len(t, f.leg2In, 1)
	assert.True(t, observed.Equal(f.leg2In[0]))
	assert.True(t, observed.Equal(res.BridgedAmount))
}

func TestLeg1FailureSkipsLeg2(t *testing.T) {
	f := newFixture()
	f.hub.Statuses = map[string][]chain.TxStatus{"LEG1": {chain.TxPending, chain.TxFailed}}
	rec := &recorder{}

	res, err := newSequencer(rec).Run(context.Background(), f.legs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegFailed)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, f.leg2In)
	assert.Equal(t, 0, f.osmosis.Called("BroadcastTransaction"))
	assert.Equal(t, []State{StateBuilt, StateLeg1Broadcast, StateFailed}, rec.states())
}

func TestLeg1TimeoutSkipsLeg2(t *testing.T) {
	f := newFixture()
	f.hub.Statuses = map[string][]chain.TxStatus{"LEG1": {chain.TxPending}}

	res, err := newSequencer(nil).Run(context.Background(), f.legs)
	require.Error(t, err)
	assert.ErrorIs(t, err, swapper.ErrPollTimeout)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, f.leg2In)
}

func TestBridgedBalanceTimeout(t *testing.T) {
	f := newFixture()

	res, err := newSequencer(nil).Run(context.Background(), f.legs)
	require.Error(t, err)
	assert.ErrorIs(t, err, swapper.ErrPollTimeout)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateLeg1Confirmed, res.Transitions[len(res.Transitions)-1].From)
}

func TestLeg1BroadcastError(t *testing.T) {
	f := newFixture()
	f.hub.Errors = map[string]error{"BroadcastTransaction": errors.New("mempool full")}

	res, err := newSequencer(nil).Run(context.Background(), f.legs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mempool full")
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Leg1TxID)
}

func TestCancellationAfterBroadcastDoesNotAbandonLegs(t *testing.T) {
	f := newFixture()
	f.hub.Statuses = map[string][]chain.TxStatus{"LEG1": {chain.TxPending, chain.TxPending, chain.TxConfirmed}}
	f.osmosis.Balances = map[string][]decimal.Decimal{"ibc/ATOM": {decimal.NewFromInt(10)}}

	ctx, cancel := context.WithCancel(context.Background())
	leg1 := f.legs.Leg1
	f.legs.Leg1 = func(c context.Context) (string, error) {
		id, err := leg1(c)
		cancel()
		return id, err
	}

	res, err := newSequencer(nil).Run(ctx, f.legs)
	require.NoError(t, err)
	assert.Equal(t, StateLeg2Confirmed, res.State)
}

func TestRunIDFromContext(t *testing.T) {
	f := newFixture()
	f.osmosis.Balances = map[string][]decimal.Decimal{"ibc/ATOM": {decimal.NewFromInt(1)}}
	rec := &recorder{}

	res, err := newSequencer(rec).Run(WithRunID(context.Background(), "entry-1"), f.legs)
	require.NoError(t, err)
	assert.Equal(t, "entry-1", res.RunID)
	for _, tr := range rec.transitions {
		assert.Equal(t, "entry-1", tr.RunID)
	}
}

func TestIncompleteLegs(t *testing.T) {
	_, err := newSequencer(nil).Run(context.Background(), Legs{})
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateQuoted, StateBuilt))
	assert.True(t, CanTransition(StateLeg1Broadcast, StateFailed))
	assert.False(t, CanTransition(StateLeg1Broadcast, StateLeg2Broadcast))
	assert.False(t, CanTransition(StateLeg2Confirmed, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateBuilt))
}
