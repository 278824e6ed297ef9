// Package settlement sequences trades whose legs settle on two chains.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
)

// State is a step of a two-leg settlement
type State string

const (
	StateQuoted                 State = "Quoted"
	StateBuilt                  State = "Built"
	StateLeg1Broadcast          State = "Leg1Broadcast"
	StateLeg1Confirmed          State = "Leg1Confirmed"
	StateBridgedBalanceObserved State = "BridgedBalanceObserved"
	StateLeg2Broadcast          State = "Leg2Broadcast"
	StateLeg2Confirmed          State = "Leg2Confirmed"
	StateFailed                 State = "Failed"
)

// Terminal reports whether no transition can leave s
func (s State) Terminal() bool {
	return s == StateLeg2Confirmed || s == StateFailed
}

var next = map[State]State{
	StateQuoted:                 StateBuilt,
	StateBuilt:                  StateLeg1Broadcast,
	StateLeg1Broadcast:          StateLeg1Confirmed,
	StateLeg1Confirmed:          StateBridgedBalanceObserved,
	StateBridgedBalanceObserved: StateLeg2Broadcast,
	StateLeg2Broadcast:          StateLeg2Confirmed,
}

// CanTransition reports whether from -> to is a legal step
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	return to == StateFailed || next[from] == to
}

// ErrLegFailed is returned when a leg is confirmed as failed on chain
var ErrLegFailed = errors.New("settlement leg failed")

// Transition records one state change
type Transition struct {
	RunID  string          `json:"runId"`
	From   State           `json:"from"`
	To     State           `json:"to"`
	TxID   string          `json:"txId,omitempty"`
	Amount decimal.Decimal `json:"amount,omitempty"`
	Reason string          `json:"reason,omitempty"`
	At     time.Time       `json:"at"`
}

// Observer receives every transition of a run
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(t Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

// Legs describes the chain work of one run
type Legs struct {
	// Leg1 signs and broadcasts the first leg and returns its txid
	Leg1 func(ctx context.Context) (string, error)
	// Leg1Status reads the confirmation state of leg 1 on its chain
	Leg1Status chain.TxStatusReader
	// BridgedBalance reads the destination balance of the bridged denom
	BridgedBalance func(ctx context.Context) (decimal.Decimal, error)
	// Leg2 builds, signs and broadcasts the second leg for the observed amount
	Leg2 func(ctx context.Context, amount decimal.Decimal) (string, error)
	// Leg2Status reads the confirmation state of leg 2 on its chain
	Leg2Status chain.TxStatusReader
}

func (l Legs) validate() error {
	if l.Leg1 == nil || l.Leg1Status == nil || l.BridgedBalance == nil || l.Leg2 == nil || l.Leg2Status == nil {
		return errors.New("settlement legs are incomplete")
	}
	return nil
}

// Result is the outcome of a run
type Result struct {
	RunID         string
	State         State
	Leg1TxID      string
	BridgedAmount decimal.Decimal
	Leg2TxID      string
	Transitions   []Transition
}

// Sequencer drives Legs through the settlement states
type Sequencer struct {
	Interval time.Duration
	Timeout  time.Duration
	Observer Observer
	Logger   *slog.Logger
}

type runIDKey struct{}

// WithRunID makes Run report transitions under id
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id carried by ctx
func RunIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

type run struct {
	seq    *Sequencer
	logger *slog.Logger
	mu     sync.Mutex
	result *Result
}

func (r *run) move(to State, txID string, amount decimal.Decimal, reason string) {
	r.mu.Lock()
	from := r.result.State
	if !CanTransition(from, to) {
		r.mu.Unlock()
		r.logger.Error("illegal settlement transition", "from", from, "to", to)
		return
	}
	t := Transition{
		RunID:  r.result.RunID,
		From:   from,
		To:     to,
		TxID:   txID,
		Amount: amount,
		Reason: reason,
		At:     time.Now().UTC(),
	}
	r.result.State = to
	r.result.Transitions = append(r.result.Transitions, t)
	r.mu.Unlock()

	r.logger.Info("settlement transition", "from", from, "to", to, "tx", txID)
	if r.seq.Observer != nil {
		r.seq.Observer.Observe(t)
	}
}

func (r *run) fail(err error) (*Result, error) {
	r.move(StateFailed, "", decimal.Zero, err.Error())
	return r.result, err
}

// Run executes legs. Polling after the first broadcast ignores cancellation of
// ctx and is bounded only by the sequencer's timeout.
func (s *Sequencer) Run(ctx context.Context, legs Legs) (*Result, error) {
	if err := legs.validate(); err != nil {
		return nil, err
	}

	runID, ok := RunIDFrom(ctx)
	if !ok {
		runID = uuid.NewString()
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &run{
		seq:    s,
		logger: logger.With("run", runID),
		result: &Result{RunID: runID, State: StateQuoted},
	}
	r.move(StateBuilt, "", decimal.Zero, "")

	leg1, err := legs.Leg1(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("leg 1 broadcast: %w", err))
	}
	r.result.Leg1TxID = leg1
	r.move(StateLeg1Broadcast, leg1, decimal.Zero, "")

	// Broadcast transactions cannot be retracted
	bg := context.WithoutCancel(ctx)

	if err := s.confirm(bg, legs.Leg1Status, leg1); err != nil {
		return r.fail(fmt.Errorf("leg 1 %s: %w", leg1, err))
	}
	r.move(StateLeg1Confirmed, leg1, decimal.Zero, "")

	amount, err := swapper.PollUntil(bg, func(ctx context.Context) (decimal.Decimal, bool, error) {
		bal, err := legs.BridgedBalance(ctx)
		if err != nil {
			logger.Warn("bridged balance query failed", "error", err)
			return decimal.Zero, false, nil
		}
		return bal, bal.IsPositive(), nil
	}, s.Interval, s.Timeout)
	if err != nil {
		return r.fail(fmt.Errorf("bridged balance: %w", err))
	}
	r.result.BridgedAmount = amount
	r.move(StateBridgedBalanceObserved, "", amount, "")

	leg2, err := legs.Leg2(bg, amount)
	if err != nil {
		return r.fail(fmt.Errorf("leg 2 broadcast: %w", err))
	}
	r.result.Leg2TxID = leg2
	r.move(StateLeg2Broadcast, leg2, amount, "")

	if err := s.confirm(bg, legs.Leg2Status, leg2); err != nil {
		return r.fail(fmt.Errorf("leg 2 %s: %w", leg2, err))
	}
	r.move(StateLeg2Confirmed, leg2, amount, "")

	return r.result, nil
}

// confirm polls txID until it is confirmed. Status query errors are retried
// until the timeout; an on-chain failure ends the poll.
func (s *Sequencer) confirm(ctx context.Context, reader chain.TxStatusReader, txID string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	_, err := swapper.PollUntil(ctx, func(ctx context.Context) (chain.TxStatus, bool, error) {
		status, err := reader.TxStatus(ctx, txID)
		if err != nil {
			logger.Warn("tx status query failed", "tx", txID, "error", err)
			return "", false, nil
		}
		switch status {
		case chain.TxConfirmed:
			return status, true, nil
		case chain.TxFailed:
			return status, false, ErrLegFailed
		}
		return status, false, nil
	}, s.Interval, s.Timeout)
	return err
}
