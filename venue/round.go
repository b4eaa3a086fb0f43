package venue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue/matching"
)

// RoundOutcome is the final result of a single cleared interval.
type RoundOutcome struct {
	// ID uniquely identifies the round.
	ID uuid.UUID

	// Sequence is the number of the round since the executor was
	// created, starting at 1.
	Sequence uint64

	// Result is the clearing result of the round.
	Result *matching.ClearingResult

	// NetPositions are the signed net traded quantities of all
	// participants that traded in the round.
	NetPositions matching.NetPositions

	// Report is the per participant settlement of the round.
	Report *matching.SettlementReport

	// States is the list of states the round went through, starting and
	// ending with RoundIdle.
	States []RoundState
}

// ExecutorConfig is a struct that holds all configuration items passed to an
// executor.
type ExecutorConfig struct {
	// Engine clears the orders of a round.
	Engine *matching.Engine

	// Settler settles the trades of a round. If nil, rounds are cleared
	// without being settled.
	Settler Settler

	// RoundStorer persists the outcome of every settled round. Optional.
	RoundStorer RoundStorer
}

// environment is the running state of the state machine. The state machine
// defines a state step method which takes the current state and the
// environment to produce a next state and updated environment:
// stateStep(state, env) -> (state, env). It is essentially a scratch pad
// for a single round and is thrown away once the round is done.
type environment struct {
	ctx context.Context

	id       uuid.UUID
	sequence uint64

	bids   []order.Order
	offers []order.Order

	segments []matching.Segment
	clearing matching.Clearing

	result    *matching.ClearingResult
	positions matching.NetPositions
	report    *matching.SettlementReport

	states []RoundState
}

// outcome returns the outcome of the round as far as it has progressed.
func (e *environment) outcome() *RoundOutcome {
	return &RoundOutcome{
		ID:           e.id,
		Sequence:     e.sequence,
		Result:       e.result,
		NetPositions: e.positions,
		Report:       e.report,
		States:       e.states,
	}
}

// RoundExecutor drives the orders of a trading interval through the round
// state machine: collecting, sorting, classifying, pricing and settling.
// Rounds are executed one at a time.
type RoundExecutor struct {
	// rounds is the number of rounds executed so far.
	//
	// NOTE: This variable MUST be used atomically.
	rounds uint64

	cfg *ExecutorConfig

	// busy makes sure only one round is being executed at any time.
	busy sync.Mutex
}

// NewRoundExecutor creates a new RoundExecutor given the execution
// configuration.
func NewRoundExecutor(cfg *ExecutorConfig) *RoundExecutor {
	return &RoundExecutor{
		cfg: cfg,
	}
}

// Execute clears and settles the orders of a single interval. The returned
// outcome is complete and internally consistent, if an error is returned
// nothing was settled.
func (r *RoundExecutor) Execute(ctx context.Context, bids,
	offers []order.Order) (*RoundOutcome, error) {

	if !r.busy.TryLock() {
		return nil, ErrExecutorBusy
	}
	defer r.busy.Unlock()

	env := environment{
		ctx:      ctx,
		id:       uuid.New(),
		sequence: atomic.AddUint64(&r.rounds, 1),
		bids:     bids,
		offers:   offers,
		states:   []RoundState{RoundIdle},
	}

	log.Infof("New round(id=%v, seq=%d) with %d bids and %d offers",
		env.id, env.sequence, len(bids), len(offers))

	state := RoundIdle
	for {
		priorState := state

		var err error
		state, env, err = r.stateStep(state, env)
		if err != nil {
			log.Errorf("Error during round execution: %v. State "+
				"transition: %v -> %v", err, priorState,
				RoundIdle)

			return nil, &ErrRoundFailed{
				RoundID: env.id,
				State:   priorState,
				Err:     err,
			}
		}

		if !priorState.CanTransitionTo(state) {
			return nil, &ErrRoundFailed{
				RoundID: env.id,
				State:   priorState,
				Err: &ErrInvalidTransition{
					From: priorState,
					To:   state,
				},
			}
		}

		log.Debugf("State transition: %v -> %v", priorState, state)
		env.states = append(env.states, state)

		// Once we're back at idle the round is done.
		if state == RoundIdle {
			break
		}
	}

	log.Infof("Round(id=%v) completed: type=%v quantity=%v price=%v",
		env.id, env.result.Type, env.result.Quantity,
		env.result.Price)

	return env.outcome(), nil
}

// stateStep takes the current state and environment and advances the state
// machine to produce a new modified environment, and the next state we
// should transition to.
func (r *RoundExecutor) stateStep(currentState RoundState,
	env environment) (RoundState, environment, error) {

	engine := r.cfg.Engine

	switch currentState {
	// The orders of the interval have arrived. Empty orders are silently
	// dropped, anything else that is malformed fails the round.
	case RoundIdle:
		env.bids = order.DropEmpty(env.bids)
		env.offers = order.DropEmpty(env.offers)

		if err := order.Validate(env.bids, env.offers); err != nil {
			return RoundIdle, env, err
		}

		return OrdersCollected, env, nil

	case OrdersCollected:
		segments, err := engine.Curve(env.bids, env.offers)
		if err != nil {
			return OrdersCollected, env, err
		}
		env.segments = segments

		log.Debugf("Round(id=%v) has %d tradeable segments", env.id,
			len(segments))

		return OrdersSorted, env, nil

	case OrdersSorted:
		env.clearing = engine.Classify(env.segments)

		return RoundClassified, env, nil

	// Pricing a round in which nothing executes yields an empty result,
	// so we create it here and skip straight to settled.
	case RoundClassified:
		result, err := engine.Price(env.segments, env.clearing)
		if err != nil {
			return RoundClassified, env, err
		}
		result.TotalDemand, result.TotalSupply = matching.DemandSupply(
			env.bids, env.offers,
		)

		env.result = result
		env.positions = matching.NewNetPositions(result.TradePairs)
		env.report = matching.NewSettlementReport(result)

		if env.clearing.Type == matching.NoExecution {
			return RoundSettled, env, nil
		}

		return RoundPriced, env, nil

	// The round can still be abandoned without side effects, so this is
	// the last point at which we honor the context.
	case RoundPriced:
		if err := env.ctx.Err(); err != nil {
			return RoundPriced, env, err
		}

		if r.cfg.Settler != nil {
			if err := settle(r.cfg.Settler, env.report); err != nil {
				return RoundPriced, env, err
			}
		}

		return RoundSettled, env, nil

	// The wallets are already settled at this point, so a failure to
	// store the round doesn't fail it.
	case RoundSettled:
		if r.cfg.RoundStorer != nil {
			outcome := env.outcome()
			outcome.States = append(
				append([]RoundState(nil), env.states...),
				RoundIdle,
			)

			err := r.cfg.RoundStorer.StoreRound(env.ctx, outcome)
			if err != nil {
				log.Errorf("Unable to store round(id=%v): %v",
					env.id, err)
			}
		}

		return RoundIdle, env, nil

	default:
		return currentState, env, &ErrInvalidTransition{
			From: currentState,
			To:   currentState,
		}
	}
}
