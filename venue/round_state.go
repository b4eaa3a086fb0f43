package venue

import (
	"fmt"
)

// RoundState tracks the current state of the round execution state machine.
type RoundState uint32

const (
	// RoundIdle indicates that no round is being cleared, and we're
	// waiting for the orders of the next interval. Only a single round is
	// processed at a time.
	//
	// Valid transitions from this state:
	//  * RoundIdle -> OrdersCollected (orders of the interval accepted)
	RoundIdle RoundState = iota

	// OrdersCollected is the state we enter once all orders of the
	// interval were received, empty orders were dropped and the remaining
	// ones validated. From this point on the order book is frozen.
	//
	// Valid transitions from this state:
	//  * OrdersCollected -> OrdersSorted (curve built)
	OrdersCollected

	// OrdersSorted means the orders were sorted and merged into the list
	// of tradeable segments.
	//
	// Valid transitions from this state:
	//  * OrdersSorted -> RoundClassified (curve classified)
	OrdersSorted

	// RoundClassified means the round is known to execute fully,
	// partially or not at all.
	//
	// Valid transitions from this state:
	//  * RoundClassified -> RoundPriced (at least one segment executes)
	//  * RoundClassified -> RoundSettled (nothing executes)
	RoundClassified

	// RoundPriced means the trade pairs of the round are known.
	//
	// Valid transitions from this state:
	//  * RoundPriced -> RoundSettled (all wallets settled)
	RoundPriced

	// RoundSettled is the final state of a round. The outcome is handed
	// to the storer and the state machine goes back to idle.
	//
	// Valid transitions from this state:
	//  * RoundSettled -> RoundIdle
	RoundSettled
)

// String returns a human-readable version of the RoundState enum.
func (s RoundState) String() string {
	switch s {
	case RoundIdle:
		return "Idle"

	case OrdersCollected:
		return "OrdersCollected"

	case OrdersSorted:
		return "Sorted"

	case RoundClassified:
		return "Classified"

	case RoundPriced:
		return "Priced"

	case RoundSettled:
		return "Settled"

	default:
		return fmt.Sprintf("<unknown_state=%v>", int(s))
	}
}

// validTransitions lists every state change the state machine may perform.
var validTransitions = map[RoundState][]RoundState{
	RoundIdle:       {OrdersCollected},
	OrdersCollected: {OrdersSorted},
	OrdersSorted:    {RoundClassified},
	RoundClassified: {RoundPriced, RoundSettled},
	RoundPriced:     {RoundSettled},
	RoundSettled:    {RoundIdle},
}

// CanTransitionTo returns true if the state machine may move from this state
// to the given one.
func (s RoundState) CanTransitionTo(next RoundState) bool {
	for _, valid := range validTransitions[s] {
		if valid == next {
			return true
		}
	}

	return false
}
