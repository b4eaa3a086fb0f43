package venue

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

var (
	// ErrExecutorBusy is returned if a round is submitted while another
	// one is still being cleared.
	ErrExecutorBusy = errors.New("another round is being cleared")

	// ErrUnknownWallet is returned by a settler that doesn't know the
	// wallet of a participant.
	ErrUnknownWallet = errors.New("unknown wallet")
)

// ErrRoundFailed is returned if a round could not be completed. Nothing was
// settled for the round, the next interval starts from a clean state.
type ErrRoundFailed struct {
	// RoundID is the ID of the failed round.
	RoundID uuid.UUID

	// State is the state in which the round failed.
	State RoundState

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ErrRoundFailed) Error() string {
	return fmt.Sprintf("round %v failed in state %v: %v", e.RoundID,
		e.State, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ErrRoundFailed) Unwrap() error {
	return e.Err
}

// ErrInvalidTransition is returned if a state step tries to move the state
// machine along a transition that doesn't exist.
type ErrInvalidTransition struct {
	From RoundState
	To   RoundState
}

// Error implements the error interface.
func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition %v -> %v", e.From, e.To)
}

// ErrSettlement is returned if a wallet refused to settle its part of a
// round.
type ErrSettlement struct {
	// Participant is the owner of the wallet.
	Participant order.ParticipantID

	// Amount is the amount that couldn't be settled.
	Amount decimal.Decimal

	// Err is the error returned by the wallet.
	Err error
}

// Error implements the error interface.
func (e *ErrSettlement) Error() string {
	return fmt.Sprintf("unable to settle %v for %q: %v", e.Amount,
		e.Participant, e.Err)
}

// Unwrap returns the error returned by the wallet.
func (e *ErrSettlement) Unwrap() error {
	return e.Err
}
