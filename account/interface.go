package account

import (
	"errors"
	"fmt"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned when we attempt to look up an account
	// that does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is an error returned when trying to open an
	// account that already exists.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountClosed is returned when a closed account is asked to
	// settle a round.
	ErrAccountClosed = errors.New("account closed")

	// ErrNonPositiveAmount is returned when a zero or negative surplus is
	// swept.
	ErrNonPositiveAmount = errors.New("settlement amount must be positive")

	// ErrNegativeAmount is returned when a wallet is asked to settle a
	// negative amount.
	ErrNegativeAmount = errors.New("settlement amount must not be " +
		"negative")

	// ErrNonPositiveQuantity is returned when a wallet is asked to settle
	// a zero or negative quantity of energy.
	ErrNonPositiveQuantity = errors.New("settled quantity must be " +
		"positive")
)

// ErrInsufficientBalance is returned if a participant can't pay for the
// energy it bought in a round and overdrafts aren't allowed.
type ErrInsufficientBalance struct {
	// Participant is the owner of the account.
	Participant order.ParticipantID

	// Balance is the balance of the account after crediting the revenue
	// of the round.
	Balance decimal.Decimal

	// Payment is the amount the participant has to pay.
	Payment decimal.Decimal
}

// Error implements the error interface.
func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("account %q has balance %v, unable to pay %v",
		e.Participant, e.Balance, e.Payment)
}

// State describes the different possible states of an account.
type State uint8

// NOTE: We avoid the use of iota as these can be persisted to disk.
const (
	// StateOpen denotes an account that takes part in settlement.
	StateOpen State = 0

	// StateClosed denotes an account that no longer takes part in
	// settlement. Rounds in which it traded fail the settlement check.
	StateClosed State = 1
)

// String returns a human-readable description of an account's state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "StateOpen"

	case StateClosed:
		return "StateClosed"

	default:
		return fmt.Sprintf("<unknown_state=%d>", uint8(s))
	}
}

// Account is the settlement balance of a single market participant.
type Account struct {
	// Participant is the owner of the account.
	Participant order.ParticipantID

	// Balance is the current balance of the account.
	Balance decimal.Decimal

	// Revenue is the total revenue the account received for energy sold.
	Revenue decimal.Decimal

	// Payments is the total amount the account paid for energy bought.
	Payments decimal.Decimal

	// EnergyBought is the total quantity of energy the account bought.
	EnergyBought decimal.Decimal

	// EnergySold is the total quantity of energy the account sold.
	EnergySold decimal.Decimal

	// State is the current state of the account.
	State State
}

// AvgBuyPrice returns the average price paid per unit of energy bought, or
// zero if the account never bought anything.
func (a *Account) AvgBuyPrice() decimal.Decimal {
	if !a.EnergyBought.IsPositive() {
		return decimal.Zero
	}

	return a.Payments.Div(a.EnergyBought)
}

// AvgSellPrice returns the average price received per unit of energy sold,
// or zero if the account never sold anything.
func (a *Account) AvgSellPrice() decimal.Decimal {
	if !a.EnergySold.IsPositive() {
		return decimal.Zero
	}

	return a.Revenue.Div(a.EnergySold)
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	accountCopy := *a
	return &accountCopy
}

// String returns a human-readable version of the account.
func (a *Account) String() string {
	return fmt.Sprintf("%v: balance=%v revenue=%v payments=%v "+
		"bought=%v sold=%v (%v)", a.Participant, a.Balance, a.Revenue,
		a.Payments, a.EnergyBought, a.EnergySold, a.State)
}
