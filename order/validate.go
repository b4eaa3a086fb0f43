package order

import (
	"errors"
	"fmt"
)

var (
	// ErrNonPositiveQuantity is returned if an order with a zero or
	// negative quantity reaches the clearing engine.
	ErrNonPositiveQuantity = errors.New("order quantity must be positive")

	// ErrMissingParticipant is returned if an order doesn't name the
	// participant that submitted it.
	ErrMissingParticipant = errors.New("order has no participant")

	// ErrWrongSide is returned if a bid shows up in the offer list or vice
	// versa.
	ErrWrongSide = errors.New("order submitted on the wrong side")

	// ErrSelfTrade is returned if a participant would be matched against
	// its own order and the market is configured to reject such rounds.
	ErrSelfTrade = errors.New("participant would trade with itself")
)

// ValidationError is returned if the orders of a round are malformed. It is
// fatal for the round it was raised in only, fresh orders are expected for
// the next interval.
type ValidationError struct {
	// Kind is the side of the market the offending order was placed on.
	Kind Kind

	// Index is the position of the offending order within its list, or
	// -1 if the error doesn't refer to a single order.
	Index int

	// Participant is the participant that submitted the offending order.
	Participant ParticipantID

	// Reason is the underlying cause of the validation failure.
	Reason error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid %v from %q: %v", e.Kind,
			e.Participant, e.Reason)
	}

	return fmt.Sprintf("invalid %v #%d from %q: %v", e.Kind, e.Index,
		e.Participant, e.Reason)
}

// Unwrap returns the underlying reason so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// Validate makes sure that every bid and offer of a round is well formed.
// The first violation found is returned as a *ValidationError.
func Validate(bids, offers []Order) error {
	if err := validateSide(KindBid, bids); err != nil {
		return err
	}

	return validateSide(KindOffer, offers)
}

// validateSide checks all orders of a single side of the market.
func validateSide(kind Kind, orders []Order) error {
	for idx, o := range orders {
		var reason error
		switch {
		case o.Kind != kind:
			reason = ErrWrongSide

		case o.Participant == "":
			reason = ErrMissingParticipant

		case !o.Quantity.IsPositive():
			reason = ErrNonPositiveQuantity
		}

		if reason == nil {
			continue
		}

		return &ValidationError{
			Kind:        kind,
			Index:       idx,
			Participant: o.Participant,
			Reason:      reason,
		}
	}

	return nil
}

// DropEmpty returns a copy of the given orders without the ones that have a
// quantity of exactly zero. Agents without anything to trade in an interval
// still submit such orders, they carry no information for the clearing.
// Negative quantities are kept so Validate can reject them.
func DropEmpty(orders []Order) []Order {
	filtered := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Quantity.IsZero() {
			log.Tracef("Dropping empty %v of %v", o.Kind,
				o.Participant)
			continue
		}

		filtered = append(filtered, o)
	}

	return filtered
}
