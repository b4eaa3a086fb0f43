package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is an enum-like type that expresses on which side of the market an
// order was placed.
type Kind uint8

const (
	// KindBid is a buy order. The price is the maximum price per unit the
	// participant is willing to pay.
	KindBid Kind = iota

	// KindOffer is a sell order. The price is the minimum price per unit
	// the participant is willing to receive.
	KindOffer
)

// String returns a human-readable version of the order kind.
func (k Kind) String() string {
	switch k {
	case KindBid:
		return "bid"

	case KindOffer:
		return "offer"

	default:
		return fmt.Sprintf("<unknown_kind=%d>", uint8(k))
	}
}

// ParticipantID identifies a market participant: a household, a storage or
// generation unit or the utility grid.
type ParticipantID string

// Order is a single price/quantity submission of a participant for one
// trading interval. Orders are created fresh every interval and are never
// mutated once handed to the clearing engine.
type Order struct {
	// Kind is the side of the market this order was placed on.
	Kind Kind

	// Price is the limit price per unit of energy.
	Price decimal.Decimal

	// Quantity is the amount of energy this order wants to trade. It
	// must be strictly positive once it reaches the engine.
	Quantity decimal.Decimal

	// Participant is the participant that submitted the order.
	Participant ParticipantID
}

// NewBid creates a new buy order.
func NewBid(price, quantity decimal.Decimal, participant ParticipantID) Order {
	return Order{
		Kind:        KindBid,
		Price:       price,
		Quantity:    quantity,
		Participant: participant,
	}
}

// NewOffer creates a new sell order.
func NewOffer(price, quantity decimal.Decimal,
	participant ParticipantID) Order {

	return Order{
		Kind:        KindOffer,
		Price:       price,
		Quantity:    quantity,
		Participant: participant,
	}
}

// String returns a compact representation of the order in the same
// [price, quantity, participant] shape that order lists are exchanged in.
func (o Order) String() string {
	return fmt.Sprintf("%v[%v, %v, %v]", o.Kind, o.Price, o.Quantity,
		o.Participant)
}

// TotalQuantity returns the sum of the quantities of all given orders.
func TotalQuantity(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Quantity)
	}

	return total
}
