package matching

import (
	"fmt"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// Segment is one step of the merged demand/supply curve. Each segment covers
// the quantity interval (previous cumulative quantity, CumulativeQuantity]
// and carries the bid and offer price that apply to that interval together
// with the participants owning them.
type Segment struct {
	// CumulativeQuantity is the right edge of the quantity interval this
	// segment covers.
	CumulativeQuantity decimal.Decimal

	// Quantity is the width of the interval, the amount of energy that is
	// traded if this segment executes.
	Quantity decimal.Decimal

	// BidPrice is the price of the bid covering this interval. It is
	// invalid if the demand curve is exhausted.
	BidPrice decimal.NullDecimal

	// OfferPrice is the price of the offer covering this interval. It is
	// invalid if the supply curve is exhausted.
	OfferPrice decimal.NullDecimal

	// Buyer is the participant owning the bid of this segment.
	Buyer order.ParticipantID

	// Seller is the participant owning the offer of this segment.
	Seller order.ParticipantID
}

// Tradeable returns true if both sides of the curve are present for this
// segment.
func (s Segment) Tradeable() bool {
	return s.BidPrice.Valid && s.OfferPrice.Valid
}

// Crossed returns true if the bid of this segment is at least as high as
// its offer, meaning the segment can execute.
//
// NOTE: This must only be called on tradeable segments.
func (s Segment) Crossed() bool {
	return s.BidPrice.Decimal.GreaterThanOrEqual(s.OfferPrice.Decimal)
}

// SelfTrade returns true if buyer and seller of the segment are the same
// participant.
func (s Segment) SelfTrade() bool {
	return s.Buyer != "" && s.Buyer == s.Seller
}

// String returns a human-readable version of the segment.
func (s Segment) String() string {
	price := func(p decimal.NullDecimal) string {
		if !p.Valid {
			return "nil"
		}
		return p.Decimal.String()
	}

	return fmt.Sprintf("q=%v (+%v) bid=%v(%v) offer=%v(%v)",
		s.CumulativeQuantity, s.Quantity, price(s.BidPrice), s.Buyer,
		price(s.OfferPrice), s.Seller)
}

// newPrice wraps a decimal into a valid NullDecimal.
func newPrice(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
