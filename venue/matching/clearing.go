package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ExecutionType is an enum-like variable that expresses how much of the
// merged curve executes in a round.
type ExecutionType uint8

const (
	// NoExecution means no bid is high enough to meet any offer. This is
	// a valid outcome of a round and not an error.
	NoExecution ExecutionType = iota

	// PartialExecution means the curves cross: the segments before the
	// break-even point execute, the rest doesn't.
	PartialExecution

	// FullExecution means every tradeable segment executes.
	FullExecution
)

// String returns a human-readable version of the execution type.
func (e ExecutionType) String() string {
	switch e {
	case NoExecution:
		return "NONE"

	case PartialExecution:
		return "PARTIAL"

	case FullExecution:
		return "FULL"

	default:
		return fmt.Sprintf("<unknown_execution=%d>", uint8(e))
	}
}

// PriceSide selects which side of the last executed segment defines the
// uniform clearing price.
type PriceSide uint8

const (
	// PriceFromBid uses the highest executed bid, the bid price of the
	// last executed segment.
	PriceFromBid PriceSide = iota

	// PriceFromOffer uses the offer price of the last executed segment.
	PriceFromOffer
)

// String returns the configuration name of the price side.
func (p PriceSide) String() string {
	switch p {
	case PriceFromBid:
		return "bid"

	case PriceFromOffer:
		return "offer"

	default:
		return fmt.Sprintf("<unknown_priceside=%d>", uint8(p))
	}
}

// ParsePriceSide parses the configuration name of a price side.
func ParsePriceSide(s string) (PriceSide, error) {
	switch s {
	case "bid", "":
		return PriceFromBid, nil

	case "offer":
		return PriceFromOffer, nil

	default:
		return 0, fmt.Errorf("unknown price side %q", s)
	}
}

// pick returns the price of the given side of a segment.
func (p PriceSide) pick(s Segment) decimal.Decimal {
	if p == PriceFromOffer {
		return s.OfferPrice.Decimal
	}

	return s.BidPrice.Decimal
}

// Clearing is the classification of a round. It is the single source of
// truth every pricing mechanism works from.
type Clearing struct {
	// Type is how much of the curve executes.
	Type ExecutionType

	// Quantity is the cumulative quantity of the last executed segment.
	// It is zero if nothing executes.
	Quantity decimal.Decimal

	// Price is the uniform clearing price derived from the last executed
	// segment. It is zero if nothing executes.
	Price decimal.Decimal

	// BreakEvenIndex is the index of the last executed segment, or -1 if
	// nothing executes.
	BreakEvenIndex int
}

// noClearing is the classification of a round in which nothing executes.
var noClearing = Clearing{
	Type:           NoExecution,
	BreakEvenIndex: -1,
}

// Classify scans the tradeable segments once, in order of increasing
// cumulative quantity, and determines whether the round executes fully,
// partially or not at all.
//
// NOTE: The segments must be the output of BuildCurve.
func Classify(segments []Segment, side PriceSide) Clearing {
	if len(segments) == 0 {
		log.Debugf("No tradeable segments, nothing executes")
		return noClearing
	}

	// Look for the first segment in which the bid doesn't meet the offer
	// anymore. Everything before it executes.
	crossing := -1
	for i, s := range segments {
		if !s.Crossed() {
			crossing = i
			break
		}
	}

	switch {
	case crossing == -1:
		last := len(segments) - 1
		log.Debugf("Round fully executes %d segments", len(segments))

		return Clearing{
			Type:           FullExecution,
			Quantity:       segments[last].CumulativeQuantity,
			Price:          side.pick(segments[last]),
			BreakEvenIndex: last,
		}

	// Sorted curves can't cross again once the bid dropped below the
	// offer, so a miss in the first segment means nothing executes.
	case crossing == 0:
		for _, s := range segments[1:] {
			if s.Crossed() {
				log.Warnf("Curve is not monotonic, segment %v "+
					"crosses after a miss", s)
				break
			}
		}

		log.Debugf("No bid meets any offer, nothing executes")
		return noClearing

	default:
		k := crossing - 1
		log.Debugf("Round partially executes, break-even at segment "+
			"%d of %d", k, len(segments))

		return Clearing{
			Type:           PartialExecution,
			Quantity:       segments[k].CumulativeQuantity,
			Price:          side.pick(segments[k]),
			BreakEvenIndex: k,
		}
	}
}
