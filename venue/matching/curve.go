package matching

import (
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// TieBreak decides the order of bids (or offers) that carry the same price.
// The chosen policy determines which participant is matched first at a
// price level, so it is an explicit part of the market configuration.
type TieBreak uint8

const (
	// TieBreakSubmission keeps orders with equal prices in the order they
	// were submitted in.
	TieBreakSubmission TieBreak = iota

	// TieBreakParticipant orders equally priced orders by participant ID
	// and falls back to submission order for orders of the same
	// participant.
	TieBreakParticipant
)

// String returns the configuration name of the tie-break policy.
func (t TieBreak) String() string {
	switch t {
	case TieBreakSubmission:
		return "submission"

	case TieBreakParticipant:
		return "participant"

	default:
		return fmt.Sprintf("<unknown_tiebreak=%d>", uint8(t))
	}
}

// ParseTieBreak parses the configuration name of a tie-break policy.
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "submission", "":
		return TieBreakSubmission, nil

	case "participant":
		return TieBreakParticipant, nil

	default:
		return 0, fmt.Errorf("unknown tie-break policy %q", s)
	}
}

// less reports whether a must be placed before b given both have the same
// price.
func (t TieBreak) less(a, b order.Order) bool {
	if t == TieBreakParticipant {
		return a.Participant < b.Participant
	}

	return false
}

// SelfTradePolicy decides what happens with segments in which a participant
// would buy from itself.
type SelfTradePolicy uint8

const (
	// SelfTradeFilter silently removes self-trade segments before the
	// round is classified.
	SelfTradeFilter SelfTradePolicy = iota

	// SelfTradeReject fails the whole round with a validation error.
	SelfTradeReject
)

// String returns the configuration name of the self-trade policy.
func (p SelfTradePolicy) String() string {
	switch p {
	case SelfTradeFilter:
		return "filter"

	case SelfTradeReject:
		return "reject"

	default:
		return fmt.Sprintf("<unknown_selftrade=%d>", uint8(p))
	}
}

// ParseSelfTradePolicy parses the configuration name of a self-trade
// policy.
func ParseSelfTradePolicy(s string) (SelfTradePolicy, error) {
	switch s {
	case "filter", "":
		return SelfTradeFilter, nil

	case "reject":
		return SelfTradeReject, nil

	default:
		return 0, fmt.Errorf("unknown self-trade policy %q", s)
	}
}

// CurvePoint is a single step of a cumulative demand or supply curve.
type CurvePoint struct {
	// CumulativeQuantity is the total quantity of this and all better
	// priced orders of the same side.
	CumulativeQuantity decimal.Decimal

	// Price is the price of the order that ends at this point.
	Price decimal.Decimal

	// Participant is the owner of the order that ends at this point.
	Participant order.ParticipantID

	// Kind is the side of the curve this point belongs to.
	Kind order.Kind
}

// SortOrders returns sorted copies of the given bids and offers. Bids are
// sorted by descending price, offers by ascending price. Orders with equal
// prices are ordered according to the tie-break policy; the sort is stable
// so the result is deterministic for any input.
func SortOrders(bids, offers []order.Order,
	tieBreak TieBreak) ([]order.Order, []order.Order) {

	sortedBids := append([]order.Order(nil), bids...)
	sortedOffers := append([]order.Order(nil), offers...)

	sort.SliceStable(sortedBids, func(i, j int) bool {
		a, b := sortedBids[i], sortedBids[j]
		if !a.Price.Equal(b.Price) {
			return a.Price.GreaterThan(b.Price)
		}

		return tieBreak.less(a, b)
	})
	sort.SliceStable(sortedOffers, func(i, j int) bool {
		a, b := sortedOffers[i], sortedOffers[j]
		if !a.Price.Equal(b.Price) {
			return a.Price.LessThan(b.Price)
		}

		return tieBreak.less(a, b)
	})

	return sortedBids, sortedOffers
}

// BuildCumulative turns a sorted order list into a cumulative curve with one
// point per order. The cumulative quantity is monotonically non-decreasing
// by construction as all quantities are positive.
func BuildCumulative(sorted []order.Order) []CurvePoint {
	points := make([]CurvePoint, 0, len(sorted))

	total := decimal.Zero
	for _, o := range sorted {
		total = total.Add(o.Quantity)
		points = append(points, CurvePoint{
			CumulativeQuantity: total,
			Price:              o.Price,
			Participant:        o.Participant,
			Kind:               o.Kind,
		})
	}

	return points
}

// Merge combines the cumulative demand and supply curves into a single list
// of segments ordered by cumulative quantity. Every segment carries the
// price of exactly one side, the other side is left empty to be filled by
// ForwardFill. Points of both curves that end at the same cumulative
// quantity are kept as separate segments, the bid being placed first.
func Merge(bidPoints, offerPoints []CurvePoint) []Segment {
	segments := make([]Segment, 0, len(bidPoints)+len(offerPoints))

	var i, j int
	for i < len(bidPoints) || j < len(offerPoints) {
		takeBid := j >= len(offerPoints) || (i < len(bidPoints) &&
			bidPoints[i].CumulativeQuantity.LessThanOrEqual(
				offerPoints[j].CumulativeQuantity,
			))

		if takeBid {
			p := bidPoints[i]
			segments = append(segments, Segment{
				CumulativeQuantity: p.CumulativeQuantity,
				BidPrice:           newPrice(p.Price),
				Buyer:              p.Participant,
			})
			i++

			continue
		}

		p := offerPoints[j]
		segments = append(segments, Segment{
			CumulativeQuantity: p.CumulativeQuantity,
			OfferPrice:         newPrice(p.Price),
			Seller:             p.Participant,
		})
		j++
	}

	return segments
}

// ForwardFill returns a new segment list in which every missing bid (or
// offer) price, together with its owner, is copied from the nearest
// following segment that has one. If no such segment exists the side stays
// empty, signalling that this side of the curve is exhausted.
//
// The list is walked once while two pointers track the next segment that
// carries a bid and an offer respectively. Both pointers only ever move
// forward, so the whole fill is O(n).
func ForwardFill(segments []Segment) []Segment {
	filled := make([]Segment, len(segments))
	copy(filled, segments)

	nextBid, nextOffer := 0, 0
	for i := range filled {
		if !filled[i].BidPrice.Valid {
			if nextBid <= i {
				nextBid = i + 1
			}
			for nextBid < len(segments) &&
				!segments[nextBid].BidPrice.Valid {

				nextBid++
			}

			if nextBid < len(segments) {
				filled[i].BidPrice = segments[nextBid].BidPrice
				filled[i].Buyer = segments[nextBid].Buyer
			}
		}

		if !filled[i].OfferPrice.Valid {
			if nextOffer <= i {
				nextOffer = i + 1
			}
			for nextOffer < len(segments) &&
				!segments[nextOffer].OfferPrice.Valid {

				nextOffer++
			}

			if nextOffer < len(segments) {
				filled[i].OfferPrice = segments[nextOffer].OfferPrice
				filled[i].Seller = segments[nextOffer].Seller
			}
		}
	}

	return filled
}

// BuildCurve sorts the orders of a round and turns them into the list of
// tradeable segments the clearing engine works on. Segments without
// tradeable information, without quantity and (depending on the policy)
// self-trades are removed, after which the cumulative quantities are
// recomputed so they match the remaining segments exactly.
func BuildCurve(bids, offers []order.Order, tieBreak TieBreak,
	selfTrade SelfTradePolicy) ([]Segment, error) {

	sortedBids, sortedOffers := SortOrders(bids, offers, tieBreak)

	merged := Merge(
		BuildCumulative(sortedBids), BuildCumulative(sortedOffers),
	)
	filled := ForwardFill(merged)

	// The width of each segment is derived before anything is dropped,
	// as it is defined by the unfiltered curve.
	prev := decimal.Zero
	for i := range filled {
		filled[i].Quantity = filled[i].CumulativeQuantity.Sub(prev)
		prev = filled[i].CumulativeQuantity
	}

	filterChain := []SegmentFilter{
		NewTradeableFilter(), NewZeroQuantityFilter(),
	}

	switch selfTrade {
	case SelfTradeFilter:
		filterChain = append(filterChain, NewSelfTradeFilter())

	case SelfTradeReject:
		for _, s := range filled {
			if !SuitsFilterChain(s, filterChain...) ||
				!s.SelfTrade() {

				continue
			}

			return nil, &order.ValidationError{
				Kind:        order.KindBid,
				Index:       -1,
				Participant: s.Buyer,
				Reason:      order.ErrSelfTrade,
			}
		}
	}

	segments := make([]Segment, 0, len(filled))
	total := decimal.Zero
	for _, s := range filled {
		if !SuitsFilterChain(s, filterChain...) {
			continue
		}

		total = total.Add(s.Quantity)
		s.CumulativeQuantity = total
		segments = append(segments, s)
	}

	log.Tracef("Built curve with %d of %d segments: %v", len(segments),
		len(merged), newLogClosure(func() string {
			return spew.Sdump(segments)
		}))

	return segments, nil
}
