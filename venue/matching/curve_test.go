package matching

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/davecgh/go-spew/spew"
	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func bid(price, qty int64, id string) order.Order {
	return order.NewBid(
		decimal.NewFromInt(price), decimal.NewFromInt(qty),
		order.ParticipantID(id),
	)
}

func offer(price, qty int64, id string) order.Order {
	return order.NewOffer(
		decimal.NewFromInt(price), decimal.NewFromInt(qty),
		order.ParticipantID(id),
	)
}

// seg creates a tradeable segment. A negative price leaves that side empty.
func seg(cum, qty, bidPrice, offerPrice int64, buyer, seller string) Segment {
	s := Segment{
		CumulativeQuantity: decimal.NewFromInt(cum),
		Quantity:           decimal.NewFromInt(qty),
	}
	if bidPrice >= 0 {
		s.BidPrice = newPrice(decimal.NewFromInt(bidPrice))
		s.Buyer = order.ParticipantID(buyer)
	}
	if offerPrice >= 0 {
		s.OfferPrice = newPrice(decimal.NewFromInt(offerPrice))
		s.Seller = order.ParticipantID(seller)
	}

	return s
}

func requireDec(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()

	require.Truef(
		t, decimal.RequireFromString(expected).Equal(actual),
		"expected %v, got %v", expected, actual,
	)
}

// requireSegments asserts that two segment lists describe the same curve.
func requireSegments(t *testing.T, expected, actual []Segment) {
	t.Helper()

	require.Lenf(t, actual, len(expected), "segments: %v",
		spew.Sdump(actual))
	for i := range expected {
		e, a := expected[i], actual[i]
		require.Truef(
			t, e.CumulativeQuantity.Equal(a.CumulativeQuantity) &&
				e.Quantity.Equal(a.Quantity) &&
				e.BidPrice.Valid == a.BidPrice.Valid &&
				e.BidPrice.Decimal.Equal(a.BidPrice.Decimal) &&
				e.OfferPrice.Valid == a.OfferPrice.Valid &&
				e.OfferPrice.Decimal.Equal(a.OfferPrice.Decimal) &&
				e.Buyer == a.Buyer && e.Seller == a.Seller,
			"segment %d: expected %v, got %v", i, e, a,
		)
	}
}

// orderBook is a random round used by the property tests.
type orderBook struct {
	Bids   []order.Order
	Offers []order.Order
}

var participants = []string{"A", "B", "C", "X", "Y", "grid"}

func genOrders(r *rand.Rand, kind order.Kind) []order.Order {
	n := r.Intn(8)
	orders := make([]order.Order, 0, n)
	for i := 0; i < n; i++ {
		// One decimal place quantities make sure fractional volumes
		// are covered as well.
		price := decimal.NewFromInt(int64(r.Intn(60) + 20))
		qty := decimal.New(int64(r.Intn(50)+1), -1)
		id := order.ParticipantID(participants[r.Intn(len(participants))])

		if kind == order.KindBid {
			orders = append(orders, order.NewBid(price, qty, id))
		} else {
			orders = append(orders, order.NewOffer(price, qty, id))
		}
	}

	return orders
}

func genOrderBook(v []reflect.Value, r *rand.Rand) {
	v[0] = reflect.ValueOf(orderBook{
		Bids:   genOrders(r, order.KindBid),
		Offers: genOrders(r, order.KindOffer),
	})
}

// TestSortOrders makes sure bids and offers are sorted by price and equal
// prices are ordered according to the tie-break policy.
func TestSortOrders(t *testing.T) {
	t.Parallel()

	bids := []order.Order{
		bid(40, 1, "C"), bid(50, 1, "B"), bid(50, 1, "A"),
		bid(60, 1, "D"),
	}
	offers := []order.Order{
		offer(45, 1, "Z"), offer(30, 1, "Y"), offer(45, 1, "X"),
	}

	testCases := []struct {
		name           string
		tieBreak       TieBreak
		expectedBids   []string
		expectedOffers []string
	}{{
		name:           "submission order",
		tieBreak:       TieBreakSubmission,
		expectedBids:   []string{"D", "B", "A", "C"},
		expectedOffers: []string{"Y", "Z", "X"},
	}, {
		name:           "participant order",
		tieBreak:       TieBreakParticipant,
		expectedBids:   []string{"D", "A", "B", "C"},
		expectedOffers: []string{"Y", "X", "Z"},
	}}

	ids := func(orders []order.Order) []string {
		res := make([]string, len(orders))
		for i, o := range orders {
			res[i] = string(o.Participant)
		}
		return res
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sortedBids, sortedOffers := SortOrders(
				bids, offers, tc.tieBreak,
			)
			require.Equal(t, tc.expectedBids, ids(sortedBids))
			require.Equal(t, tc.expectedOffers, ids(sortedOffers))
		})
	}

	// The input must never be reordered.
	require.Equal(t, order.ParticipantID("C"), bids[0].Participant)
	require.Equal(t, order.ParticipantID("Z"), offers[0].Participant)
}

// TestMerge makes sure both curves are merged by cumulative quantity and
// equal quantities are kept as separate segments, the bid first.
func TestMerge(t *testing.T) {
	t.Parallel()

	bidPoints := BuildCumulative([]order.Order{
		bid(60, 1, "A"), bid(40, 2, "B"),
	})
	offerPoints := BuildCumulative([]order.Order{
		offer(39, 2, "X"), offer(51, 1, "Y"),
	})

	requireSegments(t, []Segment{
		seg(1, 0, 60, -1, "A", ""),
		seg(2, 0, -1, 39, "", "X"),
		seg(3, 0, 40, -1, "B", ""),
		seg(3, 0, -1, 51, "", "Y"),
	}, Merge(bidPoints, offerPoints))

	require.Empty(t, Merge(nil, nil))
}

// TestForwardFill makes sure missing prices are filled from the nearest
// following segment and the input is left untouched.
func TestForwardFill(t *testing.T) {
	t.Parallel()

	merged := []Segment{
		seg(1, 0, 54, -1, "A", ""),
		seg(3, 0, 53, -1, "B", ""),
		seg(5, 0, 38, -1, "C", ""),
		seg(6, 0, -1, 39, "", "X"),
		seg(7, 0, -1, 51, "", "Y"),
	}

	filled := ForwardFill(merged)
	requireSegments(t, []Segment{
		seg(1, 0, 54, 39, "A", "X"),
		seg(3, 0, 53, 39, "B", "X"),
		seg(5, 0, 38, 39, "C", "X"),
		seg(6, 0, -1, 39, "", "X"),
		seg(7, 0, -1, 51, "", "Y"),
	}, filled)

	// The original list must not have been mutated.
	require.False(t, merged[0].OfferPrice.Valid)
	require.Empty(t, merged[0].Seller)

	// Alternating gaps on both sides.
	requireSegments(t, []Segment{
		seg(1, 0, 60, 39, "A", "X"),
		seg(2, 0, 40, 39, "B", "X"),
		seg(3, 0, 40, 51, "B", "Y"),
		seg(3, 0, -1, 51, "", "Y"),
	}, ForwardFill([]Segment{
		seg(1, 0, 60, -1, "A", ""),
		seg(2, 0, -1, 39, "", "X"),
		seg(3, 0, 40, -1, "B", ""),
		seg(3, 0, -1, 51, "", "Y"),
	}))
}

// TestBuildCurve tests the full curve construction including the removal of
// untradeable, empty and self-trade segments.
func TestBuildCurve(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		bids      []order.Order
		offers    []order.Order
		selfTrade SelfTradePolicy
		expected  []Segment
		err       error
	}{{
		name: "partial execution book",
		bids: []order.Order{
			bid(54, 1, "A"), bid(53, 2, "B"), bid(38, 2, "C"),
		},
		offers: []order.Order{
			offer(39, 6, "X"), offer(51, 1, "Y"),
		},
		expected: []Segment{
			seg(1, 1, 54, 39, "A", "X"),
			seg(3, 2, 53, 39, "B", "X"),
			seg(5, 2, 38, 39, "C", "X"),
		},
	}, {
		name: "equal cumulative quantities",
		bids: []order.Order{
			bid(60, 1, "A"), bid(40, 2, "B"),
		},
		offers: []order.Order{
			offer(39, 2, "X"), offer(35, 1, "Y"),
		},
		expected: []Segment{
			seg(1, 1, 60, 35, "A", "Y"),
			seg(3, 2, 40, 39, "B", "X"),
		},
	}, {
		name: "self-trade filtered",
		bids: []order.Order{
			bid(50, 2, "X"),
		},
		offers: []order.Order{
			offer(40, 1, "X"), offer(42, 1, "Y"),
		},
		expected: []Segment{
			seg(1, 1, 50, 42, "X", "Y"),
		},
	}, {
		name: "self-trade rejected",
		bids: []order.Order{
			bid(50, 2, "X"),
		},
		offers: []order.Order{
			offer(40, 1, "X"), offer(42, 1, "Y"),
		},
		selfTrade: SelfTradeReject,
		err:       order.ErrSelfTrade,
	}, {
		name:     "no offers",
		bids:     []order.Order{bid(50, 2, "X")},
		expected: []Segment{},
	}, {
		name:     "empty book",
		expected: []Segment{},
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			segments, err := BuildCurve(
				tc.bids, tc.offers, TieBreakSubmission,
				tc.selfTrade,
			)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				var valErr *order.ValidationError
				require.ErrorAs(t, err, &valErr)
				return
			}

			require.NoError(t, err)
			requireSegments(t, tc.expected, segments)
		})
	}
}

// TestCurveMonotonicity makes sure the cumulative curves and the final
// segment list are monotonic for any input and that the segment quantities
// always add up to the cumulative quantity.
func TestCurveMonotonicity(t *testing.T) {
	t.Parallel()

	scenario := func(book orderBook) bool {
		sortedBids, sortedOffers := SortOrders(
			book.Bids, book.Offers, TieBreakSubmission,
		)
		for _, points := range [][]CurvePoint{
			BuildCumulative(sortedBids),
			BuildCumulative(sortedOffers),
		} {
			for i := 1; i < len(points); i++ {
				prev := points[i-1].CumulativeQuantity
				if points[i].CumulativeQuantity.LessThan(prev) {
					t.Logf("curve not monotonic: %v",
						spew.Sdump(points))
					return false
				}
			}
		}

		segments, err := BuildCurve(
			book.Bids, book.Offers, TieBreakSubmission,
			SelfTradeFilter,
		)
		if err != nil {
			t.Logf("unable to build curve: %v", err)
			return false
		}

		total := decimal.Zero
		for _, s := range segments {
			total = total.Add(s.Quantity)
			switch {
			case !s.Quantity.IsPositive():
				t.Logf("empty segment %v", s)
				return false

			case !s.CumulativeQuantity.Equal(total):
				t.Logf("cumulative quantity mismatch %v", s)
				return false

			case !s.Tradeable() || s.SelfTrade():
				t.Logf("unexpected segment %v", s)
				return false
			}
		}

		return true
	}

	quickCfg := quick.Config{
		MaxCount: 500,
		Values:   genOrderBook,
	}
	if err := quick.Check(scenario, &quickCfg); err != nil {
		t.Fatalf("curve monotonicity property violated: %v", err)
	}
}
