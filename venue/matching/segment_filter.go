package matching

// SegmentFilter is an interface that implements a generic filter that drops
// segments from the merged curve before the round is classified.
type SegmentFilter interface {
	// IsSuitable returns true if this specific predicate doesn't have any
	// objection about a segment being included in the clearing.
	IsSuitable(Segment) bool
}

// SegmentFilterFunc is a simple function type that implements the
// SegmentFilter interface.
type SegmentFilterFunc func(Segment) bool

// IsSuitable returns true if this specific predicate doesn't have any
// objection about a segment being included in the clearing.
//
// NOTE: This is part of the SegmentFilter interface.
func (f SegmentFilterFunc) IsSuitable(s Segment) bool {
	return f(s)
}

// SuitsFilterChain returns true if all filters in the given chain see the
// given segment as suitable.
func SuitsFilterChain(s Segment, chain ...SegmentFilter) bool {
	for _, filter := range chain {
		if !filter.IsSuitable(s) {
			return false
		}
	}

	return true
}

// NewTradeableFilter returns a filter that drops all segments that still
// miss a bid or an offer price after forward filling. Those only exist
// once one side of the curve is exhausted and carry no tradeable
// information.
func NewTradeableFilter() SegmentFilter {
	return SegmentFilterFunc(func(s Segment) bool {
		if !s.Tradeable() {
			log.Tracef("Filtered out one-sided segment %v", s)
			return false
		}

		return true
	})
}

// NewZeroQuantityFilter returns a filter that drops segments that don't
// cover any quantity. Those are produced when a bid and an offer end at the
// same cumulative quantity.
func NewZeroQuantityFilter() SegmentFilter {
	return SegmentFilterFunc(func(s Segment) bool {
		if !s.Quantity.IsPositive() {
			log.Tracef("Filtered out empty segment %v", s)
			return false
		}

		return true
	})
}

// NewSelfTradeFilter returns a filter that drops segments in which a
// participant would buy from itself.
func NewSelfTradeFilter() SegmentFilter {
	return SegmentFilterFunc(func(s Segment) bool {
		if s.SelfTrade() {
			log.Debugf("Filtered out self-trade segment %v", s)
			return false
		}

		return true
	})
}
