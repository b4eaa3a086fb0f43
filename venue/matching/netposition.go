package matching

import (
	"sort"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// NetPositions maps every participant of a round to its signed net traded
// quantity. Buyers have a positive position, sellers a negative one.
type NetPositions map[order.ParticipantID]decimal.Decimal

// NewNetPositions derives the net positions of a round from its trades.
func NewNetPositions(trades []TradePair) NetPositions {
	positions := make(NetPositions)
	for _, t := range trades {
		positions[t.Buyer] = positions[t.Buyer].Add(t.Quantity)
		positions[t.Seller] = positions[t.Seller].Sub(t.Quantity)
	}

	return positions
}

// Position returns the net position of a participant, zero if it didn't
// trade.
func (n NetPositions) Position(id order.ParticipantID) decimal.Decimal {
	return n[id]
}

// Participants returns all participants with a position in a stable order.
func (n NetPositions) Participants() []order.ParticipantID {
	return sortedIDs(n)
}

// Total returns the sum of all positions. Every unit bought was sold by
// someone, so this is zero for the positions of a single round.
func (n NetPositions) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range n {
		total = total.Add(p)
	}

	return total
}

// AccountDiff is the settlement outcome of a round for a single participant.
type AccountDiff struct {
	// Participant is the participant the diff belongs to.
	Participant order.ParticipantID

	// Revenue is the total amount the participant receives for energy
	// it sold.
	Revenue decimal.Decimal

	// Payment is the total amount the participant pays for energy it
	// bought.
	Payment decimal.Decimal

	// Bought is the quantity of energy the participant bought.
	Bought decimal.Decimal

	// Sold is the quantity of energy the participant sold.
	Sold decimal.Decimal

	// NetQuantity is the signed net traded quantity.
	NetQuantity decimal.Decimal
}

// Balance returns the signed change of the participant's balance.
func (a *AccountDiff) Balance() decimal.Decimal {
	return a.Revenue.Sub(a.Payment)
}

// SettlementReport is the per participant summary of a cleared round that
// is handed to the settlement.
type SettlementReport struct {
	// Diffs maps every trading participant to its account diff.
	Diffs map[order.ParticipantID]*AccountDiff

	// Surplus is the amount swept by the market operator.
	Surplus decimal.Decimal
}

// NewSettlementReport aggregates the trades of a result per participant.
func NewSettlementReport(result *ClearingResult) *SettlementReport {
	report := &SettlementReport{
		Diffs:   make(map[order.ParticipantID]*AccountDiff),
		Surplus: result.Surplus,
	}

	diff := func(id order.ParticipantID) *AccountDiff {
		d, ok := report.Diffs[id]
		if !ok {
			d = &AccountDiff{Participant: id}
			report.Diffs[id] = d
		}
		return d
	}

	for _, t := range result.TradePairs {
		buyer := diff(t.Buyer)
		buyer.Payment = buyer.Payment.Add(t.BuyerPayment)
		buyer.Bought = buyer.Bought.Add(t.Quantity)
		buyer.NetQuantity = buyer.NetQuantity.Add(t.Quantity)

		seller := diff(t.Seller)
		seller.Revenue = seller.Revenue.Add(t.SellerRevenue)
		seller.Sold = seller.Sold.Add(t.Quantity)
		seller.NetQuantity = seller.NetQuantity.Sub(t.Quantity)
	}

	return report
}

// Participants returns all participants of the report in a stable order.
func (r *SettlementReport) Participants() []order.ParticipantID {
	ids := make([]order.ParticipantID, 0, len(r.Diffs))
	for id := range r.Diffs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	return ids
}

// sortedIDs returns the keys of the positions sorted by participant ID.
func sortedIDs(n NetPositions) []order.ParticipantID {
	ids := make([]order.ParticipantID, 0, len(n))
	for id := range n {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})

	return ids
}
