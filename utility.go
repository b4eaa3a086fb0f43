package lem

import (
	"fmt"
	"strings"

	"github.com/gridmarket/lem/order"
	"github.com/shopspring/decimal"
)

// Utility is the market maker of last resort. It offers to cover all demand of
// an interval at its sell rate and, if a feed-in rate is configured, bids for
// all supply at that rate. Its orders are added to every book before the
// round is cleared.
type Utility struct {
	id order.ParticipantID

	sellRate decimal.Decimal

	buyRate decimal.NullDecimal

	profile []decimal.Decimal
}

// NewUtility creates the utility market maker from its config.
func NewUtility(cfg *UtilityConfig) (*Utility, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("utility needs a participant id")
	}

	sellRate, err := decimal.NewFromString(cfg.SellRate)
	if err != nil {
		return nil, fmt.Errorf("invalid sell rate: %w", err)
	}
	if !sellRate.IsPositive() {
		return nil, fmt.Errorf("sell rate must be positive")
	}

	u := &Utility{
		id:       order.ParticipantID(cfg.ID),
		sellRate: sellRate,
	}

	if cfg.Profile != "" {
		for _, field := range strings.Split(cfg.Profile, ",") {
			rate, err := decimal.NewFromString(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("invalid profile rate "+
					"%q: %w", field, err)
			}
			if !rate.IsPositive() {
				return nil, fmt.Errorf("profile rate %v must be "+
					"positive", rate)
			}
			u.profile = append(u.profile, rate)
		}
	}

	if cfg.BuyRate != "" {
		buyRate, err := decimal.NewFromString(cfg.BuyRate)
		if err != nil {
			return nil, fmt.Errorf("invalid buy rate: %w", err)
		}
		if buyRate.IsNegative() {
			return nil, fmt.Errorf("buy rate must not be negative")
		}

		// The utility must never be able to trade with itself at a
		// profit.
		for i := 0; i <= len(u.profile); i++ {
			if buyRate.GreaterThanOrEqual(u.SellRate(i)) {
				return nil, fmt.Errorf("buy rate %v must be "+
					"below sell rate %v", buyRate,
					u.SellRate(i))
			}
		}

		u.buyRate = decimal.NullDecimal{Decimal: buyRate, Valid: true}
	}

	return u, nil
}

// ID returns the participant id of the utility.
func (u *Utility) ID() order.ParticipantID {
	return u.id
}

// SellRate returns the sell rate of the given trading interval. The price
// profile is used while it lasts, the constant sell rate afterwards.
func (u *Utility) SellRate(interval int) decimal.Decimal {
	if interval >= 0 && interval < len(u.profile) {
		return u.profile[interval]
	}

	return u.sellRate
}

// Quote adds the orders of the utility to a copy of the given book. Orders
// the utility placed in the book itself are ignored when sizing its quote.
func (u *Utility) Quote(interval int, book *order.Book) *order.Book {
	quoted := &order.Book{
		Bids:   append([]order.Order(nil), book.Bids...),
		Offers: append([]order.Order(nil), book.Offers...),
	}

	demand := decimal.Zero
	for _, bid := range book.Bids {
		if bid.Participant != u.id {
			demand = demand.Add(bid.Quantity)
		}
	}
	supply := decimal.Zero
	for _, offer := range book.Offers {
		if offer.Participant != u.id {
			supply = supply.Add(offer.Quantity)
		}
	}

	if demand.IsPositive() {
		quoted.Offers = append(quoted.Offers, order.NewOffer(
			u.SellRate(interval), demand, u.id,
		))
	}
	if u.buyRate.Valid && supply.IsPositive() {
		quoted.Bids = append(quoted.Bids, order.NewBid(
			u.buyRate.Decimal, supply, u.id,
		))
	}

	log.Debugf("Utility quote for interval %d: sell %v at %v, buy %v",
		interval, demand, u.SellRate(interval), supply)

	return quoted
}
