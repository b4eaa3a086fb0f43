package venue

import (
	"context"

	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
)

// Wallet is the balance of a single participant that the outcome of a round
// is settled against.
type Wallet interface {
	// SettleRevenue credits the wallet with the revenue of the given
	// quantity of energy sold.
	SettleRevenue(quantity, amount decimal.Decimal) error

	// SettlePayment debits the wallet with the payment for the given
	// quantity of energy bought.
	SettlePayment(quantity, amount decimal.Decimal) error
}

// Settler gives the executor access to the wallets of all participants.
// Settlement happens in two phases: the whole report is checked first and
// only then are the wallets mutated, so a round that can't be settled
// leaves every wallet untouched.
type Settler interface {
	// CheckSettlement returns an error if any part of the report can't
	// be settled.
	CheckSettlement(report *matching.SettlementReport) error

	// Wallet returns the wallet of a participant.
	Wallet(id order.ParticipantID) (Wallet, error)

	// SweepSurplus hands the surplus of a round to the market operator.
	SweepSurplus(amount decimal.Decimal) error
}

// RoundStorer can persist the outcome of a round once it's settled.
type RoundStorer interface {
	// StoreRound persists the outcome of a settled round.
	StoreRound(ctx context.Context, outcome *RoundOutcome) error
}

// settle applies the settlement report of a round to the wallets of the
// participants.
func settle(settler Settler, report *matching.SettlementReport) error {
	if err := settler.CheckSettlement(report); err != nil {
		return err
	}

	for _, id := range report.Participants() {
		diff := report.Diffs[id]

		wallet, err := settler.Wallet(id)
		if err != nil {
			return &ErrSettlement{
				Participant: id,
				Amount:      diff.Balance(),
				Err:         err,
			}
		}

		if diff.Sold.IsPositive() {
			err := wallet.SettleRevenue(diff.Sold, diff.Revenue)
			if err != nil {
				return &ErrSettlement{
					Participant: id,
					Amount:      diff.Revenue,
					Err:         err,
				}
			}
		}
		if diff.Bought.IsPositive() {
			err := wallet.SettlePayment(diff.Bought, diff.Payment)
			if err != nil {
				return &ErrSettlement{
					Participant: id,
					Amount:      diff.Payment,
					Err:         err,
				}
			}
		}

		log.Tracef("Settled %q: revenue=%v payment=%v net=%v", id,
			diff.Revenue, diff.Payment, diff.NetQuantity)
	}

	if report.Surplus.IsPositive() {
		if err := settler.SweepSurplus(report.Surplus); err != nil {
			return err
		}
		log.Debugf("Swept surplus of %v", report.Surplus)
	}

	return nil
}
