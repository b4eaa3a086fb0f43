package account

import (
	"sort"
	"sync"

	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
)

// LedgerConfig contains all of the required dependencies for the Ledger to
// carry out its duties.
type LedgerConfig struct {
	// AllowOverdraft lets accounts go below a zero balance.
	AllowOverdraft bool

	// AutoOpen opens an account with the initial balance for every
	// participant the ledger sees for the first time.
	AutoOpen bool

	// InitialBalance is the balance of automatically opened accounts.
	InitialBalance decimal.Decimal
}

// Ledger is an in-memory settlement ledger that keeps one account per
// market participant together with the surplus swept by the operator.
type Ledger struct {
	cfg LedgerConfig

	mu       sync.Mutex
	accounts map[order.ParticipantID]*Account
	surplus  decimal.Decimal
}

// A compile-time constraint to ensure Ledger implements venue.Settler.
var _ venue.Settler = (*Ledger)(nil)

// NewLedger creates a new, empty ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	return &Ledger{
		cfg:      cfg,
		accounts: make(map[order.ParticipantID]*Account),
	}
}

// OpenAccount opens a new account with the given starting balance.
func (l *Ledger) OpenAccount(id order.ParticipantID,
	balance decimal.Decimal) error {

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[id]; ok {
		return ErrAccountExists
	}

	l.accounts[id] = &Account{
		Participant: id,
		Balance:     balance,
		State:       StateOpen,
	}
	log.Debugf("Opened account %q with balance %v", id, balance)

	return nil
}

// CloseAccount closes the account of a participant.
func (l *Ledger) CloseAccount(id order.ParticipantID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.State = StateClosed

	log.Debugf("Closed account %q", id)

	return nil
}

// Account returns a copy of the account of a participant.
func (l *Ledger) Account(id order.ParticipantID) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	return acct.Copy(), nil
}

// Snapshot returns copies of all accounts ordered by participant.
func (l *Ledger) Snapshot() []*Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make([]*Account, 0, len(l.accounts))
	for _, acct := range l.accounts {
		accounts = append(accounts, acct.Copy())
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Participant < accounts[j].Participant
	})

	return accounts
}

// Surplus returns the total surplus swept so far.
func (l *Ledger) Surplus() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.surplus
}

// CheckSettlement makes sure every participant of the report has an open
// account that can pay for its part of the round. Accounts of unknown
// participants are only opened once the round is settled.
//
// NOTE: This is part of the venue.Settler interface.
func (l *Ledger) CheckSettlement(report *matching.SettlementReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range report.Participants() {
		diff := report.Diffs[id]

		acct, err := l.lookupAccount(id)
		if err != nil {
			return err
		}
		if acct.State != StateOpen {
			return ErrAccountClosed
		}

		// Revenue is credited before the payment is debited, so the
		// revenue of the round is available to pay for it.
		balance := acct.Balance.Add(diff.Revenue)
		if !l.cfg.AllowOverdraft && balance.LessThan(diff.Payment) {
			return &ErrInsufficientBalance{
				Participant: id,
				Balance:     balance,
				Payment:     diff.Payment,
			}
		}
	}

	return nil
}

// Wallet returns the wallet of a participant.
//
// NOTE: This is part of the venue.Settler interface.
func (l *Ledger) Wallet(id order.ParticipantID) (venue.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.fetchAccount(id); err != nil {
		return nil, err
	}

	return &wallet{ledger: l, id: id}, nil
}

// SweepSurplus adds the surplus of a round to the operator's balance.
//
// NOTE: This is part of the venue.Settler interface.
func (l *Ledger) SweepSurplus(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.surplus = l.surplus.Add(amount)

	return nil
}

// lookupAccount returns the account of a participant without modifying the
// ledger. Unknown participants get the account they would be opened with.
//
// NOTE: The mutex must be held.
func (l *Ledger) lookupAccount(id order.ParticipantID) (*Account, error) {
	acct, ok := l.accounts[id]
	switch {
	case ok:
		return acct, nil

	case !l.cfg.AutoOpen:
		return nil, venue.ErrUnknownWallet
	}

	return &Account{
		Participant: id,
		Balance:     l.cfg.InitialBalance,
		State:       StateOpen,
	}, nil
}

// fetchAccount returns the account of a participant, opening it first if
// the ledger is configured to do so.
//
// NOTE: The mutex must be held.
func (l *Ledger) fetchAccount(id order.ParticipantID) (*Account, error) {
	acct, err := l.lookupAccount(id)
	if err != nil {
		return nil, err
	}
	if _, ok := l.accounts[id]; ok {
		return acct, nil
	}

	l.accounts[id] = acct
	log.Debugf("Opened account %q with initial balance %v", id,
		acct.Balance)

	return acct, nil
}

// wallet is the view of a single account handed to the venue.
type wallet struct {
	ledger *Ledger
	id     order.ParticipantID
}

// A compile-time constraint to ensure wallet implements venue.Wallet.
var _ venue.Wallet = (*wallet)(nil)

// SettleRevenue credits the account with the revenue of energy sold.
//
// NOTE: This is part of the venue.Wallet interface.
func (w *wallet) SettleRevenue(quantity, amount decimal.Decimal) error {
	if err := checkSettlement(quantity, amount); err != nil {
		return err
	}

	w.ledger.mu.Lock()
	defer w.ledger.mu.Unlock()

	acct, err := w.ledger.openAccount(w.id)
	if err != nil {
		return err
	}

	acct.Balance = acct.Balance.Add(amount)
	acct.Revenue = acct.Revenue.Add(amount)
	acct.EnergySold = acct.EnergySold.Add(quantity)

	return nil
}

// SettlePayment debits the account with the payment for energy bought.
//
// NOTE: This is part of the venue.Wallet interface.
func (w *wallet) SettlePayment(quantity, amount decimal.Decimal) error {
	if err := checkSettlement(quantity, amount); err != nil {
		return err
	}

	w.ledger.mu.Lock()
	defer w.ledger.mu.Unlock()

	acct, err := w.ledger.openAccount(w.id)
	if err != nil {
		return err
	}

	if !w.ledger.cfg.AllowOverdraft && acct.Balance.LessThan(amount) {
		return &ErrInsufficientBalance{
			Participant: w.id,
			Balance:     acct.Balance,
			Payment:     amount,
		}
	}

	acct.Balance = acct.Balance.Sub(amount)
	acct.Payments = acct.Payments.Add(amount)
	acct.EnergyBought = acct.EnergyBought.Add(quantity)

	return nil
}

// openAccount returns the account of a participant if it's open.
//
// NOTE: The mutex must be held.
func (l *Ledger) openAccount(id order.ParticipantID) (*Account, error) {
	acct, ok := l.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.State != StateOpen {
		return nil, ErrAccountClosed
	}

	return acct, nil
}

// checkSettlement validates the quantity and amount of a single settlement.
func checkSettlement(quantity, amount decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrNonPositiveQuantity
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}

	return nil
}
