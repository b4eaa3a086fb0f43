package lem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/monitoring"
	"github.com/gridmarket/lem/order"
	"github.com/gridmarket/lem/venue"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/lightningnetwork/lnd/ticker"
)

// OrderSource delivers the order book of every trading interval.
type OrderSource interface {
	// NextBook returns the book of the given interval. The boolean is
	// false once the source has no more intervals.
	NextBook(interval int) (*order.Book, bool, error)
}

// NextBook returns the book of the given interval of the scenario.
//
// NOTE: This is part of the OrderSource interface.
func (s *Scenario) NextBook(interval int) (*order.Book, bool, error) {
	if interval < 0 || interval >= len(s.Rounds) {
		return nil, false, nil
	}

	return &s.Rounds[interval], true, nil
}

// A compile-time constraint to ensure Scenario implements OrderSource.
var _ OrderSource = (*Scenario)(nil)

// MarketConfig contains everything the market needs to clear its intervals.
type MarketConfig struct {
	// Executor clears and settles a single round.
	Executor *venue.RoundExecutor

	// Rule is the pricing rule of the engine behind the executor. It is
	// only used to label metrics.
	Rule matching.PricingRule

	// Source delivers the order books.
	Source OrderSource

	// Utility is the optional market maker of last resort.
	Utility *Utility

	// Ticker ticks each time the next trading interval should be cleared.
	// It may be nil if the market is only driven through ClearNext or
	// RunAll.
	Ticker ticker.Ticker

	// IntervalStart returns the start time of the given interval.
	IntervalStart func(interval int) time.Time
}

// Market steps the trading intervals of a local energy market one after the
// other. Every interval is cleared as a round by the executor.
type Market struct {
	// interval is the index of the next interval to clear.
	//
	// NOTE: This field MUST be used atomically.
	interval int64

	// failures is the number of rounds that failed.
	//
	// NOTE: This field MUST be used atomically.
	failures uint64

	cfg MarketConfig

	// clearingStart is the start time of the interval currently being
	// cleared.
	clearingStart    time.Time
	clearingStartMtx sync.Mutex

	// clearMtx makes sure intervals are cleared one after the other.
	clearMtx sync.Mutex

	done     chan struct{}
	doneOnce sync.Once

	quit chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	wg sync.WaitGroup
}

// NewMarket returns a new market for the given config.
func NewMarket(cfg MarketConfig) *Market {
	if cfg.IntervalStart == nil {
		cfg.IntervalStart = func(int) time.Time {
			return time.Now()
		}
	}

	return &Market{
		cfg:  cfg,
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
}

// Start launches the interval coordinator that clears the next interval on
// every tick.
func (m *Market) Start() error {
	var startErr error

	m.startOnce.Do(func() {
		if m.cfg.Ticker == nil {
			startErr = fmt.Errorf("market needs a ticker to start")
			return
		}

		log.Infof("Starting market at interval %d", m.Interval())

		m.wg.Add(1)
		go m.intervalCoordinator()
	})

	return startErr
}

// Stop signals the market to halt and waits for the coordinator to exit.
func (m *Market) Stop() error {
	m.stopOnce.Do(func() {
		log.Infof("Stopping market")

		close(m.quit)
		m.wg.Wait()

		if m.cfg.Ticker != nil {
			m.cfg.Ticker.Stop()
		}
	})

	return nil
}

// Done returns a channel that is closed once the order source is exhausted.
func (m *Market) Done() <-chan struct{} {
	return m.done
}

// Interval returns the index of the next interval to clear.
func (m *Market) Interval() int {
	return int(atomic.LoadInt64(&m.interval))
}

// Failures returns the number of rounds that failed so far.
func (m *Market) Failures() uint64 {
	return atomic.LoadUint64(&m.failures)
}

// ClearingStart returns the start time of the interval that is cleared right
// now, or of the last cleared one.
func (m *Market) ClearingStart() time.Time {
	m.clearingStartMtx.Lock()
	defer m.clearingStartMtx.Unlock()

	return m.clearingStart
}

// intervalCoordinator is the primary event loop of the market. Every tick
// clears the next interval until the source is exhausted.
func (m *Market) intervalCoordinator() {
	defer m.wg.Done()

	m.cfg.Ticker.Resume()
	defer m.cfg.Ticker.Pause()

	for {
		select {
		case <-m.cfg.Ticker.Ticks():
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				select {
				case <-m.quit:
					cancel()
				case <-ctx.Done():
				}
			}()

			_, more, err := m.ClearNext(ctx)
			cancel()

			switch {
			case errors.Is(err, context.Canceled):
				return

			case err != nil:
				log.Errorf("Unable to clear interval: %v", err)
			}

			if !more {
				log.Infof("Order source exhausted after %d "+
					"intervals", m.Interval())
				return
			}

		case <-m.quit:
			return
		}
	}
}

// RunAll clears all remaining intervals back to back. Failed rounds are
// counted and logged, only a cancelled context stops the replay.
func (m *Market) RunAll(ctx context.Context) error {
	for {
		_, more, err := m.ClearNext(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Errorf("Unable to clear interval: %v", err)
		}
		if !more {
			return nil
		}
	}
}

// ClearNext clears the next interval of the order source. The boolean is
// false once the source is exhausted. A failed round still advances the
// market to the next interval.
func (m *Market) ClearNext(ctx context.Context) (*venue.RoundOutcome, bool,
	error) {

	m.clearMtx.Lock()
	defer m.clearMtx.Unlock()

	interval := m.Interval()
	book, ok, err := m.cfg.Source.NextBook(interval)
	if err != nil {
		return nil, true, fmt.Errorf("unable to fetch book of "+
			"interval %d: %w", interval, err)
	}
	if !ok {
		m.doneOnce.Do(func() {
			close(m.done)
		})
		return nil, false, nil
	}

	atomic.AddInt64(&m.interval, 1)

	outcome, err := m.clearInterval(ctx, interval, book)
	if err != nil {
		atomic.AddUint64(&m.failures, 1)
		return nil, true, err
	}

	return outcome, true, nil
}

// clearInterval clears and settles the book of a single interval.
func (m *Market) clearInterval(ctx context.Context, interval int,
	book *order.Book) (*venue.RoundOutcome, error) {

	start := m.cfg.IntervalStart(interval)
	m.clearingStartMtx.Lock()
	m.clearingStart = start
	m.clearingStartMtx.Unlock()

	if m.cfg.Utility != nil {
		book = m.cfg.Utility.Quote(interval, book)
	}

	log.Debugf("Clearing interval %d starting %v with %d bids and %d "+
		"offers", interval, start, len(book.Bids), len(book.Offers))

	monitoring.ObserveOrderBook(book.Bids, book.Offers)
	monitoring.ObserveRoundAttempt(m.cfg.Rule)

	clearStart := time.Now()
	outcome, err := m.cfg.Executor.Execute(ctx, book.Bids, book.Offers)
	if err != nil {
		state, reason := failureReason(err)
		monitoring.ObserveRoundFailure(state, reason)

		return nil, fmt.Errorf("interval %d: %w", interval, err)
	}
	monitoring.ObserveRoundOutcome(outcome.Result, time.Since(clearStart))

	result := outcome.Result
	log.Infof("Interval %d cleared: type=%v quantity=%v price=%v "+
		"turnover=%v surplus=%v trades=%d", interval, result.Type,
		result.Quantity, result.Price, result.TotalTurnover,
		result.Surplus, len(result.TradePairs))

	return outcome, nil
}

// failureReason maps a round error to the state it failed in and a short
// reason used as metric label.
func failureReason(err error) (string, string) {
	state := "unknown"
	var roundErr *venue.ErrRoundFailed
	if errors.As(err, &roundErr) {
		state = roundErr.State.String()
	}

	var (
		validationErr *order.ValidationError
		settlementErr *venue.ErrSettlement
		balanceErr    *account.ErrInsufficientBalance
		toleranceErr  *matching.NumericToleranceWarning
	)
	switch {
	case errors.As(err, &validationErr):
		return state, "validation"

	case errors.Is(err, matching.ErrUnderdeterminedBoundary):
		return state, "boundary"

	case errors.Is(err, matching.ErrBudgetDeficit):
		return state, "budget"

	case errors.As(err, &toleranceErr):
		return state, "reconciliation"

	case errors.As(err, &settlementErr), errors.As(err, &balanceErr),
		errors.Is(err, account.ErrAccountClosed),
		errors.Is(err, venue.ErrUnknownWallet):

		return state, "settlement"

	case errors.Is(err, venue.ErrExecutorBusy):
		return state, "busy"

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):

		return state, "cancelled"

	default:
		return state, "other"
	}
}
