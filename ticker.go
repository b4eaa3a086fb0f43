package lem

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

// IntervalTicker implements the Ticker interface and fires at the boundaries
// of trading intervals, so a 15 minute interval ticks at :00, :15, :30 and
// :45. Ticks can also be force-fed, even while paused.
type IntervalTicker struct {
	isActive uint32 // used atomically

	// Force is used to force-feed ticks into the ticker. Useful for
	// replaying intervals back to back.
	Force chan time.Time

	interval time.Duration

	skip chan struct{}

	// nextTick is the boundary the ticker is currently waiting for.
	nextTick    time.Time
	nextTickMtx sync.Mutex

	wg   sync.WaitGroup
	quit chan struct{}
}

// A compile-time constraint to ensure IntervalTicker satisfies the
// ticker.Ticker interface.
var _ ticker.Ticker = (*IntervalTicker)(nil)

// NewIntervalTicker returns a new paused ticker for the given trading
// interval.
func NewIntervalTicker(interval time.Duration) *IntervalTicker {
	t := &IntervalTicker{
		Force:    make(chan time.Time),
		interval: interval,
		skip:     make(chan struct{}),
		quit:     make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// run waits for every interval boundary and forwards it to the Force channel
// if the ticker is active.
func (t *IntervalTicker) run() {
	defer t.wg.Done()

	for {
		next := time.Now().Truncate(t.interval).Add(t.interval)

		t.nextTickMtx.Lock()
		t.nextTick = next
		t.nextTickMtx.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case tick := <-timer.C:
			if !t.IsActive() {
				continue
			}

			select {
			case t.Force <- tick:
			case <-t.skip:
			case <-t.quit:
				return
			}

		case <-t.quit:
			timer.Stop()
			return
		}
	}
}

// Ticks returns a receive-only channel that delivers times at the interval
// boundaries when active. Force-fed ticks can be delivered at any time.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalTicker) Ticks() <-chan time.Time {
	return t.Force
}

// Resume causes the ticker to begin delivering scheduled events.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalTicker) Resume() {
	atomic.StoreUint32(&t.isActive, 1)
}

// Pause suspends the ticker, such that Ticks() stops signaling at interval
// boundaries.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalTicker) Pause() {
	atomic.StoreUint32(&t.isActive, 0)

	// If the timer fired and read isActive as true, it may still send the
	// tick. We'll try to send on the skip channel to drop it.
	select {
	case t.skip <- struct{}{}:
	default:
	}
}

// Stop suspends the ticker and permanently frees up any resources.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalTicker) Stop() {
	t.Pause()
	close(t.quit)
	t.wg.Wait()
}

// NextTickIn returns the approximate duration until the next interval
// boundary.
func (t *IntervalTicker) NextTickIn() time.Duration {
	t.nextTickMtx.Lock()
	next := t.nextTick
	t.nextTickMtx.Unlock()

	if next.IsZero() {
		return t.interval
	}

	d := time.Until(next)
	if d < 0 {
		return 0
	}

	return d
}

// IsActive returns true if the interval ticks are currently forwarded to the
// Force channel.
func (t *IntervalTicker) IsActive() bool {
	return atomic.LoadUint32(&t.isActive) == 1
}
