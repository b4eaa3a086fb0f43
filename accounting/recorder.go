package accounting

import (
	"context"
	"sync"
	"time"

	"github.com/gridmarket/lem/venue"
)

// Recorder keeps an entry for every settled round in memory so reports can
// be created from it.
type Recorder struct {
	clock func() time.Time

	mu      sync.Mutex
	entries []*RoundEntry
}

// A compile-time constraint to ensure Recorder implements venue.RoundStorer.
var _ venue.RoundStorer = (*Recorder)(nil)

// NewRecorder creates a new recorder that stamps every round with the time
// returned by the given clock. If clock is nil, the wall clock is used.
func NewRecorder(clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}

	return &Recorder{
		clock: clock,
	}
}

// StoreRound records the outcome of a settled round.
//
// NOTE: This is part of the venue.RoundStorer interface.
func (r *Recorder) StoreRound(_ context.Context,
	outcome *venue.RoundOutcome) error {

	entry := extractRoundEntry(outcome, r.clock())

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	log.Tracef("Recorded round %v: type=%v volume=%v turnover=%v",
		entry.RoundID, entry.Type, entry.Quantity, entry.Turnover)

	return nil
}

// Rounds returns all recorded entries. Its signature matches
// Config.GetRounds.
func (r *Recorder) Rounds(context.Context) ([]*RoundEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*RoundEntry(nil), r.entries...), nil
}
