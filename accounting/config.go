package accounting

import (
	"context"
	"time"
)

type Config struct {
	// Start is the time from which our report will be created, inclusive.
	Start time.Time

	// End is the time until which our report will be created, exclusive.
	End time.Time

	// GetRounds returns the rounds that need to be included in the
	// report.
	GetRounds func(context.Context) ([]*RoundEntry, error)
}
