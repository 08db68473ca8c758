// Package frozen checks phone numbers against an external status service.
// The verdict logic lives entirely on the service side; this package owns
// transport, bounded fan-out and result caching.
package frozen

import (
	"context"
	"time"
)

// Result is the verdict for a single number.
type Result struct {
	Number    string    `json:"number"`
	Frozen    bool      `json:"frozen"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker resolves verdicts for a batch of numbers within one channel scope.
// Implementations must keep the returned slice in input order.
type Checker interface {
	Check(ctx context.Context, numbers []string, channelRef string) ([]Result, error)
}

// Cache stores verdicts between runs. Lookup returns nil when the number has
// no sufficiently recent entry.
type Cache interface {
	Lookup(ctx context.Context, channelRef, number string) (*Result, error)
	Store(ctx context.Context, channelRef string, res Result) error
}

// Summary aggregates a batch outcome for display.
type Summary struct {
	Total  int
	Frozen int
	Active int
}

// Summarize folds results into counts.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Frozen {
			s.Frozen++
		} else {
			s.Active++
		}
	}
	return s
}
