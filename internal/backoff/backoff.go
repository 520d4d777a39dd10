// Package backoff provides the capped exponential delay shared by every
// reconnecting client in the switcher.
//
// The delay after the n-th consecutive failure is Base * 2^min(n, MaxSteps),
// clamped to Max. With Base=1s, MaxSteps=5 that yields 2,4,8,16,32,32,... seconds.
//
// Thread Safety:
//   - A Backoff is owned by a single reconnect loop and is not safe for
//     concurrent use.
package backoff

import (
	"context"
	"time"
)

// Backoff tracks consecutive failures and computes the next retry delay.
type Backoff struct {
	// Base is the unit delay that gets doubled per failure.
	Base time.Duration

	// Max caps the computed delay. Zero means no cap beyond MaxSteps.
	Max time.Duration

	// MaxSteps caps the exponent. Zero means the exponent is only limited by Max.
	MaxSteps int

	attempt int
}

// maxShift keeps 1<<shift inside a time.Duration.
const maxShift = 30

// New returns a Backoff with the given parameters.
func New(base, limit time.Duration, maxSteps int) *Backoff {
	return &Backoff{Base: base, Max: limit, MaxSteps: maxSteps}
}

// Next records a failure and returns how long to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	return b.delay(b.attempt)
}

// Attempt returns the number of consecutive failures recorded.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Reset clears the failure counter after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) delay(attempt int) time.Duration {
	shift := attempt
	if b.MaxSteps > 0 && shift > b.MaxSteps {
		shift = b.MaxSteps
	}
	if shift > maxShift {
		shift = maxShift
	}

	d := b.Base * time.Duration(1<<uint(shift))
	if b.Max > 0 && (d > b.Max || d <= 0) {
		d = b.Max
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
//
// Returns:
//   - error: ctx.Err() if the context ends first, nil otherwise
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
