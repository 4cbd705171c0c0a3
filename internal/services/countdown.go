package services

import (
	"context"
	"time"

	"github.com/sam-thetutor/herlock/internal/models"
)

// Countdown derives a live inheritance countdown from a cached
// inactivity snapshot. The ledger's answer is only current at fetch
// time; Remaining subtracts locally elapsed wall time so the displayed
// value keeps moving between polls without drifting ahead of the
// server's clock.
type Countdown struct {
	status    models.InactivityStatus
	fetchedAt time.Time
}

// NewCountdown wraps an inactivity snapshot taken at fetchedAt
func NewCountdown(status models.InactivityStatus, fetchedAt time.Time) *Countdown {
	return &Countdown{status: status, fetchedAt: fetchedAt}
}

// Remaining returns the seconds left until inheritance eligibility at
// the given instant, clamped at zero. The second return is false when
// the ledger reported no countdown (no heirs registered, or inheritance
// already resolved).
func (c *Countdown) Remaining(now time.Time) (int64, bool) {
	if c.status.SecondsUntilInheritance == nil {
		return 0, false
	}

	elapsed := int64(now.Sub(c.fetchedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := *c.status.SecondsUntilInheritance - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Eligible reports whether the countdown has reached zero at the given
// instant. A snapshot without a countdown is never eligible from the
// gateway's point of view; the ledger's CanTriggerInheritance flag is
// still honored when set.
func (c *Countdown) Eligible(now time.Time) bool {
	if c.status.CanTriggerInheritance {
		return true
	}
	remaining, known := c.Remaining(now)
	return known && remaining == 0
}

// Watch emits the remaining seconds once per interval until the context
// is cancelled or the countdown reaches zero. The zero value is emitted
// before the channel closes.
func (c *Countdown) Watch(ctx context.Context, interval time.Duration) <-chan int64 {
	out := make(chan int64, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		emit := func(now time.Time) bool {
			remaining, known := c.Remaining(now)
			if !known {
				return false
			}
			select {
			case out <- remaining:
			case <-ctx.Done():
				return false
			}
			return remaining > 0
		}

		if !emit(time.Now()) {
			return
		}
		for {
			select {
			case now := <-ticker.C:
				if !emit(now) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
