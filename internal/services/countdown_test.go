package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-thetutor/herlock/internal/models"
)

func snapshotWith(seconds int64) models.InactivityStatus {
	return models.InactivityStatus{
		IsActive:                true,
		SecondsSinceActivity:    100,
		SecondsUntilInheritance: &seconds,
	}
}

func TestCountdownRemaining(t *testing.T) {
	fetched := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SubtractsElapsedTime", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(600), fetched)

		remaining, known := cd.Remaining(fetched)
		require.True(t, known)
		assert.Equal(t, int64(600), remaining)

		remaining, _ = cd.Remaining(fetched.Add(45 * time.Second))
		assert.Equal(t, int64(555), remaining)

		remaining, _ = cd.Remaining(fetched.Add(10 * time.Minute))
		assert.Equal(t, int64(0), remaining)
	})

	t.Run("ClampsAtZero", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(30), fetched)
		remaining, known := cd.Remaining(fetched.Add(time.Hour))
		require.True(t, known)
		assert.Equal(t, int64(0), remaining)
	})

	t.Run("SubSecondElapsedTruncates", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(600), fetched)
		remaining, _ := cd.Remaining(fetched.Add(900 * time.Millisecond))
		assert.Equal(t, int64(600), remaining)
	})

	t.Run("ClockSkewDoesNotInflate", func(t *testing.T) {
		// a now before fetchedAt must not push the countdown up
		cd := NewCountdown(snapshotWith(600), fetched)
		remaining, _ := cd.Remaining(fetched.Add(-10 * time.Second))
		assert.Equal(t, int64(600), remaining)
	})

	t.Run("NoCountdownReported", func(t *testing.T) {
		cd := NewCountdown(models.InactivityStatus{IsActive: true}, fetched)
		_, known := cd.Remaining(fetched)
		assert.False(t, known)
	})

	t.Run("MonotonicNonIncreasing", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(120), fetched)
		prev := int64(121)
		for i := 0; i < 140; i++ {
			remaining, _ := cd.Remaining(fetched.Add(time.Duration(i) * time.Second))
			assert.LessOrEqual(t, remaining, prev)
			prev = remaining
		}
		assert.Equal(t, int64(0), prev)
	})
}

func TestCountdownEligible(t *testing.T) {
	fetched := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("EligibleExactlyAtZero", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(60), fetched)
		assert.False(t, cd.Eligible(fetched.Add(59*time.Second)))
		assert.True(t, cd.Eligible(fetched.Add(60*time.Second)))
		assert.True(t, cd.Eligible(fetched.Add(2*time.Hour)))
	})

	t.Run("ServerFlagWins", func(t *testing.T) {
		status := snapshotWith(600)
		status.CanTriggerInheritance = true
		cd := NewCountdown(status, fetched)
		assert.True(t, cd.Eligible(fetched))
	})

	t.Run("NeverEligibleWithoutCountdown", func(t *testing.T) {
		cd := NewCountdown(models.InactivityStatus{IsActive: true}, fetched)
		assert.False(t, cd.Eligible(fetched.Add(24*time.Hour)))
	})
}

func TestCountdownWatch(t *testing.T) {
	t.Run("EmitsAndClosesAtZero", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(0), time.Now())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		out := cd.Watch(ctx, 10*time.Millisecond)

		first, ok := <-out
		require.True(t, ok)
		assert.Equal(t, int64(0), first)

		_, ok = <-out
		assert.False(t, ok, "channel should close after reaching zero")
	})

	t.Run("CancellationStopsEmission", func(t *testing.T) {
		cd := NewCountdown(snapshotWith(3600), time.Now())

		ctx, cancel := context.WithCancel(context.Background())
		out := cd.Watch(ctx, 10*time.Millisecond)

		<-out
		cancel()

		deadline := time.After(time.Second)
		for {
			select {
			case _, ok := <-out:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("channel did not close after cancellation")
			}
		}
	})
}
