package services

import (
	"context"
	"strconv"
	"time"
)

// Signaler wakes pollers when something about a key changed.
type Signaler interface {
	Signal(ctx context.Context, key string)
	Watch(ctx context.Context, key string) (<-chan struct{}, func(), error)
}

// Poller waits for a condition on persisted state. The budget is Attempts
// ticks of Interval; a signal triggers an extra check without spending a tick.
type Poller struct {
	Interval time.Duration
	Attempts int
	Signals  Signaler
}

func DefaultPoller() Poller { return Poller{Interval: 200 * time.Millisecond, Attempts: 50} }

// Wait returns nil once check reports done, ErrQueryTimeout when the budget
// is exhausted, or the first error of check or ctx.
func (p Poller) Wait(ctx context.Context, key string, check func() (bool, error)) error {
	var wake <-chan struct{}
	if p.Signals != nil && key != "" {
		ch, stop, err := p.Signals.Watch(ctx, key)
		if err == nil {
			defer stop()
			wake = ch
		}
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for ticks := 0; ticks < p.Attempts; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ticks++
		case <-wake:
		}
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrQueryTimeout
}

func agentKey(id uint) string { return "agent:" + strconv.FormatUint(uint64(id), 10) }
