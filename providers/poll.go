package providers

import (
	"context"
	"errors"
	"time"
)

var ErrPollExhausted = errors.New("providers: status polling exhausted")

type Sleeper func(ctx context.Context, delay time.Duration) error

// PollConfig bounds an async status check. Zero values fall back to a 3s
// interval and 20 attempts.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       Sleeper
}

func (c PollConfig) normalized() PollConfig {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.Sleep == nil {
		c.Sleep = SleepContext
	}
	return c
}

// Poll calls check until it reports done, returns an error, or the attempts
// run out. No delay follows the final attempt.
func Poll(ctx context.Context, cfg PollConfig, check func(ctx context.Context, attempt int) (bool, error)) error {
	cfg = cfg.normalized()
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
			return err
		}
	}
	return ErrPollExhausted
}

func SleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
