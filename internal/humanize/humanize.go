// Package humanize produces randomized timing for browser interactions.
// Evenly spaced automated actions are the easiest signature for the target
// platform to detect, so every interaction the automation performs is paced
// through this package.
package humanize

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// TypeTarget is anything that can receive focus and per-character input.
type TypeTarget interface {
	Click() error
	Type(text string) error
}

// Pacer suspends callers for human-looking durations.
type Pacer interface {
	Delay(ctx context.Context, min, max time.Duration) error
	TypeText(ctx context.Context, target TypeTarget, text string, minChar, maxChar time.Duration) error
}

type pacer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Pacer backed by its own rand source.
func New() Pacer {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Pacer with a fixed seed, for deterministic tests.
func NewSeeded(seed int64) Pacer {
	return &pacer{rng: rand.New(rand.NewSource(seed))}
}

func (p *pacer) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	d := min + time.Duration(p.rng.Int63n(int64(max-min)))
	p.mu.Unlock()
	return d
}

// Delay sleeps for a uniformly random duration in [min, max], returning
// early with the context error if the caller is cancelled.
func (p *pacer) Delay(ctx context.Context, min, max time.Duration) error {
	d := p.uniform(min, max)
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

// TypeText focuses the target, settles briefly, then delivers the text one
// character at a time with a random pause between characters.
func (p *pacer) TypeText(ctx context.Context, target TypeTarget, text string, minChar, maxChar time.Duration) error {
	if err := target.Click(); err != nil {
		return err
	}
	if err := p.Delay(ctx, 200*time.Millisecond, 500*time.Millisecond); err != nil {
		return err
	}
	for _, r := range text {
		if err := target.Type(string(r)); err != nil {
			return err
		}
		if err := p.Delay(ctx, minChar, maxChar); err != nil {
			return err
		}
	}
	return nil
}
