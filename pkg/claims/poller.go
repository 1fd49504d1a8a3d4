// Package claims runs the claim-all action and then polls the processed
// claims counter until the claim shows up or the wait times out.
package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/refnet/pkg/debug"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Outcome is how a poll ended.
type Outcome int

const (
	Claimed Outcome = iota
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case TimedOut:
		return "timed out"
	default:
		return "cancelled"
	}
}

// Source is the collaborator the poller talks to.
type Source interface {
	ClaimedCount(ctx context.Context) (int, error)
	ClaimAll(ctx context.Context) error
}

// Result reports the outcome and the counter values observed.
type Result struct {
	Outcome Outcome
	Before  int
	After   int
	Polls   int
}

// Poller is a bounded polling loop. The zero value is not usable; use New.
type Poller struct {
	src      Source
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithTimeout sets the overall wait.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// WithClock replaces the wall clock and the sleep used between polls.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		p.now = now
		p.sleep = sleep
	}
}

// New returns a poller over src.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClaimAll reads the counter, issues the claim, then polls until the
// counter rises above its starting value. Poll errors are logged and
// retried on the next tick; only the claim itself failing is an error.
func (p *Poller) ClaimAll(ctx context.Context) (Result, error) {
	before, err := p.src.ClaimedCount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading claimed count: %w", err)
	}
	if err := p.src.ClaimAll(ctx); err != nil {
		return Result{Before: before, After: before}, fmt.Errorf("claim all: %w", err)
	}

	res := Result{Before: before, After: before}
	deadline := p.now().Add(p.timeout)
	for {
		if err := p.sleep(ctx, p.interval); err != nil {
			res.Outcome = Cancelled
			return res, nil
		}
		res.Polls++
		n, err := p.src.ClaimedCount(ctx)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) {
				res.Outcome = Cancelled
				return res, nil
			}
			debug.Log("claims poll %d failed: %v", res.Polls, err)
		case n > before:
			res.After = n
			res.Outcome = Claimed
			return res, nil
		default:
			res.After = n
		}
		if !p.now().Before(deadline) {
			res.Outcome = TimedOut
			return res, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
