package claims

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.t = c.t.Add(d)
	return nil
}

// scriptedSource returns counts in order, repeating the last one.
type scriptedSource struct {
	counts   []int
	errs     map[int]error
	claimErr error
	reads    int
	claimed  bool
}

func (s *scriptedSource) ClaimedCount(ctx context.Context) (int, error) {
	i := s.reads
	s.reads++
	if err, ok := s.errs[i]; ok {
		return 0, err
	}
	if i >= len(s.counts) {
		return s.counts[len(s.counts)-1], nil
	}
	return s.counts[i], nil
}

func (s *scriptedSource) ClaimAll(ctx context.Context) error {
	s.claimed = true
	return s.claimErr
}

func newTestPoller(src Source) (*Poller, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	return New(src, WithClock(clk.now, clk.sleep)), clk
}

func TestClaimAllStopsOnIncrease(t *testing.T) {
	src := &scriptedSource{counts: []int{3, 3, 3, 4}}
	p, clk := newTestPoller(src)
	start := clk.t

	res, err := p.ClaimAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !src.claimed {
		t.Error("claim was never issued")
	}
	if res.Outcome != Claimed || res.Before != 3 || res.After != 4 {
		t.Errorf("result = %+v", res)
	}
	if res.Polls != 3 {
		t.Errorf("polls = %d, want 3", res.Polls)
	}
	if got := clk.t.Sub(start); got != 6*time.Second {
		t.Errorf("waited %v, want 6s at the default 2s interval", got)
	}
}

func TestClaimAllTimesOut(t *testing.T) {
	src := &scriptedSource{counts: []int{5}}
	p, clk := newTestPoller(src)
	start := clk.t

	res, err := p.ClaimAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != TimedOut {
		t.Errorf("outcome = %v", res.Outcome)
	}
	if res.Polls != 15 {
		t.Errorf("polls = %d, want 15 in 30s", res.Polls)
	}
	if got := clk.t.Sub(start); got != DefaultTimeout {
		t.Errorf("elapsed %v", got)
	}
}

func TestClaimAllPollErrorsAreRetried(t *testing.T) {
	src := &scriptedSource{
		counts: []int{1, 1, 1, 2},
		errs:   map[int]error{1: errors.New("flaky")},
	}
	p, _ := newTestPoller(src)

	res, err := p.ClaimAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Claimed || res.After != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestClaimAllCancelled(t *testing.T) {
	src := &scriptedSource{counts: []int{0}}
	p, _ := newTestPoller(src)
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after the claim went out, before the first poll.
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	res, err := p.ClaimAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Cancelled || res.Polls != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestClaimAllFailureIsReturned(t *testing.T) {
	boom := errors.New("boom")
	src := &scriptedSource{counts: []int{0}, claimErr: boom}
	p, _ := newTestPoller(src)

	if _, err := p.ClaimAll(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestCustomIntervalAndTimeout(t *testing.T) {
	src := &scriptedSource{counts: []int{0}}
	clk := &fakeClock{t: time.Unix(0, 0)}
	p := New(src, WithClock(clk.now, clk.sleep), WithInterval(time.Second), WithTimeout(5*time.Second))

	res, _ := p.ClaimAll(context.Background())
	if res.Polls != 5 {
		t.Errorf("polls = %d, want 5", res.Polls)
	}
}

func TestOutcomeString(t *testing.T) {
	if Claimed.String() == TimedOut.String() || TimedOut.String() == Cancelled.String() {
		t.Error("outcomes should render distinctly")
	}
}
