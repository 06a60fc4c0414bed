package breaker

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(3, time.Second)

	for i := range 3 {
		if err := b.Allow(); err != nil {
			t.Fatalf("call %d: unexpected %v", i, err)
		}
		b.OnFailure()
	}

	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got: %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("got state %v, want open", b.State())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := New(2, time.Second)

	_ = b.Allow()
	b.OnFailure()
	_ = b.Allow()
	b.OnSuccess()
	_ = b.Allow()
	b.OnFailure()

	if b.State() != StateClosed {
		t.Errorf("got state %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	var transitions []string
	b := New(1, 5*time.Second,
		WithClock(clock.Now),
		WithStateChange(func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	_ = b.Allow()
	b.OnFailure()

	clock.Advance(4 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("before cooldown: expected ErrOpen, got: %v", err)
	}

	clock.Advance(time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe: unexpected %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("second call during probe: expected ErrOpen, got: %v", err)
	}

	b.OnSuccess()
	if b.State() != StateClosed {
		t.Fatalf("got state %v, want closed", b.State())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("got transitions %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: got %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	b := New(1, time.Second, WithClock(clock.Now))

	_ = b.Allow()
	b.OnFailure()
	clock.Advance(time.Second)

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.OnFailure()

	if b.State() != StateOpen {
		t.Errorf("got state %v, want open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen right after failed probe, got: %v", err)
	}
}

func TestBreaker_AbortedProbeKeepsHalfOpen(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	b := New(1, 5*time.Second, WithClock(clock.Now))

	_ = b.Allow()
	b.OnFailure()
	clock.Advance(5 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe to be allowed, got: %v", err)
	}
	b.OnAbort()

	if b.State() != StateHalfOpen {
		t.Fatalf("got state %v, want half-open", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("expected a new probe after abort, got: %v", err)
	}
}
