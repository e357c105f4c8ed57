package retry

import (
	"testing"
	"time"
)

// fixedJitter pins the jitter factor so delays are exact in tests.
func fixedJitter(p *Policy, v float64) {
	p.jitter = func() float64 { return v }
}

func TestDecide_DeadLettersAtMaxRetries(t *testing.T) {
	p := NewPolicy(time.Second, time.Minute, 0, 3)

	if d := p.Decide(3, CauseDelivery); !d.DeadLetter {
		t.Fatal("retry_count == max_retries should dead-letter")
	}
	if d := p.Decide(5, CauseDelivery); !d.DeadLetter {
		t.Fatal("retry_count > max_retries should dead-letter")
	}
	if d := p.Decide(2, CauseDelivery); d.DeadLetter {
		t.Fatal("retry_count below max should retry")
	}
}

func TestDecide_BackoffDoubles(t *testing.T) {
	p := NewPolicy(time.Second, time.Hour, 0, 10)
	fixedJitter(p, 0.5) // factor 1.0

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for count, expected := range want {
		d := p.Decide(count, CauseDelivery)
		if d.DeadLetter {
			t.Fatalf("count %d should retry", count)
		}
		if d.Delay != expected {
			t.Errorf("count %d: delay = %v, want %v", count, d.Delay, expected)
		}
	}
}

func TestDecide_DelayCapped(t *testing.T) {
	p := NewPolicy(time.Second, 10*time.Second, 0, 20)
	fixedJitter(p, 0.5)

	if d := p.Decide(10, CauseDelivery); d.Delay != 10*time.Second {
		t.Fatalf("delay = %v, want cap 10s", d.Delay)
	}
}

func TestDecide_JitterWithinBounds(t *testing.T) {
	p := NewPolicy(time.Second, time.Hour, 0, 10)

	for i := 0; i < 100; i++ {
		d := p.Decide(2, CauseDelivery) // nominal 4s
		min := time.Duration(float64(4*time.Second) * 0.8)
		max := time.Duration(float64(4*time.Second) * 1.2)
		if d.Delay < min || d.Delay > max {
			t.Fatalf("delay %v outside ±20%% of 4s", d.Delay)
		}
	}
}

func TestDecide_NonDecreasingAcrossCounts(t *testing.T) {
	p := NewPolicy(time.Second, time.Hour, 0, 10)
	fixedJitter(p, 0.5)

	prev := time.Duration(0)
	for count := 0; count < 8; count++ {
		d := p.Decide(count, CauseDelivery)
		if d.Delay < prev {
			t.Fatalf("delay decreased at count %d: %v < %v", count, d.Delay, prev)
		}
		prev = d.Delay
	}
}

func TestDecide_CircuitOpenUsesLongerFloor(t *testing.T) {
	p := NewPolicy(time.Second, time.Hour, 30*time.Second, 10)
	fixedJitter(p, 0.5)

	// First failure would normally back off 1s; an open circuit bumps it
	// to the floor.
	if d := p.Decide(0, CauseCircuitOpen); d.Delay != 30*time.Second {
		t.Fatalf("delay = %v, want circuit floor 30s", d.Delay)
	}

	// Once exponential backoff exceeds the floor, the floor is moot.
	if d := p.Decide(6, CauseCircuitOpen); d.Delay != 64*time.Second {
		t.Fatalf("delay = %v, want 64s", d.Delay)
	}
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(0, 0, 0, 0)
	if p.BaseDelay != time.Second || p.MaxDelay != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.CircuitFloor != 30*time.Second || p.MaxRetries != 3 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
