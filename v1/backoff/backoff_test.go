package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
)

func TestPlain(t *testing.T) {
	f := Plain(50 * time.Millisecond)
	for i := 1; i <= 3; i++ {
		if d := f(i); d != 50*time.Millisecond {
			t.Fatalf("attempt %d: expected 50ms, got %v", i, d)
		}
	}
}

func TestAdditive(t *testing.T) {
	f := Additive(100*time.Millisecond, 100*time.Millisecond)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if d := f(i + 1); d != w {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, w, d)
		}
	}
}

func TestExponential(t *testing.T) {
	f := Exponential(100*time.Millisecond, 2)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if d := f(i + 1); d != w {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, w, d)
		}
	}
}

func TestGeneratorsAreRestartable(t *testing.T) {
	f := Exponential(10*time.Millisecond, 3)
	first := []time.Duration{f(1), f(2), f(3)}
	second := []time.Duration{f(1), f(2), f(3)}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sequence changed between runs: %v vs %v", first, second)
		}
	}
}

func TestCapped(t *testing.T) {
	f := Capped(Exponential(time.Second, 2), 3*time.Second)
	if d := f(2); d != 2*time.Second {
		t.Fatalf("expected 2s, got %v", d)
	}
	if d := f(10); d != 3*time.Second {
		t.Fatalf("expected cap 3s, got %v", d)
	}
}

func TestRetryFollowsGenerator(t *testing.T) {
	b := Additive(10*time.Millisecond, 10*time.Millisecond).Retry()
	for i, w := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		d, stop := b.Next()
		if stop || d != w {
			t.Fatalf("step %d: expected %v, got %v (stop %v)", i+1, w, d, stop)
		}
	}
	if d, _ := Exponential(time.Second, 2).Retry().Next(); d != time.Second {
		t.Fatalf("a new sequence must restart at attempt 1, got %v", d)
	}
	if d, _ := Plain(0).Retry().Next(); d <= 0 {
		t.Fatalf("expected a positive delay, got %v", d)
	}
}

func TestWithinStopsAtTimeout(t *testing.T) {
	b := Within(Plain(time.Hour), 30*time.Millisecond)
	d, stop := b.Next()
	if stop || d > 30*time.Millisecond {
		t.Fatalf("expected a delay clamped to the budget, got %v (stop %v)", d, stop)
	}
	time.Sleep(40 * time.Millisecond)
	if _, stop := b.Next(); !stop {
		t.Fatal("expected the sequence to stop after the timeout")
	}
}

func TestRetryDrivesRetryDo(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := retry.Do(context.Background(), retry.WithMaxRetries(2, Plain(time.Millisecond).Retry()), func(context.Context) error {
		calls++
		return retry.RetryableError(boom)
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("expected 3 calls ending in boom, got %d calls and %v", calls, err)
	}
}
