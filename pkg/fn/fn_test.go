package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unwrap = (%d, %v)", v, err)
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
	if e.Error() == nil || e.Error().Error() != "fail" {
		t.Fatalf("Error() = %v", e.Error())
	}
}

func TestFromPair(t *testing.T) {
	if !FromPair(1, nil).IsOk() {
		t.Fatal("nil error should be ok")
	}
	if FromPair(1, errors.New("x")).IsOk() {
		t.Fatal("non-nil error should be err")
	}
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(3), strconv.Itoa)
	if v, _ := r.Unwrap(); v != "3" {
		t.Fatalf("got %q", v)
	}
	e := MapResult(Err[int](errors.New("x")), strconv.Itoa)
	if e.IsOk() {
		t.Fatal("MapResult on Err should stay Err")
	}
}

// --- Slices ---

func TestFilterMap(t *testing.T) {
	got := FilterMap([]string{"1", "x", "3"}, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	})
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestFilterNeverNil(t *testing.T) {
	got := Filter([]int{1, 2}, func(int) bool { return false })
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestUniqueByKeepsFirst(t *testing.T) {
	type kv struct{ k, v string }
	got := UniqueBy([]kv{{"a", "1"}, {"b", "2"}, {"a", "3"}}, func(x kv) string { return x.k })
	if len(got) != 2 || got[0].v != "1" || got[1].v != "2" {
		t.Fatalf("got %v", got)
	}
}

func TestMap(t *testing.T) {
	got := Map([]int{1, 2}, func(n int) int { return n * 10 })
	if got[0] != 10 || got[1] != 20 {
		t.Fatalf("got %v", got)
	}
}

// --- Parallel ---

func TestParMapPreservesOrder(t *testing.T) {
	in := []int{5, 4, 3, 2, 1}
	var inflight, peak atomic.Int32
	got := ParMap(in, 2, func(n int) int {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Duration(n) * time.Millisecond)
		inflight.Add(-1)
		return n * n
	})
	for i, n := range in {
		if got[i] != n*n {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], n*n)
		}
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds 2", peak.Load())
	}
}

func TestParMapEmpty(t *testing.T) {
	if got := ParMap([]int{}, 3, func(n int) int { return n }); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

// --- Pipeline ---

func TestThenShortCircuits(t *testing.T) {
	called := false
	fail := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("stop")) })
	next := Stage[int, string](func(context.Context, int) Result[string] {
		called = true
		return Ok("x")
	})
	r := Then(fail, next)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("second stage should not run after failure")
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	s := TracedStage("double", MapStage(func(n int) int { return n * 2 }))
	if v, _ := s(context.Background(), 4).Unwrap(); v != 8 {
		t.Fatalf("got %d", v)
	}
}

// --- Retry ---

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		calls++
		if calls < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(calls)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Fatalf("got (%d, %v)", v, err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Hour}, func(context.Context) Result[int] {
		calls++
		cancel()
		return Err[int](errors.New("fail"))
	})
	if !errors.Is(r.Error(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", r.Error())
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
