package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"wishd/security/token"
)

type abuseSpy struct {
	origins []string
}

func (a *abuseSpy) Record(origin string, _ time.Time) {
	a.origins = append(a.origins, origin)
}

func testLimiter(abuse AbuseSink) (*Limiter, *MemoryStore) {
	store := NewMemoryStore()
	return NewLimiter(DefaultConfig(), store, abuse, nil), store
}

// drive makes n admitted-or-not requests with the same token and returns
// the last decision.
func drive(t *testing.T, l *Limiter, now time.Time, tok string, n int) Decision {
	t.Helper()
	var d Decision
	for i := 0; i < n; i++ {
		d = l.Admit(context.Background(), now, tok, "203.0.113.7")
	}
	return d
}

func TestAdmit_MintsFreshTracker(t *testing.T) {
	l, store := testLimiter(nil)
	now := time.Now().UTC()

	for _, tok := range []string{"", "garbage", "almost-but-not-a-token!!"} {
		d := l.Admit(context.Background(), now, tok, "203.0.113.7")
		if !d.Admitted {
			t.Fatalf("fresh client rejected (token %q)", tok)
		}
		if !token.Valid(d.NewToken) {
			t.Fatalf("minted token fails grammar: %q", d.NewToken)
		}
		e, ok := store.Snapshot(d.NewToken)
		if !ok || e.RequestCount != 1 {
			t.Fatalf("minted entry = %+v, want count 1", e)
		}
	}
}

func TestAdmit_StaleTokenMintsFresh(t *testing.T) {
	l, _ := testLimiter(nil)
	now := time.Now().UTC()

	// Grammar-valid token that no tracker backs.
	stale, err := token.New()
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}

	d := l.Admit(context.Background(), now, stale, "203.0.113.7")
	if !d.Admitted {
		t.Fatalf("stale-token client rejected")
	}
	if d.NewToken == "" || d.NewToken == stale {
		t.Fatalf("expected a fresh tracker token, got %q", d.NewToken)
	}
}

func TestAdmit_LimitIsStrict(t *testing.T) {
	l, _ := testLimiter(nil)
	now := time.Now().UTC()

	first := l.Admit(context.Background(), now, "", "203.0.113.7")
	tok := first.NewToken

	// The mint was request 1; drive the counter to exactly the limit.
	d := drive(t, l, now, tok, int(DefaultConfig().Limit)-1)
	if !d.Admitted {
		t.Fatalf("request at exactly the limit was rejected")
	}

	// One more trips the strict comparison.
	d = l.Admit(context.Background(), now, tok, "203.0.113.7")
	if d.Admitted {
		t.Fatalf("request beyond the limit was admitted")
	}
}

func TestAdmit_AbuseThreshold(t *testing.T) {
	cfg := DefaultConfig() // limit 60, excess 10

	t.Run("light_excess_not_reported", func(t *testing.T) {
		spy := &abuseSpy{}
		l := NewLimiter(cfg, NewMemoryStore(), spy, nil)
		now := time.Now().UTC()

		tok := l.Admit(context.Background(), now, "", "203.0.113.7").NewToken
		// Counter reaches 61: rejected, excess 1 < 10 so no abuse record.
		d := drive(t, l, now, tok, 60)
		if d.Admitted {
			t.Fatalf("expected rejection at count 61")
		}
		if len(spy.origins) != 0 {
			t.Fatalf("light excess reported abuse: %v", spy.origins)
		}
	})

	t.Run("heavy_excess_reported", func(t *testing.T) {
		spy := &abuseSpy{}
		l := NewLimiter(cfg, NewMemoryStore(), spy, nil)
		now := time.Now().UTC()

		tok := l.Admit(context.Background(), now, "", "203.0.113.7").NewToken
		// Counter reaches 75: every rejection past 70 reports abuse.
		drive(t, l, now, tok, 74)
		if len(spy.origins) == 0 {
			t.Fatalf("heavy excess not reported")
		}
		if spy.origins[0] != "203.0.113.7" {
			t.Fatalf("origin = %q, want 203.0.113.7", spy.origins[0])
		}
	})
}

type errStore struct{}

func (errStore) Mint(context.Context, time.Time, string) error { return errors.New("store down") }
func (errStore) Increment(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("store down")
}
func (errStore) Replenish(context.Context, time.Time, time.Time) (int64, error) {
	return 0, errors.New("store down")
}
func (errStore) DeleteIdle(context.Context, time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func TestAdmit_FailsOpenOnStoreError(t *testing.T) {
	l := NewLimiter(DefaultConfig(), errStore{}, nil, nil)
	now := time.Now().UTC()

	// Fresh client: mint fails, still admitted, no token handed out.
	d := l.Admit(context.Background(), now, "", "203.0.113.7")
	if !d.Admitted {
		t.Fatalf("store outage rejected a fresh client")
	}
	if d.NewToken != "" {
		t.Fatalf("unexpected token %q from failed mint", d.NewToken)
	}

	// Tracked client: increment fails, still admitted.
	tok, _ := token.New()
	d = l.Admit(context.Background(), now, tok, "203.0.113.7")
	if !d.Admitted {
		t.Fatalf("store outage rejected a tracked client")
	}
}

func TestReplenish_HalvesWithFloor(t *testing.T) {
	l, store := testLimiter(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	tok := l.Admit(ctx, now, "", "203.0.113.7").NewToken
	drive(t, l, now, tok, 74) // counter = 75

	want := []int64{37, 18, 9, 4, 2, 1, 0, 0}
	for i, w := range want {
		at := now.Add(time.Duration(i+1) * time.Minute)
		if _, err := l.Replenish(ctx, at); err != nil {
			t.Fatalf("Replenish #%d: %v", i, err)
		}
		e, ok := store.Snapshot(tok)
		if !ok {
			t.Fatalf("tracker vanished during replenish")
		}
		if e.RequestCount != w {
			t.Fatalf("after %d halvings count = %d, want %d", i+1, e.RequestCount, w)
		}
		if e.RequestCount < 0 {
			t.Fatalf("count went negative: %d", e.RequestCount)
		}
	}
}

func TestReplenish_SkipsYoungWindows(t *testing.T) {
	l, store := testLimiter(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	tok := l.Admit(ctx, now, "", "203.0.113.7").NewToken
	drive(t, l, now, tok, 9) // counter = 10

	// Window is younger than cfg.Window: nothing halves.
	if _, err := l.Replenish(ctx, now.Add(time.Second)); err != nil {
		t.Fatalf("Replenish: %v", err)
	}
	if e, _ := store.Snapshot(tok); e.RequestCount != 10 {
		t.Fatalf("young tracker halved: count = %d, want 10", e.RequestCount)
	}
}

func TestSweep_RemovesZeroedStaleOnly(t *testing.T) {
	l, store := testLimiter(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	busy := l.Admit(ctx, now, "", "203.0.113.7").NewToken  // count 1
	idle := l.Admit(ctx, now, "", "203.0.113.8").NewToken  // will be zeroed
	fresh := l.Admit(ctx, now, "", "203.0.113.9").NewToken // zeroed but young

	// Zero the idle tracker by replenishing past its window.
	if _, err := l.Replenish(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("Replenish: %v", err)
	}
	// busy went 1 -> 0 as well; bump it back up so it is non-zero.
	if _, _, err := store.Increment(ctx, busy); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	// fresh stays zeroed but has a young window after the replenish reset;
	// idle is made artificially old.
	store.mu.Lock()
	store.entries[idle].WindowStartedAt = now.Add(-2 * time.Hour)
	store.mu.Unlock()

	n, err := l.Sweep(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}

	if _, ok := store.Snapshot(idle); ok {
		t.Fatalf("stale zeroed tracker survived the sweep")
	}
	if _, ok := store.Snapshot(busy); !ok {
		t.Fatalf("busy tracker swept")
	}
	if _, ok := store.Snapshot(fresh); !ok {
		t.Fatalf("young zeroed tracker swept")
	}
}
