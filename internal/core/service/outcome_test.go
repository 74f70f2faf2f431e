package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOutcome_FirstResolutionWins(t *testing.T) {
	o := NewOutcome[string]()

	if !o.Resolve("from-http", "http") {
		t.Fatal("first resolve must win")
	}
	if o.Resolve("from-sse", "sse") {
		t.Error("second resolve must be a no-op")
	}
	if o.Fail(errors.New("late"), "sse") {
		t.Error("fail after resolve must be a no-op")
	}

	v, settled, err := o.Settled()
	if !settled || err != nil || v != "from-http" {
		t.Errorf("unexpected result: %q %v %v", v, settled, err)
	}
	if o.Source() != "http" {
		t.Errorf("expected source http, got %q", o.Source())
	}
}

func TestOutcome_ConcurrentResolversSettleOnce(t *testing.T) {
	o := NewOutcome[int]()
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if o.Resolve(i, "race") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestOutcome_Wait(t *testing.T) {
	o := NewOutcome[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		o.Resolve(7, "sse")
	}()

	v, err := o.Wait(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("expected 7, got %d (%v)", v, err)
	}

	pending := NewOutcome[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := pending.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if _, settled, _ := pending.Settled(); settled {
		t.Error("timing out must not settle the outcome")
	}
}
