package netwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	seen []bool
}

func (r *recorder) SetOnline(_ context.Context, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, online)
}

func (r *recorder) transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.seen...)
}

func TestWatcher_ReportsTransitionsOnly(t *testing.T) {
	results := []error{nil, nil, errors.New("down"), errors.New("down"), nil}
	var mu sync.Mutex
	calls := 0
	probe := ProbeFunc(func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		calls++
		if i < len(results) {
			return results[i]
		}
		return nil
	})

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(probe, rec, time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n > len(results) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for probes")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	got := rec.transitions()
	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	New(ProbeFunc(func(ctx context.Context) error { return ctx.Err() }), rec, time.Hour, nil).Run(ctx)
	if len(rec.transitions()) != 0 {
		t.Errorf("expected no transitions after cancel, got %v", rec.transitions())
	}
}
