package rendezvous

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dBot/lib/wait"
	"slices"
	"testing"
	"time"
)

type session struct {
	name string
}

func TestPublishLookup(t *testing.T) {
	r := New[*session]()

	if _, ok := r.Lookup("a1"); ok {
		t.Fatal("empty registry returned a handle")
	}

	first := &session{name: "first"}
	if _, replaced := r.Publish("a1", first); replaced {
		t.Fatal("first publish reported a replacement")
	}
	if h, ok := r.Lookup("a1"); !ok || h != first {
		t.Fatalf("Lookup() = %v, %t", h, ok)
	}

	second := &session{name: "second"}
	prev, replaced := r.Publish("a1", second)
	if !replaced || prev != first {
		t.Fatalf("expected the first session to be replaced, got %v, %t", prev, replaced)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one entry, got %d", r.Len())
	}
}

func TestRemoveIf(t *testing.T) {
	r := New[*session]()
	old, current := &session{name: "old"}, &session{name: "current"}

	r.Publish("a1", old)
	r.Publish("a1", current)

	// The old session exits after the device reconnected
	if r.RemoveIf("a1", old) {
		t.Fatal("RemoveIf() removed the handle of a newer session")
	}
	if h, ok := r.Lookup("a1"); !ok || h != current {
		t.Fatalf("current session lost: %v, %t", h, ok)
	}

	if !r.RemoveIf("a1", current) {
		t.Fatal("RemoveIf() did not remove the matching handle")
	}
	if _, ok := r.Lookup("a1"); ok {
		t.Fatal("handle still present after RemoveIf()")
	}
	if r.RemoveIf("missing", current) {
		t.Fatal("RemoveIf() of a missing id reported success")
	}
	if r.Len() != 0 {
		t.Fatalf("RemoveIf() of a missing id created an entry")
	}
}

func TestKeysAndRemove(t *testing.T) {
	r := New[*session]()
	for _, id := range []string{"c", "a", "b"} {
		r.Publish(id, &session{name: id})
	}
	if keys := r.Keys(); !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected keys %v", keys)
	}

	r.Remove("b")
	if keys := r.Keys(); !slices.Equal(keys, []string{"a", "c"}) {
		t.Fatalf("unexpected keys after Remove() %v", keys)
	}
}

func TestAwait(t *testing.T) {
	r := New[*session]()
	spec := wait.Spec{WaitTime: 2 * time.Second, IntervalTime: 20 * time.Millisecond}

	s := &session{name: "late"}
	time.AfterFunc(100*time.Millisecond, func() { r.Publish("late", s) })

	start := time.Now()
	h, err := r.Await(context.Background(), "late", spec)
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if h != s {
		t.Fatalf("Await() returned the wrong handle %v", h)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Fatalf("unexpected wait of %s", elapsed)
	}
}

func TestAwaitTimeout(t *testing.T) {
	r := New[*session]()

	_, err := r.Await(context.Background(), "never", wait.Spec{WaitTime: 100 * time.Millisecond, IntervalTime: 20 * time.Millisecond})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = r.Await(context.Background(), "never", wait.Spec{WaitTime: 100 * time.Millisecond, IntervalTime: 20 * time.Millisecond}.WithRaise())
	if !errors.Is(err, wait.ErrOperationTimedOut) {
		t.Fatalf("expected ErrOperationTimedOut, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Await(ctx, "never", wait.DefaultSpec()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
