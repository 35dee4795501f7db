package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := New()
	if f.Settled() {
		t.Fatal("new future already settled")
	}

	f.Resolve("value")

	// Later settles are no-ops.
	f.Resolve("second")
	f.Reject(errors.New("too late"))

	if !f.Settled() {
		t.Fatal("future not settled after resolve")
	}
	val, err := f.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "value" {
		t.Errorf("value = %v, want first settle to win", val)
	}
}

func TestFuture_RejectOnce(t *testing.T) {
	f := New()
	want := errors.New("boom")
	f.Reject(want)
	f.Resolve("too late")

	_, err := f.Result()
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestFuture_Await(t *testing.T) {
	f := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve(42)
	}()

	val, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if val != 42 {
		t.Errorf("val = %v", val)
	}
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if f.Settled() {
		t.Error("context cancellation must not settle the future")
	}
}
