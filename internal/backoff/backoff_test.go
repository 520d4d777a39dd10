package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Next(t *testing.T) {
	b := New(time.Second, 0, 5)

	want := []time.Duration{2, 4, 8, 16, 32, 32, 32}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w*time.Second)
		}
	}
	if b.Attempt() != len(want) {
		t.Errorf("Attempt() = %d, want %d", b.Attempt(), len(want))
	}
}

func TestBackoff_MaxCap(t *testing.T) {
	b := New(500*time.Millisecond, 3*time.Second, 0)

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := New(time.Second, time.Minute, 5)
	b.Next()
	b.Next()

	b.Reset()

	if b.Attempt() != 0 {
		t.Errorf("Attempt() after Reset = %d, want 0", b.Attempt())
	}
	if got := b.Next(); got != 2*time.Second {
		t.Errorf("Next() after Reset = %v, want 2s", got)
	}
}

func TestBackoff_LargeAttemptNoOverflow(t *testing.T) {
	b := New(time.Second, time.Hour, 0)
	for i := 0; i < 100; i++ {
		if d := b.Next(); d <= 0 || d > time.Hour {
			t.Fatalf("Next() = %v, want in (0, 1h]", d)
		}
	}
}

func TestSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep() did not return promptly on cancelled context")
	}
}

func TestSleep_Elapses(t *testing.T) {
	if err := Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Errorf("Sleep() error = %v, want nil", err)
	}
}
