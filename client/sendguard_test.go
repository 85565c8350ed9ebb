package client

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSendGuardDuplicateWindow(t *testing.T) {
	g := NewSendGuard(time.Second, 10, 50*time.Millisecond)

	if err := g.Allow("Hello"); err != nil {
		t.Fatalf("expected first send to pass, got %v", err)
	}
	if err := g.Allow("Hello"); !errors.Is(err, ErrDuplicateSend) {
		t.Fatalf("expected immediate duplicate to be blocked, got %v", err)
	}
	if err := g.Allow("Hello!"); err != nil {
		t.Fatalf("expected different text to pass within window, got %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	if err := g.Allow("Hello!"); err != nil {
		t.Fatalf("expected same text to pass after window, got %v", err)
	}
}

func TestSendGuardRateLimit(t *testing.T) {
	g := NewSendGuard(time.Minute, 3, 0)

	for i := 0; i < 3; i++ {
		if err := g.Allow(fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("send %d should pass, got %v", i, err)
		}
	}
	if err := g.Allow("one too many"); !errors.Is(err, ErrSendTooFast) {
		t.Fatalf("expected rate limit after burst, got %v", err)
	}
}

func TestSendGuardRefills(t *testing.T) {
	g := NewSendGuard(100*time.Millisecond, 1, 0)

	if err := g.Allow("a"); err != nil {
		t.Fatalf("expected first send to pass, got %v", err)
	}
	if err := g.Allow("b"); !errors.Is(err, ErrSendTooFast) {
		t.Fatalf("expected empty bucket, got %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	if err := g.Allow("c"); err != nil {
		t.Fatalf("expected refilled bucket to pass, got %v", err)
	}
}
