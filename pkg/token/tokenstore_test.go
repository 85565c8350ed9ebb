package tokenstore

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestSetParsesSubject(t *testing.T) {
	s := NewStore()
	if err := s.Set(signed(t, jwt.MapClaims{"sub": "42"})); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.UserID(); got != 42 {
		t.Fatalf("expected user id 42, got %d", got)
	}
	if _, err := s.Token(); err != nil {
		t.Fatalf("expected token present, got %v", err)
	}
}

func TestSetAcceptsNumericSubject(t *testing.T) {
	s := NewStore()
	if err := s.Set(signed(t, jwt.MapClaims{"sub": 7})); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.UserID(); got != 7 {
		t.Fatalf("expected user id 7, got %d", got)
	}
}

func TestSetRejectsMissingSubject(t *testing.T) {
	s := NewStore()
	if err := s.Set(signed(t, jwt.MapClaims{"foo": "bar"})); err == nil {
		t.Fatalf("expected error for token without sub")
	}
}

func TestExpired(t *testing.T) {
	s := NewStore()
	if err := s.Set(signed(t, jwt.MapClaims{"sub": "1", "exp": float64(time.Now().Add(-time.Minute).Unix())})); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.Expired() {
		t.Fatalf("expected expired token to report Expired")
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	if err := s.Set(signed(t, jwt.MapClaims{"sub": "1"})); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Clear()
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after clear, got %v", err)
	}
	if s.UserID() != 0 {
		t.Fatalf("expected user id reset after clear")
	}
}
