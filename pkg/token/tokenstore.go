package tokenstore

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store holds the session bearer token and the identity claims parsed out of
// it. The client does not verify the signature (it has no secret); the server
// is the authority. Parsing here only extracts sub and exp for local use.
type Store struct {
	mu     sync.RWMutex
	token  string
	userID int64
	expiry time.Time
}

var ErrNoToken = errors.New("no token set")

func NewStore() *Store {
	return &Store{}
}

// Set installs a bearer token and extracts the user id from its sub claim.
func (s *Store) Set(token string) error {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return err
	}

	var uid int64
	switch sub := claims["sub"].(type) {
	case string:
		v, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return errors.New("invalid subject in token")
		}
		uid = v
	case float64:
		uid = int64(sub)
	default:
		return errors.New("missing subject in token")
	}

	var exp time.Time
	if ef, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(ef), 0)
	}

	s.mu.Lock()
	s.token = token
	s.userID = uid
	s.expiry = exp
	s.mu.Unlock()
	return nil
}

// Token returns the current bearer token, or ErrNoToken.
func (s *Store) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// UserID returns the id parsed from the token's sub claim (0 when unset).
func (s *Store) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Expired reports whether the token carried an exp claim that has passed.
func (s *Store) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !s.expiry.IsZero() && time.Now().After(s.expiry)
}

// Clear drops the token on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.userID = 0
	s.expiry = time.Time{}
	s.mu.Unlock()
}
