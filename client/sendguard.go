package client

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrSendTooFast   = errors.New("sending too fast, slow down")
	ErrDuplicateSend = errors.New("identical message just sent")
)

// SendGuard paces outbound sends with a token bucket and rejects an exact
// repeat of the previous text inside a short window. It sits in front of the
// composer at the UI layer; text that passes the guard is always appended
// optimistically.
type SendGuard struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	window     time.Duration
	lastRefill time.Time
	lastText   string
	lastSentAt time.Time
	dupWindow  time.Duration
}

func NewSendGuard(window time.Duration, capacity int, dupWindow time.Duration) *SendGuard {
	if capacity <= 0 {
		capacity = 5
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &SendGuard{
		tokens:     capacity,
		capacity:   capacity,
		window:     window,
		lastRefill: time.Now(),
		dupWindow:  dupWindow,
	}
}

// Allow checks text against both guards and consumes one token on success.
func (g *SendGuard) Allow(text string) error {
	text = strings.TrimSpace(text)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dupWindow > 0 && text == g.lastText && now.Sub(g.lastSentAt) < g.dupWindow {
		return ErrDuplicateSend
	}

	elapsed := now.Sub(g.lastRefill)
	if elapsed > 0 {
		add := int(float64(g.capacity) * (float64(elapsed) / float64(g.window)))
		if add > 0 {
			g.tokens += add
			if g.tokens > g.capacity {
				g.tokens = g.capacity
			}
			g.lastRefill = now
		}
	}
	if g.tokens <= 0 {
		return ErrSendTooFast
	}
	g.tokens--
	g.lastText = text
	g.lastSentAt = now
	return nil
}
