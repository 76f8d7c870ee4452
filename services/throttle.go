package services

import (
	"sync"
	"time"
)

const (
	TournamentRefreshWindow   = 5 * time.Second
	RegistrationRefreshWindow = 8 * time.Second
)

// throttle пропускает вызов, только если с последнего успешного прошло window.
type throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

func newThrottle(window time.Duration) *throttle {
	return &throttle{window: window}
}

func (t *throttle) ready(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last.IsZero() || now.Sub(t.last) >= t.window
}

func (t *throttle) mark(now time.Time) {
	t.mu.Lock()
	t.last = now
	t.mu.Unlock()
}
