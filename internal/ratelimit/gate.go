// Package ratelimit holds the per-session cooldown gate for ingest requests
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked sessions above which idle ones are dropped
const pruneThreshold = 1024

type session struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Gate admits one call per key per cooldown window
type Gate struct {
	mu       sync.Mutex
	sessions map[string]*session
	cooldown time.Duration
	now      func() time.Time
}

// NewGate creates a gate. A nil clock uses time.Now.
func NewGate(cooldown time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		sessions: make(map[string]*session),
		cooldown: cooldown,
		now:      now,
	}
}

// Allow records a call for key. When the previous admitted call is younger
// than the cooldown it returns the remaining wait and false.
func (g *Gate) Allow(key string) (time.Duration, bool) {
	if g.cooldown <= 0 {
		return 0, true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	s, ok := g.sessions[key]
	if !ok {
		s = &session{limiter: rate.NewLimiter(rate.Every(g.cooldown), 1)}
		g.sessions[key] = s
	}

	r := s.limiter.ReserveN(now, 1)
	// the limiter works in float tokens, sub-millisecond delays are rounding
	if wait := r.DelayFrom(now).Round(time.Millisecond); wait > 0 {
		r.CancelAt(now)
		return wait, false
	}
	s.seen = now

	if len(g.sessions) > pruneThreshold {
		g.prune(now)
	}
	return 0, true
}

// prune drops sessions whose bucket has refilled
func (g *Gate) prune(now time.Time) {
	for k, s := range g.sessions {
		if now.Sub(s.seen) >= g.cooldown {
			delete(g.sessions, k)
		}
	}
}

// Len reports the number of tracked sessions
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// SessionKey derives a gate key from a bearer token without retaining the token
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
