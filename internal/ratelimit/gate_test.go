package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestGateCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	g := NewGate(5*time.Second, clock.now)

	_, ok := g.Allow("a")
	assert.True(t, ok)

	clock.t = clock.t.Add(2 * time.Second)
	wait, ok := g.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 3*time.Second, wait)

	_, ok = g.Allow("b")
	assert.True(t, ok, "keys are independent")

	clock.t = clock.t.Add(3 * time.Second)
	_, ok = g.Allow("a")
	assert.True(t, ok)
}

func TestGateRejectedCallsDoNotExtendWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	g := NewGate(10*time.Second, clock.now)

	g.Allow("a")
	clock.t = clock.t.Add(9 * time.Second)
	_, ok := g.Allow("a")
	assert.False(t, ok)

	clock.t = clock.t.Add(time.Second)
	_, ok = g.Allow("a")
	assert.True(t, ok)
}

func TestGateRejectedCallsKeepToken(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	g := NewGate(4*time.Second, clock.now)

	g.Allow("a")
	for _, step := range []time.Duration{time.Second, time.Second, time.Second} {
		clock.t = clock.t.Add(step)
		_, ok := g.Allow("a")
		assert.False(t, ok)
	}

	clock.t = clock.t.Add(time.Second)
	wait, ok := g.Allow("a")
	assert.True(t, ok)
	assert.Zero(t, wait)
}

func TestGatePrunesIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	g := NewGate(time.Minute, clock.now)

	for i := 0; i < pruneThreshold; i++ {
		_, ok := g.Allow(fmt.Sprintf("idle-%d", i))
		assert.True(t, ok)
	}
	assert.Equal(t, pruneThreshold, g.Len())

	clock.t = clock.t.Add(time.Minute - time.Second)
	g.Allow("recent")

	clock.t = clock.t.Add(time.Second)
	_, ok := g.Allow("fresh")
	assert.True(t, ok)
	assert.Equal(t, 2, g.Len(), "only sessions inside the window are kept")

	wait, ok := g.Allow("recent")
	assert.False(t, ok, "pruning keeps live cooldowns")
	assert.Equal(t, 59*time.Second, wait)
}

func TestGateDisabled(t *testing.T) {
	g := NewGate(0, nil)
	for i := 0; i < 3; i++ {
		_, ok := g.Allow("a")
		assert.True(t, ok)
	}
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, SessionKey("token"), SessionKey("token"))
	assert.NotEqual(t, SessionKey("token"), SessionKey("other"))
	assert.Len(t, SessionKey("token"), 64)
	assert.NotContains(t, SessionKey("token"), "token")
}
