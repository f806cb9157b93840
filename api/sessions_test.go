package api

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/session"
)

// clock is a settable time source for the registry.
type clock struct{ t atomic.Pointer[time.Time] }

func newClock(t time.Time) *clock {
	c := &clock{}
	c.set(t)
	return c
}

func (c *clock) now() time.Time { return *c.t.Load() }
func (c *clock) set(t time.Time) { c.t.Store(&t) }
func (c *clock) advance(d time.Duration) {
	c.set(c.now().Add(d))
}

func TestSessions_IdleSessionExpiresOnLookup(t *testing.T) {
	// GIVEN: a session last used at t0 with a one hour TTL
	g := newGateway(t)
	clk := newClock(time.Now())
	g.sessions.now = clk.now
	sid := g.login(t, "john@company.com")
	sess, ok := g.sessions.Get(sid)
	require.True(t, ok)

	// WHEN: it is used again within the TTL, then left idle past it
	clk.advance(50 * time.Minute)
	_, ok = g.sessions.Get(sid)
	require.True(t, ok, "use refreshes the idle timer")
	clk.advance(61 * time.Minute)

	// THEN: the next request finds nothing and the session is torn down
	rec := g.do(t, http.MethodGet, "/api/session", sid, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	closed, cause := sess.Closed()
	assert.True(t, closed)
	assert.Equal(t, session.CauseExpired, cause)
	assert.Zero(t, g.sessions.Len())
}

func TestSessions_Sweep(t *testing.T) {
	g := newGateway(t)
	clk := newClock(time.Now())
	g.sessions.now = clk.now

	stale := g.login(t, "john@company.com")
	clk.advance(45 * time.Minute)
	fresh := g.login(t, "jane@company.com")
	clk.advance(30 * time.Minute)

	removed := g.sessions.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, g.sessions.Len())
	_, ok := g.sessions.Get(stale)
	assert.False(t, ok)
	_, ok = g.sessions.Get(fresh)
	assert.True(t, ok)
}

func TestSessions_CloseAll(t *testing.T) {
	g := newGateway(t)
	a := g.login(t, "john@company.com")
	g.login(t, "hr@company.com")
	sess, _ := g.sessions.Get(a)

	g.sessions.CloseAll()

	assert.Zero(t, g.sessions.Len())
	closed, cause := sess.Closed()
	assert.True(t, closed)
	assert.Equal(t, session.CauseLogout, cause)
}

func TestSessions_UnknownIDs(t *testing.T) {
	s := NewSessions(time.Hour, nil, nil)

	_, ok := s.Get("")
	assert.False(t, ok)
	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, s.Sweep())
}

func TestSweeper_RemovesIdleSessions(t *testing.T) {
	// GIVEN: a session already past its TTL and a running sweeper
	g := newGateway(t)
	clk := newClock(time.Now())
	g.sessions.now = clk.now
	g.login(t, "john@company.com")
	clk.advance(2 * time.Hour)

	sw := NewSweeper(g.sessions, 10*time.Millisecond, nil)
	sw.Start()
	sw.Start()
	defer sw.Stop()

	// THEN: it is removed without any request arriving
	assert.Eventually(t, func() bool { return g.sessions.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSweeper_StopIsIdempotent(t *testing.T) {
	sw := NewSweeper(NewSessions(time.Hour, nil, nil), 0, nil)
	assert.Equal(t, time.Minute, sw.Interval)

	sw.Stop()
	sw.Start()
	sw.Stop()
	sw.Stop()
}
