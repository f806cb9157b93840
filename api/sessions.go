/*
sessions.go - Gateway registry of open sessions

PURPOSE:
  Maps the opaque X-Session-ID handed to the View Layer onto a
  *session.Session. The Backend Service token never leaves the gateway.

EXPIRY:
  A session idle for longer than the TTL is torn down (cause "expired") on
  its next lookup or by the sweeper, whichever comes first. A session torn
  down for any other reason (logout, Unauthenticated from the backend)
  removes itself through its OnTeardown hook.

SEE ALSO:
  - sweeper.go: periodic removal of idle sessions
  - session/session.go: teardown semantics
*/
package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/session"
)

// SessionHeader carries the session id on every authenticated request.
const SessionHeader = "X-Session-ID"

type sessionEntry struct {
	sess     *session.Session
	lastSeen time.Time
}

type Sessions struct {
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	log     *zap.Logger

	mu    sync.Mutex
	items map[string]*sessionEntry
}

func NewSessions(ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *Sessions {
	return &Sessions{
		ttl:     ttl,
		now:     time.Now,
		metrics: m,
		log:     logging.OrNop(log).Named("api.sessions"),
		items:   make(map[string]*sessionEntry),
	}
}

// Add registers sess under a fresh id.
func (s *Sessions) Add(sess *session.Session) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.items[id] = &sessionEntry{sess: sess, lastSeen: s.now()}
	n := len(s.items)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	sess.OnTeardown(func(cause string) { s.remove(id, cause) })
	return id
}

// Get returns the live session for id and marks it as used.
func (s *Sessions) Get(id string) (*session.Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	e, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.idle(e, now) {
		s.mu.Unlock()
		e.sess.Teardown(session.CauseExpired)
		return nil, false
	}
	e.lastSeen = now
	s.mu.Unlock()
	return e.sess, true
}

// Sweep tears down every idle session and returns how many it removed.
func (s *Sessions) Sweep() int {
	now := s.now()
	var expired []*session.Session

	s.mu.Lock()
	for _, e := range s.items {
		if s.idle(e, now) {
			expired = append(expired, e.sess)
		}
	}
	s.mu.Unlock()

	// Teardown calls back into remove; the lock must not be held here.
	for _, sess := range expired {
		sess.Teardown(session.CauseExpired)
	}
	return len(expired)
}

// CloseAll tears down every session, for shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := make([]*session.Session, 0, len(s.items))
	for _, e := range s.items {
		all = append(all, e.sess)
	}
	s.mu.Unlock()

	for _, sess := range all {
		sess.Logout()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) idle(e *sessionEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

func (s *Sessions) remove(id, cause string) {
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	n := len(s.items)
	s.mu.Unlock()

	if ok {
		s.metrics.SetActiveSessions(n)
		s.log.Debug("session removed", zap.String("session_id", id), zap.String("cause", cause))
	}
}
