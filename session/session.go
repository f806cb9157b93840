/*
Package session ties an authenticated principal to its Backend Service
connection and its working set of leave records.

PURPOSE:
  A Session is created at login and passed explicitly to every operation.
  Nothing here is global: two sessions in one process never share a token,
  a record store or a principal.

LIFECYCLE:
  Engine.Login / Engine.Register / Engine.Resume   -> *Session (open)
  Session.Logout, or any Unauthenticated error     -> torn down (closed)

  Teardown is idempotent. It clears the record store (which also supersedes
  any reload still in flight), runs the registered hooks once, and makes
  every later operation fail with leave.ErrUnauthenticated.

SEE ALSO:
  - workflow.go: the operations a session performs
  - api/sessions.go: the gateway's registry of sessions
*/
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/metrics"
)

// Backend is the part of the Backend Service client a session uses.
// *backend.Client implements it.
type Backend interface {
	Login(ctx context.Context, email, password string) (backend.AuthResult, error)
	Register(ctx context.Context, r leave.Registration) (backend.AuthResult, error)
	Profile(ctx context.Context) (leave.Employee, error)
	ListEmployees(ctx context.Context) ([]leave.Employee, error)
	GetEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error)
	CreateEmployee(ctx context.Context, r leave.Registration) (leave.Employee, error)
	LeaveBalance(ctx context.Context, id leave.EmployeeID) (backend.Balance, error)
	ListAllLeaves(ctx context.Context, f backend.LeaveFilter) ([]leave.LeaveRequest, error)
	GetLeave(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error)
	CreateLeave(ctx context.Context, rec leave.LeaveRequest) (leave.LeaveRequest, error)
	UpdateLeaveStatus(ctx context.Context, id leave.RequestID, status leave.Status, comments string) (leave.LeaveRequest, error)
}

// Connector returns a Backend authenticated with token ("" for none).
type Connector func(token string) Backend

// Teardown causes.
const (
	CauseLogout          = "logout"
	CauseUnauthenticated = "unauthenticated"
	CauseExpired         = "expired"
)

// =============================================================================
// ENGINE - Dependencies shared by every session
// =============================================================================

type Engine struct {
	connect   Connector
	lifecycle *leave.LifecycleController
	policy    leave.AccessPolicy
	balance   *leave.BalanceCalculator
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
	pageLimit int
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock overrides the time source for reviews, submissions and expiry.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPageLimit sets the page size used when fetching full histories.
func WithPageLimit(n int) Option { return func(e *Engine) { e.pageLimit = n } }

func NewEngine(connect Connector, allocation int, opts ...Option) *Engine {
	e := &Engine{
		connect:   connect,
		lifecycle: leave.NewLifecycleController(),
		balance:   leave.NewBalanceCalculator(allocation),
		now:       time.Now,
		pageLimit: 100,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log).Named("leave.session")
	e.lifecycle.Now = e.now
	return e
}

// Allocation is the annual allocation used for balance snapshots.
func (e *Engine) Allocation() int { return e.balance.Allocation }

// Login authenticates against the Backend Service and opens a session.
func (e *Engine) Login(ctx context.Context, email, password string) (*Session, error) {
	b := e.connect("")
	res, err := b.Login(ctx, email, password)
	if err != nil {
		e.log.Warn("login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return e.open(b, res.Token, res.Employee), nil
}

// Register creates an account and opens a session for it.
func (e *Engine) Register(ctx context.Context, r leave.Registration) (*Session, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	b := e.connect("")
	res, err := b.Register(ctx, r)
	if err != nil {
		e.log.Warn("registration failed", zap.String("email", r.Email), zap.Error(err))
		return nil, err
	}
	return e.open(b, res.Token, res.Employee), nil
}

// Resume opens a session from a previously issued token by loading the
// profile it belongs to.
func (e *Engine) Resume(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, leave.ErrUnauthenticated.With("no token")
	}
	b := e.connect(token)
	emp, err := b.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return e.open(b, token, emp), nil
}

func (e *Engine) open(b Backend, token string, emp leave.Employee) *Session {
	records := leave.NewRecordStore()
	records.Now = e.now
	s := &Session{
		engine:    e,
		backend:   b,
		token:     token,
		employee:  emp,
		principal: emp.Principal(),
		expiresAt: tokenExpiry(token),
		records:   records,
		log: e.log.With(
			zap.String("employee_id", string(emp.ID)),
			zap.String("role", string(emp.Role))),
	}
	s.log.Info("session opened")
	return s
}

// tokenExpiry reads exp from a JWT without verifying it; the Backend
// Service remains the authority. Zero means unknown.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// =============================================================================
// SESSION
// =============================================================================

type Session struct {
	engine    *Engine
	backend   Backend
	token     string
	employee  leave.Employee
	principal leave.Principal
	expiresAt time.Time
	records   *leave.RecordStore
	log       *zap.Logger

	mu        sync.Mutex
	closed    bool
	cause     string
	callbacks []func(cause string)
}

func (s *Session) Principal() leave.Principal { return s.principal }

// Employee is the profile returned at login.
func (s *Session) Employee() leave.Employee { return s.employee }

func (s *Session) Token() string { return s.token }

// ExpiresAt is the token's exp claim, or zero when the token carries none.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Records exposes the session's working set.
func (s *Session) Records() *leave.RecordStore { return s.records }

// Expired reports whether the token's exp claim has passed.
func (s *Session) Expired() bool {
	return !s.expiresAt.IsZero() && !s.engine.now().Before(s.expiresAt)
}

// Closed reports whether the session was torn down, and why.
func (s *Session) Closed() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.cause
}

// OnTeardown registers fn to run once when the session is torn down. If it
// already was, fn runs immediately.
func (s *Session) OnTeardown(fn func(cause string)) {
	s.mu.Lock()
	if s.closed {
		cause := s.cause
		s.mu.Unlock()
		fn(cause)
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Logout tears the session down.
func (s *Session) Logout() { s.Teardown(CauseLogout) }

// Teardown discards all session state. Only the first call has any effect.
func (s *Session) Teardown(cause string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cause = cause
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	s.records.Clear()
	s.engine.metrics.IncTeardown(cause)
	s.log.Info("session torn down", zap.String("cause", cause))
	for _, fn := range callbacks {
		fn(cause)
	}
}

// check fails fast on a closed or expired session.
func (s *Session) check() error {
	if closed, cause := s.Closed(); closed {
		return leave.ErrUnauthenticated.With("session closed (%s)", cause)
	}
	if s.Expired() {
		s.Teardown(CauseExpired)
		return leave.ErrUnauthenticated.With("token expired at %s", s.expiresAt.Format(time.RFC3339))
	}
	return nil
}

// guard tears the session down on Unauthenticated and returns err unchanged.
func (s *Session) guard(err error) error {
	if leave.IsUnauthenticated(err) {
		s.Teardown(CauseUnauthenticated)
	}
	return err
}
