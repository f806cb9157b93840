/*
Package mockbackend is a local stand-in for the Backend Service.

PURPOSE:
  Implements the REST surface the backend client speaks, over SQLite, so the
  gateway can be run and tested end to end without the hosted service.
  Authorization and review rules reuse the leave package, so the mock and
  the engine cannot disagree about who may do what.

ENDPOINTS (all under /api, JSON envelope {success, message, data, ...}):
  POST   /auth/login                   {email, password} -> token + employee
  POST   /auth/register                registration     -> token + employee
  GET    /auth/profile                 caller's employee record
  GET    /employees                    HR/Admin
  POST   /employees                    HR/Admin
  GET    /employees/{id}               self or HR/Admin
  GET    /employees/{id}/leave-balance self or HR/Admin
  GET    /leaves                       paged; employees only see their own
  POST   /leaves                       submit for self
  GET    /leaves/{id}                  owner or HR/Admin
  PATCH  /leaves/{id}                  {status, reviewComments}, HR/Admin

STATUS CODES:
  400 invalid input or review target, 401 missing, invalid or expired
  token, 403 role denied, 404 unknown id, 409 duplicate email or review of a
  non-pending leave.

SEE ALSO:
  - backend/client.go: the client this serves
  - store/sqlite: persistence
  - seed.go: demo data
*/
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/store/sqlite"
)

// DefaultPageSize is used when GET /leaves carries no limit.
const DefaultPageSize = 10

type Server struct {
	store     *sqlite.Store
	tokens    *TokenService
	lifecycle *leave.LifecycleController
	policy    leave.AccessPolicy
	log       *zap.Logger

	// Allocation is the leaveBalance new employees start with.
	Allocation int
}

func NewServer(store *sqlite.Store, tokens *TokenService, log *zap.Logger) *Server {
	return &Server{
		store:      store,
		tokens:     tokens,
		lifecycle:  leave.NewLifecycleController(),
		log:        logging.OrNop(log).Named("mockbackend"),
		Allocation: leave.DefaultAllocation,
	}
}

// Router returns the HTTP handler with every route mounted under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/profile", s.profile)

			r.Get("/employees", s.listEmployees)
			r.Post("/employees", s.createEmployee)
			r.Get("/employees/{id}", s.getEmployee)
			r.Get("/employees/{id}/leave-balance", s.leaveBalance)

			r.Get("/leaves", s.listLeaves)
			r.Post("/leaves", s.createLeave)
			r.Get("/leaves/{id}", s.getLeave)
			r.Patch("/leaves/{id}", s.reviewLeave)
		})
	})
	return r
}

// =============================================================================
// AUTH
// =============================================================================

type claimsKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) {
			fail(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		claims, err := s.tokens.Validate(strings.TrimPrefix(header, prefix))
		if err != nil {
			fail(w, http.StatusUnauthorized, "Not authorized, "+err.Error())
			return
		}
		emp, err := s.store.GetEmployee(r.Context(), claims.EmployeeID)
		if err != nil {
			s.internal(w, err)
			return
		}
		if emp == nil || !emp.IsActive {
			fail(w, http.StatusUnauthorized, "Not authorized, account unavailable")
			return
		}
		// The stored role wins over the role at issue time.
		claims.Role = emp.Role
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func principalOf(r *http.Request) leave.Principal {
	claims, _ := r.Context().Value(claimsKey{}).(*Claims)
	if claims == nil {
		return leave.Principal{}
	}
	return claims.Principal()
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req backend.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Please provide email and password")
		return
	}

	emp, err := s.store.GetEmployeeByEmail(r.Context(), req.Email)
	if err != nil {
		s.internal(w, err)
		return
	}
	if emp == nil || !CheckPassword(emp.PasswordHash, req.Password) {
		s.log.Info("login rejected", zap.String("email", req.Email))
		fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !emp.IsActive {
		fail(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}
	s.respondWithToken(w, http.StatusOK, *emp)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	emp, ok := s.decodeAndCreate(w, r)
	if !ok {
		return
	}
	s.respondWithToken(w, http.StatusCreated, emp)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, emp sqlite.Employee) {
	token, err := s.tokens.Issue(emp.ID, emp.Role)
	if err != nil {
		s.internal(w, err)
		return
	}
	respond(w, status, envelope{Token: token, Data: employeeDTO(emp)})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.writeEmployee(w, r, string(principalOf(r).EmployeeID))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	if !s.policy.CanManageEmployees(principalOf(r)) {
		fail(w, http.StatusForbidden, "Not authorized to list employees")
		return
	}
	employees, err := s.store.ListEmployees(r.Context())
	if err != nil {
		s.internal(w, err)
		return
	}
	out := make([]backend.Employee, len(employees))
	for i, e := range employees {
		out[i] = employeeDTO(e)
	}
	respond(w, http.StatusOK, envelope{Count: len(out), Data: out})
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) {
	if !s.policy.CanManageEmployees(principalOf(r)) {
		fail(w, http.StatusForbidden, "Not authorized to add employees")
		return
	}
	emp, ok := s.decodeAndCreate(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusCreated, envelope{Data: employeeDTO(emp)})
}

// decodeAndCreate validates a registration body with the same rules the
// engine applies and stores the new employee. It writes the failure response
// itself and reports false on error.
func (s *Server) decodeAndCreate(w http.ResponseWriter, r *http.Request) (sqlite.Employee, bool) {
	var req backend.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return sqlite.Employee{}, false
	}
	joined, err := leave.ParseDay(req.JoiningDate)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return sqlite.Employee{}, false
	}
	reg := leave.Registration{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.Password,
		Department:      req.Department,
		Role:            leave.Role(req.Role),
		JoiningDate:     joined,
	}
	if err := reg.Validate(); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return sqlite.Employee{}, false
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.internal(w, err)
		return sqlite.Employee{}, false
	}
	emp := sqlite.Employee{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Department:   strings.TrimSpace(req.Department),
		Role:         req.Role,
		JoiningDate:  joined,
		LeaveBalance: s.Allocation,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveEmployee(r.Context(), emp); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateEmail) {
			fail(w, http.StatusConflict, "User already exists")
			return sqlite.Employee{}, false
		}
		s.internal(w, err)
		return sqlite.Employee{}, false
	}
	emp.Email = strings.ToLower(emp.Email)
	s.log.Info("employee created", zap.String("employee_id", emp.ID), zap.String("role", emp.Role))
	return emp, true
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.canSeeEmployee(principalOf(r), id) {
		fail(w, http.StatusForbidden, "Not authorized to view this employee")
		return
	}
	s.writeEmployee(w, r, id)
}

func (s *Server) writeEmployee(w http.ResponseWriter, r *http.Request, id string) {
	emp, err := s.store.GetEmployee(r.Context(), id)
	if err != nil {
		s.internal(w, err)
		return
	}
	if emp == nil {
		fail(w, http.StatusNotFound, "Employee not found")
		return
	}
	respond(w, http.StatusOK, envelope{Data: employeeDTO(*emp)})
}

func (s *Server) leaveBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.canSeeEmployee(principalOf(r), id) {
		fail(w, http.StatusForbidden, "Not authorized to view this balance")
		return
	}
	emp, err := s.store.GetEmployee(r.Context(), id)
	if err != nil {
		s.internal(w, err)
		return
	}
	if emp == nil {
		fail(w, http.StatusNotFound, "Employee not found")
		return
	}
	respond(w, http.StatusOK, envelope{Data: backend.Balance{
		EmployeeID:     emp.ID,
		Name:           emp.Name,
		Department:     emp.Department,
		CurrentBalance: emp.LeaveBalance,
	}})
}

func (s *Server) canSeeEmployee(p leave.Principal, id string) bool {
	return string(p.EmployeeID) == id || s.policy.CanManageEmployees(p)
}

// =============================================================================
// LEAVES
// =============================================================================

func (s *Server) listLeaves(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r)
	q := r.URL.Query()

	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), DefaultPageSize)
	if page < 1 || limit < 1 {
		fail(w, http.StatusBadRequest, "page and limit must be positive")
		return
	}
	from, err := leave.ParseDay(q.Get("dateFrom"))
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := leave.ParseDay(q.Get("dateTo"))
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := sqlite.LeaveFilter{
		EmployeeID: q.Get("employeeId"),
		Status:     q.Get("status"),
		Department: q.Get("department"),
		DateFrom:   from,
		DateTo:     to,
		Search:     q.Get("search"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	if !s.policy.Can(p, leave.CapViewAllLeaves) {
		filter.EmployeeID = string(p.EmployeeID)
	}

	leaves, total, err := s.store.ListLeaves(r.Context(), filter)
	if err != nil {
		s.internal(w, err)
		return
	}
	out := make([]backend.Leave, len(leaves))
	for i, l := range leaves {
		out[i] = leaveDTO(l)
	}
	respond(w, http.StatusOK, envelope{
		Count: len(out),
		Pagination: &backend.Pagination{
			Current: page,
			Pages:   max((total+limit-1)/limit, 1),
			Total:   total,
			Limit:   limit,
		},
		Data: out,
	})
}

func (s *Server) createLeave(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r)

	var req backend.CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	start, err1 := leave.ParseDay(req.StartDate)
	end, err2 := leave.ParseDay(req.EndDate)
	if err := errors.Join(err1, err2); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	c := leave.Candidate{
		EmployeeID:    leave.EmployeeID(req.EmployeeID),
		StartDate:     start,
		EndDate:       end,
		DaysRequested: req.DaysRequested,
		Reason:        req.Reason,
	}
	if c.EmployeeID == "" {
		c.EmployeeID = p.EmployeeID
	}

	rec, err := s.lifecycle.Submit(p, c)
	if err != nil {
		fail(w, statusOf(err), err.Error())
		return
	}

	stored := sqlite.Leave{
		ID:            uuid.NewString(),
		EmployeeID:    string(rec.EmployeeID),
		StartDate:     rec.StartDate,
		EndDate:       rec.EndDate,
		DaysRequested: rec.DaysRequested,
		Reason:        rec.Reason,
		Status:        string(leave.StatusPending),
		CreatedAt:     rec.CreatedAt,
	}
	if err := s.store.SaveLeave(r.Context(), stored); err != nil {
		s.internal(w, err)
		return
	}
	s.writeLeave(w, r, stored.ID, http.StatusCreated)
}

func (s *Server) getLeave(w http.ResponseWriter, r *http.Request) {
	l, ok := s.visibleLeave(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, envelope{Data: leaveDTO(*l)})
}

func (s *Server) reviewLeave(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r)

	var req backend.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Authority first: a principal without it learns nothing about the id.
	if !s.policy.HasReviewAuthority(p) {
		fail(w, http.StatusForbidden, "Not authorized to review leave requests")
		return
	}
	l, ok := s.visibleLeave(w, r)
	if !ok {
		return
	}

	rec, err := s.lifecycle.Transition(p, leaveDomain(*l), leave.Status(req.Status), req.ReviewComments)
	if err != nil {
		fail(w, statusOf(err), err.Error())
		return
	}

	err = s.store.ReviewLeave(r.Context(), l.ID, string(rec.Status), rec.ReviewComments, string(p.EmployeeID), *rec.ReviewedAt)
	switch {
	case errors.Is(err, sqlite.ErrNotPending):
		fail(w, http.StatusConflict, "Leave request has already been reviewed")
		return
	case errors.Is(err, sqlite.ErrNotFound):
		fail(w, http.StatusNotFound, "Leave request not found")
		return
	case err != nil:
		s.internal(w, err)
		return
	}
	s.log.Info("leave reviewed",
		zap.String("leave_id", l.ID),
		zap.String("status", string(rec.Status)),
		zap.String("reviewer", string(p.EmployeeID)))
	s.writeLeave(w, r, l.ID, http.StatusOK)
}

// visibleLeave loads {id} and checks the caller may see it, writing the
// failure response itself.
func (s *Server) visibleLeave(w http.ResponseWriter, r *http.Request) (*sqlite.Leave, bool) {
	l, err := s.store.GetLeave(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internal(w, err)
		return nil, false
	}
	if l == nil {
		fail(w, http.StatusNotFound, "Leave request not found")
		return nil, false
	}
	if !s.policy.CanView(principalOf(r), leaveDomain(*l)) {
		fail(w, http.StatusForbidden, "Not authorized to view this leave request")
		return nil, false
	}
	return l, true
}

func (s *Server) writeLeave(w http.ResponseWriter, r *http.Request, id string, status int) {
	l, err := s.store.GetLeave(r.Context(), id)
	if err != nil || l == nil {
		s.internal(w, errors.Join(err, errors.New("leave vanished after write")))
		return
	}
	respond(w, status, envelope{Data: leaveDTO(*l)})
}

// =============================================================================
// RESPONSES
// =============================================================================

type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Token      string              `json:"token,omitempty"`
	Count      int                 `json:"count,omitempty"`
	Pagination *backend.Pagination `json:"pagination,omitempty"`
	Data       any                 `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, env envelope) {
	env.Success = status < 400
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func fail(w http.ResponseWriter, status int, message string) {
	respond(w, status, envelope{Message: message})
}

func (s *Server) internal(w http.ResponseWriter, err error) {
	s.log.Error("internal error", zap.Error(err))
	fail(w, http.StatusInternalServerError, "Server error")
}

// statusOf maps a leave error to the status the hosted service uses. An
// invalid target is a malformed body; other state errors are conflicts.
func statusOf(err error) int {
	if errors.Is(err, leave.ErrInvalidTarget) {
		return http.StatusBadRequest
	}
	switch leave.KindOf(err) {
	case leave.KindAuthorization:
		return http.StatusForbidden
	case leave.KindNotFound:
		return http.StatusNotFound
	case leave.KindState:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func employeeDomain(e sqlite.Employee) leave.Employee {
	return leave.Employee{
		ID:           leave.EmployeeID(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		Department:   e.Department,
		Role:         leave.Role(e.Role),
		JoiningDate:  e.JoiningDate,
		LeaveBalance: e.LeaveBalance,
		IsActive:     e.IsActive,
		CreatedAt:    e.CreatedAt,
	}
}

func employeeDTO(e sqlite.Employee) backend.Employee {
	return backend.EmployeeFromDomain(employeeDomain(e))
}

func leaveDomain(l sqlite.Leave) leave.LeaveRequest {
	rec := leave.LeaveRequest{
		ID:             leave.RequestID(l.ID),
		EmployeeID:     leave.EmployeeID(l.EmployeeID),
		StartDate:      l.StartDate,
		EndDate:        l.EndDate,
		DaysRequested:  l.DaysRequested,
		Reason:         l.Reason,
		Status:         leave.Status(l.Status),
		ReviewComments: l.ReviewComments,
		ReviewedAt:     l.ReviewedAt,
		CreatedAt:      l.CreatedAt,
	}
	if l.Employee != nil {
		emp := employeeDomain(*l.Employee)
		rec.Employee = &emp
	}
	return rec
}

func leaveDTO(l sqlite.Leave) backend.Leave {
	return backend.LeaveFromDomain(leaveDomain(l))
}
