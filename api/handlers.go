/*
handlers.go - HTTP API handlers for the leave gateway

PURPOSE:
  Exposes the session workflow to the View Layer. Handles HTTP
  request/response, JSON serialization and validation, and delegates every
  decision to the session (and through it, the leave core).

ENDPOINTS:
  Session:
    POST   /api/session                  Login (or resume from a token)
    GET    /api/session                  Current session
    DELETE /api/session                  Logout
    POST   /api/register                 Self-registration, opens a session
    GET    /api/navigation               Screens the principal may open

  Leaves:
    GET    /api/leaves                   Filtered, sorted, paged list + counts
    POST   /api/leaves                   Submit a leave request
    POST   /api/leaves/{id}/review       Approve or reject

  Balance:
    GET    /api/balance                  Own balance snapshot
    GET    /api/employees/{id}/balance   Another employee's snapshot (HR/Admin)

  Employees (HR/Admin):
    GET    /api/employees                Directory with search/filter/sort
    POST   /api/employees                Create employee
    GET    /api/employees/{id}           Employee details

  Analytics (Admin):
    GET    /api/analytics                Dashboard figures

REQUEST FLOW:
  1. Resolve the session from X-Session-ID (requireSession)
  2. Decode and validate input
  3. Call the session workflow
  4. Serialize response
  5. Map errors by kind (writeFailure)

ERROR HANDLING:
  Errors are returned as JSON {error, details, code} with status by kind:
  - 400: Validation
  - 401: Unauthenticated (the session is gone)
  - 403: Authorization
  - 404: Not found
  - 409: State (already reviewed, invalid target, backend conflict)
  - 502: Other transport failures talking to the Backend Service

SEE ALSO:
  - dto.go: Request/response data structures
  - sessions.go: Session registry
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/session"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *session.Engine
	Sessions *Sessions

	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(engine *session.Engine, sessions *Sessions, log *zap.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		_, err := leave.ParseDay(fl.Field().String())
		return err == nil
	})

	return &Handler{
		Engine:   engine,
		Sessions: sessions,
		validate: v,
		log:      logging.OrNop(log).Named("api"),
	}
}

type sessionKey struct{}

type sessionCtx struct {
	id   string
	sess *session.Session
}

// requireSession resolves X-Session-ID or answers 401.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		sess, ok := h.Sessions.Get(id)
		if !ok {
			writeFailure(w, leave.ErrUnauthenticated.With("unknown or expired session"))
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sessionCtx{id: id, sess: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) (string, *session.Session) {
	sc, _ := r.Context().Value(sessionKey{}).(sessionCtx)
	return sc.id, sc.sess
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login opens a session.
// POST /api/session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if req.Token != "" {
		sess, err = h.Engine.Resume(r.Context(), req.Token)
	} else {
		sess, err = h.Engine.Login(r.Context(), req.Email, req.Password)
	}
	if err != nil {
		writeFailure(w, err)
		return
	}

	id := h.Sessions.Add(sess)
	h.log.Info("session opened", zap.String("session_id", id), zap.String("employee_id", string(sess.Principal().EmployeeID)))
	writeJSON(w, http.StatusCreated, toSessionDTO(id, sess))
}

// Register creates an account and opens a session for it.
// POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	sess, err := h.Engine.Register(r.Context(), req.toDomain())
	if err != nil {
		writeFailure(w, err)
		return
	}

	id := h.Sessions.Add(sess)
	writeJSON(w, http.StatusCreated, toSessionDTO(id, sess))
}

// GetSession describes the caller's session.
// GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, sess := sessionFrom(r)
	writeJSON(w, http.StatusOK, toSessionDTO(id, sess))
}

// Logout tears the session down.
// DELETE /api/session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	sess.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/navigation
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	writeJSON(w, http.StatusOK, toNavDTOs(sess.Navigation()))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns one page of the caller's visible leaves.
// GET /api/leaves?page=&limit=&status=&department=&dateFrom=&dateTo=&search=&sortBy=&sortOrder=
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	q, err := parseLeaveQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	_, sess := sessionFrom(r)
	list, err := sess.ListLeaves(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveListDTO(list))
}

// SubmitLeave files a new pending request.
// POST /api/leaves
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := h.decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	_, sess := sessionFrom(r)
	rec, err := sess.Submit(r.Context(), req.toDomain())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, backend.LeaveFromDomain(rec))
}

// ReviewLeave approves or rejects a pending request.
// POST /api/leaves/{id}/review
func (h *Handler) ReviewLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := h.decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	_, sess := sessionFrom(r)
	rec, err := sess.Review(r.Context(), leave.RequestID(id), leave.Status(req.Status), req.ReviewComments)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backend.LeaveFromDomain(rec))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GET /api/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	snap, err := sess.Balance(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// GET /api/employees/{id}/balance
func (h *Handler) EmployeeBalance(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	snap, err := sess.EmployeeBalance(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the directory.
// GET /api/employees?search=&department=&sortBy=&sortOrder=
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := leave.EmployeeQuery{
		Search:     v.Get("search"),
		Department: v.Get("department"),
		SortField:  leave.SortField(v.Get("sortBy")),
		SortOrder:  leave.SortOrder(strings.ToLower(v.Get("sortOrder"))),
	}

	_, sess := sessionFrom(r)
	employees, err := sess.Employees(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	emp, err := sess.LookupEmployee(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backend.EmployeeFromDomain(emp))
}

// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decode(r, &req); err != nil {
		writeFailure(w, err)
		return
	}

	_, sess := sessionFrom(r)
	emp, err := sess.CreateEmployee(r.Context(), req.toDomain())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, backend.EmployeeFromDomain(emp))
}

// =============================================================================
// ANALYTICS
// =============================================================================

// GET /api/analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r)
	a, err := sess.Analytics(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalyticsDTO(a))
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.Sessions.Len(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return leave.ErrInvalidField.With("malformed JSON body").Wrap(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return mapValidationError(err)
	}
	return nil
}

// mapValidationError reports the first failing field.
func mapValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return leave.ErrInvalidField.Wrap(err)
	}
	e := errs[0]
	switch e.Tag() {
	case "required", "required_without":
		return leave.ErrMissingField.With("%s is required", e.Field())
	case "day":
		return leave.ErrInvalidField.With("%s must be a date (YYYY-MM-DD)", e.Field())
	}
	return leave.ErrInvalidField.With("%s is invalid", e.Field())
}

func parseLeaveQuery(r *http.Request) (leave.QuerySpec, error) {
	v := r.URL.Query()
	q := leave.DefaultQuery()

	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.PageSize} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, leave.ErrInvalidQuery.With("%s must be an integer", name)
		}
		*dst = n
	}
	for name, dst := range map[string]*time.Time{"dateFrom": &q.DateFrom, "dateTo": &q.DateTo} {
		t, err := leave.ParseDay(v.Get(name))
		if err != nil {
			return q, leave.ErrInvalidQuery.With("%s: %v", name, err)
		}
		*dst = t
	}

	if raw := v.Get("status"); raw != "" && raw != "all" {
		q.Status = leave.Status(raw)
	}
	if raw := v.Get("department"); raw != "all" {
		q.Department = raw
	}
	q.Search = v.Get("search")

	if raw := v.Get("sortBy"); raw != "" {
		f, err := leave.ParseSortField(raw)
		if err != nil {
			return q, err
		}
		q.SortField = f
		q.SortOrder = leave.Ascending
	}
	if raw := v.Get("sortOrder"); raw != "" {
		o, err := leave.ParseSortOrder(raw)
		if err != nil {
			return q, err
		}
		q.SortOrder = o
	}
	return q, nil
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch leave.KindOf(err) {
	case leave.KindValidation:
		return http.StatusBadRequest
	case leave.KindAuthorization:
		return http.StatusForbidden
	case leave.KindState:
		return http.StatusConflict
	case leave.KindNotFound:
		return http.StatusNotFound
	case leave.KindTransport:
		if leave.IsUnauthenticated(err) {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeFailure writes err with the status and code its kind implies.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), Details: err.Error()}
	var le *leave.Error
	if errors.As(err, &le) {
		resp.Error = le.Message
		resp.Code = le.Code
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
