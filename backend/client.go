/*
Package backend is the HTTP client of the Backend Service.

PURPOSE:
  Typed access to the Backend Service REST surface. The Backend Service is
  the only persistence layer: it owns identifiers, employee records, the
  authoritative leave balance and every leave request.

ENDPOINTS:
  POST  /auth/login                  Login
  POST  /auth/register               Register
  GET   /auth/profile                Profile
  GET   /employees                   ListEmployees
  GET   /employees/:id               GetEmployee
  POST  /employees                   CreateEmployee
  GET   /employees/:id/leave-balance LeaveBalance
  GET   /leaves                      ListLeaves
  GET   /leaves/:id                  GetLeave
  POST  /leaves                      CreateLeave
  PATCH /leaves/:id                  UpdateLeaveStatus

AUTHENTICATION:
  Login and Register store the returned bearer token; every later request
  sends it. Any 401 response discards the token, fires the
  OnUnauthenticated hook and returns leave.ErrUnauthenticated, whichever
  call raised it.

ERRORS:
  401 -> leave.ErrUnauthenticated
  403 -> leave.ErrUnauthorized
  404 -> leave.ErrNotFound
  400 -> leave.ErrRejected (validation, never retried)
  409 -> leave.ErrAlreadyReviewed on PATCH /leaves/:id, leave.ErrConflict elsewhere
  any other failure, or success=false -> leave.ErrBackend
  The backend's message is carried as the error detail and the HTTP status
  as StatusCode. Network failures wrap the underlying error, so
  errors.Is(err, context.Canceled) still works.

SEE ALSO:
  - dto.go: wire types
  - session/workflow.go: the only production caller
*/
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/metrics"
)

// DefaultTimeout bounds a single request when the caller's context has no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	token    string
	onUnauth func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithToken starts the client already authenticated.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// OnUnauthenticated registers fn to run after any 401 response.
func OnUnauthenticated(fn func()) Option { return func(c *Client) { c.onUnauth = fn } }

// New creates a client for the Backend Service at baseURL (including any
// path prefix such as /api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log).Named("backend")
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SetOnUnauthenticated replaces the 401 hook.
func (c *Client) SetOnUnauthenticated(fn func()) {
	c.mu.Lock()
	c.onUnauth = fn
	c.mu.Unlock()
}

// =============================================================================
// AUTH
// =============================================================================

// AuthResult is the outcome of Login or Register.
type AuthResult struct {
	Token    string
	Employee leave.Employee
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", LoginRequest{Email: email, Password: password})
}

// Register creates an account and logs in as it. The registration is
// validated locally first.
func (c *Client) Register(ctx context.Context, r leave.Registration) (AuthResult, error) {
	if err := r.Validate(); err != nil {
		return AuthResult{}, err
	}
	return c.authenticate(ctx, "/auth/register", registerRequestFrom(r))
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (AuthResult, error) {
	var emp Employee
	env, err := c.do(ctx, http.MethodPost, path, nil, body, &emp)
	if err != nil {
		return AuthResult{}, err
	}
	if env.Token == "" {
		return AuthResult{}, leave.ErrBackend.With("%s returned no token", path)
	}
	c.SetToken(env.Token)
	return AuthResult{Token: env.Token, Employee: emp.ToDomain()}, nil
}

func (c *Client) Profile(ctx context.Context) (leave.Employee, error) {
	var emp Employee
	if _, err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &emp); err != nil {
		return leave.Employee{}, err
	}
	return emp.ToDomain(), nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (c *Client) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	var list []Employee
	if _, err := c.do(ctx, http.MethodGet, "/employees", nil, nil, &list); err != nil {
		return nil, err
	}
	out := make([]leave.Employee, len(list))
	for i, e := range list {
		out[i] = e.ToDomain()
	}
	return out, nil
}

func (c *Client) GetEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	var emp Employee
	if _, err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(string(id)), nil, nil, &emp); err != nil {
		return leave.Employee{}, err
	}
	return emp.ToDomain(), nil
}

// CreateEmployee adds an employee on behalf of HR or Admin.
func (c *Client) CreateEmployee(ctx context.Context, r leave.Registration) (leave.Employee, error) {
	var emp Employee
	if _, err := c.do(ctx, http.MethodPost, "/employees", nil, registerRequestFrom(r), &emp); err != nil {
		return leave.Employee{}, err
	}
	return emp.ToDomain(), nil
}

func (c *Client) LeaveBalance(ctx context.Context, id leave.EmployeeID) (Balance, error) {
	var bal Balance
	path := "/employees/" + url.PathEscape(string(id)) + "/leave-balance"
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &bal); err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// =============================================================================
// LEAVES
// =============================================================================

// LeaveFilter is the query string of GET /leaves. Zero fields are omitted.
type LeaveFilter struct {
	Page       int
	Limit      int
	Status     leave.Status
	Department string
	DateFrom   time.Time
	DateTo     time.Time
	Search     string
	SortBy     leave.SortField
	SortOrder  leave.SortOrder
	EmployeeID leave.EmployeeID
}

func (f LeaveFilter) values() url.Values {
	v := url.Values{}
	setInt := func(k string, n int) {
		if n > 0 {
			v.Set(k, strconv.Itoa(n))
		}
	}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	setInt("page", f.Page)
	setInt("limit", f.Limit)
	set("status", string(f.Status))
	set("department", f.Department)
	set("dateFrom", leave.FormatDay(f.DateFrom))
	set("dateTo", leave.FormatDay(f.DateTo))
	set("search", f.Search)
	set("sortBy", string(f.SortBy))
	set("sortOrder", string(f.SortOrder))
	set("employeeId", string(f.EmployeeID))
	return v
}

type LeavePage struct {
	Items      []leave.LeaveRequest
	Pagination Pagination
}

func (c *Client) ListLeaves(ctx context.Context, f LeaveFilter) (LeavePage, error) {
	var list []Leave
	env, err := c.do(ctx, http.MethodGet, "/leaves", f.values(), nil, &list)
	if err != nil {
		return LeavePage{}, err
	}
	page := LeavePage{Items: leavesToDomain(list)}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	} else {
		page.Pagination = Pagination{Current: 1, Pages: 1, Total: len(list), Limit: len(list)}
	}
	return page, nil
}

// ListAllLeaves pages through GET /leaves until the backend reports no more
// pages. Use it wherever a complete history is required.
func (c *Client) ListAllLeaves(ctx context.Context, f LeaveFilter) ([]leave.LeaveRequest, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	var all []leave.LeaveRequest
	for page := 1; ; page++ {
		f.Page = page
		p, err := c.ListLeaves(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || page >= p.Pagination.Pages {
			return all, nil
		}
	}
}

func (c *Client) GetLeave(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	var l Leave
	if _, err := c.do(ctx, http.MethodGet, "/leaves/"+url.PathEscape(string(id)), nil, nil, &l); err != nil {
		return leave.LeaveRequest{}, err
	}
	return l.ToDomain(), nil
}

// CreateLeave submits a request the LifecycleController has already
// validated. The returned record carries the backend-assigned ID.
func (c *Client) CreateLeave(ctx context.Context, rec leave.LeaveRequest) (leave.LeaveRequest, error) {
	body := CreateLeaveRequest{
		EmployeeID:    string(rec.EmployeeID),
		StartDate:     leave.FormatDay(rec.StartDate),
		EndDate:       leave.FormatDay(rec.EndDate),
		DaysRequested: rec.DaysRequested,
		Reason:        rec.Reason,
	}
	var l Leave
	if _, err := c.do(ctx, http.MethodPost, "/leaves", nil, body, &l); err != nil {
		return leave.LeaveRequest{}, err
	}
	return l.ToDomain(), nil
}

// UpdateLeaveStatus writes a transition through to the backend.
func (c *Client) UpdateLeaveStatus(ctx context.Context, id leave.RequestID, status leave.Status, comments string) (leave.LeaveRequest, error) {
	var l Leave
	body := UpdateStatusRequest{Status: string(status), ReviewComments: comments}
	if _, err := c.do(ctx, http.MethodPatch, "/leaves/"+url.PathEscape(string(id)), nil, body, &l); err != nil {
		return leave.LeaveRequest{}, err
	}
	return l.ToDomain(), nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (*Envelope, error) {
	route := method + " " + routeOf(path)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", route, err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	c.log.Debug("request", zap.String("route", route))
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncBackendCall(route, 0)
		c.log.Error("request failed", zap.String("route", route), zap.Error(err))
		return nil, leave.ErrBackend.With("%s", route).Wrap(err)
	}
	defer resp.Body.Close()
	c.metrics.IncBackendCall(route, resp.StatusCode)

	var env Envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, leave.ErrBackend.With("%s: read body", route).WithStatus(resp.StatusCode).Wrap(err)
	}
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 || decodeErr != nil || !env.Success {
		return nil, c.failure(route, resp.StatusCode, env.Message, decodeErr)
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, leave.ErrBackend.With("%s: decode data", route).WithStatus(resp.StatusCode).Wrap(err)
		}
	}
	return &env, nil
}

func (c *Client) failure(route string, status int, message string, decodeErr error) error {
	if message == "" {
		message = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		c.mu.Lock()
		c.token = ""
		hook := c.onUnauth
		c.mu.Unlock()
		c.log.Warn("unauthenticated", zap.String("route", route))
		if hook != nil {
			hook()
		}
		return leave.ErrUnauthenticated.With("%s", message).WithStatus(status)
	case http.StatusForbidden:
		return leave.ErrUnauthorized.With("%s", message).WithStatus(status)
	case http.StatusNotFound:
		return leave.ErrNotFound.With("%s", message).WithStatus(status)
	case http.StatusBadRequest:
		return leave.ErrRejected.With("%s", message).WithStatus(status)
	case http.StatusConflict:
		// Another reviewer got there first; the caller reloads, never retries.
		if route == http.MethodPatch+" /leaves/:id" {
			c.log.Warn("review conflict", zap.String("route", route), zap.String("message", message))
			return leave.ErrAlreadyReviewed.With("%s", message).WithStatus(status)
		}
		return leave.ErrConflict.With("%s", message).WithStatus(status)
	}

	c.log.Error("backend failure",
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("message", message))
	e := leave.ErrBackend.With("%s: %s", route, message).WithStatus(status)
	if decodeErr != nil {
		return e.Wrap(decodeErr)
	}
	return e
}

// routeOf replaces identifier segments so metric labels stay bounded.
func routeOf(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i >= 2 && (parts[i-1] == "employees" || parts[i-1] == "leaves") && p != "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
