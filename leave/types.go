/*
Package leave provides the leave lifecycle and balance reconciliation engine.

PURPOSE:
  This package holds the only part of the leave-management client with real
  invariants: who may see or act on a leave request, how a request moves
  from pending to a terminal state, how balance statistics are derived from
  a record set, and how a record set is filtered, sorted and paginated for
  display. Everything else (HTTP transport, sessions, the gateway API) lives
  in other packages and calls into this one.

KEY CONCEPTS IN THIS FILE (types.go):
  - Role / Principal: the authenticated actor and its role
  - Employee: read-only reference data owned by the Backend Service
  - LeaveRequest: a time-off request and its review outcome
  - Candidate: the fields a principal supplies when applying for leave
  - BalanceSnapshot: derived statistics, recomputed on every read

DESIGN PRINCIPLES:
  1. Pure functions: policy, balance and query code never perform I/O
  2. Terminal states: approved/rejected are never left once entered
  3. No ambient state: the principal is always passed explicitly
  4. Whole-set replacement: the record store is swapped, never patched

SEE ALSO:
  - policy.go: AccessPolicy and the role capability table
  - lifecycle.go: Transition and Submit
  - balance.go: BalanceCalculator
  - query.go: QueryEngine
  - store.go: RecordStore
*/
package leave

import (
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string

// =============================================================================
// ROLE & PRINCIPAL
// =============================================================================

// Role is the fixed variant set of actor roles. Role strings match the
// Backend Service wire values exactly.
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleHR       Role = "HR"
	RoleAdmin    Role = "Admin"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleEmployee, RoleHR, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts the wire value of a role, ignoring surrounding space.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", ErrInvalidRole.With("unknown role %q", s)
	}
	return r, nil
}

// Principal is the authenticated actor performing an operation.
// It is created at login and never mutated by this package.
type Principal struct {
	EmployeeID EmployeeID
	Role       Role
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus parses a status filter value. The empty string is accepted and
// means "any status".
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" || st.Valid() {
		return st, nil
	}
	return "", ErrInvalidStatus.With("unknown status %q", s)
}

// =============================================================================
// EMPLOYEE - Reference data, read-only to the engine
// =============================================================================

type Employee struct {
	ID           EmployeeID
	Name         string
	Email        string
	Department   string
	Role         Role
	JoiningDate  time.Time
	LeaveBalance int // authoritative remaining days, may be negative
	IsActive     bool
	CreatedAt    time.Time
}

// Principal returns the principal an employee acts as once authenticated.
func (e Employee) Principal() Principal {
	return Principal{EmployeeID: e.ID, Role: e.Role}
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is a single time-off request.
//
// DaysRequested is independent of the StartDate/EndDate span; it may exclude
// weekends or holidays according to rules the Backend Service owns.
// ReviewComments and ReviewedAt are set exactly once, on the transition into
// a terminal status.
type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID

	// Employee is the populated reference the Backend Service embeds in list
	// responses. Nil when the backend returned only the identifier.
	Employee *Employee

	StartDate     time.Time
	EndDate       time.Time
	DaysRequested int
	Reason        string

	Status         Status
	ReviewComments string
	ReviewedAt     *time.Time

	CreatedAt time.Time
}

// EmployeeName returns the populated employee name, or "" when absent.
func (r LeaveRequest) EmployeeName() string {
	if r.Employee == nil {
		return ""
	}
	return r.Employee.Name
}

// Department returns the populated employee department, or "" when absent.
func (r LeaveRequest) Department() string {
	if r.Employee == nil {
		return ""
	}
	return r.Employee.Department
}

func (r LeaveRequest) joiningDate() time.Time {
	if r.Employee == nil {
		return time.Time{}
	}
	return r.Employee.JoiningDate
}

// Candidate is what a principal supplies when applying for leave.
type Candidate struct {
	EmployeeID    EmployeeID
	StartDate     time.Time
	EndDate       time.Time
	DaysRequested int
	Reason        string
}

// =============================================================================
// BALANCE SNAPSHOT - Derived, never persisted
// =============================================================================

// DefaultAllocation is the annual policy allocation in days.
const DefaultAllocation = 25

type BalanceSnapshot struct {
	Allocation   int
	UsedDays     int // approved
	PendingDays  int
	RejectedDays int

	// CurrentBalance is the externally reported remaining balance. It is never
	// clamped: a negative value signals over-allocation.
	CurrentBalance int

	// ProjectedBalance is max(CurrentBalance - PendingDays, 0), for display.
	ProjectedBalance int
}
