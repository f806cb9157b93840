/*
dto.go - Wire types of the Backend Service

PURPOSE:
  JSON shapes exchanged with the Backend Service, and their conversion to
  the leave package's domain types. The mock backend serializes the same
  types, so both sides share one contract.

ENVELOPE:
  Every response is {success, data, ...}. Login and register add token,
  employee lists add count, leave lists add pagination. success=false bodies
  carry message.

POLYMORPHIC employeeId:
  List responses embed the populated employee under employeeId; other
  responses carry only its identifier. EmployeeRef accepts both.

DATES:
  Timestamp accepts RFC 3339 timestamps or date-only strings and writes
  RFC 3339 in UTC. A zero Timestamp is written as null.
*/
package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ENVELOPE
// =============================================================================

type Envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Token      string          `json:"token,omitempty"`
	Count      *int            `json:"count,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

// =============================================================================
// TIMESTAMP
// =============================================================================

type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// TimestampPtr converts an optional time.
func TimestampPtr(t *time.Time) Timestamp {
	if t == nil {
		return Timestamp{}
	}
	return Timestamp{Time: *t}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := leave.ParseDay(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// Ptr returns nil for the zero timestamp.
func (ts Timestamp) Ptr() *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Department   string    `json:"department"`
	Role         string    `json:"role"`
	JoiningDate  Timestamp `json:"joiningDate"`
	LeaveBalance int       `json:"leaveBalance"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    Timestamp `json:"createdAt"`
}

func (e Employee) ToDomain() leave.Employee {
	return leave.Employee{
		ID:           leave.EmployeeID(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		Department:   e.Department,
		Role:         leave.Role(e.Role),
		JoiningDate:  e.JoiningDate.Time,
		LeaveBalance: e.LeaveBalance,
		IsActive:     e.IsActive,
		CreatedAt:    e.CreatedAt.Time,
	}
}

func EmployeeFromDomain(e leave.Employee) Employee {
	return Employee{
		ID:           string(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		Department:   e.Department,
		Role:         string(e.Role),
		JoiningDate:  NewTimestamp(e.JoiningDate),
		LeaveBalance: e.LeaveBalance,
		IsActive:     e.IsActive,
		CreatedAt:    NewTimestamp(e.CreatedAt),
	}
}

// EmployeeRef is employeeId on a leave: a bare id or a populated employee.
type EmployeeRef struct {
	ID       string
	Employee *Employee
}

func (r EmployeeRef) MarshalJSON() ([]byte, error) {
	if r.Employee != nil {
		return json.Marshal(r.Employee)
	}
	return json.Marshal(r.ID)
}

func (r *EmployeeRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = EmployeeRef{}
		return nil
	case len(b) > 0 && b[0] == '"':
		*r = EmployeeRef{}
		return json.Unmarshal(b, &r.ID)
	}
	var e Employee
	if err := json.Unmarshal(b, &e); err != nil {
		return err
	}
	*r = EmployeeRef{ID: e.ID, Employee: &e}
	return nil
}

// =============================================================================
// LEAVE
// =============================================================================

type Leave struct {
	ID             string      `json:"_id"`
	EmployeeID     EmployeeRef `json:"employeeId"`
	StartDate      Timestamp   `json:"startDate"`
	EndDate        Timestamp   `json:"endDate"`
	DaysRequested  int         `json:"daysRequested"`
	Reason         string      `json:"reason"`
	Status         string      `json:"status"`
	ReviewComments string      `json:"reviewComments,omitempty"`
	ReviewedAt     Timestamp   `json:"reviewedAt"`
	CreatedAt      Timestamp   `json:"createdAt"`
}

func (l Leave) ToDomain() leave.LeaveRequest {
	rec := leave.LeaveRequest{
		ID:             leave.RequestID(l.ID),
		EmployeeID:     leave.EmployeeID(l.EmployeeID.ID),
		StartDate:      l.StartDate.Time,
		EndDate:        l.EndDate.Time,
		DaysRequested:  l.DaysRequested,
		Reason:         l.Reason,
		Status:         leave.Status(l.Status),
		ReviewComments: l.ReviewComments,
		ReviewedAt:     l.ReviewedAt.Ptr(),
		CreatedAt:      l.CreatedAt.Time,
	}
	if l.EmployeeID.Employee != nil {
		emp := l.EmployeeID.Employee.ToDomain()
		rec.Employee = &emp
	}
	return rec
}

func LeaveFromDomain(r leave.LeaveRequest) Leave {
	ref := EmployeeRef{ID: string(r.EmployeeID)}
	if r.Employee != nil {
		emp := EmployeeFromDomain(*r.Employee)
		ref.Employee = &emp
	}
	return Leave{
		ID:             string(r.ID),
		EmployeeID:     ref,
		StartDate:      NewTimestamp(r.StartDate),
		EndDate:        NewTimestamp(r.EndDate),
		DaysRequested:  r.DaysRequested,
		Reason:         r.Reason,
		Status:         string(r.Status),
		ReviewComments: r.ReviewComments,
		ReviewedAt:     TimestampPtr(r.ReviewedAt),
		CreatedAt:      NewTimestamp(r.CreatedAt),
	}
}

func leavesToDomain(in []Leave) []leave.LeaveRequest {
	out := make([]leave.LeaveRequest, len(in))
	for i, l := range in {
		out[i] = l.ToDomain()
	}
	return out
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is the leave-balance report for one employee.
type Balance struct {
	EmployeeID     string `json:"employeeId"`
	Name           string `json:"name"`
	Department     string `json:"department,omitempty"`
	CurrentBalance int    `json:"currentBalance"`
}

// =============================================================================
// REQUEST BODIES
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Department  string `json:"department"`
	Role        string `json:"role"`
	JoiningDate string `json:"joiningDate"`
}

func registerRequestFrom(r leave.Registration) RegisterRequest {
	return RegisterRequest{
		Name:        r.Name,
		Email:       r.Email,
		Password:    r.Password,
		Department:  r.Department,
		Role:        string(r.Role),
		JoiningDate: leave.FormatDay(r.JoiningDate),
	}
}

type CreateLeaveRequest struct {
	EmployeeID    string `json:"employeeId,omitempty"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	DaysRequested int    `json:"daysRequested"`
	Reason        string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status         string `json:"status"`
	ReviewComments string `json:"reviewComments"`
}
