/*
dto.go - Data Transfer Objects for the gateway API

PURPOSE:
  Defines the JSON structures exchanged with the View Layer. Leave and
  employee records reuse the Backend Service wire shapes (backend.Leave,
  backend.Employee) so the View Layer sees one format for both.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags for shape only (required
  fields, email format, YYYY-MM-DD dates). Business rules such as password
  length or date ordering are left to the leave package so their error codes
  reach the client unchanged.

SEE ALSO:
  - handlers.go: Uses these types
  - backend/dto.go: Leave and Employee wire shapes
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/session"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LoginRequest opens a session from credentials, or resumes one from a
// previously issued Backend Service token.
type LoginRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required_without=Token"`
	Token    string `json:"token" validate:"required_without=Email"`
}

// RegisterRequest is used both for self-registration and for HR creating an
// employee.
type RegisterRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Department      string `json:"department" validate:"required"`
	Role            string `json:"role" validate:"required"`
	JoiningDate     string `json:"joiningDate" validate:"required,day"`
}

func (r RegisterRequest) toDomain() leave.Registration {
	joined, _ := leave.ParseDay(r.JoiningDate)
	return leave.Registration{
		Name:            r.Name,
		Email:           r.Email,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
		Department:      r.Department,
		Role:            leave.Role(r.Role),
		JoiningDate:     joined,
	}
}

type SubmitLeaveRequest struct {
	EmployeeID    string `json:"employeeId"`
	StartDate     string `json:"startDate" validate:"required,day"`
	EndDate       string `json:"endDate" validate:"required,day"`
	DaysRequested int    `json:"daysRequested"`
	Reason        string `json:"reason"`
}

func (r SubmitLeaveRequest) toDomain() leave.Candidate {
	start, _ := leave.ParseDay(r.StartDate)
	end, _ := leave.ParseDay(r.EndDate)
	return leave.Candidate{
		EmployeeID:    leave.EmployeeID(r.EmployeeID),
		StartDate:     start,
		EndDate:       end,
		DaysRequested: r.DaysRequested,
		Reason:        r.Reason,
	}
}

type ReviewRequest struct {
	Status         string `json:"status" validate:"required"`
	ReviewComments string `json:"reviewComments"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type NavItemDTO struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func toNavDTOs(items []leave.NavItem) []NavItemDTO {
	out := make([]NavItemDTO, len(items))
	for i, it := range items {
		out[i] = NavItemDTO{Name: it.Name, Path: it.Path}
	}
	return out
}

// SessionDTO describes an open session. SessionID goes in X-Session-ID on
// every later request.
type SessionDTO struct {
	SessionID  string           `json:"sessionId"`
	Employee   backend.Employee `json:"employee"`
	Role       string           `json:"role"`
	ExpiresAt  *string          `json:"expiresAt,omitempty"`
	Navigation []NavItemDTO     `json:"navigation"`
}

func toSessionDTO(id string, s *session.Session) SessionDTO {
	dto := SessionDTO{
		SessionID:  id,
		Employee:   backend.EmployeeFromDomain(s.Employee()),
		Role:       string(s.Principal().Role),
		Navigation: toNavDTOs(s.Navigation()),
	}
	if exp := s.ExpiresAt(); !exp.IsZero() {
		v := exp.UTC().Format(time.RFC3339)
		dto.ExpiresAt = &v
	}
	return dto
}

type StatusCountsDTO struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// LeaveListDTO is one page of leaves plus the summary tiles and the
// department filter options.
type LeaveListDTO struct {
	Leaves      []backend.Leave    `json:"leaves"`
	Pagination  backend.Pagination `json:"pagination"`
	Counts      StatusCountsDTO    `json:"counts"`
	Departments []string           `json:"departments"`
}

func toLeaveListDTO(l session.LeaveList) LeaveListDTO {
	leaves := make([]backend.Leave, len(l.Page.Items))
	for i, r := range l.Page.Items {
		leaves[i] = backend.LeaveFromDomain(r)
	}
	departments := l.Departments
	if departments == nil {
		departments = []string{}
	}
	return LeaveListDTO{
		Leaves: leaves,
		Pagination: backend.Pagination{
			Current: l.Page.Page,
			Pages:   l.Page.PageCount,
			Total:   l.Page.TotalCount,
			Limit:   l.Page.PageSize,
		},
		Counts: StatusCountsDTO{
			Total:    l.Counts.Total,
			Pending:  l.Counts.Pending,
			Approved: l.Counts.Approved,
			Rejected: l.Counts.Rejected,
		},
		Departments: departments,
	}
}

type BalanceDTO struct {
	Allocation       int             `json:"allocation"`
	UsedDays         int             `json:"usedDays"`
	PendingDays      int             `json:"pendingDays"`
	RejectedDays     int             `json:"rejectedDays"`
	CurrentBalance   int             `json:"currentBalance"`
	ProjectedBalance int             `json:"projectedBalance"`
	UsagePercent     decimal.Decimal `json:"usagePercent"`
	OverAllocated    bool            `json:"overAllocated"`
}

func toBalanceDTO(b leave.BalanceSnapshot) BalanceDTO {
	return BalanceDTO{
		Allocation:       b.Allocation,
		UsedDays:         b.UsedDays,
		PendingDays:      b.PendingDays,
		RejectedDays:     b.RejectedDays,
		CurrentBalance:   b.CurrentBalance,
		ProjectedBalance: b.ProjectedBalance,
		UsagePercent:     b.UsagePercent(),
		OverAllocated:    b.OverAllocated(),
	}
}

type ShareDTO struct {
	Label   string          `json:"label"`
	Count   int             `json:"count"`
	Percent decimal.Decimal `json:"percent"`
}

type AnalyticsDTO struct {
	TotalEmployees         int        `json:"totalEmployees"`
	PendingRequests        int        `json:"pendingRequests"`
	ApprovedToday          int        `json:"approvedToday"`
	RejectedToday          int        `json:"rejectedToday"`
	RecentJoiners          int        `json:"recentJoiners"`
	StatusDistribution     []ShareDTO `json:"statusDistribution"`
	DepartmentDistribution []ShareDTO `json:"departmentDistribution"`
}

func toAnalyticsDTO(a leave.Analytics) AnalyticsDTO {
	dto := AnalyticsDTO{
		TotalEmployees:         a.TotalEmployees,
		PendingRequests:        a.PendingRequests,
		ApprovedToday:          a.ApprovedToday,
		RejectedToday:          a.RejectedToday,
		RecentJoiners:          a.RecentJoiners,
		StatusDistribution:     make([]ShareDTO, 0, len(a.StatusDistribution)),
		DepartmentDistribution: make([]ShareDTO, 0, len(a.DepartmentDistribution)),
	}
	for _, s := range a.StatusDistribution {
		dto.StatusDistribution = append(dto.StatusDistribution, ShareDTO{Label: string(s.Status), Count: s.Count, Percent: s.Percent})
	}
	for _, d := range a.DepartmentDistribution {
		dto.DepartmentDistribution = append(dto.DepartmentDistribution, ShareDTO{Label: d.Department, Count: d.Count, Percent: d.Percent})
	}
	return dto
}

func toEmployeeDTOs(in []leave.Employee) []backend.Employee {
	out := make([]backend.Employee, len(in))
	for i, e := range in {
		out[i] = backend.EmployeeFromDomain(e)
	}
	return out
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}
