/*
policy.go - Role-gated access to leave records and screens

PURPOSE:
  Answers "may this principal do X?" from a single capability table keyed by
  Role. No call site compares role strings; everything goes through
  AccessPolicy.

CAPABILITY TABLE:
  Employee: dashboard, own leaves, own balance, apply for leave
  HR:       dashboard, all leaves, review, manage employees, reports
  Admin:    everything HR has, plus analytics and settings

RECORD RULES:
  CanView:   all-leaves capability, or own-leaves capability and ownership
  CanReview: review capability and the record is not terminal

SEE ALSO:
  - lifecycle.go: uses HasReviewAuthority before touching record state
*/
package leave

type Capability string

const (
	CapViewDashboard    Capability = "view_dashboard"
	CapViewOwnLeaves    Capability = "view_own_leaves"
	CapViewAllLeaves    Capability = "view_all_leaves"
	CapViewLeaveBalance Capability = "view_leave_balance"
	CapApplyLeave       Capability = "apply_leave"
	CapReviewLeaves     Capability = "review_leaves"
	CapManageEmployees  Capability = "manage_employees"
	CapViewReports      Capability = "view_reports"
	CapViewAnalytics    Capability = "view_analytics"
	CapManageSettings   Capability = "manage_settings"
)

type capabilitySet map[Capability]bool

func union(sets ...capabilitySet) capabilitySet {
	out := capabilitySet{}
	for _, s := range sets {
		for c := range s {
			out[c] = true
		}
	}
	return out
}

var (
	employeeCaps = capabilitySet{
		CapViewDashboard:    true,
		CapViewOwnLeaves:    true,
		CapViewLeaveBalance: true,
		CapApplyLeave:       true,
	}
	hrCaps = capabilitySet{
		CapViewDashboard:   true,
		CapViewAllLeaves:   true,
		CapReviewLeaves:    true,
		CapManageEmployees: true,
		CapViewReports:     true,
	}
	adminCaps = union(hrCaps, capabilitySet{
		CapViewAnalytics:  true,
		CapManageSettings: true,
	})

	capabilities = map[Role]capabilitySet{
		RoleEmployee: employeeCaps,
		RoleHR:       hrCaps,
		RoleAdmin:    adminCaps,
	}
)

// AccessPolicy is stateless; the zero value is ready to use.
type AccessPolicy struct{}

// Can reports whether p's role carries capability c. Unknown roles carry none.
func (AccessPolicy) Can(p Principal, c Capability) bool {
	return capabilities[p.Role][c]
}

// CanView reports whether p may see rec.
func (ap AccessPolicy) CanView(p Principal, rec LeaveRequest) bool {
	if ap.Can(p, CapViewAllLeaves) {
		return true
	}
	return ap.Can(p, CapViewOwnLeaves) && rec.EmployeeID == p.EmployeeID
}

// CanReview reports whether p may approve or reject rec right now.
func (ap AccessPolicy) CanReview(p Principal, rec LeaveRequest) bool {
	return ap.HasReviewAuthority(p) && !rec.Status.Terminal()
}

// HasReviewAuthority reports the record-independent half of CanReview.
func (ap AccessPolicy) HasReviewAuthority(p Principal) bool {
	return ap.Can(p, CapReviewLeaves)
}

// CanManageEmployees reports whether p may add and list employees.
func (ap AccessPolicy) CanManageEmployees(p Principal) bool {
	return ap.Can(p, CapManageEmployees)
}

// CanViewAnalytics reports whether p may see system-wide analytics.
func (ap AccessPolicy) CanViewAnalytics(p Principal) bool {
	return ap.Can(p, CapViewAnalytics)
}

// Visible returns the records p may see, preserving order.
func (ap AccessPolicy) Visible(p Principal, records []LeaveRequest) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(records))
	for _, r := range records {
		if ap.CanView(p, r) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// NAVIGATION - Screens a principal may open
// =============================================================================

type NavItem struct {
	Name     string
	Path     string
	Requires Capability
}

var navigation = []NavItem{
	{Name: "Dashboard", Path: "/dashboard", Requires: CapViewDashboard},
	{Name: "My Leaves", Path: "/leaves", Requires: CapViewOwnLeaves},
	{Name: "Leave Balance", Path: "/leave-balance", Requires: CapViewLeaveBalance},
	{Name: "Employees", Path: "/employees", Requires: CapManageEmployees},
	{Name: "Leave Requests", Path: "/leaves", Requires: CapReviewLeaves},
	{Name: "Reports", Path: "/reports", Requires: CapViewReports},
	{Name: "Settings", Path: "/settings", Requires: CapManageSettings},
}

// Navigation returns the screens available to p in display order.
func (ap AccessPolicy) Navigation(p Principal) []NavItem {
	var out []NavItem
	for _, item := range navigation {
		if ap.Can(p, item.Requires) {
			out = append(out, item)
		}
	}
	return out
}
