package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func TestCanView_EmployeeSeesOnlyOwnRecords(t *testing.T) {
	ap := leave.AccessPolicy{}
	owners := []leave.EmployeeID{"emp-e", "emp-o", "emp-hr", ""}

	for _, owner := range owners {
		for _, status := range leave.Statuses {
			rec := pendingRecord("r", owner, 1)
			rec.Status = status
			assert.Equal(t, owner == employeeE.EmployeeID, ap.CanView(employeeE, rec),
				"owner %q status %s", owner, status)
		}
	}
}

func TestCanView_ReviewersSeeEverything(t *testing.T) {
	ap := leave.AccessPolicy{}
	rec := pendingRecord("r", "emp-e", 1)

	assert.True(t, ap.CanView(hrUser, rec))
	assert.True(t, ap.CanView(adminUser, rec))
}

func TestCanReview(t *testing.T) {
	ap := leave.AccessPolicy{}
	pending := pendingRecord("r", "emp-e", 1)
	approved := pending
	approved.Status = leave.StatusApproved

	assert.False(t, ap.CanReview(employeeE, pending))
	assert.True(t, ap.CanReview(hrUser, pending))
	assert.True(t, ap.CanReview(adminUser, pending))
	assert.False(t, ap.CanReview(hrUser, approved))
	assert.False(t, ap.CanReview(adminUser, approved))
}

func TestRoleCapabilities(t *testing.T) {
	ap := leave.AccessPolicy{}

	assert.False(t, ap.CanManageEmployees(employeeE))
	assert.True(t, ap.CanManageEmployees(hrUser))
	assert.True(t, ap.CanManageEmployees(adminUser))

	assert.False(t, ap.CanViewAnalytics(employeeE))
	assert.False(t, ap.CanViewAnalytics(hrUser))
	assert.True(t, ap.CanViewAnalytics(adminUser))

	unknown := leave.Principal{EmployeeID: "x", Role: "Contractor"}
	assert.False(t, ap.CanView(unknown, pendingRecord("r", "x", 1)))
	assert.Empty(t, ap.Navigation(unknown))
}

func TestAdminIsSupersetOfHR(t *testing.T) {
	ap := leave.AccessPolicy{}
	caps := []leave.Capability{
		leave.CapViewDashboard, leave.CapViewOwnLeaves, leave.CapViewAllLeaves,
		leave.CapViewLeaveBalance, leave.CapApplyLeave, leave.CapReviewLeaves,
		leave.CapManageEmployees, leave.CapViewReports, leave.CapViewAnalytics,
		leave.CapManageSettings,
	}
	for _, c := range caps {
		if ap.Can(hrUser, c) {
			assert.True(t, ap.Can(adminUser, c), "admin lacks %s", c)
		}
	}
}

func TestNavigation(t *testing.T) {
	ap := leave.AccessPolicy{}
	names := func(p leave.Principal) []string {
		var out []string
		for _, item := range ap.Navigation(p) {
			out = append(out, item.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Dashboard", "My Leaves", "Leave Balance"}, names(employeeE))
	assert.Equal(t, []string{"Dashboard", "Employees", "Leave Requests", "Reports"}, names(hrUser))
	assert.Equal(t, []string{"Dashboard", "Employees", "Leave Requests", "Reports", "Settings"}, names(adminUser))
}

func TestVisible(t *testing.T) {
	recs := []leave.LeaveRequest{
		pendingRecord("a", "emp-e", 1),
		pendingRecord("b", "emp-o", 1),
		pendingRecord("c", "emp-e", 1),
	}

	got := leave.AccessPolicy{}.Visible(employeeE, recs)

	assert.Len(t, got, 2)
	assert.Equal(t, leave.RequestID("a"), got[0].ID)
	assert.Equal(t, leave.RequestID("c"), got[1].ID)
	assert.Len(t, leave.AccessPolicy{}.Visible(hrUser, recs), 3)
}

func TestParseRole(t *testing.T) {
	r, err := leave.ParseRole(" HR ")
	assert.NoError(t, err)
	assert.Equal(t, leave.RoleHR, r)

	_, err = leave.ParseRole("hr")
	assert.ErrorIs(t, err, leave.ErrInvalidRole)
}
