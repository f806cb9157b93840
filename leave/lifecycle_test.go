package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	employeeE = leave.Principal{EmployeeID: "emp-e", Role: leave.RoleEmployee}
	otherEmp  = leave.Principal{EmployeeID: "emp-o", Role: leave.RoleEmployee}
	hrUser    = leave.Principal{EmployeeID: "emp-hr", Role: leave.RoleHR}
	adminUser = leave.Principal{EmployeeID: "emp-admin", Role: leave.RoleAdmin}
)

var fixedNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newController() *leave.LifecycleController {
	lc := leave.NewLifecycleController()
	lc.Now = func() time.Time { return fixedNow }
	return lc
}

func pendingRecord(id string, owner leave.EmployeeID, days int) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:            leave.RequestID(id),
		EmployeeID:    owner,
		StartDate:     date(2025, time.April, 7),
		EndDate:       date(2025, time.April, 11),
		DaysRequested: days,
		Reason:        "family trip",
		Status:        leave.StatusPending,
		CreatedAt:     date(2025, time.March, 1),
	}
}

// =============================================================================
// TRANSITION
// =============================================================================

func TestTransition_ReviewerMovesPendingToTerminal(t *testing.T) {
	lc := newController()

	for _, reviewer := range []leave.Principal{hrUser, adminUser} {
		for _, target := range []leave.Status{leave.StatusApproved, leave.StatusRejected} {
			rec := pendingRecord("req-1", "emp-e", 3)

			out, err := lc.Transition(reviewer, rec, target, "ok")

			require.NoError(t, err)
			assert.Equal(t, target, out.Status)
			assert.Equal(t, "ok", out.ReviewComments)
			require.NotNil(t, out.ReviewedAt)
			assert.Equal(t, fixedNow, *out.ReviewedAt)
			assert.Equal(t, leave.StatusPending, rec.Status, "input record must not be modified")
		}
	}
}

func TestTransition_OmittedCommentsBecomeEmpty(t *testing.T) {
	out, err := newController().Approve(hrUser, pendingRecord("req-1", "emp-e", 1), "")

	require.NoError(t, err)
	assert.Equal(t, "", out.ReviewComments)
	assert.NotNil(t, out.ReviewedAt)
}

func TestTransition_HRRejectsThenSecondCallFails(t *testing.T) {
	// GIVEN: a pending record
	// WHEN: HR rejects it with a comment, then tries again on the updated record
	// THEN: the first call succeeds, the second fails with AlreadyReviewed
	lc := newController()
	rec := pendingRecord("req-7", "emp-e", 2)

	rejected, err := lc.Transition(hrUser, rec, leave.StatusRejected, "insufficient notice")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	assert.Equal(t, "insufficient notice", rejected.ReviewComments)
	require.NotNil(t, rejected.ReviewedAt)

	_, err = lc.Transition(hrUser, rejected, leave.StatusApproved, "changed my mind")
	require.ErrorIs(t, err, leave.ErrAlreadyReviewed)
	assert.Equal(t, leave.KindState, leave.KindOf(err))
	assert.Equal(t, "insufficient notice", rejected.ReviewComments, "terminal record stays unchanged")
}

func TestTransition_TerminalRecordsAlwaysFail(t *testing.T) {
	lc := newController()
	reviewed := date(2025, time.March, 2)

	for _, status := range []leave.Status{leave.StatusApproved, leave.StatusRejected} {
		rec := pendingRecord("req-t", "emp-e", 1)
		rec.Status = status
		rec.ReviewComments = "original"
		rec.ReviewedAt = &reviewed

		for _, target := range []leave.Status{leave.StatusApproved, leave.StatusRejected} {
			_, err := lc.Transition(adminUser, rec, target, "again")
			assert.ErrorIs(t, err, leave.ErrAlreadyReviewed)
		}
		assert.Equal(t, "original", rec.ReviewComments)
		assert.Equal(t, reviewed, *rec.ReviewedAt)
	}
}

func TestTransition_EmployeeIsUnauthorizedRegardlessOfStatus(t *testing.T) {
	lc := newController()

	for _, status := range leave.Statuses {
		rec := pendingRecord("req-own", "emp-e", 1)
		rec.Status = status

		_, err := lc.Transition(employeeE, rec, leave.StatusApproved, "")

		require.ErrorIs(t, err, leave.ErrUnauthorized, "status %s", status)
		assert.Equal(t, leave.KindAuthorization, leave.KindOf(err))
		assert.Equal(t, status, rec.Status)
	}
}

func TestTransition_UnknownRoleIsUnauthorized(t *testing.T) {
	_, err := newController().Transition(leave.Principal{EmployeeID: "x", Role: "Manager"},
		pendingRecord("r", "emp-e", 1), leave.StatusApproved, "")
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestTransition_InvalidTarget(t *testing.T) {
	lc := newController()

	for _, target := range []leave.Status{leave.StatusPending, "cancelled", ""} {
		_, err := lc.Transition(hrUser, pendingRecord("r", "emp-e", 1), target, "")
		assert.ErrorIs(t, err, leave.ErrInvalidTarget, "target %q", target)
	}
}

func TestTransition_InvalidTargetCheckedBeforeState(t *testing.T) {
	rec := pendingRecord("r", "emp-e", 1)
	rec.Status = leave.StatusApproved

	_, err := newController().Transition(hrUser, rec, leave.StatusPending, "")

	assert.ErrorIs(t, err, leave.ErrInvalidTarget)
}

// =============================================================================
// SUBMIT
// =============================================================================

func validCandidate() leave.Candidate {
	return leave.Candidate{
		EmployeeID:    "emp-e",
		StartDate:     date(2025, time.May, 5),
		EndDate:       date(2025, time.May, 9),
		DaysRequested: 5,
		Reason:        "  holiday  ",
	}
}

func TestSubmit_CreatesPending(t *testing.T) {
	out, err := newController().Submit(employeeE, validCandidate())

	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, out.Status)
	assert.Equal(t, leave.EmployeeID("emp-e"), out.EmployeeID)
	assert.Equal(t, 5, out.DaysRequested)
	assert.Equal(t, "holiday", out.Reason)
	assert.Equal(t, fixedNow, out.CreatedAt)
	assert.Nil(t, out.ReviewedAt)
	assert.Empty(t, out.ReviewComments)
}

func TestSubmit_SameDayRangeIsValid(t *testing.T) {
	c := validCandidate()
	c.EndDate = c.StartDate
	c.DaysRequested = 1

	_, err := newController().Submit(employeeE, c)
	assert.NoError(t, err)
}

func TestSubmit_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*leave.Candidate)
		want   error
	}{
		{"inverted range", func(c *leave.Candidate) { c.StartDate, c.EndDate = c.EndDate, c.StartDate }, leave.ErrInvalidDateRange},
		{"missing start", func(c *leave.Candidate) { c.StartDate = time.Time{} }, leave.ErrMissingDates},
		{"zero days", func(c *leave.Candidate) { c.DaysRequested = 0 }, leave.ErrInvalidDays},
		{"negative days", func(c *leave.Candidate) { c.DaysRequested = -2 }, leave.ErrInvalidDays},
		{"blank reason", func(c *leave.Candidate) { c.Reason = "   " }, leave.ErrEmptyReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)

			_, err := newController().Submit(employeeE, c)

			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, leave.KindValidation, leave.KindOf(err))
			assert.True(t, leave.IsClientError(err))
		})
	}
}

func TestSubmit_OnlyForSelf(t *testing.T) {
	_, err := newController().Submit(otherEmp, validCandidate())
	require.ErrorIs(t, err, leave.ErrSubmitForOther)
	assert.Equal(t, leave.KindAuthorization, leave.KindOf(err))

	// HR may not file on someone else's behalf either.
	_, err = newController().Submit(hrUser, validCandidate())
	assert.ErrorIs(t, err, leave.ErrSubmitForOther)
}
