/*
lifecycle.go - Leave request state machine

PURPOSE:
  Executes validated status transitions and validates new submissions. The
  controller never performs I/O: it returns the updated record, and the
  caller writes it through to the Backend Service and then reloads.

STATE MACHINE:
  ┌─────────┐  Transition(approved)  ┌──────────┐
  │ pending │ ─────────────────────▶ │ approved │  (terminal)
  │         │  Transition(rejected)  ├──────────┤
  │         │ ─────────────────────▶ │ rejected │  (terminal)
  └─────────┘                        └──────────┘

TRANSITION CHECK ORDER:
  1. Authorization (review capability, independent of the record)
  2. Target status is approved or rejected
  3. Record is still pending

  A principal without review authority always gets ErrUnauthorized and so
  cannot learn whether a record is already terminal.

SEE ALSO:
  - policy.go: AccessPolicy
  - session/workflow.go: write-through and reload after a transition
*/
package leave

import (
	"strings"
	"time"
)

// LifecycleController drives LeaveRequest status changes.
type LifecycleController struct {
	Policy AccessPolicy

	// Now returns the review/creation timestamp. Defaults to time.Now.
	Now func() time.Time
}

func NewLifecycleController() *LifecycleController {
	return &LifecycleController{Now: time.Now}
}

func (lc *LifecycleController) now() time.Time {
	if lc.Now == nil {
		return time.Now()
	}
	return lc.Now()
}

// Transition moves a pending record into a terminal status. rec is not
// modified; the updated copy is returned for write-through.
func (lc *LifecycleController) Transition(p Principal, rec LeaveRequest, target Status, comments string) (LeaveRequest, error) {
	if !lc.Policy.HasReviewAuthority(p) {
		return LeaveRequest{}, ErrUnauthorized.With("role %q cannot review leave requests", p.Role)
	}
	if !target.Terminal() {
		return LeaveRequest{}, ErrInvalidTarget.With("got %q", target)
	}
	if rec.Status != StatusPending {
		return LeaveRequest{}, ErrAlreadyReviewed.With("request %s is %s", rec.ID, rec.Status)
	}

	reviewedAt := lc.now()
	out := rec
	out.Status = target
	out.ReviewComments = comments
	out.ReviewedAt = &reviewedAt
	return out, nil
}

// Approve is Transition with target approved.
func (lc *LifecycleController) Approve(p Principal, rec LeaveRequest, comments string) (LeaveRequest, error) {
	return lc.Transition(p, rec, StatusApproved, comments)
}

// Reject is Transition with target rejected.
func (lc *LifecycleController) Reject(p Principal, rec LeaveRequest, comments string) (LeaveRequest, error) {
	return lc.Transition(p, rec, StatusRejected, comments)
}

// Submit validates a candidate and returns the pending request to create.
// The ID is assigned by the Backend Service.
func (lc *LifecycleController) Submit(p Principal, c Candidate) (LeaveRequest, error) {
	if err := ValidateCandidate(p, c); err != nil {
		return LeaveRequest{}, err
	}
	return LeaveRequest{
		EmployeeID:    c.EmployeeID,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		DaysRequested: c.DaysRequested,
		Reason:        strings.TrimSpace(c.Reason),
		Status:        StatusPending,
		CreatedAt:     lc.now(),
	}, nil
}

// ValidateCandidate checks a candidate without creating anything.
func ValidateCandidate(p Principal, c Candidate) error {
	if p.EmployeeID == "" || c.EmployeeID != p.EmployeeID {
		return ErrSubmitForOther
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return ErrMissingDates
	}
	if !DayBeforeOrEqual(c.StartDate, c.EndDate) {
		return ErrInvalidDateRange.With("%s is after %s", FormatDay(c.StartDate), FormatDay(c.EndDate))
	}
	if c.DaysRequested < 1 {
		return ErrInvalidDays.With("got %d", c.DaysRequested)
	}
	if strings.TrimSpace(c.Reason) == "" {
		return ErrEmptyReason
	}
	return nil
}
