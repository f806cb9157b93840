/*
workflow.go - Operations performed on behalf of a session's principal

PURPOSE:
  Orchestrates the leave core against the Backend Service. Policy and
  lifecycle decisions are made locally by the leave package; this file only
  sequences them with network calls.

MUTATION FLOW (Submit, Review):
  1. Validate locally (LifecycleController)     - no network on failure
  2. Write through to the Backend Service
  3. Reload the full working set                - no optimistic patching
  4. Return the record as the backend now reports it

BALANCE FLOW:
  Balance report and full leave history are fetched in parallel (errgroup).
  History is paged until exhausted so the sums are authoritative.

UNAUTHENTICATED:
  Any leave.ErrUnauthenticated tears the session down before the error is
  returned, whichever operation raised it.
*/
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
)

const recordsKey = "leaves"

// =============================================================================
// LEAVE LIST
// =============================================================================

// LeaveList is one page of the principal's visible records plus summary
// figures over everything that matched the filters.
type LeaveList struct {
	Page        leave.Page
	Counts      leave.StatusCounts
	Departments []string
}

// Refresh reloads the working set from the Backend Service.
func (s *Session) Refresh(ctx context.Context) ([]leave.LeaveRequest, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.reload(ctx)
}

// ListLeaves reloads the working set and applies q to the records the
// principal may view.
func (s *Session) ListLeaves(ctx context.Context, q leave.QuerySpec) (LeaveList, error) {
	if err := q.Validate(); err != nil {
		return LeaveList{}, err
	}
	if err := s.check(); err != nil {
		return LeaveList{}, err
	}
	records, err := s.reload(ctx)
	if err != nil {
		return LeaveList{}, err
	}

	visible := s.engine.policy.Visible(s.principal, records)
	filter := q
	filter.Page, filter.PageSize = 1, 0
	matched := leave.QueryEngine{}.Apply(visible, filter).Items

	return LeaveList{
		Page:        leave.QueryEngine{}.Apply(visible, q),
		Counts:      leave.CountByStatus(matched),
		Departments: leave.Departments(visible),
	}, nil
}

// reload fetches the principal's scope into the record store. A reload
// superseded by a newer one yields the newer snapshot.
func (s *Session) reload(ctx context.Context) ([]leave.LeaveRequest, error) {
	start := time.Now()
	records, err := s.records.Reload(ctx, recordsKey, func(ctx context.Context) ([]leave.LeaveRequest, error) {
		return s.backend.ListAllLeaves(ctx, s.scope())
	})
	switch {
	case errors.Is(err, leave.ErrStaleReload):
		s.engine.metrics.ObserveReload("stale", time.Since(start))
		s.log.Debug("stale reload dropped", zap.Error(err))
		return s.records.Records(), nil
	case err != nil:
		s.engine.metrics.ObserveReload("error", time.Since(start))
		s.log.Error("reload failed", zap.Error(err))
		return nil, s.guard(err)
	}
	s.engine.metrics.ObserveReload("ok", time.Since(start))
	return records, nil
}

// scope is the backend filter for the principal's working set.
func (s *Session) scope() backend.LeaveFilter {
	f := backend.LeaveFilter{Limit: s.engine.pageLimit}
	if !s.engine.policy.Can(s.principal, leave.CapViewAllLeaves) {
		f.EmployeeID = s.principal.EmployeeID
	}
	return f
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Submit validates c, creates the request and reloads. A Candidate without
// an EmployeeID is filed for the principal.
func (s *Session) Submit(ctx context.Context, c leave.Candidate) (leave.LeaveRequest, error) {
	if err := s.check(); err != nil {
		return leave.LeaveRequest{}, err
	}
	if c.EmployeeID == "" {
		c.EmployeeID = s.principal.EmployeeID
	}

	rec, err := s.engine.lifecycle.Submit(s.principal, c)
	if err != nil {
		s.engine.metrics.IncSubmission(outcome(err))
		s.log.Warn("submission rejected", zap.Error(err))
		return leave.LeaveRequest{}, err
	}

	created, err := s.backend.CreateLeave(ctx, rec)
	if err != nil {
		s.engine.metrics.IncSubmission(outcome(err))
		s.log.Error("submission write-through failed", zap.Error(err))
		return leave.LeaveRequest{}, s.guard(err)
	}
	s.engine.metrics.IncSubmission("ok")
	s.log.Info("leave submitted",
		zap.String("request_id", string(created.ID)),
		zap.Int("days", created.DaysRequested))

	if _, err := s.reload(ctx); err != nil {
		return leave.LeaveRequest{}, err
	}
	if fresh, ok := s.records.Get(created.ID); ok {
		return fresh, nil
	}
	return created, nil
}

// Review moves request id to target with comments, writes it through and
// reloads. The decision is made against a freshly reloaded copy.
func (s *Session) Review(ctx context.Context, id leave.RequestID, target leave.Status, comments string) (leave.LeaveRequest, error) {
	if err := s.check(); err != nil {
		return leave.LeaveRequest{}, err
	}
	if !s.engine.policy.HasReviewAuthority(s.principal) {
		// No lookup without review authority: whether id exists stays hidden.
		_, err := s.engine.lifecycle.Transition(s.principal, leave.LeaveRequest{}, target, comments)
		s.engine.metrics.IncTransition(string(target), outcome(err))
		return leave.LeaveRequest{}, err
	}

	rec, err := s.lookup(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	updated, err := s.engine.lifecycle.Transition(s.principal, rec, target, comments)
	if err != nil {
		s.engine.metrics.IncTransition(string(target), outcome(err))
		s.log.Warn("transition rejected", zap.String("request_id", string(id)), zap.Error(err))
		return leave.LeaveRequest{}, err
	}

	written, err := s.backend.UpdateLeaveStatus(ctx, id, updated.Status, updated.ReviewComments)
	if err != nil {
		s.engine.metrics.IncTransition(string(target), outcome(err))
		if errors.Is(err, leave.ErrAlreadyReviewed) {
			// Lost the race to another reviewer: show the winner's decision.
			s.log.Warn("transition lost to a concurrent review", zap.String("request_id", string(id)), zap.Error(err))
			if _, rerr := s.reload(ctx); rerr != nil {
				s.log.Warn("reload after conflict failed", zap.Error(rerr))
			}
			return leave.LeaveRequest{}, err
		}
		s.log.Error("transition write-through failed", zap.String("request_id", string(id)), zap.Error(err))
		return leave.LeaveRequest{}, s.guard(err)
	}
	s.engine.metrics.IncTransition(string(target), "ok")
	s.log.Info("leave reviewed",
		zap.String("request_id", string(id)),
		zap.String("status", string(updated.Status)))

	if _, err := s.reload(ctx); err != nil {
		return leave.LeaveRequest{}, err
	}
	if fresh, ok := s.records.Get(id); ok {
		return fresh, nil
	}
	if written.ReviewedAt == nil {
		written.ReviewedAt = updated.ReviewedAt
	}
	return written, nil
}

// lookup reloads the working set and finds id in it, asking the backend
// directly when the record is outside the principal's scope.
func (s *Session) lookup(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	if _, err := s.reload(ctx); err != nil {
		return leave.LeaveRequest{}, err
	}
	if rec, ok := s.records.Get(id); ok {
		return rec, nil
	}
	rec, err := s.backend.GetLeave(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, s.guard(err)
	}
	return rec, nil
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is the principal's own balance snapshot.
func (s *Session) Balance(ctx context.Context) (leave.BalanceSnapshot, error) {
	return s.EmployeeBalance(ctx, s.principal.EmployeeID)
}

// EmployeeBalance computes the snapshot for id from the backend's reported
// balance and the employee's complete history. Principals may read their
// own balance; reading anyone else's requires CapManageEmployees.
func (s *Session) EmployeeBalance(ctx context.Context, id leave.EmployeeID) (leave.BalanceSnapshot, error) {
	if err := s.check(); err != nil {
		return leave.BalanceSnapshot{}, err
	}
	if id != s.principal.EmployeeID && !s.engine.policy.CanManageEmployees(s.principal) {
		return leave.BalanceSnapshot{}, leave.ErrUnauthorized.With("cannot view another employee's balance")
	}

	var (
		report  backend.Balance
		history []leave.LeaveRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report, err = s.backend.LeaveBalance(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.backend.ListAllLeaves(gctx, backend.LeaveFilter{EmployeeID: id, Limit: s.engine.pageLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("balance fetch failed", zap.String("target", string(id)), zap.Error(err))
		return leave.BalanceSnapshot{}, s.guard(err)
	}

	return s.engine.balance.Compute(report.CurrentBalance, leave.ForEmployee(history, id)), nil
}

// =============================================================================
// EMPLOYEES & ANALYTICS
// =============================================================================

// Employees lists the directory filtered by q. Requires CapManageEmployees.
func (s *Session) Employees(ctx context.Context, q leave.EmployeeQuery) ([]leave.Employee, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	if !s.engine.policy.CanManageEmployees(s.principal) {
		return nil, leave.ErrUnauthorized.With("cannot list employees")
	}
	all, err := s.backend.ListEmployees(ctx)
	if err != nil {
		return nil, s.guard(err)
	}
	return leave.FilterEmployees(all, q), nil
}

// LookupEmployee fetches one employee. Principals may fetch themselves.
func (s *Session) LookupEmployee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	if err := s.check(); err != nil {
		return leave.Employee{}, err
	}
	if id != s.principal.EmployeeID && !s.engine.policy.CanManageEmployees(s.principal) {
		return leave.Employee{}, leave.ErrUnauthorized.With("cannot view another employee")
	}
	emp, err := s.backend.GetEmployee(ctx, id)
	if err != nil {
		return leave.Employee{}, s.guard(err)
	}
	return emp, nil
}

// CreateEmployee adds an employee. Requires CapManageEmployees.
func (s *Session) CreateEmployee(ctx context.Context, r leave.Registration) (leave.Employee, error) {
	if err := s.check(); err != nil {
		return leave.Employee{}, err
	}
	if !s.engine.policy.CanManageEmployees(s.principal) {
		return leave.Employee{}, leave.ErrUnauthorized.With("cannot create employees")
	}
	if err := r.Validate(); err != nil {
		return leave.Employee{}, err
	}
	emp, err := s.backend.CreateEmployee(ctx, r)
	if err != nil {
		return leave.Employee{}, s.guard(err)
	}
	s.log.Info("employee created", zap.String("new_employee_id", string(emp.ID)))
	return emp, nil
}

// Analytics builds the admin dashboard. Requires CapViewAnalytics.
func (s *Session) Analytics(ctx context.Context) (leave.Analytics, error) {
	if err := s.check(); err != nil {
		return leave.Analytics{}, err
	}
	if !s.engine.policy.CanViewAnalytics(s.principal) {
		return leave.Analytics{}, leave.ErrUnauthorized.With("cannot view analytics")
	}

	var (
		records   []leave.LeaveRequest
		pending   []leave.LeaveRequest
		employees []leave.Employee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.reload(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.backend.ListAllLeaves(gctx, backend.LeaveFilter{Status: leave.StatusPending, Limit: s.engine.pageLimit})
		return err
	})
	g.Go(func() error {
		var err error
		employees, err = s.backend.ListEmployees(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return leave.Analytics{}, s.guard(err)
	}
	return leave.Summarize(records, pending, employees, s.engine.now()), nil
}

// Navigation lists the sections the principal may open.
func (s *Session) Navigation() []leave.NavItem {
	return s.engine.policy.Navigation(s.principal)
}

// outcome labels err for metrics.
func outcome(err error) string {
	var le *leave.Error
	if errors.As(err, &le) {
		return le.Code
	}
	return "error"
}
