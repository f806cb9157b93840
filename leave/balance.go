/*
balance.go - Balance and usage derivation

PURPOSE:
  Derives a BalanceSnapshot from an allocation constant, the remaining
  balance reported by the Backend Service, and a record set. Nothing here is
  persisted; snapshots are recomputed on every read.

CALCULATION:
  UsedDays         = sum(DaysRequested) over approved
  PendingDays      = sum(DaysRequested) over pending
  RejectedDays     = sum(DaysRequested) over rejected
  CurrentBalance   = reported by the backend, never re-derived or clamped
  ProjectedBalance = max(CurrentBalance - PendingDays, 0)

PRECISION:
  The sums are only as complete as the records given. Callers that need
  authoritative totals must pass the employee's full history, not a capped
  "recent" page.

SEE ALSO:
  - analytics.go: system-wide statistics
  - session/workflow.go: fetches full history before computing
*/
package leave

import "github.com/shopspring/decimal"

// BalanceCalculator computes snapshots against a fixed allocation.
type BalanceCalculator struct {
	Allocation int
}

func NewBalanceCalculator(allocation int) *BalanceCalculator {
	return &BalanceCalculator{Allocation: allocation}
}

// Compute derives a snapshot using the calculator's allocation.
func (bc *BalanceCalculator) Compute(currentBalance int, records []LeaveRequest) BalanceSnapshot {
	return Compute(bc.Allocation, currentBalance, records)
}

// Compute derives a snapshot. records should already be limited to one
// employee; see ForEmployee.
func Compute(allocation, currentBalance int, records []LeaveRequest) BalanceSnapshot {
	snap := BalanceSnapshot{
		Allocation:     allocation,
		CurrentBalance: currentBalance,
	}
	for _, r := range records {
		switch r.Status {
		case StatusApproved:
			snap.UsedDays += r.DaysRequested
		case StatusPending:
			snap.PendingDays += r.DaysRequested
		case StatusRejected:
			snap.RejectedDays += r.DaysRequested
		}
	}
	snap.ProjectedBalance = max(currentBalance-snap.PendingDays, 0)
	return snap
}

// ForEmployee returns the records belonging to id, preserving order.
func ForEmployee(records []LeaveRequest, id EmployeeID) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(records))
	for _, r := range records {
		if r.EmployeeID == id {
			out = append(out, r)
		}
	}
	return out
}

// UsagePercent is UsedDays as a share of Allocation, capped at 100 and
// rounded to one decimal place. A zero allocation yields 0.
func (s BalanceSnapshot) UsagePercent() decimal.Decimal {
	if s.Allocation <= 0 {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	pct := decimal.NewFromInt(int64(s.UsedDays)).
		Div(decimal.NewFromInt(int64(s.Allocation))).
		Mul(hundred)
	return decimal.Min(pct, hundred).Round(1)
}

// OverAllocated reports a negative reported balance.
func (s BalanceSnapshot) OverAllocated() bool {
	return s.CurrentBalance < 0
}
