package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS COUNTS - Summary tiles over any record set
// =============================================================================

type StatusCounts struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
}

func CountByStatus(records []LeaveRequest) StatusCounts {
	c := StatusCounts{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusPending:
			c.Pending++
		case StatusApproved:
			c.Approved++
		case StatusRejected:
			c.Rejected++
		}
	}
	return c
}

// Departments returns the distinct non-empty departments of the populated
// employees, in first-seen order.
func Departments(records []LeaveRequest) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		d := r.Department()
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// =============================================================================
// SYSTEM-WIDE ANALYTICS - Admin only (CapViewAnalytics)
// =============================================================================

// RecentJoinerWindow is how far back a joining date counts as recent.
const RecentJoinerWindow = 30 * 24 * time.Hour

type StatusShare struct {
	Status  Status
	Count   int
	Percent decimal.Decimal
}

type DepartmentShare struct {
	Department string
	Count      int
	Percent    decimal.Decimal
}

type Analytics struct {
	TotalEmployees  int
	PendingRequests int
	ApprovedToday   int
	RejectedToday   int
	RecentJoiners   int

	StatusDistribution     []StatusShare
	DepartmentDistribution []DepartmentShare
}

// Percent returns part/whole*100 rounded to one decimal place, or 0 when
// whole is 0.
func Percent(part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(1)
}

// StatusDistribution returns one share per status in display order.
func StatusDistribution(records []LeaveRequest) []StatusShare {
	counts := CountByStatus(records)
	byStatus := map[Status]int{
		StatusPending:  counts.Pending,
		StatusApproved: counts.Approved,
		StatusRejected: counts.Rejected,
	}
	out := make([]StatusShare, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, StatusShare{
			Status:  s,
			Count:   byStatus[s],
			Percent: Percent(byStatus[s], counts.Total),
		})
	}
	return out
}

// DepartmentDistribution counts employees per department, first-seen order.
func DepartmentDistribution(employees []Employee) []DepartmentShare {
	index := make(map[string]int)
	var out []DepartmentShare
	for _, e := range employees {
		i, ok := index[e.Department]
		if !ok {
			i = len(out)
			index[e.Department] = i
			out = append(out, DepartmentShare{Department: e.Department})
		}
		out[i].Count++
	}
	for i := range out {
		out[i].Percent = Percent(out[i].Count, len(employees))
	}
	return out
}

// ReviewedOn counts records in status whose ReviewedAt falls on day.
func ReviewedOn(records []LeaveRequest, status Status, day time.Time) int {
	n := 0
	for _, r := range records {
		if r.Status == status && r.ReviewedAt != nil && SameDay(*r.ReviewedAt, day) {
			n++
		}
	}
	return n
}

// RecentJoiners counts employees whose joining date is within window of now.
func RecentJoiners(employees []Employee, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, e := range employees {
		if !e.JoiningDate.Before(cutoff) {
			n++
		}
	}
	return n
}

// Summarize builds the admin dashboard figures. pending is the backend's
// pending list, which may differ from the pending subset of records when
// records is a capped page.
func Summarize(records, pending []LeaveRequest, employees []Employee, now time.Time) Analytics {
	return Analytics{
		TotalEmployees:         len(employees),
		PendingRequests:        len(pending),
		ApprovedToday:          ReviewedOn(records, StatusApproved, now),
		RejectedToday:          ReviewedOn(records, StatusRejected, now),
		RecentJoiners:          RecentJoiners(employees, now, RecentJoinerWindow),
		StatusDistribution:     StatusDistribution(records),
		DepartmentDistribution: DepartmentDistribution(employees),
	}
}
