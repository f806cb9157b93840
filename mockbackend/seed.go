/*
seed.go - Demo data for the mock Backend Service

PURPOSE:
  Populates an empty store with a small organisation so the gateway can be
  exercised immediately: one account per role, a few departments, and leave
  requests in every status.

AVAILABLE SCENARIOS:
  demo-org:          Admin, HR and three employees with mixed history
  approval-backlog:  demo-org plus a pile of pending requests for HR to clear

HOW SCENARIOS WORK:
  1. Reset the store (LoadScenario only; Seed refuses a non-empty store)
  2. Create employees, all with DemoPassword
  3. Add leave requests relative to "now"
  4. Apply approved days to each employee's balance

NOTE:
  LoadScenario resets the database. Only use in development/demo environments.

SEE ALSO:
  - cmd/mock-backend/main.go: seeds on start when MOCK_SEED is true
*/
package mockbackend

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Scenario describes a loadable demo data set.
type Scenario struct {
	ID          string
	Name        string
	Description string
}

var scenarios = []Scenario{
	{
		ID:          "demo-org",
		Name:        "Demo Organisation",
		Description: "One account per role and leave history in every status",
	},
	{
		ID:          "approval-backlog",
		Name:        "Approval Backlog",
		Description: "Demo organisation with many pending requests awaiting review",
	},
}

// Scenarios lists the available demo data sets.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// Seed loads demo-org into an empty store and reports whether it did.
func Seed(ctx context.Context, store *sqlite.Store, now time.Time) (bool, error) {
	n, err := store.CountEmployees(ctx)
	if err != nil {
		return false, fmt.Errorf("count employees: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	return true, loadDemoOrg(ctx, store, now)
}

// LoadScenario resets the store and loads the named scenario.
func LoadScenario(ctx context.Context, store *sqlite.Store, id string, now time.Time) error {
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	switch id {
	case "demo-org":
		return loadDemoOrg(ctx, store, now)
	case "approval-backlog":
		if err := loadDemoOrg(ctx, store, now); err != nil {
			return err
		}
		return loadBacklog(ctx, store, now)
	}
	return fmt.Errorf("unknown scenario %q", id)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seedEmployee struct {
	id, name, email, department string
	role                        leave.Role
	joinedDaysAgo               int
}

var demoEmployees = []seedEmployee{
	{"emp-admin", "Alex Morgan", "admin@company.com", "Operations", leave.RoleAdmin, 900},
	{"emp-hr", "Sarah Chen", "hr@company.com", "Human Resources", leave.RoleHR, 600},
	{"emp-john", "John Carter", "john@company.com", "Engineering", leave.RoleEmployee, 400},
	{"emp-jane", "Jane Doe", "jane@company.com", "Marketing", leave.RoleEmployee, 200},
	{"emp-mike", "Mike Ross", "mike@company.com", "Sales", leave.RoleEmployee, 12},
}

type seedLeave struct {
	id, employeeID string
	startIn        int // days from now, negative for the past
	days           int
	reason         string
	status         leave.Status
	comments       string
}

var demoLeaves = []seedLeave{
	{"lv-1001", "emp-john", -60, 5, "Family vacation", leave.StatusApproved, "Enjoy!"},
	{"lv-1002", "emp-john", -20, 2, "Moving house", leave.StatusRejected, "Release week, please pick other dates"},
	{"lv-1003", "emp-john", 14, 3, "Wedding", leave.StatusPending, ""},
	{"lv-1004", "emp-jane", -30, 1, "Doctor appointment", leave.StatusApproved, ""},
	{"lv-1005", "emp-jane", 7, 4, "Conference", leave.StatusPending, ""},
	{"lv-1006", "emp-mike", 21, 2, "Personal errands", leave.StatusPending, ""},
	{"lv-1007", "emp-hr", -90, 10, "Sabbatical trip", leave.StatusApproved, "Approved by admin"},
}

func loadDemoOrg(ctx context.Context, store *sqlite.Store, now time.Time) error {
	hash, err := HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	today := leave.Day(now)

	used := map[string]int{}
	for _, l := range demoLeaves {
		if l.status == leave.StatusApproved {
			used[l.employeeID] += l.days
		}
	}

	for _, e := range demoEmployees {
		emp := sqlite.Employee{
			ID:           e.id,
			Name:         e.name,
			Email:        e.email,
			PasswordHash: hash,
			Department:   e.department,
			Role:         string(e.role),
			JoiningDate:  today.AddDate(0, 0, -e.joinedDaysAgo),
			LeaveBalance: leave.DefaultAllocation - used[e.id],
			IsActive:     true,
			CreatedAt:    now.UTC(),
		}
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("seed employee %s: %w", e.id, err)
		}
	}

	for i, l := range demoLeaves {
		if err := store.SaveLeave(ctx, buildLeave(l, today, now.Add(time.Duration(i-len(demoLeaves))*time.Hour))); err != nil {
			return fmt.Errorf("seed leave %s: %w", l.id, err)
		}
	}
	return nil
}

func loadBacklog(ctx context.Context, store *sqlite.Store, now time.Time) error {
	today := leave.Day(now)
	owners := []string{"emp-john", "emp-jane", "emp-mike"}
	reasons := []string{"Long weekend", "Child care", "Home repairs", "Travel"}
	for i := range 12 {
		l := seedLeave{
			id:         fmt.Sprintf("lv-2%03d", i),
			employeeID: owners[i%len(owners)],
			startIn:    30 + 3*i,
			days:       1 + i%3,
			reason:     reasons[i%len(reasons)],
			status:     leave.StatusPending,
		}
		if err := store.SaveLeave(ctx, buildLeave(l, today, now.Add(time.Duration(i)*time.Minute))); err != nil {
			return fmt.Errorf("seed leave %s: %w", l.id, err)
		}
	}
	return nil
}

func buildLeave(l seedLeave, today, created time.Time) sqlite.Leave {
	start := today.AddDate(0, 0, l.startIn)
	out := sqlite.Leave{
		ID:             l.id,
		EmployeeID:     l.employeeID,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, l.days-1),
		DaysRequested:  l.days,
		Reason:         l.reason,
		Status:         string(l.status),
		ReviewComments: l.comments,
		CreatedAt:      created.UTC(),
	}
	if l.status.Terminal() {
		reviewed := created.Add(2 * time.Hour).UTC()
		out.ReviewedAt = &reviewed
		out.ReviewedBy = "emp-hr"
		if l.employeeID == "emp-hr" {
			out.ReviewedBy = "emp-admin"
		}
	}
	return out
}
