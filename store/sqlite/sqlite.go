/*
Package sqlite provides the SQLite persistence behind the mock Backend Service.

PURPOSE:
  Stores employees (with bcrypt password hashes) and leave requests for
  cmd/mock-backend and for end-to-end tests of the backend client and the
  gateway. Nothing in the leave core depends on this package.

KEY TABLES:
  employees:  Accounts, roles, departments and the running leave balance
  leaves:     Leave requests, one row per request, status updated in place

REVIEW ATOMICITY:
  ReviewLeave updates the leave and, on approval, decrements the employee's
  leave_balance in one SQL transaction. The UPDATE is conditioned on
  status = 'pending', so two concurrent reviews cannot both succeed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - mockbackend/server.go: HTTP surface over this store
  - mockbackend/seed.go: demo data
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotPending is returned when reviewing a leave that is not pending.
	ErrNotPending = errors.New("leave request is not pending")

	ErrNotFound = errors.New("not found")
)

// Store implements persistence for the mock Backend Service.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		department TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('Employee', 'HR', 'Admin')),
		joining_date TEXT NOT NULL,
		leave_balance INTEGER NOT NULL DEFAULT 25,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested INTEGER NOT NULL CHECK (days_requested >= 1),
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		review_comments TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaves_employee
		ON leaves(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_leaves_status
		ON leaves(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee represents an employee record.
type Employee struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Department   string
	Role         string
	JoiningDate  time.Time
	LeaveBalance int
	IsActive     bool
	CreatedAt    time.Time
}

const employeeColumns = `id, name, email, password_hash, department, role,
	joining_date, leave_balance, is_active, created_at`

// SaveEmployee inserts or updates an employee. The password hash and
// creation time of an existing row are kept unless a new hash is given.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			password_hash = CASE WHEN excluded.password_hash = '' THEN employees.password_hash ELSE excluded.password_hash END,
			department = excluded.department,
			role = excluded.role,
			joining_date = excluded.joining_date,
			leave_balance = excluded.leave_balance,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, strings.ToLower(emp.Email), emp.PasswordHash,
		emp.Department, emp.Role,
		emp.JoiningDate.UTC().Format(time.RFC3339),
		emp.LeaveBalance, emp.IsActive,
		emp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, emp.Email)
	}
	return err
}

// GetEmployee retrieves an employee by ID, or nil if there is none.
func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	return scanEmployee(row)
}

// GetEmployeeByEmail retrieves an employee by email (case-insensitive), or
// nil if there is none.
func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	return scanEmployee(row)
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (*Employee, error) {
	var emp Employee
	var joiningDate, createdAt string
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.PasswordHash,
		&emp.Department, &emp.Role, &joiningDate, &emp.LeaveBalance,
		&emp.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emp.JoiningDate, _ = time.Parse(time.RFC3339, joiningDate)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// =============================================================================
// LEAVES
// =============================================================================

// Leave is a stored leave request. Employee is populated by queries that
// join the owner.
type Leave struct {
	ID             string
	EmployeeID     string
	StartDate      time.Time
	EndDate        time.Time
	DaysRequested  int
	Reason         string
	Status         string
	ReviewComments string
	ReviewedBy     string
	ReviewedAt     *time.Time
	CreatedAt      time.Time

	Employee *Employee
}

// SaveLeave inserts or replaces a leave request.
func (s *Store) SaveLeave(ctx context.Context, l Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.Status == "" {
		l.Status = "pending"
	}

	query := `
		INSERT INTO leaves (id, employee_id, start_date, end_date, days_requested,
			reason, status, review_comments, reviewed_by, reviewed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			days_requested = excluded.days_requested,
			reason = excluded.reason,
			status = excluded.status,
			review_comments = excluded.review_comments,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.EmployeeID,
		l.StartDate.UTC().Format(time.RFC3339),
		l.EndDate.UTC().Format(time.RFC3339),
		l.DaysRequested, l.Reason, l.Status,
		nullString(l.ReviewComments), nullString(l.ReviewedBy), nullTime(l.ReviewedAt),
		l.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetLeave retrieves a leave with its owner populated, or nil.
func (s *Store) GetLeave(ctx context.Context, id string) (*Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, leaveSelect+" WHERE l.id = ?", id)
	if err != nil {
		return nil, err
	}
	leaves, err := scanLeaves(rows)
	if err != nil || len(leaves) == 0 {
		return nil, err
	}
	return &leaves[0], nil
}

// LeaveFilter selects and orders leaves. Zero values mean no filter.
type LeaveFilter struct {
	EmployeeID string
	Status     string
	Department string
	DateFrom   time.Time // on start_date, inclusive
	DateTo     time.Time // on start_date, inclusive
	Search     string    // employee name or reason

	SortBy    string
	SortOrder string // asc or desc

	Limit  int // 0 means no limit
	Offset int
}

var leaveSortColumns = map[string]string{
	"createdAt":     "l.created_at",
	"startDate":     "l.start_date",
	"daysRequested": "l.days_requested",
	"name":          "e.name",
	"department":    "e.department",
	"joiningDate":   "e.joining_date",
}

// ListLeaves returns one window of matching leaves plus the total number of
// matches.
func (s *Store) ListLeaves(ctx context.Context, f LeaveFilter) ([]Leave, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.EmployeeID != "" {
		where = append(where, "l.employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, f.Status)
	}
	if f.Department != "" {
		where = append(where, "e.department = ?")
		args = append(args, f.Department)
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "DATE(l.start_date) >= DATE(?)")
		args = append(args, f.DateFrom.UTC().Format(time.RFC3339))
	}
	if !f.DateTo.IsZero() {
		where = append(where, "DATE(l.start_date) <= DATE(?)")
		args = append(args, f.DateTo.UTC().Format(time.RFC3339))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		where = append(where, "(LOWER(e.name) LIKE ? OR LOWER(l.reason) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leaves l JOIN employees e ON e.id = l.employee_id"+clause,
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := leaveSortColumns[f.SortBy]
	if !ok {
		col = "l.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	query := leaveSelect + clause + " ORDER BY " + col + " " + dir + ", l.id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	leaves, err := scanLeaves(rows)
	return leaves, total, err
}

// ReviewLeave moves a pending leave to status and, on approval, deducts its
// days from the owner's balance. Returns ErrNotFound or ErrNotPending.
func (s *Store) ReviewLeave(ctx context.Context, id, status, comments, reviewer string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var employeeID string
	var days int
	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT employee_id, days_requested, status FROM leaves WHERE id = ?", id,
	).Scan(&employeeID, &days, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: leave %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE leaves
		SET status = ?, review_comments = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ? AND status = 'pending'`,
		status, nullString(comments), nullString(reviewer), at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review leave %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: leave %s is %s", ErrNotPending, id, current)
	}

	if status == "approved" {
		if _, err := tx.ExecContext(ctx,
			"UPDATE employees SET leave_balance = leave_balance - ? WHERE id = ?",
			days, employeeID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const leaveSelect = `
	SELECT l.id, l.employee_id, l.start_date, l.end_date, l.days_requested,
		l.reason, l.status, l.review_comments, l.reviewed_by, l.reviewed_at,
		l.created_at,
		e.id, e.name, e.email, e.password_hash, e.department, e.role,
		e.joining_date, e.leave_balance, e.is_active, e.created_at
	FROM leaves l
	JOIN employees e ON e.id = l.employee_id`

func scanLeaves(rows *sql.Rows) ([]Leave, error) {
	defer rows.Close()

	var leaves []Leave
	for rows.Next() {
		var l Leave
		var e Employee
		var start, end, created string
		var comments, reviewer, reviewedAt sql.NullString
		var joining, empCreated string
		if err := rows.Scan(
			&l.ID, &l.EmployeeID, &start, &end, &l.DaysRequested,
			&l.Reason, &l.Status, &comments, &reviewer, &reviewedAt, &created,
			&e.ID, &e.Name, &e.Email, &e.PasswordHash, &e.Department, &e.Role,
			&joining, &e.LeaveBalance, &e.IsActive, &empCreated,
		); err != nil {
			return nil, err
		}

		l.StartDate, _ = time.Parse(time.RFC3339, start)
		l.EndDate, _ = time.Parse(time.RFC3339, end)
		l.CreatedAt, _ = time.Parse(time.RFC3339, created)
		l.ReviewComments = comments.String
		l.ReviewedBy = reviewer.String
		if reviewedAt.Valid {
			t, _ := time.Parse(time.RFC3339, reviewedAt.String)
			l.ReviewedAt = &t
		}
		e.JoiningDate, _ = time.Parse(time.RFC3339, joining)
		e.CreatedAt, _ = time.Parse(time.RFC3339, empCreated)
		l.Employee = &e

		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"leaves", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// CountEmployees reports how many employees exist; seeding is skipped when
// any do.
func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
