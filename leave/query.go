/*
query.go - Filter / sort / paginate over a record set

PURPOSE:
  Pure transform from a record set and a QuerySpec to one page of results.
  Used for every list the View Layer shows.

FILTERS (conjunction; an empty field means "no constraint"):
  Status      exact status
  Department  exact department of the populated employee
  DateFrom    StartDate on or after this day
  DateTo      StartDate on or before this day
  Search      case-insensitive substring of employee name OR reason

SORTING:
  Stable. Dates compare as instants, DaysRequested numerically, everything
  else as case-sensitive strings. Ties keep input order in both directions.
  An empty SortField keeps input order.

PAGINATION:
  Page is 1-indexed (values < 1 mean 1). PageSize < 1 means one page holding
  everything. PageCount = ceil(TotalCount / PageSize) and is never below 1.
*/
package leave

import (
	"sort"
	"strings"
	"time"
)

type SortField string

const (
	SortByName          SortField = "name"
	SortByDepartment    SortField = "department"
	SortByJoiningDate   SortField = "joiningDate"
	SortByCreatedAt     SortField = "createdAt"
	SortByStartDate     SortField = "startDate"
	SortByDaysRequested SortField = "daysRequested"
)

var leaveSortFields = map[SortField]bool{
	SortByName: true, SortByDepartment: true, SortByJoiningDate: true,
	SortByCreatedAt: true, SortByStartDate: true, SortByDaysRequested: true,
}

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Ascending, nil
	case Ascending, Descending:
		return o, nil
	}
	return "", ErrInvalidSort.With("unknown sort order %q", s)
}

func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.TrimSpace(s))
	if f == "" || leaveSortFields[f] {
		return f, nil
	}
	return "", ErrInvalidSort.With("unknown sort field %q", s)
}

// QuerySpec parameterizes QueryEngine.Apply. Zero values mean "no filter".
type QuerySpec struct {
	Status     Status
	Department string
	DateFrom   time.Time
	DateTo     time.Time
	Search     string

	SortField SortField
	SortOrder SortOrder

	Page     int
	PageSize int
}

// DefaultPageSize matches the list view's page size.
const DefaultPageSize = 10

// DefaultQuery is the list view's initial state: newest first, page 1.
func DefaultQuery() QuerySpec {
	return QuerySpec{
		SortField: SortByCreatedAt,
		SortOrder: Descending,
		Page:      1,
		PageSize:  DefaultPageSize,
	}
}

// Validate rejects values Apply would otherwise silently ignore.
func (q QuerySpec) Validate() error {
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidStatus.With("unknown status %q", q.Status)
	}
	if q.SortField != "" && !leaveSortFields[q.SortField] {
		return ErrInvalidSort.With("unknown sort field %q", q.SortField)
	}
	if q.SortOrder != "" && q.SortOrder != Ascending && q.SortOrder != Descending {
		return ErrInvalidSort.With("unknown sort order %q", q.SortOrder)
	}
	if !q.DateFrom.IsZero() && !q.DateTo.IsZero() && !DayBeforeOrEqual(q.DateFrom, q.DateTo) {
		return ErrInvalidDateRange.With("dateFrom %s is after dateTo %s", FormatDay(q.DateFrom), FormatDay(q.DateTo))
	}
	if q.Page < 0 || q.PageSize < 0 {
		return ErrInvalidQuery.With("page and pageSize must not be negative")
	}
	return nil
}

type Page struct {
	Items      []LeaveRequest
	TotalCount int
	PageCount  int
	Page       int
	PageSize   int
}

// QueryEngine is stateless; the zero value is ready to use.
type QueryEngine struct{}

// Apply filters, sorts and paginates records. records is not modified.
func (QueryEngine) Apply(records []LeaveRequest, q QuerySpec) Page {
	filtered := make([]LeaveRequest, 0, len(records))
	match := q.matcher()
	for _, r := range records {
		if match(r) {
			filtered = append(filtered, r)
		}
	}

	if cmp := leaveComparator(q.SortField); cmp != nil {
		desc := q.SortOrder == Descending
		sort.SliceStable(filtered, func(i, j int) bool {
			c := cmp(filtered[i], filtered[j])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	items, page, size, pages := paginate(len(filtered), q.Page, q.PageSize)
	return Page{
		Items:      filtered[items.start:items.end],
		TotalCount: len(filtered),
		PageCount:  pages,
		Page:       page,
		PageSize:   size,
	}
}

func (q QuerySpec) matcher() func(LeaveRequest) bool {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return func(r LeaveRequest) bool {
		if q.Status != "" && r.Status != q.Status {
			return false
		}
		if q.Department != "" && r.Department() != q.Department {
			return false
		}
		if !q.DateFrom.IsZero() && Day(r.StartDate).Before(Day(q.DateFrom)) {
			return false
		}
		if !q.DateTo.IsZero() && Day(r.StartDate).After(Day(q.DateTo)) {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.EmployeeName()), search) &&
			!strings.Contains(strings.ToLower(r.Reason), search) {
			return false
		}
		return true
	}
}

func leaveComparator(f SortField) func(a, b LeaveRequest) int {
	switch f {
	case SortByName:
		return func(a, b LeaveRequest) int { return strings.Compare(a.EmployeeName(), b.EmployeeName()) }
	case SortByDepartment:
		return func(a, b LeaveRequest) int { return strings.Compare(a.Department(), b.Department()) }
	case SortByJoiningDate:
		return func(a, b LeaveRequest) int { return a.joiningDate().Compare(b.joiningDate()) }
	case SortByCreatedAt:
		return func(a, b LeaveRequest) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortByStartDate:
		return func(a, b LeaveRequest) int { return a.StartDate.Compare(b.StartDate) }
	case SortByDaysRequested:
		return func(a, b LeaveRequest) int { return compareInt(a.DaysRequested, b.DaysRequested) }
	}
	return nil
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type window struct{ start, end int }

// paginate returns the slice window for page, plus the normalized page,
// page size and page count.
func paginate(total, page, size int) (window, int, int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = max(total, 1)
	}
	pages := max((total+size-1)/size, 1)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	return window{start: start, end: end}, page, size, pages
}

// =============================================================================
// EMPLOYEE DIRECTORY - Same idea over employees
// =============================================================================

const SortByEmail SortField = "email"

var employeeSortFields = map[SortField]bool{
	SortByName: true, SortByDepartment: true, SortByEmail: true, SortByJoiningDate: true,
}

type EmployeeQuery struct {
	Search     string // name OR email, case-insensitive
	Department string
	SortField  SortField
	SortOrder  SortOrder
}

func (q EmployeeQuery) Validate() error {
	if q.SortField != "" && !employeeSortFields[q.SortField] {
		return ErrInvalidSort.With("unknown employee sort field %q", q.SortField)
	}
	if q.SortOrder != "" && q.SortOrder != Ascending && q.SortOrder != Descending {
		return ErrInvalidSort.With("unknown sort order %q", q.SortOrder)
	}
	return nil
}

// FilterEmployees applies q to employees. employees is not modified.
func FilterEmployees(employees []Employee, q EmployeeQuery) []Employee {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Employee, 0, len(employees))
	for _, e := range employees {
		if q.Department != "" && e.Department != q.Department {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Name), search) &&
			!strings.Contains(strings.ToLower(e.Email), search) {
			continue
		}
		out = append(out, e)
	}

	var cmp func(a, b Employee) int
	switch q.SortField {
	case SortByName:
		cmp = func(a, b Employee) int { return strings.Compare(a.Name, b.Name) }
	case SortByDepartment:
		cmp = func(a, b Employee) int { return strings.Compare(a.Department, b.Department) }
	case SortByEmail:
		cmp = func(a, b Employee) int { return strings.Compare(a.Email, b.Email) }
	case SortByJoiningDate:
		cmp = func(a, b Employee) int { return a.JoiningDate.Compare(b.JoiningDate) }
	}
	if cmp != nil {
		desc := q.SortOrder == Descending
		sort.SliceStable(out, func(i, j int) bool {
			c := cmp(out[i], out[j])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	return out
}
