package leave_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

var (
	alice = &leave.Employee{ID: "emp-a", Name: "Alice Moreau", Department: "Engineering", JoiningDate: date(2021, time.June, 1)}
	bob   = &leave.Employee{ID: "emp-b", Name: "Bob Tanaka", Department: "Sales", JoiningDate: date(2019, time.January, 15)}
	carol = &leave.Employee{ID: "emp-c", Name: "Carol Diaz", Department: "Engineering", JoiningDate: date(2023, time.September, 4)}
)

func sample() []leave.LeaveRequest {
	return []leave.LeaveRequest{
		{ID: "1", EmployeeID: alice.ID, Employee: alice, StartDate: date(2025, time.April, 1), DaysRequested: 3, Reason: "Wedding", Status: leave.StatusPending, CreatedAt: date(2025, time.March, 1)},
		{ID: "2", EmployeeID: bob.ID, Employee: bob, StartDate: date(2025, time.April, 10), DaysRequested: 1, Reason: "Doctor", Status: leave.StatusApproved, CreatedAt: date(2025, time.March, 3)},
		{ID: "3", EmployeeID: carol.ID, Employee: carol, StartDate: date(2025, time.April, 5), DaysRequested: 3, Reason: "Moving house", Status: leave.StatusRejected, CreatedAt: date(2025, time.March, 2)},
		{ID: "4", EmployeeID: alice.ID, Employee: alice, StartDate: date(2025, time.May, 2), DaysRequested: 5, Reason: "Vacation with bob", Status: leave.StatusPending, CreatedAt: date(2025, time.March, 4)},
	}
}

func ids(items []leave.LeaveRequest) []leave.RequestID {
	out := make([]leave.RequestID, len(items))
	for i, r := range items {
		out[i] = r.ID
	}
	return out
}

func TestApply_NoFiltersOnePage(t *testing.T) {
	recs := sample()

	page := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{Page: 1, PageSize: 100})

	assert.Equal(t, ids(recs), ids(page.Items))
	assert.Equal(t, 4, page.TotalCount)
	assert.Equal(t, 1, page.PageCount)
}

func TestApply_EmptyInputHasOnePage(t *testing.T) {
	page := leave.QueryEngine{}.Apply(nil, leave.DefaultQuery())

	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 1, page.PageCount)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	recs := sample()
	before := ids(recs)

	leave.QueryEngine{}.Apply(recs, leave.QuerySpec{SortField: leave.SortByStartDate, SortOrder: leave.Descending})

	assert.Equal(t, before, ids(recs))
}

func TestApply_Filters(t *testing.T) {
	tests := []struct {
		name string
		spec leave.QuerySpec
		want []leave.RequestID
	}{
		{"status", leave.QuerySpec{Status: leave.StatusPending}, []leave.RequestID{"1", "4"}},
		{"department", leave.QuerySpec{Department: "Engineering"}, []leave.RequestID{"1", "3", "4"}},
		{"inclusive from", leave.QuerySpec{DateFrom: date(2025, time.April, 5)}, []leave.RequestID{"2", "3", "4"}},
		{"inclusive to", leave.QuerySpec{DateTo: date(2025, time.April, 5)}, []leave.RequestID{"1", "3"}},
		{"single day", leave.QuerySpec{DateFrom: date(2025, time.April, 10), DateTo: date(2025, time.April, 10)}, []leave.RequestID{"2"}},
		{"search name", leave.QuerySpec{Search: "ALICE"}, []leave.RequestID{"1", "4"}},
		{"search name or reason", leave.QuerySpec{Search: "bob"}, []leave.RequestID{"2", "4"}},
		{"search reason", leave.QuerySpec{Search: "house"}, []leave.RequestID{"3"}},
		{"conjunction", leave.QuerySpec{Status: leave.StatusPending, Department: "Engineering", Search: "vacation"}, []leave.RequestID{"4"}},
		{"no match", leave.QuerySpec{Department: "Legal"}, []leave.RequestID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := leave.QueryEngine{}.Apply(sample(), tt.spec)
			assert.Equal(t, tt.want, ids(page.Items))
			assert.Equal(t, len(tt.want), page.TotalCount)
		})
	}
}

func TestApply_DateFilterIgnoresTimeOfDay(t *testing.T) {
	recs := sample()
	recs[0].StartDate = time.Date(2025, time.April, 1, 18, 45, 0, 0, time.UTC)

	page := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{DateTo: date(2025, time.April, 1)})

	assert.Equal(t, []leave.RequestID{"1"}, ids(page.Items))
}

func TestApply_StableSortBothDirections(t *testing.T) {
	// GIVEN: records 1 and 3 tie on DaysRequested
	// THEN: they keep input order whether sorting asc or desc
	asc := leave.QueryEngine{}.Apply(sample(), leave.QuerySpec{SortField: leave.SortByDaysRequested, SortOrder: leave.Ascending})
	desc := leave.QueryEngine{}.Apply(sample(), leave.QuerySpec{SortField: leave.SortByDaysRequested, SortOrder: leave.Descending})

	assert.Equal(t, []leave.RequestID{"2", "1", "3", "4"}, ids(asc.Items))
	assert.Equal(t, []leave.RequestID{"4", "1", "3", "2"}, ids(desc.Items))
}

func TestApply_SortFields(t *testing.T) {
	tests := []struct {
		field leave.SortField
		want  []leave.RequestID
	}{
		{leave.SortByName, []leave.RequestID{"1", "4", "2", "3"}},
		{leave.SortByDepartment, []leave.RequestID{"1", "3", "4", "2"}},
		{leave.SortByJoiningDate, []leave.RequestID{"2", "1", "4", "3"}},
		{leave.SortByCreatedAt, []leave.RequestID{"1", "3", "2", "4"}},
		{leave.SortByStartDate, []leave.RequestID{"1", "3", "2", "4"}},
	}
	for _, tt := range tests {
		page := leave.QueryEngine{}.Apply(sample(), leave.QuerySpec{SortField: tt.field})
		assert.Equal(t, tt.want, ids(page.Items), "field %s", tt.field)
	}
}

func TestApply_DefaultQueryNewestFirst(t *testing.T) {
	page := leave.QueryEngine{}.Apply(sample(), leave.DefaultQuery())

	assert.Equal(t, []leave.RequestID{"4", "2", "3", "1"}, ids(page.Items))
}

func TestApply_Pagination(t *testing.T) {
	var recs []leave.LeaveRequest
	for i := 0; i < 23; i++ {
		recs = append(recs, leave.LeaveRequest{ID: leave.RequestID(fmt.Sprint(i))})
	}

	first := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{Page: 1, PageSize: 10})
	last := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{Page: 3, PageSize: 10})
	beyond := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{Page: 9, PageSize: 10})
	zero := leave.QueryEngine{}.Apply(recs, leave.QuerySpec{Page: 0, PageSize: 0})

	assert.Len(t, first.Items, 10)
	assert.Equal(t, 3, first.PageCount)
	require.Len(t, last.Items, 3)
	assert.Equal(t, leave.RequestID("20"), last.Items[0].ID)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 23, beyond.TotalCount)
	assert.Len(t, zero.Items, 23)
	assert.Equal(t, 1, zero.Page)
	assert.Equal(t, 1, zero.PageCount)
}

func TestQuerySpec_Validate(t *testing.T) {
	assert.NoError(t, leave.DefaultQuery().Validate())
	assert.ErrorIs(t, leave.QuerySpec{Status: "cancelled"}.Validate(), leave.ErrInvalidStatus)
	assert.ErrorIs(t, leave.QuerySpec{SortField: "salary"}.Validate(), leave.ErrInvalidSort)
	assert.ErrorIs(t, leave.QuerySpec{SortOrder: "up"}.Validate(), leave.ErrInvalidSort)
	assert.ErrorIs(t, leave.QuerySpec{PageSize: -1}.Validate(), leave.ErrInvalidQuery)
	assert.ErrorIs(t, leave.QuerySpec{
		DateFrom: date(2025, time.May, 2),
		DateTo:   date(2025, time.May, 1),
	}.Validate(), leave.ErrInvalidDateRange)
}

func TestParseSort(t *testing.T) {
	o, err := leave.ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, leave.Ascending, o)

	o, err = leave.ParseSortOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, leave.Descending, o)

	_, err = leave.ParseSortField("salary")
	assert.ErrorIs(t, err, leave.ErrInvalidSort)
}

func TestFilterEmployees(t *testing.T) {
	staff := []leave.Employee{
		{ID: "1", Name: "Zoe", Email: "zoe@acme.test", Department: "Sales"},
		{ID: "2", Name: "Adam", Email: "adam@acme.test", Department: "Engineering"},
		{ID: "3", Name: "Maya", Email: "maya.zoe@acme.test", Department: "Engineering"},
	}

	got := leave.FilterEmployees(staff, leave.EmployeeQuery{Search: "ZOE", SortField: leave.SortByName})
	require.Len(t, got, 2)
	assert.Equal(t, "Maya", got[0].Name)
	assert.Equal(t, "Zoe", got[1].Name)

	got = leave.FilterEmployees(staff, leave.EmployeeQuery{Department: "Engineering", SortField: leave.SortByEmail, SortOrder: leave.Descending})
	require.Len(t, got, 2)
	assert.Equal(t, "Maya", got[0].Name)

	assert.ErrorIs(t, leave.EmployeeQuery{SortField: leave.SortByDaysRequested}.Validate(), leave.ErrInvalidSort)
}
