package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/leave"
)

// fakeBackend is an in-memory Backend Service shared by every connection a
// test opens.
type fakeBackend struct {
	mu        sync.Mutex
	employees map[leave.EmployeeID]leave.Employee
	passwords map[string]leave.EmployeeID
	tokens    map[string]leave.EmployeeID
	leaves    []leave.LeaveRequest
	nextID    int

	// failNext makes the next call return this error.
	failNext error

	// rival, when set, is decided by another reviewer just before the next
	// status update lands.
	rival leave.Status

	listCalls   atomic.Int32
	createCalls atomic.Int32
	updateCalls atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		employees: map[leave.EmployeeID]leave.Employee{},
		passwords: map[string]leave.EmployeeID{},
		tokens:    map[string]leave.EmployeeID{},
	}
}

func (f *fakeBackend) addEmployee(e leave.Employee, email, password, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Email = email
	f.employees[e.ID] = e
	f.passwords[email+"|"+password] = e.ID
	f.tokens[token] = e.ID
}

func (f *fakeBackend) addLeave(r leave.LeaveRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, r)
}

func (f *fakeBackend) failWith(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *fakeBackend) reviewFirst(status leave.Status) {
	f.mu.Lock()
	f.rival = status
	f.mu.Unlock()
}

func (f *fakeBackend) connector() func(token string) *fakeConn {
	return func(token string) *fakeConn { return &fakeConn{f: f, token: token} }
}

// fakeConn is one authenticated connection.
type fakeConn struct {
	f     *fakeBackend
	token string
}

func (c *fakeConn) enter() (leave.EmployeeID, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if err := c.f.failNext; err != nil {
		c.f.failNext = nil
		return "", err
	}
	id, ok := c.f.tokens[c.token]
	if !ok {
		return "", leave.ErrUnauthenticated.With("bad token").WithStatus(401)
	}
	return id, nil
}

func (c *fakeConn) Login(_ context.Context, email, password string) (backend.AuthResult, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	id, ok := c.f.passwords[email+"|"+password]
	if !ok {
		return backend.AuthResult{}, leave.ErrUnauthenticated.With("Invalid credentials").WithStatus(401)
	}
	for tok, owner := range c.f.tokens {
		if owner == id {
			c.token = tok
		}
	}
	return backend.AuthResult{Token: c.token, Employee: c.f.employees[id]}, nil
}

func (c *fakeConn) Register(_ context.Context, r leave.Registration) (backend.AuthResult, error) {
	c.f.mu.Lock()
	c.f.nextID++
	id := leave.EmployeeID(fmt.Sprintf("emp-new-%d", c.f.nextID))
	c.f.mu.Unlock()
	emp := leave.Employee{ID: id, Name: r.Name, Department: r.Department, Role: r.Role, JoiningDate: r.JoiningDate, LeaveBalance: 25}
	c.token = "tok-" + string(id)
	c.f.addEmployee(emp, r.Email, r.Password, c.token)
	emp.Email = r.Email
	return backend.AuthResult{Token: c.token, Employee: emp}, nil
}

func (c *fakeConn) Profile(context.Context) (leave.Employee, error) {
	id, err := c.enter()
	if err != nil {
		return leave.Employee{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	return c.f.employees[id], nil
}

func (c *fakeConn) ListEmployees(context.Context) ([]leave.Employee, error) {
	if _, err := c.enter(); err != nil {
		return nil, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	var out []leave.Employee
	for _, id := range []leave.EmployeeID{"emp-e", "emp-o", "emp-hr", "emp-admin"} {
		if e, ok := c.f.employees[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *fakeConn) GetEmployee(_ context.Context, id leave.EmployeeID) (leave.Employee, error) {
	if _, err := c.enter(); err != nil {
		return leave.Employee{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	e, ok := c.f.employees[id]
	if !ok {
		return leave.Employee{}, leave.ErrNotFound.With("employee %s", id)
	}
	return e, nil
}

func (c *fakeConn) CreateEmployee(_ context.Context, r leave.Registration) (leave.Employee, error) {
	if _, err := c.enter(); err != nil {
		return leave.Employee{}, err
	}
	c.f.mu.Lock()
	c.f.nextID++
	id := leave.EmployeeID(fmt.Sprintf("emp-new-%d", c.f.nextID))
	c.f.mu.Unlock()
	emp := leave.Employee{ID: id, Name: r.Name, Department: r.Department, Role: r.Role}
	c.f.addEmployee(emp, r.Email, r.Password, "tok-"+string(id))
	emp.Email = r.Email
	return emp, nil
}

func (c *fakeConn) LeaveBalance(_ context.Context, id leave.EmployeeID) (backend.Balance, error) {
	if _, err := c.enter(); err != nil {
		return backend.Balance{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	e, ok := c.f.employees[id]
	if !ok {
		return backend.Balance{}, leave.ErrNotFound.With("employee %s", id)
	}
	return backend.Balance{EmployeeID: string(id), Name: e.Name, CurrentBalance: e.LeaveBalance}, nil
}

func (c *fakeConn) ListAllLeaves(_ context.Context, filter backend.LeaveFilter) ([]leave.LeaveRequest, error) {
	c.f.listCalls.Add(1)
	if _, err := c.enter(); err != nil {
		return nil, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	var out []leave.LeaveRequest
	for _, r := range c.f.leaves {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if e, ok := c.f.employees[r.EmployeeID]; ok {
			r.Employee = &e
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *fakeConn) GetLeave(_ context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	if _, err := c.enter(); err != nil {
		return leave.LeaveRequest{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, r := range c.f.leaves {
		if r.ID == id {
			return r, nil
		}
	}
	return leave.LeaveRequest{}, leave.ErrNotFound.With("leave %s", id)
}

func (c *fakeConn) CreateLeave(_ context.Context, rec leave.LeaveRequest) (leave.LeaveRequest, error) {
	c.f.createCalls.Add(1)
	if _, err := c.enter(); err != nil {
		return leave.LeaveRequest{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.nextID++
	rec.ID = leave.RequestID(fmt.Sprintf("lv-%d", c.f.nextID))
	c.f.leaves = append(c.f.leaves, rec)
	return rec, nil
}

func (c *fakeConn) UpdateLeaveStatus(_ context.Context, id leave.RequestID, status leave.Status, comments string) (leave.LeaveRequest, error) {
	c.f.updateCalls.Add(1)
	if _, err := c.enter(); err != nil {
		return leave.LeaveRequest{}, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for i, r := range c.f.leaves {
		if r.ID != id {
			continue
		}
		now := time.Now()
		if c.f.rival != "" && r.Status == leave.StatusPending {
			r.Status, r.ReviewedAt = c.f.rival, &now
			c.f.leaves[i] = r
			c.f.rival = ""
		}
		if r.Status != leave.StatusPending {
			return leave.LeaveRequest{}, leave.ErrAlreadyReviewed.With("request %s is %s", id, r.Status).WithStatus(409)
		}
		r.Status = status
		r.ReviewComments = comments
		r.ReviewedAt = &now
		if status == leave.StatusApproved {
			e := c.f.employees[r.EmployeeID]
			e.LeaveBalance -= r.DaysRequested
			c.f.employees[r.EmployeeID] = e
		}
		c.f.leaves[i] = r
		return r, nil
	}
	return leave.LeaveRequest{}, leave.ErrNotFound.With("leave %s", id)
}
