package wfh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

func date(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T {
	return &v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBoom = errors.New("boom")

/*** 内存存储 ***/

type memStore struct {
	mu sync.Mutex

	employees    map[int64]*domain.Employee
	requests     map[int64]*domain.Request
	arrangements []*domain.Arrangement
	blockouts    []*domain.Blockout
	nextID       int64

	// 故障注入
	teamErr        error
	createErr      error
	createFailAt   int // 第几次 CreateArrangement 调用失败，0 表示不失败
	createCalls    int
	deleteErr      error
	updateErr      error
	beforeUpdate   func(id int64)
	listPendingErr error
}

func newMemStore() *memStore {
	return &memStore{
		employees: make(map[int64]*domain.Employee),
		requests:  make(map[int64]*domain.Request),
		nextID:    1,
	}
}

func (s *memStore) addEmployee(id int64, dept domain.Department, manager *int64) *domain.Employee {
	e := &domain.Employee{
		ID:               id,
		FirstName:        "Staff",
		LastName:         fmt.Sprint(id),
		Department:       dept,
		Position:         "Engineer",
		Country:          "Singapore",
		Email:            fmt.Sprintf("staff%d@allinone.com.sg", id),
		ReportingManager: manager,
		Role:             domain.RoleStaff,
	}
	s.employees[id] = e
	return e
}

func (s *memStore) addArrangement(requestID int64, staffID int64, d time.Time, slot domain.Timeslot) *domain.Arrangement {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int32 = 1
	for _, a := range s.arrangements {
		if a.RequestID == requestID && a.ArrangementID >= next {
			next = a.ArrangementID + 1
		}
	}
	a := &domain.Arrangement{RequestID: requestID, ArrangementID: next, StaffID: staffID, Date: d, Timeslot: slot, Reason: "existing"}
	s.arrangements = append(s.arrangements, a)
	return a
}

func (s *memStore) addRequest(req *domain.Request) *domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.ID = s.nextID
	s.nextID++
	clone := *req
	s.requests[req.ID] = &clone
	return req
}

func (s *memStore) status(id int64) domain.RequestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

func (s *memStore) arrangementsOf(staffID int64) []*domain.Arrangement {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Arrangement
	for _, a := range s.arrangements {
		if a.StaffID == staffID {
			out = append(out, a)
		}
	}
	return out
}

// Directory

func (s *memStore) GetEmployeeByID(_ context.Context, id int64) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *memStore) GetEmployeeByEmail(_ context.Context, email string) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.employees {
		if e.Email == email {
			clone := *e
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) GetTeamMemberIDs(_ context.Context, managerID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.teamErr != nil {
		return nil, s.teamErr
	}
	ids := make([]int64, 0)
	for _, e := range s.employees {
		if e.ReportingManager != nil && *e.ReportingManager == managerID && e.ID != managerID {
			ids = append(ids, e.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ArrangementStore

func (s *memStore) CreateArrangement(_ context.Context, a *domain.Arrangement) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	if s.createFailAt > 0 && s.createCalls == s.createFailAt {
		return 0, s.createErr
	}
	for _, existing := range s.arrangements {
		if existing.StaffID == a.StaffID && existing.Date.Equal(a.Date) {
			return 0, domain.ErrDuplicateDate
		}
	}

	var next int32 = 1
	for _, existing := range s.arrangements {
		if existing.RequestID == a.RequestID && existing.ArrangementID >= next {
			next = existing.ArrangementID + 1
		}
	}
	clone := *a
	clone.ArrangementID = next
	s.arrangements = append(s.arrangements, &clone)
	return next, nil
}

func (s *memStore) GetArrangement(_ context.Context, requestID int64, arrangementID int32) (*domain.Arrangement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.arrangements {
		if a.RequestID == requestID && a.ArrangementID == arrangementID {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) filterArrangements(keep func(a *domain.Arrangement) bool) []*domain.Arrangement {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Arrangement, 0)
	for _, a := range s.arrangements {
		if keep(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *memStore) ListArrangementsByStaffID(_ context.Context, staffID int64) ([]*domain.Arrangement, error) {
	return s.filterArrangements(func(a *domain.Arrangement) bool { return a.StaffID == staffID }), nil
}

func (s *memStore) ListArrangementsByRequestID(_ context.Context, requestID int64) ([]*domain.Arrangement, error) {
	return s.filterArrangements(func(a *domain.Arrangement) bool { return a.RequestID == requestID }), nil
}

func (s *memStore) ListArrangementsOnDate(_ context.Context, staffIDs []int64, d time.Time) ([]*domain.Arrangement, error) {
	return s.filterArrangements(func(a *domain.Arrangement) bool {
		return a.Date.Equal(d) && slices.Contains(staffIDs, a.StaffID)
	}), nil
}

func (s *memStore) DeleteArrangement(_ context.Context, requestID int64, arrangementID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, a := range s.arrangements {
		if a.RequestID == requestID && a.ArrangementID == arrangementID {
			s.arrangements = append(s.arrangements[:i], s.arrangements[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// RequestStore

func (s *memStore) CreateRequest(_ context.Context, req *domain.Request) error {
	s.addRequest(req)
	return nil
}

func (s *memStore) GetRequestByID(_ context.Context, id int64) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *memStore) UpdateRequestStatus(_ context.Context, id int64, status domain.RequestStatus, remark string, expected domain.RequestStatus) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	if req.Status != expected {
		return domain.ErrConcurrentModification
	}
	req.Status = status
	req.Remark = remark
	req.Version++
	return nil
}

func (s *memStore) ListOverduePendingRequests(_ context.Context, cutoff time.Time) ([]*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listPendingErr != nil {
		return nil, s.listPendingErr
	}
	out := make([]*domain.Request, 0)
	for _, req := range s.requests {
		if req.Status == domain.StatusPending && !req.RequestDate.After(cutoff) {
			clone := *req
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) listRequests(keep func(r *domain.Request) bool) []*domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Request, 0)
	for _, req := range s.requests {
		if keep(req) {
			clone := *req
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListRequestsByStaffID(_ context.Context, staffID int64) ([]*domain.Request, error) {
	return s.listRequests(func(r *domain.Request) bool { return r.StaffID == staffID }), nil
}

func (s *memStore) ListRequestsByManagerID(_ context.Context, managerID int64) ([]*domain.Request, error) {
	return s.listRequests(func(r *domain.Request) bool { return r.ManagerID == managerID && r.StaffID != managerID }), nil
}

// BlockoutStore

func (s *memStore) ListBlockoutsBetween(_ context.Context, from, to time.Time) ([]*domain.Blockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Blockout, 0)
	for _, b := range s.blockouts {
		if !b.EndDate.Before(from) && !b.StartDate.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

/*** 通知 ***/

type sentMail struct {
	kind string
	to   []string
	data any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) record(kind string, data any, to ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, data: data})
	return nil
}

func (n *fakeNotifier) SendSubmitted(_ context.Context, managerEmail string, data domain.RequestSubmittedMailData) error {
	return n.record("submitted", data, managerEmail)
}

func (n *fakeNotifier) SendStatusChanged(_ context.Context, staffEmail string, data domain.StatusChangedMailData) error {
	return n.record("status", data, staffEmail)
}

func (n *fakeNotifier) SendRevocationBatch(_ context.Context, staffEmail, managerEmail string, data domain.RevocationMailData) error {
	return n.record("revocation", data, staffEmail, managerEmail)
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.kind)
	}
	return out
}

/*** 队列 ***/

type fakePublisher struct {
	mu    sync.Mutex
	tasks []*domain.RevocationTask
	err   error
}

func (p *fakePublisher) PublishRevocation(_ context.Context, task *domain.RevocationTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

/*** 锁 ***/

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released []string
	busy     map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool), busy: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.busy[key] || l.held[key] {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockNotAcquired, key)
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, nil
}

/*** 组装 ***/

type fixture struct {
	store     *memStore
	notifier  *fakeNotifier
	publisher *fakePublisher
	locker    *fakeLocker
	deps      Deps
	policy    Policy
	engine    *Engine
	today     time.Time
}

// newFixture 构造一个 CEO(1) -> 经理 201 -> 员工 101、102 的组织架构，部门为 Engineering
func newFixture(today string) *fixture {
	store := newMemStore()
	store.addEmployee(1, "CEO", nil)
	store.addEmployee(201, "Engineering", ptr(int64(1)))
	store.addEmployee(101, "Engineering", ptr(int64(201)))
	store.addEmployee(102, "Engineering", ptr(int64(201)))

	f := &fixture{
		store:     store,
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		locker:    newFakeLocker(),
		policy:    DefaultPolicy(),
		today:     date(today),
	}
	f.deps = Deps{
		Directory:    store,
		Requests:     store,
		Arrangements: store,
		Blockouts:    store,
		Notifier:     f.notifier,
		Publisher:    f.publisher,
		Locker:       f.locker,
		Logger:       discardLogger(),
		Now:          func() time.Time { return f.today.Add(9 * time.Hour) },
	}
	f.engine = NewEngine(f.deps, f.policy)
	return f
}

func (f *fixture) pending(staffID int64, slot domain.Timeslot, dates ...time.Time) *domain.Request {
	employee := f.store.employees[staffID]
	req := &domain.Request{
		StaffID:          staffID,
		ManagerID:        managerOf(employee),
		RequestDate:      f.today,
		Timeslot:         slot,
		Status:           domain.StatusPending,
		Reason:           "family",
		ArrangementDates: dates,
	}
	if len(dates) == 1 {
		req.ArrangementDate = ptr(dates[0])
	}
	return f.store.addRequest(req)
}
