package wfh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

// Engine 负责申请的状态机：提交、审批、拒绝、取消以及撤回
type Engine struct {
	deps      Deps
	policy    Policy
	admission *AdmissionController
}

func NewEngine(deps Deps, policy Policy) *Engine {
	return &Engine{
		deps:      deps,
		policy:    policy,
		admission: NewAdmissionController(deps.Directory, deps.Arrangements, policy),
	}
}

type RecurrenceInput struct {
	Weekday   string
	StartDate time.Time
	EndDate   time.Time
}

type SubmitInput struct {
	StaffID         int64
	Timeslot        domain.Timeslot
	Reason          string
	ArrangementDate *time.Time
	Recurrence      *RecurrenceInput
}

type DecideInput struct {
	RequestID int64
	Decision  domain.Decision
	Remark    string
}

// Submit 校验并保存一个 Pending 申请，然后通知经理
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*domain.Request, error) {
	if in.StaffID == 0 {
		return nil, fmt.Errorf("%w: 缺少员工 ID", domain.ErrValidation)
	}
	if _, err := domain.ParseTimeslot(string(in.Timeslot)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: 申请理由不能为空", domain.ErrValidation)
	}
	if (in.ArrangementDate == nil) == (in.Recurrence == nil) {
		return nil, fmt.Errorf("%w: 单日日期和循环规则必须且只能提供一个", domain.ErrValidation)
	}

	employee, err := e.deps.Directory.GetEmployeeByID(ctx, in.StaffID)
	if err != nil {
		return nil, storeError("获取员工信息", err)
	}

	today := e.deps.today()
	req := &domain.Request{
		StaffID:     employee.ID,
		ManagerID:   managerOf(employee),
		RequestDate: today,
		Timeslot:    in.Timeslot,
		Status:      domain.StatusPending,
		Reason:      in.Reason,
	}

	if in.ArrangementDate != nil {
		date := domain.Date(*in.ArrangementDate)
		req.ArrangementDate = &date
		req.ArrangementDates = []time.Time{date}
	} else {
		dates, err := ExpandWeekday(in.Recurrence.Weekday, in.Recurrence.StartDate, in.Recurrence.EndDate)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			return nil, domain.ErrNoDatesGenerated
		}
		req.Recurrence = &domain.Recurrence{
			Weekday:   domain.Weekday(in.Recurrence.Weekday),
			StartDate: domain.Date(in.Recurrence.StartDate),
			EndDate:   domain.Date(in.Recurrence.EndDate),
		}
		req.ArrangementDates = dates
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkWindow(today, req.ArrangementDates); err != nil {
		return nil, err
	}
	if err := e.checkBlockouts(ctx, req.ArrangementDates, req.Timeslot); err != nil {
		return nil, err
	}

	if err := e.deps.Requests.CreateRequest(ctx, req); err != nil {
		return nil, storeError("保存申请", err)
	}

	e.deps.logger().Info("收到居家办公申请",
		"requestID", req.ID, "staffID", req.StaffID, "dates", len(req.ArrangementDates), "timeslot", req.Timeslot)

	e.notifySubmitted(ctx, employee, req)
	return req, nil
}

func (e *Engine) Decide(ctx context.Context, in DecideInput) (*domain.Request, error) {
	switch in.Decision {
	case domain.DecisionApprove:
		return e.Approve(ctx, in.RequestID, in.Remark)
	case domain.DecisionReject:
		return e.Reject(ctx, in.RequestID, in.Remark)
	default:
		return nil, fmt.Errorf("%w: 未知的审批决定 %q", domain.ErrValidation, in.Decision)
	}
}

// Approve 分两个阶段：先对所有日期做重复检查和人数上限检查，全部通过后才创建安排。
// 任何一个日期不通过时申请保持 Pending，不会留下任何安排
func (e *Engine) Approve(ctx context.Context, id int64, remark string) (*domain.Request, error) {
	req, err := e.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.StatusApproved) {
		return nil, &domain.InvalidTransitionError{From: req.Status, To: domain.StatusApproved}
	}

	employee, err := e.deps.Directory.GetEmployeeByID(ctx, req.StaffID)
	if err != nil {
		return nil, storeError("获取员工信息", err)
	}

	dates := sortedDates(req.ArrangementDates)

	release, err := e.lockDates(ctx, req.ManagerID, dates)
	if err != nil {
		return nil, err
	}
	defer release()

	/*** 校验阶段 ***/
	existing, err := e.deps.Arrangements.ListArrangementsByStaffID(ctx, req.StaffID)
	if err != nil {
		return nil, upstream("获取员工已有安排", err)
	}
	if err := duplicateDates(req.ID, dates, existing); err != nil {
		return nil, err
	}

	var failures []domain.DateFailure
	for _, date := range dates {
		verdict, err := e.admission.Check(ctx, employee, date, req.Timeslot)
		if err != nil {
			return nil, err
		}
		if !verdict.Admitted {
			failures = append(failures, domain.DateFailure{Date: date, Reason: verdict.Reason})
		}
	}
	if len(failures) > 0 {
		e.deps.logger().Info("居家办公申请未通过人数上限检查", "requestID", req.ID, "failedDates", len(failures))
		return nil, &domain.AdmissionDeniedError{Failures: failures}
	}

	/*** 提交阶段 ***/
	// 上一次审批中途失败并且补偿未完成时，本申请可能已经留下部分安排，这些日期不再重复创建
	owned := make(map[int64]bool)
	for _, a := range existing {
		if a.RequestID == req.ID {
			owned[domain.Date(a.Date).Unix()] = true
		}
	}

	created := make([]*domain.Arrangement, 0, len(dates))
	for _, date := range dates {
		if owned[date.Unix()] {
			continue
		}
		a := &domain.Arrangement{
			RequestID: req.ID,
			StaffID:   req.StaffID,
			Date:      date,
			Timeslot:  req.Timeslot,
			Reason:    req.Reason,
		}
		arrangementID, err := e.deps.Arrangements.CreateArrangement(ctx, a)
		if err != nil {
			e.compensate(created)
			return nil, storeError("创建居家办公安排", err)
		}
		a.ArrangementID = arrangementID
		created = append(created, a)
	}

	if err := e.deps.Requests.UpdateRequestStatus(ctx, req.ID, domain.StatusApproved, remark, domain.StatusPending); err != nil {
		e.compensate(created)
		return nil, storeError("更新申请状态", err)
	}
	req.Status = domain.StatusApproved
	req.Remark = remark

	e.deps.logger().Info("居家办公申请已批准", "requestID", req.ID, "arrangements", len(created))

	e.notifyStatusChanged(ctx, employee.Email, req)
	return req, nil
}

func (e *Engine) Reject(ctx context.Context, id int64, remark string) (*domain.Request, error) {
	return e.transition(ctx, id, domain.StatusRejected, remark, true)
}

// Cancel 用于员工撤回仍在 Pending 的申请，此时还没有任何安排
func (e *Engine) Cancel(ctx context.Context, id int64, reason string) (*domain.Request, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: 取消原因不能为空", domain.ErrValidation)
	}
	return e.transition(ctx, id, domain.StatusCancelled, reason, false)
}

func (e *Engine) transition(ctx context.Context, id int64, to domain.RequestStatus, remark string, notify bool) (*domain.Request, error) {
	req, err := e.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(to) {
		return nil, &domain.InvalidTransitionError{From: req.Status, To: to}
	}

	if err := e.deps.Requests.UpdateRequestStatus(ctx, req.ID, to, remark, req.Status); err != nil {
		return nil, storeError("更新申请状态", err)
	}
	req.Status = to
	req.Remark = remark

	e.deps.logger().Info("居家办公申请状态已变更", "requestID", req.ID, "status", to)

	if notify {
		e.notifyStaff(ctx, req)
	}
	return req, nil
}

// WithdrawSingle 删除一条安排，并把它所属的整个申请标记为 Withdrawn，即使同一申请还有其他安排
func (e *Engine) WithdrawSingle(ctx context.Context, requestID int64, arrangementID int32) (*domain.Arrangement, error) {
	arrangement, err := e.deps.Arrangements.GetArrangement(ctx, requestID, arrangementID)
	if err != nil {
		return nil, storeError("获取居家办公安排", err)
	}

	req, err := e.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusApproved && req.Status != domain.StatusWithdrawn {
		return nil, &domain.InvalidTransitionError{From: req.Status, To: domain.StatusWithdrawn}
	}

	if err := e.deps.Arrangements.DeleteArrangement(ctx, requestID, arrangementID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, upstream("删除居家办公安排", err)
	}

	remark := fmt.Sprintf("居家办公安排 %d 已撤回", arrangementID)
	if err := e.MarkWithdrawn(ctx, requestID, remark, true); err != nil {
		return nil, err
	}
	return arrangement, nil
}

// MarkWithdrawn 将已批准的申请标记为 Withdrawn，对已经是 Withdrawn 的申请不做任何事。
// 撤销任务会对同一个申请重复调用它，所以必须是幂等的
func (e *Engine) MarkWithdrawn(ctx context.Context, id int64, remark string, notify bool) error {
	req, err := e.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	switch req.Status {
	case domain.StatusWithdrawn:
		return nil
	case domain.StatusApproved:
	default:
		return &domain.InvalidTransitionError{From: req.Status, To: domain.StatusWithdrawn}
	}

	err = e.deps.Requests.UpdateRequestStatus(ctx, id, domain.StatusWithdrawn, remark, domain.StatusApproved)
	if errors.Is(err, domain.ErrConcurrentModification) {
		// 其他撤销操作可能抢先完成了同样的变更
		if latest, gerr := e.GetRequest(ctx, id); gerr == nil && latest.Status == domain.StatusWithdrawn {
			return nil
		}
	}
	if err != nil {
		return storeError("更新申请状态", err)
	}
	req.Status = domain.StatusWithdrawn
	req.Remark = remark

	e.deps.logger().Info("居家办公申请已撤回", "requestID", id, "notify", notify)

	if notify {
		e.notifyStaff(ctx, req)
	}
	return nil
}

/*** 查询 ***/

func (e *Engine) GetRequest(ctx context.Context, id int64) (*domain.Request, error) {
	req, err := e.deps.Requests.GetRequestByID(ctx, id)
	if err != nil {
		return nil, storeError("获取申请", err)
	}
	return req, nil
}

func (e *Engine) ListStaffRequests(ctx context.Context, staffID int64) ([]*domain.Request, error) {
	requests, err := e.deps.Requests.ListRequestsByStaffID(ctx, staffID)
	if err != nil {
		return nil, storeError("获取员工申请", err)
	}
	return requests, nil
}

func (e *Engine) ListTeamRequests(ctx context.Context, managerID int64) ([]*domain.Request, error) {
	requests, err := e.deps.Requests.ListRequestsByManagerID(ctx, managerID)
	if err != nil {
		return nil, storeError("获取团队申请", err)
	}
	return requests, nil
}

func (e *Engine) ListStaffArrangements(ctx context.Context, staffID int64) ([]*domain.Arrangement, error) {
	arrangements, err := e.deps.Arrangements.ListArrangementsByStaffID(ctx, staffID)
	if err != nil {
		return nil, storeError("获取员工安排", err)
	}
	return arrangements, nil
}

func (e *Engine) ListRequestArrangements(ctx context.Context, requestID int64) ([]*domain.Arrangement, error) {
	arrangements, err := e.deps.Arrangements.ListArrangementsByRequestID(ctx, requestID)
	if err != nil {
		return nil, storeError("获取申请安排", err)
	}
	return arrangements, nil
}

// ListTeamArrangements 返回经理团队（包括经理本人）在某一天的所有安排
func (e *Engine) ListTeamArrangements(ctx context.Context, managerID int64, date time.Time) ([]*domain.Arrangement, error) {
	team, err := e.deps.Directory.GetTeamMemberIDs(ctx, managerID)
	if err != nil {
		return nil, storeError("获取团队成员", err)
	}
	team = append(slices.Clone(team), managerID)

	arrangements, err := e.deps.Arrangements.ListArrangementsOnDate(ctx, team, domain.Date(date))
	if err != nil {
		return nil, storeError("获取团队当日安排", err)
	}
	return arrangements, nil
}

/*** 内部辅助 ***/

func (e *Engine) checkWindow(today time.Time, dates []time.Time) error {
	earliest := domain.AddMonths(today, -e.policy.SubmissionMonthsBack)
	latest := domain.AddMonths(today, e.policy.SubmissionMonthsForward)
	for _, date := range dates {
		if date.Before(earliest) || date.After(latest) {
			return &domain.DateOutOfRangeError{Date: date, Earliest: earliest, Latest: latest}
		}
	}
	return nil
}

func (e *Engine) checkBlockouts(ctx context.Context, dates []time.Time, timeslot domain.Timeslot) error {
	if e.deps.Blockouts == nil || len(dates) == 0 {
		return nil
	}

	blockouts, err := e.deps.Blockouts.ListBlockoutsBetween(ctx, dates[0], dates[len(dates)-1])
	if err != nil {
		return upstream("获取封锁期", err)
	}
	for _, date := range dates {
		for _, b := range blockouts {
			if b.Covers(date, timeslot) {
				return &domain.BlockedOutError{Date: date, Title: b.Title}
			}
		}
	}
	return nil
}

// lockDates 按日期升序获取 (经理, 日期) 的锁，保证同一团队同一天的审批串行执行
func (e *Engine) lockDates(ctx context.Context, managerID int64, dates []time.Time) (func(), error) {
	if e.deps.Locker == nil {
		return func() {}, nil
	}

	releases := make([]func(context.Context) error, 0, len(dates))
	releaseAll := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](ctx); err != nil {
				e.deps.logger().Warn("释放审批锁失败", "managerID", managerID, "error", err)
			}
		}
	}

	locked := make(map[string]bool, len(dates))
	for _, date := range dates {
		key := fmt.Sprintf("wfh:approval:%d:%s", managerID, date.Format(domain.DateLayout))
		if locked[key] {
			continue
		}
		locked[key] = true
		release, err := e.deps.Locker.Acquire(ctx, key, e.policy.ApprovalLockTTL)
		if err != nil {
			releaseAll()
			if errors.Is(err, domain.ErrConcurrentModification) {
				return nil, err
			}
			return nil, upstream("获取审批锁", err)
		}
		releases = append(releases, release)
	}

	return releaseAll, nil
}

// compensate 删除本次审批已经创建的安排，失败时只记录日志，重新审批会跳过残留的安排
func (e *Engine) compensate(created []*domain.Arrangement) {
	if len(created) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, a := range created {
		if err := e.deps.Arrangements.DeleteArrangement(ctx, a.RequestID, a.ArrangementID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			e.deps.logger().Error("回滚居家办公安排失败",
				"requestID", a.RequestID, "arrangementID", a.ArrangementID, "error", err)
		}
	}
}

func (e *Engine) notifySubmitted(ctx context.Context, employee *domain.Employee, req *domain.Request) {
	if e.deps.Notifier == nil || employee.ReportingManager == nil {
		return
	}

	manager, err := e.deps.Directory.GetEmployeeByID(ctx, *employee.ReportingManager)
	if err != nil {
		e.deps.logger().Error("获取经理信息失败，无法发送提交通知", "requestID", req.ID, "error", err)
		return
	}

	data := domain.RequestSubmittedMailData{
		RequestID:    req.ID,
		StaffID:      employee.ID,
		EmployeeName: employee.FullName(),
		Timeslot:     req.Timeslot,
		Dates:        req.ArrangementDates,
		Reason:       req.Reason,
	}
	if err := e.deps.Notifier.SendSubmitted(ctx, manager.Email, data); err != nil {
		e.deps.logger().Error("发送提交通知失败", "requestID", req.ID, "error", err)
	}
}

func (e *Engine) notifyStaff(ctx context.Context, req *domain.Request) {
	if e.deps.Notifier == nil {
		return
	}

	employee, err := e.deps.Directory.GetEmployeeByID(ctx, req.StaffID)
	if err != nil {
		e.deps.logger().Error("获取员工信息失败，无法发送状态通知", "requestID", req.ID, "error", err)
		return
	}
	e.notifyStatusChanged(ctx, employee.Email, req)
}

func (e *Engine) notifyStatusChanged(ctx context.Context, email string, req *domain.Request) {
	if e.deps.Notifier == nil {
		return
	}

	data := domain.StatusChangedMailData{RequestID: req.ID, Status: req.Status, Remark: req.Remark}
	if err := e.deps.Notifier.SendStatusChanged(ctx, email, data); err != nil {
		e.deps.logger().Error("发送状态变更通知失败", "requestID", req.ID, "status", req.Status, "error", err)
	}
}

// duplicateDates 找出列表内部重复的日期以及已经被其他申请占用的日期
func duplicateDates(requestID int64, dates []time.Time, existing []*domain.Arrangement) error {
	seen := make(map[int64]bool, len(dates))
	reported := make(map[int64]bool)
	var duplicates []time.Time

	report := func(date time.Time) {
		if !reported[date.Unix()] {
			reported[date.Unix()] = true
			duplicates = append(duplicates, date)
		}
	}

	for _, date := range dates {
		if seen[date.Unix()] {
			report(date)
		}
		seen[date.Unix()] = true
	}
	for _, a := range existing {
		date := domain.Date(a.Date)
		if a.RequestID != requestID && seen[date.Unix()] {
			report(date)
		}
	}

	if len(duplicates) == 0 {
		return nil
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i].Before(duplicates[j]) })
	return &domain.DuplicateDateError{Dates: duplicates}
}

func sortedDates(dates []time.Time) []time.Time {
	sorted := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		sorted = append(sorted, domain.Date(d))
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted
}

// managerOf 返回员工的汇报经理，没有经理的员工视为自己的经理
func managerOf(employee *domain.Employee) int64 {
	if employee.ReportingManager == nil {
		return employee.ID
	}
	return *employee.ReportingManager
}

// storeError 原样返回调用方能够处理的错误类别，其余错误视为依赖服务不可用
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrValidation):
		return err
	}
	return upstream(op, err)
}
