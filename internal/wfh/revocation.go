package wfh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

var ErrNothingToRevoke = fmt.Errorf("%w: 没有可撤销的居家办公安排", domain.ErrNotFound)

type RevokeStaffInput struct {
	StaffID int64
	Email   string // StaffID 为 0 时通过邮箱查找员工
	Reason  string
}

// Coordinator 是撤销流程的生产者：校验所有日期后发布一条撤销任务，不等待任务执行完成
type Coordinator struct {
	deps   Deps
	policy Policy
}

func NewCoordinator(deps Deps, policy Policy) *Coordinator {
	return &Coordinator{deps: deps, policy: policy}
}

func (c *Coordinator) RevokeStaff(ctx context.Context, in RevokeStaffInput) (*domain.RevocationTask, error) {
	var (
		employee *domain.Employee
		err      error
	)
	switch {
	case in.StaffID != 0:
		employee, err = c.deps.Directory.GetEmployeeByID(ctx, in.StaffID)
	case strings.TrimSpace(in.Email) != "":
		employee, err = c.deps.Directory.GetEmployeeByEmail(ctx, strings.TrimSpace(in.Email))
	default:
		return nil, fmt.Errorf("%w: 必须提供员工 ID 或邮箱", domain.ErrValidation)
	}
	if err != nil {
		return nil, storeError("获取员工信息", err)
	}

	arrangements, err := c.deps.Arrangements.ListArrangementsByStaffID(ctx, employee.ID)
	if err != nil {
		return nil, upstream("获取员工安排", err)
	}

	return c.publish(ctx, employee, arrangements, in.Reason)
}

// RevokeRequest 撤销某一个申请下的全部安排
func (c *Coordinator) RevokeRequest(ctx context.Context, requestID int64, reason string) (*domain.RevocationTask, error) {
	arrangements, err := c.deps.Arrangements.ListArrangementsByRequestID(ctx, requestID)
	if err != nil {
		return nil, upstream("获取申请安排", err)
	}
	if len(arrangements) == 0 {
		return nil, ErrNothingToRevoke
	}

	employee, err := c.deps.Directory.GetEmployeeByID(ctx, arrangements[0].StaffID)
	if err != nil {
		return nil, storeError("获取员工信息", err)
	}

	return c.publish(ctx, employee, arrangements, reason)
}

func (c *Coordinator) publish(ctx context.Context, employee *domain.Employee, arrangements []*domain.Arrangement, reason string) (*domain.RevocationTask, error) {
	if len(arrangements) == 0 {
		return nil, ErrNothingToRevoke
	}

	sorted := make([]*domain.Arrangement, len(arrangements))
	copy(sorted, arrangements)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		if sorted[i].RequestID != sorted[j].RequestID {
			return sorted[i].RequestID < sorted[j].RequestID
		}
		return sorted[i].ArrangementID < sorted[j].ArrangementID
	})

	// 所有日期都必须在可撤销期限内，否则整个撤销请求被拒绝，不会发布任何任务
	today := c.deps.today()
	items := make([]domain.RevocationItem, 0, len(sorted))
	for _, a := range sorted {
		date := domain.Date(a.Date)
		deadline := domain.AddMonths(date, c.policy.RevocationWindowMonths)
		if !today.Before(deadline) {
			return nil, &domain.RevocationTooLateError{Date: date, Deadline: deadline}
		}
		items = append(items, domain.RevocationItem{
			RequestID:     a.RequestID,
			ArrangementID: a.ArrangementID,
			Date:          date,
		})
	}

	managerEmail := ""
	if employee.ReportingManager != nil {
		manager, err := c.deps.Directory.GetEmployeeByID(ctx, *employee.ReportingManager)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.deps.logger().Warn("找不到员工的汇报经理，撤销通知只发送给员工", "staffID", employee.ID)
		case err != nil:
			return nil, upstream("获取经理信息", err)
		default:
			managerEmail = manager.Email
		}
	}

	task := &domain.RevocationTask{
		ID:           uuid.NewString(),
		StaffID:      employee.ID,
		Items:        items,
		StaffEmail:   employee.Email,
		ManagerEmail: managerEmail,
		Reason:       reason,
		RequestedAt:  c.deps.now(),
	}

	if err := c.deps.Publisher.PublishRevocation(ctx, task); err != nil {
		return nil, upstream("发布撤销任务", err)
	}

	c.deps.logger().Info("撤销任务已发布", "taskID", task.ID, "staffID", task.StaffID, "items", len(task.Items))
	return task, nil
}
