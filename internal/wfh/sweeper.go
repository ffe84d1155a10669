package wfh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const (
	AutoRejectRemark = "系统自动拒绝：审批超时"

	sweeperLockKey = "wfh:sweeper"
	sweeperLockTTL = 10 * time.Minute
)

var ErrSweepInProgress = errors.New("已有自动过期任务正在执行")

type SweepResult struct {
	Matched        int `json:"matched"`
	Rejected       int `json:"rejected"`
	Skipped        int `json:"skipped"` // 扫描期间已被其他操作处理
	Failed         int `json:"failed"`
	NotifyFailures int `json:"notifyFailures"`
}

// Sweeper 定期将超过期限仍未审批的申请自动拒绝。
// 同一进程内用 running 防止重入，多实例之间用分布式锁防止重复扫描
type Sweeper struct {
	deps     Deps
	policy   Policy
	interval time.Duration
	running  atomic.Bool
}

func NewSweeper(deps Deps, policy Policy, interval time.Duration) *Sweeper {
	return &Sweeper{
		deps:     deps,
		policy:   policy,
		interval: interval,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	if !s.running.CompareAndSwap(false, true) {
		return result, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Acquire(ctx, sweeperLockKey, sweeperLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				return result, ErrSweepInProgress
			}
			return result, upstream("获取自动过期锁", err)
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.deps.logger().Warn("释放自动过期锁失败", "error", err)
			}
		}()
	}

	logger := s.deps.logger()
	cutoff := domain.AddMonths(s.deps.today(), -s.policy.PendingExpiryMonths)

	requests, err := s.deps.Requests.ListOverduePendingRequests(ctx, cutoff)
	if err != nil {
		return result, upstream("获取超时申请", err)
	}
	result.Matched = len(requests)

	for _, req := range requests {
		err := s.deps.Requests.UpdateRequestStatus(ctx, req.ID, domain.StatusRejected, AutoRejectRemark, domain.StatusPending)
		if errors.Is(err, domain.ErrConcurrentModification) {
			result.Skipped++
			logger.Info("申请已被其他操作处理，跳过自动拒绝", "requestID", req.ID)
			continue
		}
		if err != nil {
			result.Failed++
			logger.Error("自动拒绝申请失败", "requestID", req.ID, "error", err)
			continue
		}
		result.Rejected++

		if s.deps.Notifier == nil {
			continue
		}
		employee, err := s.deps.Directory.GetEmployeeByID(ctx, req.StaffID)
		if err != nil {
			result.NotifyFailures++
			logger.Error("获取员工信息失败，无法发送自动拒绝通知", "requestID", req.ID, "error", err)
			continue
		}
		data := domain.StatusChangedMailData{RequestID: req.ID, Status: domain.StatusRejected, Remark: AutoRejectRemark}
		if err := s.deps.Notifier.SendStatusChanged(ctx, employee.Email, data); err != nil {
			result.NotifyFailures++
			logger.Error("发送自动拒绝通知失败", "requestID", req.ID, "error", err)
		}
	}

	logger.Info("自动过期任务完成",
		"cutoff", cutoff.Format(domain.DateLayout),
		"matched", result.Matched,
		"rejected", result.Rejected,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}

// Run 启动时立即执行一次，之后按固定间隔执行，直到 ctx 被取消
func (s *Sweeper) Run(ctx context.Context) {
	logger := s.deps.logger()
	logger.Info("自动过期任务已启动", "interval", s.interval)

	sweep := func() {
		if _, err := s.Sweep(ctx); err != nil {
			logger.Error("自动过期任务执行失败", "error", err)
		}
	}

	sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("自动过期任务已停止")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
