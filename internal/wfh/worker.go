package wfh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/queue"
)

// RevocationWorker 是撤销流程的消费者。消息可能被重复投递，所以每一步都必须是幂等的：
// 删除已经不存在的安排、重复标记已经撤回的申请都视为成功
type RevocationWorker struct {
	deps   Deps
	engine *Engine
}

func NewRevocationWorker(deps Deps, engine *Engine) *RevocationWorker {
	return &RevocationWorker{deps: deps, engine: engine}
}

// Handle 解析队列中的消息并处理，无法解析或者内容不合法的消息会被丢弃
func (w *RevocationWorker) Handle(ctx context.Context, body []byte) error {
	var task domain.RevocationTask
	if err := json.Unmarshal(body, &task); err != nil {
		return queue.Permanent(fmt.Errorf("撤销任务反序列化失败: %w", err))
	}

	err := w.Process(ctx, &task)
	if errors.Is(err, domain.ErrValidation) {
		return queue.Permanent(err)
	}
	return err
}

// Process 依次删除安排并把所属申请标记为撤回，全部成功后才发送一封汇总通知。
// 返回错误时消息不会被确认，重新投递后从头执行
func (w *RevocationWorker) Process(ctx context.Context, task *domain.RevocationTask) error {
	if task.StaffID == 0 {
		return fmt.Errorf("%w: 撤销任务缺少员工 ID", domain.ErrValidation)
	}

	logger := w.deps.logger().With("taskID", task.ID, "staffID", task.StaffID)
	logger.Info("开始处理撤销任务", "items", len(task.Items))

	for _, item := range task.Items {
		err := w.deps.Arrangements.DeleteArrangement(ctx, item.RequestID, item.ArrangementID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return upstream("删除居家办公安排", err)
		}

		remark := fmt.Sprintf("居家办公安排 %d 已被撤销", item.ArrangementID)
		if task.Reason != "" {
			remark = fmt.Sprintf("%s：%s", remark, task.Reason)
		}

		// 逐条的状态通知被抑制，最后统一发送一封撤销通知
		err = w.engine.MarkWithdrawn(ctx, item.RequestID, remark, false)
		switch {
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			logger.Warn("申请无法标记为撤回，已跳过", "requestID", item.RequestID, "error", err)
		case err != nil:
			return err
		}
	}

	if w.deps.Notifier != nil {
		data := domain.RevocationMailData{
			TaskID:     task.ID,
			StaffID:    task.StaffID,
			StaffEmail: task.StaffEmail,
			Items:      task.Items,
			Reason:     task.Reason,
		}
		if err := w.deps.Notifier.SendRevocationBatch(ctx, task.StaffEmail, task.ManagerEmail, data); err != nil {
			return upstream("发送撤销通知", err)
		}
	}

	logger.Info("撤销任务处理完成")
	return nil
}
