package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/queue"
	"github.com/wneessen/go-mail"
)

type Publisher interface {
	PublishJSON(ctx context.Context, queue string, messageID string, v any) error
}

// Notifier 不直接发送邮件，而是把邮件信息投递到邮件队列，由 mail worker 负责发送
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger}
}

func (n *Notifier) enqueue(ctx context.Context, to string, typ domain.MailType, data any) error {
	return n.enqueueWithID(ctx, uuid.NewString(), to, typ, data)
}

// enqueueWithID 使用调用方给定的消息 ID，同一封邮件重复投递时 ID 不变，由 mail worker 去重
func (n *Notifier) enqueueWithID(ctx context.Context, id string, to string, typ domain.MailType, data any) error {
	if to == "" {
		n.logger.Warn("收件人为空，跳过邮件", "type", typ)
		return nil
	}

	msg := domain.MailMessage{
		ID:   id,
		Type: typ,
		To:   to,
		Data: data,
	}
	if err := n.publisher.PublishJSON(ctx, queue.EmailQueue, msg.ID, msg); err != nil {
		return fmt.Errorf("无法投递邮件 %s: %w", typ, err)
	}
	return nil
}

func (n *Notifier) SendResetPassword(ctx context.Context, to string, data domain.ResetPasswordMailData) error {
	return n.enqueue(ctx, to, domain.MailTypeResetPassword, data)
}

func (n *Notifier) SendSubmitted(ctx context.Context, managerEmail string, data domain.RequestSubmittedMailData) error {
	return n.enqueue(ctx, managerEmail, domain.MailTypeRequestSubmitted, data)
}

func (n *Notifier) SendStatusChanged(ctx context.Context, staffEmail string, data domain.StatusChangedMailData) error {
	return n.enqueue(ctx, staffEmail, domain.MailTypeStatusChanged, data)
}

// SendRevocationBatch 分别给员工和经理各投递一封撤销通知。
// 消息 ID 由撤销任务 ID 决定，任务重新投递时不会给同一个人发送第二封
func (n *Notifier) SendRevocationBatch(ctx context.Context, staffEmail, managerEmail string, data domain.RevocationMailData) error {
	staffID, managerID := uuid.NewString(), uuid.NewString()
	if data.TaskID != "" {
		staffID = revocationMailID(data.TaskID, domain.MailTypeRevokedStaff)
		managerID = revocationMailID(data.TaskID, domain.MailTypeRevokedManager)
	}

	return errors.Join(
		n.enqueueWithID(ctx, staffID, staffEmail, domain.MailTypeRevokedStaff, data),
		n.enqueueWithID(ctx, managerID, managerEmail, domain.MailTypeRevokedManager, data),
	)
}

func revocationMailID(taskID string, typ domain.MailType) string {
	return fmt.Sprintf("%s:%s", taskID, typ)
}

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// NewHandler 返回邮件队列的消息处理函数。消息格式错误时丢弃，发送失败时重新入队。
// sent 不为空时按消息 ID 去重，已经发送过的邮件直接确认
func NewHandler(from string, sender Sender, sent SentLog, logger *slog.Logger) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		var raw domain.RawMailMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return queue.Permanent(fmt.Errorf("邮件信息反序列化失败: %w", err))
		}

		msg, err := Compose(raw, from)
		if err != nil {
			return queue.Permanent(err)
		}

		dedupe := sent != nil && raw.ID != ""
		if dedupe {
			claimed, err := sent.Claim(ctx, raw.ID)
			if err != nil {
				return fmt.Errorf("无法检查邮件是否已发送: %w", err)
			}
			if !claimed {
				logger.Info("邮件已发送过，跳过", "id", raw.ID, "type", raw.Type)
				return nil
			}
		}

		if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
			if dedupe {
				if releaseErr := sent.Release(context.WithoutCancel(ctx), raw.ID); releaseErr != nil {
					logger.Error("无法释放邮件发送标记", "id", raw.ID, "error", releaseErr)
				}
			}
			return fmt.Errorf("邮件发送失败: %w", err)
		}

		if dedupe {
			if err := sent.Confirm(context.WithoutCancel(ctx), raw.ID); err != nil {
				logger.Error("无法记录邮件已发送", "id", raw.ID, "error", err)
			}
		}
		return nil
	}
}
