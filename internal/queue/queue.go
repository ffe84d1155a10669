package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

const (
	EmailQueue  = "email_queue"
	RevokeQueue = "revoke_queue"
)

// Declare 声明持久化队列，生产者和消费者都要调用，保证先启动的一方也能找到队列
func Declare(ch *amqp.Channel, names ...string) error {
	for _, name := range names {
		_, err := ch.QueueDeclare(
			name,  // 队列名称
			true,  // 是否持久化
			false, // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
			false, // 是否独占，即是否允许多个消费者访问这个队列
			false, // 是否不等待，设置为 false，即等待 RabbitMQ 确认队列是否创建成功
			nil,   // 额外参数
		)
		if err != nil {
			return fmt.Errorf("无法声明队列 %s: %w", name, err)
		}
	}
	return nil
}

// Publisher 将消息以 JSON 形式持久化投递到默认交换机。
// amqp.Channel 不能被多个 goroutine 同时用于发布，因此需要加锁
type Publisher struct {
	mu      sync.Mutex
	ch      *amqp.Channel
	timeout time.Duration
}

// NewPublisher 以 mandatory 方式投递，无法路由到队列的消息会被 RabbitMQ 退回并记录日志
func NewPublisher(ch *amqp.Channel, timeout time.Duration, logger *slog.Logger) *Publisher {
	returns := ch.NotifyReturn(make(chan amqp.Return, 16))
	go logReturns(logger, returns)
	return &Publisher{ch: ch, timeout: timeout}
}

// logReturns 在通道关闭后退出
func logReturns(logger *slog.Logger, returns <-chan amqp.Return) {
	for ret := range returns {
		logger.Error("消息无法路由，已被退回",
			"queue", ret.RoutingKey,
			"messageID", ret.MessageId,
			"replyCode", ret.ReplyCode,
			"replyText", ret.ReplyText,
		)
	}
}

func (p *Publisher) PublishJSON(ctx context.Context, queue string, messageID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("消息序列化失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		ctx,
		"",    // 默认交换机
		queue, // 路由键即队列名称
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *Publisher) PublishRevocation(ctx context.Context, task *domain.RevocationTask) error {
	return p.PublishJSON(ctx, RevokeQueue, task.ID, task)
}

// Handler 处理一条消息的消息体。返回 nil 时确认消息，
// 返回 Permanent 包装的错误时丢弃消息，其余错误会让消息重新入队
type Handler func(ctx context.Context, body []byte) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记一个重试也无法成功的错误，例如消息体无法解析
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type Outcome string

const (
	OutcomeAcked    Outcome = "acked"
	OutcomeDropped  Outcome = "dropped"
	OutcomeRequeued Outcome = "requeued"
)

// HandleDelivery 调用 h 处理消息并根据结果确认、丢弃或者重新入队。
// 重新入队之前会等待 retryDelay，避免依赖服务故障时消息被立即重复投递
func HandleDelivery(ctx context.Context, logger *slog.Logger, d amqp.Delivery, h Handler, retryDelay time.Duration) Outcome {
	logger = logger.With("queue", d.RoutingKey, "messageID", d.MessageId, "redelivered", d.Redelivered)

	err := h(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error("无法确认消息", "error", ackErr)
		}
		return OutcomeAcked
	case IsPermanent(err):
		logger.Error("消息无法处理，已丢弃", "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Error("无法丢弃消息", "error", nackErr)
		}
		return OutcomeDropped
	default:
		logger.Warn("消息处理失败，将重新入队", "error", err, "retryDelay", retryDelay)
		select {
		case <-ctx.Done():
		case <-time.After(retryDelay):
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error("无法将消息重新入队", "error", nackErr)
		}
		return OutcomeRequeued
	}
}

// Consume 逐条处理队列中的消息，直到 ctx 被取消或者通道关闭
func Consume(ctx context.Context, logger *slog.Logger, ch *amqp.Channel, queue string, prefetch int, retryDelay time.Duration, h Handler) error {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("无法设置预取数量: %w", err)
	}

	msgs, err := ch.Consume(
		queue, // 队列
		"",    // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false, // 手动确认
		false, // 是否独占队列
		false, // 是否禁止消费者接受自己发送的消息，RabbitMQ 不支持这个参数
		false, // 是否不等待，等待 RabbitMQ 响应
		nil,   // 额外参数
	)
	if err != nil {
		return fmt.Errorf("无法消费队列 %s: %w", queue, err)
	}

	logger.Info("开始消费队列", "queue", queue, "prefetch", prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("消息通道已关闭")
			}
			// 处理单条消息时不响应取消，保证消息要么处理完成要么保持未确认
			HandleDelivery(context.WithoutCancel(ctx), logger, d, h, retryDelay)
		}
	}
}
