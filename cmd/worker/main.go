package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/mailer"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/queue"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 消费和发布使用不同的通道，避免消费端的流控影响邮件投递
	consumeCh, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer consumeCh.Close()

	publishCh, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer publishCh.Close()

	if err := queue.Declare(consumeCh, queue.EmailQueue, queue.RevokeQueue); err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 组装撤销 worker
	 **********************************************/
	publisher := queue.NewPublisher(publishCh, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second, logger)
	deps := wfh.Deps{
		Directory:    repo,
		Requests:     repo,
		Arrangements: repo,
		Blockouts:    repo,
		Notifier:     mailer.NewNotifier(publisher, logger),
		Publisher:    publisher,
		Logger:       logger,
	}
	engine := wfh.NewEngine(deps, cfg.WFHPolicy())
	worker := wfh.NewRevocationWorker(deps, engine)

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, stop := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	retryDelay := time.Duration(cfg.RabbitMQ.RetryDelay) * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := queue.Consume(ctx, logger, consumeCh, queue.RevokeQueue, cfg.RabbitMQ.Prefetch, retryDelay, worker.Handle); err != nil {
			logger.Error("无法消费消息", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	logger.Info("等待撤销任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 revocation worker...")
	stop()
	wg.Wait()
	logger.Info("revocation worker 已成功关闭")
}
