package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/handler"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/lock"
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
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository 并确保表结构存在
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	if err := repo.Migrate(ctx); err != nil {
		logger.Error("无法初始化数据库表结构", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	// 声明队列
	if err := queue.Declare(ch, queue.EmailQueue, queue.RevokeQueue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer redisCancel()

	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 组装业务服务
	 **********************************************/
	publisher := queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second, logger)
	notifier := mailer.NewNotifier(publisher, logger)
	locker := lock.NewRedisLocker(rdb, time.Duration(cfg.Redis.OperationExpiration)*time.Second)
	policy := cfg.WFHPolicy()

	deps := wfh.Deps{
		Directory:    repo,
		Requests:     repo,
		Arrangements: repo,
		Blockouts:    repo,
		Notifier:     notifier,
		Publisher:    publisher,
		Logger:       logger,
	}
	// 多个 API 实例同时审批同一团队时需要串行化，否则人数上限可能被突破
	if cfg.WFH.SerializeApprovals {
		deps.Locker = locker
	}

	sweeperDeps := deps
	sweeperDeps.Locker = locker

	engine := wfh.NewEngine(deps, policy)
	coordinator := wfh.NewCoordinator(deps, policy)
	sweeper := wfh.NewSweeper(sweeperDeps, policy, time.Duration(cfg.WFH.SweepInterval)*time.Second)

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, rdb, handler.Services{
		Notifier:    notifier,
		Engine:      engine,
		Coordinator: coordinator,
		Sweeper:     sweeper,
	})
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动定时清理
	 **********************************************/
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	go sweeper.Run(sweepCtx)

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")
	stopSweeper()

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
