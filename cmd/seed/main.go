package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var managers int
	var staff int
	var hr int

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 初始化表结构, 2: 插入随机组织架构)")
	flag.IntVar(&managers, "managers", 2, "每个部门的团队经理数量")
	flag.IntVar(&staff, "n", 5, "每个团队的员工数量")
	flag.IntVar(&hr, "hr", 3, "HR 部门的员工数量")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
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

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if err := repo.Migrate(context.Background()); err != nil {
			slog.Error("无法初始化表结构", slog.String("error", err.Error()))
			return
		}
		slog.Info("初始化表结构成功")
	case 2:
		if managers <= 0 || staff <= 0 || hr < 0 {
			slog.Error("请输入合法的人数")
			return
		}

		if err := repo.Migrate(context.Background()); err != nil {
			slog.Error("无法初始化表结构", slog.String("error", err.Error()))
			return
		}

		count, err := seed.SeedOrganization(context.Background(), repo, seed.Options{
			ManagersPerDepartment: managers,
			StaffPerTeam:          staff,
			HRStaff:               hr,
			Password:              cfg.Seed.Employee.Password,
			EmailDomain:           cfg.Email.UserDomain,
			CEODepartment:         domain.Department(cfg.WFH.UnconstrainedDepartment),
		})
		if err != nil {
			slog.Error("插入组织架构失败", slog.Int("count", count), slog.String("error", err.Error()))
			return
		}
	default:
		slog.Error("指定的操作非法")
	}
}
