package wfh

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

// Directory 为只读的员工通讯录
type Directory interface {
	GetEmployeeByID(ctx context.Context, staffID int64) (*domain.Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	GetTeamMemberIDs(ctx context.Context, managerID int64) ([]int64, error)
}

type ArrangementStore interface {
	// CreateArrangement 返回该安排在所属申请内的序号（从 1 开始）
	CreateArrangement(ctx context.Context, a *domain.Arrangement) (int32, error)
	GetArrangement(ctx context.Context, requestID int64, arrangementID int32) (*domain.Arrangement, error)
	ListArrangementsByStaffID(ctx context.Context, staffID int64) ([]*domain.Arrangement, error)
	ListArrangementsByRequestID(ctx context.Context, requestID int64) ([]*domain.Arrangement, error)
	ListArrangementsOnDate(ctx context.Context, staffIDs []int64, date time.Time) ([]*domain.Arrangement, error)
	// DeleteArrangement 在记录不存在时返回 domain.ErrNotFound
	DeleteArrangement(ctx context.Context, requestID int64, arrangementID int32) error
}

type RequestStore interface {
	CreateRequest(ctx context.Context, req *domain.Request) error
	GetRequestByID(ctx context.Context, id int64) (*domain.Request, error)
	// UpdateRequestStatus 仅当当前状态等于 expected 时才更新，否则返回 domain.ErrConcurrentModification
	UpdateRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, remark string, expected domain.RequestStatus) error
	// ListOverduePendingRequests 返回提交日期不晚于 cutoff 且仍处于 Pending 的申请
	ListOverduePendingRequests(ctx context.Context, cutoff time.Time) ([]*domain.Request, error)
	ListRequestsByStaffID(ctx context.Context, staffID int64) ([]*domain.Request, error)
	ListRequestsByManagerID(ctx context.Context, managerID int64) ([]*domain.Request, error)
}

type BlockoutStore interface {
	ListBlockoutsBetween(ctx context.Context, from, to time.Time) ([]*domain.Blockout, error)
}

// Notifier 发送通知，失败只记录日志，不会回滚已经提交的状态
type Notifier interface {
	SendSubmitted(ctx context.Context, managerEmail string, data domain.RequestSubmittedMailData) error
	SendStatusChanged(ctx context.Context, staffEmail string, data domain.StatusChangedMailData) error
	SendRevocationBatch(ctx context.Context, staffEmail, managerEmail string, data domain.RevocationMailData) error
}

type RevocationPublisher interface {
	PublishRevocation(ctx context.Context, task *domain.RevocationTask) error
}

// Locker 为分布式锁，release 用于释放锁
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type Policy struct {
	CapacityThreshold       decimal.Decimal   // 同一时段居家办公人数占团队比例的上限
	UnconstrainedDepartment domain.Department // 该部门不受人数上限约束
	SubmissionMonthsBack    int
	SubmissionMonthsForward int
	PendingExpiryMonths     int
	RevocationWindowMonths  int
	ApprovalLockTTL         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CapacityThreshold:       decimal.NewFromFloat(0.5),
		UnconstrainedDepartment: "CEO",
		SubmissionMonthsBack:    2,
		SubmissionMonthsForward: 3,
		PendingExpiryMonths:     2,
		RevocationWindowMonths:  3,
		ApprovalLockTTL:         30 * time.Second,
	}
}

type Deps struct {
	Directory    Directory
	Requests     RequestStore
	Arrangements ArrangementStore
	Blockouts    BlockoutStore
	Notifier     Notifier
	Publisher    RevocationPublisher
	Locker       Locker // 为 nil 时不串行化审批
	Logger       *slog.Logger
	Now          func() time.Time
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) today() time.Time {
	return domain.Date(d.now())
}

func upstream(op string, err error) error {
	return &domain.UpstreamError{Op: op, Err: err}
}
