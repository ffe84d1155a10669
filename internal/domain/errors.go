package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 哨兵错误，调用方通过 errors.Is 判断错误类别
var (
	ErrValidation             = errors.New("参数校验失败")
	ErrAdmissionDenied        = errors.New("超出团队居家办公人数上限")
	ErrInvalidTransition      = errors.New("不允许的状态变更")
	ErrConcurrentModification = errors.New("申请已被其他操作修改，请刷新后重试")
	ErrUpstreamUnavailable    = errors.New("依赖服务暂时不可用")
	ErrNotFound               = errors.New("记录不存在")
)

// 以下错误都属于参数校验失败
var (
	ErrInvalidWeekday    = fmt.Errorf("%w: 无效的星期", ErrValidation)
	ErrNoDatesGenerated  = fmt.Errorf("%w: 所选范围内没有生成任何日期", ErrValidation)
	ErrDateOutOfRange    = fmt.Errorf("%w: 日期超出可申请范围", ErrValidation)
	ErrDuplicateDate     = fmt.Errorf("%w: 日期已存在居家办公安排", ErrValidation)
	ErrBlockedOut        = fmt.Errorf("%w: 日期处于封锁期", ErrValidation)
	ErrRevocationTooLate = fmt.Errorf("%w: 已超过可撤销期限", ErrValidation)
)

// ErrLockNotAcquired 表示锁被其他进程持有，按并发冲突处理
var ErrLockNotAcquired = fmt.Errorf("%w: 有其他操作正在进行", ErrConcurrentModification)

type DateFailure struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

type AdmissionDeniedError struct {
	Failures []DateFailure
}

func (e *AdmissionDeniedError) Error() string {
	dates := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		dates = append(dates, f.Date.Format(DateLayout))
	}
	return fmt.Sprintf("%s: %s", ErrAdmissionDenied, strings.Join(dates, ", "))
}

func (e *AdmissionDeniedError) Unwrap() error {
	return ErrAdmissionDenied
}

type DuplicateDateError struct {
	Dates []time.Time
}

func (e *DuplicateDateError) Error() string {
	dates := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		dates = append(dates, d.Format(DateLayout))
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateDate, strings.Join(dates, ", "))
}

func (e *DuplicateDateError) Unwrap() error {
	return ErrDuplicateDate
}

type DateOutOfRangeError struct {
	Date     time.Time
	Earliest time.Time
	Latest   time.Time
}

func (e *DateOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %s 不在 %s 至 %s 之间", ErrDateOutOfRange,
		e.Date.Format(DateLayout), e.Earliest.Format(DateLayout), e.Latest.Format(DateLayout))
}

func (e *DateOutOfRangeError) Unwrap() error {
	return ErrDateOutOfRange
}

type BlockedOutError struct {
	Date  time.Time
	Title string
}

func (e *BlockedOutError) Error() string {
	return fmt.Sprintf("%s: %s（%s）", ErrBlockedOut, e.Date.Format(DateLayout), e.Title)
}

func (e *BlockedOutError) Unwrap() error {
	return ErrBlockedOut
}

type RevocationTooLateError struct {
	Date     time.Time
	Deadline time.Time
}

func (e *RevocationTooLateError) Error() string {
	return fmt.Sprintf("%s: %s 的安排最晚只能在 %s 之前撤销", ErrRevocationTooLate,
		e.Date.Format(DateLayout), e.Deadline.Format(DateLayout))
}

func (e *RevocationTooLateError) Unwrap() error {
	return ErrRevocationTooLate
}

type InvalidTransitionError struct {
	From RequestStatus
	To   RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UpstreamError 表示调用存储或通讯录等外部依赖失败，同时保留原始错误
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamUnavailable, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}
