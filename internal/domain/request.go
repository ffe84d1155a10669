package domain

import (
	"errors"
	"fmt"
	"time"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusApproved  RequestStatus = "Approved"
	StatusRejected  RequestStatus = "Rejected"
	StatusWithdrawn RequestStatus = "Withdrawn"
	StatusCancelled RequestStatus = "Cancelled"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: 未知的申请状态 %q", ErrValidation, s)
}

// 合法的状态迁移，未列出的迁移均不允许
var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusWithdrawn},
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

type Timeslot string

const (
	TimeslotAM   Timeslot = "AM"
	TimeslotPM   Timeslot = "PM"
	TimeslotFull Timeslot = "FULL"
)

func ParseTimeslot(s string) (Timeslot, error) {
	switch t := Timeslot(s); t {
	case TimeslotAM, TimeslotPM, TimeslotFull:
		return t, nil
	}
	return "", fmt.Errorf("%w: 未知的时段 %q", ErrValidation, s)
}

// Overlaps 判断两个时段是否占用同一个半天，FULL 同时占用上午和下午
func (t Timeslot) Overlaps(other Timeslot) bool {
	return t == other || t == TimeslotFull || other == TimeslotFull
}

func (t Timeslot) CoversAM() bool { return t == TimeslotAM || t == TimeslotFull }
func (t Timeslot) CoversPM() bool { return t == TimeslotPM || t == TimeslotFull }

type Recurrence struct {
	Weekday   Weekday   `json:"weekday"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type Request struct {
	ID               int64         `json:"id"`
	StaffID          int64         `json:"staffID"`
	ManagerID        int64         `json:"managerID"`
	RequestDate      time.Time     `json:"requestDate"`
	Timeslot         Timeslot      `json:"timeslot"`
	Status           RequestStatus `json:"status"`
	Reason           string        `json:"reason"`
	Remark           string        `json:"remark"`
	ArrangementDate  *time.Time    `json:"arrangementDate"`
	Recurrence       *Recurrence   `json:"recurrence"`
	ArrangementDates []time.Time   `json:"arrangementDates"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	Version          int32         `json:"-"`
}

func (r *Request) IsRecurring() bool {
	return r.Recurrence != nil
}

// Validate 检查单日日期和循环描述二者恰好存在其一，并且展开后的日期列表非空
func (r *Request) Validate() error {
	if (r.ArrangementDate == nil) == (r.Recurrence == nil) {
		return fmt.Errorf("%w: 单日日期和循环规则必须且只能提供一个", ErrValidation)
	}
	if len(r.ArrangementDates) == 0 {
		return ErrNoDatesGenerated
	}
	if r.ArrangementDate != nil && (len(r.ArrangementDates) != 1 || !r.ArrangementDates[0].Equal(*r.ArrangementDate)) {
		return errors.New("单日申请的日期列表与申请日期不一致")
	}
	return nil
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("%w: 未知的审批决定 %q", ErrValidation, s)
}
