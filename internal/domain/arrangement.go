package domain

import (
	"sort"
	"time"
)

type Arrangement struct {
	RequestID     int64     `json:"requestID"`
	ArrangementID int32     `json:"arrangementID"`
	StaffID       int64     `json:"staffID"`
	Date          time.Time `json:"arrangementDate"`
	Timeslot      Timeslot  `json:"timeslot"`
	Reason        string    `json:"reason"`
}

type Blockout struct {
	ID          int64     `json:"id"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Timeslot    Timeslot  `json:"timeslot"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// Covers 判断封锁期是否覆盖某一天的某个时段
func (b *Blockout) Covers(date time.Time, timeslot Timeslot) bool {
	return !date.Before(b.StartDate) && !date.After(b.EndDate) && b.Timeslot.Overlaps(timeslot)
}

type RevocationItem struct {
	RequestID     int64     `json:"requestID"`
	ArrangementID int32     `json:"arrangementID"`
	Date          time.Time `json:"date"`
}

// RevocationTask 是撤销队列中的消息体，只存在于入队到处理完成之间
type RevocationTask struct {
	ID           string           `json:"id"`
	StaffID      int64            `json:"staffID"`
	Items        []RevocationItem `json:"items"`
	StaffEmail   string           `json:"staffEmail"`
	ManagerEmail string           `json:"managerEmail"`
	Reason       string           `json:"reason"`
	RequestedAt  time.Time        `json:"requestedAt"`
}

// RevokeDates 返回本次撤销涉及的日期（升序去重）
func (t *RevocationTask) RevokeDates() []time.Time {
	seen := make(map[int64]bool)
	dates := make([]time.Time, 0, len(t.Items))
	for _, item := range t.Items {
		if seen[item.Date.Unix()] {
			continue
		}
		seen[item.Date.Unix()] = true
		dates = append(dates, item.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
