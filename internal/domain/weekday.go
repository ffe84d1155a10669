package domain

import (
	"fmt"
	"time"
)

// Weekday 为循环申请可选的工作日，周末不允许申请居家办公
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
)

var weekdays = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
}

func ParseWeekday(s string) (Weekday, error) {
	if _, ok := weekdays[Weekday(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
	}
	return Weekday(s), nil
}

func (w Weekday) Std() time.Weekday {
	return weekdays[w]
}
