package domain

import "time"

const DateLayout = "2006-01-02"

// Date 将任意时间截断到当天的 UTC 零点，所有日历日期都以这种形式在系统中流转
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// AddMonths 按日历月加减，目标月份天数不足时取该月最后一天（例如 1 月 31 日加一个月得到 2 月 28/29 日），
// 不使用 time.AddDate 是因为它会溢出到下一个月
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
