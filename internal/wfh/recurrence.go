package wfh

import (
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

// ExpandWeekday 返回 [start, end] 闭区间内所有星期为 name 的日期，按升序排列。
// start 晚于 end 或区间内没有匹配的日期时返回空切片，调用方需要将空结果视为校验失败
func ExpandWeekday(name string, start, end time.Time) ([]time.Time, error) {
	weekday, err := domain.ParseWeekday(name)
	if err != nil {
		return nil, err
	}

	start, end = domain.Date(start), domain.Date(end)
	dates := make([]time.Time, 0)
	if start.After(end) {
		return dates, nil
	}

	// 先跳到第一个匹配的日期，之后每次加 7 天
	offset := (int(weekday.Std()) - int(start.Weekday()) + 7) % 7
	for d := start.AddDate(0, 0, offset); !d.After(end); d = d.AddDate(0, 0, 7) {
		dates = append(dates, d)
	}

	return dates, nil
}
