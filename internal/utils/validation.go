package utils

import (
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

func ValidateBlockoutPeriod(b *domain.Blockout) error {
	if _, err := domain.ParseTimeslot(string(b.Timeslot)); err != nil {
		return err
	}

	if b.StartDate.After(b.EndDate) {
		return errors.New("封锁期开始日期不能晚于结束日期")
	}

	// 封锁期最长一年，防止误操作封锁整个日历
	if b.EndDate.After(domain.AddMonths(b.StartDate, 12)) {
		return errors.New("封锁期不能超过一年")
	}

	return nil
}

// ValidateHierarchy 检查汇报关系中的经理都存在，并且不存在环
func ValidateHierarchy(employees []*domain.Employee) error {
	managers := make(map[int64]*int64, len(employees))
	for _, e := range employees {
		managers[e.ID] = e.ReportingManager
	}

	for _, e := range employees {
		if e.ReportingManager == nil {
			continue
		}
		if _, ok := managers[*e.ReportingManager]; !ok {
			return fmt.Errorf("员工 %d 的汇报经理 %d 不存在", e.ID, *e.ReportingManager)
		}

		// 沿着汇报链向上走，步数超过员工总数说明存在环
		current := e.ReportingManager
		for steps := 0; current != nil; steps++ {
			if steps > len(employees) {
				return fmt.Errorf("员工 %d 的汇报关系存在环", e.ID)
			}
			current = managers[*current]
		}
	}

	return nil
}
