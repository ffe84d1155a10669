package config

import (
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"
)

// WFHPolicy 将环境变量中的居家办公参数转换为业务策略
func (c *Config) WFHPolicy() wfh.Policy {
	return wfh.Policy{
		CapacityThreshold:       c.WFH.CapacityThreshold,
		UnconstrainedDepartment: domain.Department(c.WFH.UnconstrainedDepartment),
		SubmissionMonthsBack:    c.WFH.SubmissionMonthsBack,
		SubmissionMonthsForward: c.WFH.SubmissionMonthsForward,
		PendingExpiryMonths:     c.WFH.PendingExpiryMonths,
		RevocationWindowMonths:  c.WFH.RevocationWindowMonths,
		ApprovalLockTTL:         time.Duration(c.WFH.ApprovalLockTTL) * time.Second,
	}
}
