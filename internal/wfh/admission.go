package wfh

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

type Verdict struct {
	Admitted bool            `json:"admitted"`
	Date     time.Time       `json:"date"`
	Reason   string          `json:"reason,omitempty"`
	AMRatio  decimal.Decimal `json:"amRatio"` // 批准后上午的居家办公比例
	PMRatio  decimal.Decimal `json:"pmRatio"`
}

// AdmissionController 判断再批准一个时段是否会使经理团队同一时段的居家办公比例超过上限。
// 它只读取数据，从不修改状态
type AdmissionController struct {
	directory    Directory
	arrangements ArrangementStore
	policy       Policy
}

func NewAdmissionController(directory Directory, arrangements ArrangementStore, policy Policy) *AdmissionController {
	return &AdmissionController{
		directory:    directory,
		arrangements: arrangements,
		policy:       policy,
	}
}

func (c *AdmissionController) Check(ctx context.Context, employee *domain.Employee, date time.Time, timeslot domain.Timeslot) (Verdict, error) {
	date = domain.Date(date)
	verdict := Verdict{Admitted: true, Date: date}

	// 顶层部门（如 CEO）以及没有汇报经理的员工不受约束
	if employee.Department == c.policy.UnconstrainedDepartment || employee.ReportingManager == nil {
		return verdict, nil
	}

	team, err := c.directory.GetTeamMemberIDs(ctx, *employee.ReportingManager)
	if err != nil {
		return Verdict{}, upstream("获取团队成员", err)
	}
	if !slices.Contains(team, employee.ID) {
		// 通讯录没有返回申请人本身时，申请人依然算作团队成员
		team = append(slices.Clone(team), employee.ID)
	}
	teamSize := decimal.NewFromInt(int64(len(team)))

	existing, err := c.arrangements.ListArrangementsOnDate(ctx, team, date)
	if err != nil {
		return Verdict{}, upstream("获取团队当日安排", err)
	}

	amCount, pmCount := int64(0), int64(0)
	for _, a := range existing {
		if a.StaffID == employee.ID {
			// 申请人当天已经有安排，这一天不会造成新的超限
			return verdict, nil
		}
		if a.Timeslot.CoversAM() {
			amCount++
		}
		if a.Timeslot.CoversPM() {
			pmCount++
		}
	}

	verdict.AMRatio = decimal.NewFromInt(amCount).Div(teamSize)
	verdict.PMRatio = decimal.NewFromInt(pmCount).Div(teamSize)
	if timeslot.CoversAM() {
		verdict.AMRatio = decimal.NewFromInt(amCount + 1).Div(teamSize)
	}
	if timeslot.CoversPM() {
		verdict.PMRatio = decimal.NewFromInt(pmCount + 1).Div(teamSize)
	}

	amExceeded := timeslot.CoversAM() && verdict.AMRatio.GreaterThan(c.policy.CapacityThreshold)
	pmExceeded := timeslot.CoversPM() && verdict.PMRatio.GreaterThan(c.policy.CapacityThreshold)
	if amExceeded || pmExceeded {
		verdict.Admitted = false
		verdict.Reason = fmt.Sprintf("%s 时段超过团队 %s%% 的居家办公上限", timeslot,
			c.policy.CapacityThreshold.Mul(decimal.NewFromInt(100)).String())
	}

	return verdict, nil
}
