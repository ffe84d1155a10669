package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/utils"
)

// 与原有员工数据保持一致的编号段
const firstStaffID int64 = 130002

var Departments = []domain.Department{"Sales", "Engineering", "Finance", "Consultancy", "Solutioning", "IT"}

type Options struct {
	ManagersPerDepartment int
	StaffPerTeam          int
	HRStaff               int
	Password              string
	EmailDomain           string
	CEODepartment         domain.Department
}

// BuildOrganization 随机生成一棵组织架构树：CEO -> 部门总监 -> 团队经理 -> 员工，HR 部门直接向 CEO 汇报。
// 返回的切片保证经理排在下属之前，可以按顺序插入
func BuildOrganization(opts Options) ([]*domain.Employee, error) {
	employees := make([]*domain.Employee, 0)
	nextID := firstStaffID

	emails := make(map[string]bool)

	add := func(department domain.Department, position string, role domain.Role, manager *int64) (*domain.Employee, error) {
		employee, err := utils.GenerateRandomEmployee(nextID, department, position, role, manager, opts.Password, opts.EmailDomain)
		if err != nil {
			return nil, err
		}
		// 随机生成的邮箱可能重名，重新生成邮箱前缀直到不重复
		for emails[employee.Email] {
			employee.Email = utils.GenerateEmailLocalPart(employee.LastName, employee.FirstName) + "@" + opts.EmailDomain
		}
		emails[employee.Email] = true
		nextID++
		employees = append(employees, employee)
		return employee, nil
	}

	ceo, err := add(opts.CEODepartment, "MD", domain.RoleHR, nil)
	if err != nil {
		return nil, err
	}

	hrDirector, err := add("HR", "HR Director", domain.RoleHR, &ceo.ID)
	if err != nil {
		return nil, err
	}
	for i := 0; i < opts.HRStaff; i++ {
		if _, err := add("HR", "HR Team", domain.RoleHR, &hrDirector.ID); err != nil {
			return nil, err
		}
	}

	for _, department := range Departments {
		director, err := add(department, string(department)+" Director", domain.RoleManager, &ceo.ID)
		if err != nil {
			return nil, err
		}

		for i := 0; i < opts.ManagersPerDepartment; i++ {
			manager, err := add(department, string(department)+" Manager", domain.RoleManager, &director.ID)
			if err != nil {
				return nil, err
			}

			for j := 0; j < opts.StaffPerTeam; j++ {
				if _, err := add(department, string(department)+" Executive", domain.RoleStaff, &manager.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := utils.ValidateHierarchy(employees); err != nil {
		return nil, err
	}

	return employees, nil
}

func SeedOrganization(ctx context.Context, r *repository.Repository, opts Options) (int, error) {
	count, err := r.CountEmployees(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, errors.New("数据库中已经存在员工数据，请先清空再插入")
	}

	employees, err := BuildOrganization(opts)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, employee := range employees {
		if err := r.CreateEmployee(ctx, employee); err != nil {
			slog.Error("插入员工失败", "staffID", employee.ID, "email", employee.Email, "error", err)
			return inserted, err
		}
		inserted++
	}

	slog.Info("插入数据完成", "count", inserted)
	return inserted, nil
}
