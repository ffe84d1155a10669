package domain

import "fmt"

type Role string

const (
	RoleHR      Role = "HR"
	RoleStaff   Role = "Staff"
	RoleManager Role = "Manager"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHR, RoleStaff, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("%w: 未知的角色 %q", ErrValidation, s)
}

// Department 为部门名称，部门是开放集合，由通讯录决定
type Department string

type Employee struct {
	ID               int64      `json:"staffID"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Department       Department `json:"department"`
	Position         string     `json:"position"`
	Country          string     `json:"country"`
	Email            string     `json:"email"`
	ReportingManager *int64     `json:"reportingManager"` // 为 nil 时表示处于组织架构顶层
	Role             Role       `json:"role"`
	PasswordHash     string     `json:"-"`
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
