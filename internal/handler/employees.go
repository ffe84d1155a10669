package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
)

func (h *Handler) GetAllEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.repository.GetAllEmployees(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有员工信息成功", employees)
}

func (h *Handler) GetEmployeeInfo(w http.ResponseWriter, r *http.Request) {
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)
	h.successResponse(w, r, "获取员工信息成功", employee)
}

func (h *Handler) GetEmployeeArrangements(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	if !canManage(myInfo, employee) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	arrangements, err := h.engine.ListStaffArrangements(r.Context(), employee.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取员工居家办公安排成功", arrangements)
}
