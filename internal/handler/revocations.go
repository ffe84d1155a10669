package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"
)

type revokeRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RevokeEmployeeArrangements 撤销某个员工的全部居家办公安排，只负责发布任务，不等待执行完成
func (h *Handler) RevokeEmployeeArrangements(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	employee := r.Context().Value(EmployeeInfoCtx).(*domain.Employee)

	var req revokeRequest
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if !canManage(myInfo, employee) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	task, err := h.coordinator.RevokeStaff(r.Context(), wfh.RevokeStaffInput{StaffID: employee.ID, Reason: req.Reason})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "撤销任务已开始执行", task)
}

func (h *Handler) RevokeByEmail(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	var req struct {
		Email  string `json:"email" validate:"required,email"`
		Reason string `json:"reason" validate:"max=500"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	employee, err := h.repository.GetEmployeeByEmail(r.Context(), req.Email)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if !canManage(myInfo, employee) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	task, err := h.coordinator.RevokeStaff(r.Context(), wfh.RevokeStaffInput{Email: req.Email, Reason: req.Reason})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "撤销任务已开始执行", task)
}

func (h *Handler) RevokeRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)

	var req revokeRequest
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if myInfo.Role != domain.RoleHR && wfhReq.ManagerID != myInfo.ID {
		h.errorResponse(w, r, "权限不足")
		return
	}

	task, err := h.coordinator.RevokeRequest(r.Context(), wfhReq.ID, req.Reason)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "撤销任务已开始执行", task)
}
