package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	h.successResponse(w, r, "获取个人信息成功", myInfo)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.UpdateEmployeePassword(r.Context(), myInfo.ID, string(hashedPassword)); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}

func (h *Handler) GetMyRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	requests, err := h.engine.ListStaffRequests(r.Context(), myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人申请成功", requests)
}

func (h *Handler) GetMyArrangements(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	arrangements, err := h.engine.ListStaffArrangements(r.Context(), myInfo.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人居家办公安排成功", arrangements)
}

func (h *Handler) GetMyTeam(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	// 经理查看自己的下属，普通员工查看同一经理下的同事
	managerID := myInfo.ID
	if myInfo.Role == domain.RoleStaff && myInfo.ReportingManager != nil {
		managerID = *myInfo.ReportingManager
	}

	ids, err := h.repository.GetTeamMemberIDs(r.Context(), managerID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	team := make([]*domain.Employee, 0, len(ids))
	for _, id := range ids {
		employee, err := h.repository.GetEmployeeByID(r.Context(), id)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		team = append(team, employee)
	}

	h.successResponse(w, r, "获取团队成员成功", team)
}
