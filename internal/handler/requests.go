package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"
)

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	var req struct {
		Timeslot        string  `json:"timeslot" validate:"required,oneof=AM PM FULL"`
		Reason          string  `json:"reason" validate:"required,max=500"`
		ArrangementDate *string `json:"arrangementDate" validate:"omitempty,datetime=2006-01-02"`
		Recurrence      *struct {
			Weekday   string `json:"weekday" validate:"required"`
			StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
			EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
		} `json:"recurrence"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	in := wfh.SubmitInput{
		StaffID:  myInfo.ID,
		Timeslot: domain.Timeslot(req.Timeslot),
		Reason:   req.Reason,
	}
	if req.ArrangementDate != nil {
		date, _ := domain.ParseDate(*req.ArrangementDate)
		in.ArrangementDate = &date
	}
	if req.Recurrence != nil {
		startDate, _ := domain.ParseDate(req.Recurrence.StartDate)
		endDate, _ := domain.ParseDate(req.Recurrence.EndDate)
		in.Recurrence = &wfh.RecurrenceInput{
			Weekday:   req.Recurrence.Weekday,
			StartDate: startDate,
			EndDate:   endDate,
		}
	}

	wfhReq, err := h.engine.Submit(r.Context(), in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "申请提交成功", wfhReq)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)
	h.successResponse(w, r, "获取申请成功", wfhReq)
}

func (h *Handler) GetTeamRequests(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	managerID := myInfo.ID
	if param := r.URL.Query().Get("managerID"); param != "" && myInfo.Role == domain.RoleHR {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "经理ID无效")
			return
		}
		managerID = id
	}

	requests, err := h.engine.ListTeamRequests(r.Context(), managerID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取团队申请成功", requests)
}

func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)

	var req struct {
		Decision string `json:"decision" validate:"required,oneof=approve reject"`
		Remark   string `json:"remark" validate:"max=500"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 只有申请人的经理或者 HR 能够审批，任何人都不能审批自己的申请
	if wfhReq.StaffID == myInfo.ID || (myInfo.Role != domain.RoleHR && wfhReq.ManagerID != myInfo.ID) {
		h.errorResponse(w, r, "权限不足")
		return
	}

	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.engine.Decide(r.Context(), wfh.DecideInput{
		RequestID: wfhReq.ID,
		Decision:  decision,
		Remark:    req.Remark,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "审批成功", updated)
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)

	var req struct {
		Reason string `json:"reason" validate:"required,max=500"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if wfhReq.StaffID != myInfo.ID {
		h.errorResponse(w, r, "只能取消自己的申请")
		return
	}

	updated, err := h.engine.Cancel(r.Context(), wfhReq.ID, req.Reason)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消申请成功", updated)
}

func (h *Handler) GetRequestArrangements(w http.ResponseWriter, r *http.Request) {
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)

	arrangements, err := h.engine.ListRequestArrangements(r.Context(), wfhReq.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取申请的居家办公安排成功", arrangements)
}

func (h *Handler) WithdrawArrangement(w http.ResponseWriter, r *http.Request) {
	wfhReq := r.Context().Value(RequestCtx).(*domain.Request)

	arrangementID, err := strconv.ParseInt(chi.URLParam(r, "arrangementID"), 10, 32)
	if err != nil {
		h.errorResponse(w, r, "安排ID无效")
		return
	}

	arrangement, err := h.engine.WithdrawSingle(r.Context(), wfhReq.ID, int32(arrangementID))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, "居家办公安排不存在")
		default:
			h.serviceError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "撤回居家办公安排成功", arrangement)
}

func (h *Handler) GetTeamArrangements(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.Employee)

	date := domain.Date(time.Now())
	if param := r.URL.Query().Get("date"); param != "" {
		parsed, err := domain.ParseDate(param)
		if err != nil {
			h.errorResponse(w, r, "日期格式错误")
			return
		}
		date = parsed
	}

	managerID := myInfo.ID
	if param := r.URL.Query().Get("managerID"); param != "" && myInfo.Role == domain.RoleHR {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "经理ID无效")
			return
		}
		managerID = id
	}

	arrangements, err := h.engine.ListTeamArrangements(r.Context(), managerID, date)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取团队居家办公安排成功", arrangements)
}
