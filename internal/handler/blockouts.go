package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/utils"
)

func (h *Handler) GetAllBlockouts(w http.ResponseWriter, r *http.Request) {
	blockouts, err := h.repository.GetAllBlockouts(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取封锁期成功", blockouts)
}

func (h *Handler) CreateBlockout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate   string `json:"startDate" validate:"required,datetime=2006-01-02"`
		EndDate     string `json:"endDate" validate:"required,datetime=2006-01-02"`
		Timeslot    string `json:"timeslot" validate:"required,oneof=AM PM FULL"`
		Title       string `json:"title" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	startDate, _ := domain.ParseDate(req.StartDate)
	endDate, _ := domain.ParseDate(req.EndDate)
	blockout := &domain.Blockout{
		StartDate:   startDate,
		EndDate:     endDate,
		Timeslot:    domain.Timeslot(req.Timeslot),
		Title:       req.Title,
		Description: req.Description,
	}

	if err := utils.ValidateBlockoutPeriod(blockout); err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	if err := h.repository.CreateBlockout(r.Context(), blockout); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建封锁期成功", blockout)
}

func (h *Handler) DeleteBlockout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "封锁期ID无效")
		return
	}

	if err := h.repository.DeleteBlockout(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, "封锁期不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除封锁期成功", nil)
}
