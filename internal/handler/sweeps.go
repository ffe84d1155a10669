package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/wfh"
)

// RunSweep 手动触发一次自动过期任务
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, wfh.ErrSweepInProgress):
			h.errorResponse(w, r, err.Error())
		default:
			h.serviceError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "自动过期任务执行完成", result)
}
