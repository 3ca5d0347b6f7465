package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paiban/rollingstock/internal/repository"
	"github.com/paiban/rollingstock/pkg/errors"
)

// RunListResponse 归档运行列表
type RunListResponse struct {
	Runs   []*repository.Run `json:"runs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListRuns 列出归档的求解运行
// 支持 limit, offset, reason, feasible, since(RFC3339), order_by, order_dir 参数
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errors.New(errors.CodeNotFound, "未配置运行归档"))
		return
	}

	filter, appErr := parseListFilter(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.From(err))
		return
	}
	if runs == nil {
		runs = []*repository.Run{}
	}

	respondJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetRun 获取单次运行及其方案
func (h *ScheduleHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errors.New(errors.CodeNotFound, "未配置运行归档"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的运行ID格式"))
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.From(err))
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func parseListFilter(r *http.Request) (repository.ListFilter, *errors.AppError) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithProblemKey(ProblemKey)
	ve := &errors.ValidationErrors{}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			ve.Add("limit", "必须为 1 到 100 之间的整数")
		} else {
			filter = filter.WithLimit(n)
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ve.Add("offset", "必须为非负整数")
		} else {
			filter = filter.WithOffset(n)
		}
	}
	if v := q.Get("reason"); v != "" {
		filter = filter.WithReason(v)
	}
	if v := q.Get("feasible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ve.Add("feasible", "必须为布尔值")
		}
		filter.FeasibleOnly = b
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ve.Add("since", "必须为 RFC3339 时间")
		}
		filter.Since = t
	}
	if v := q.Get("order_by"); v != "" {
		filter.OrderBy = v
	}
	if v := q.Get("order_dir"); v != "" {
		filter.OrderDir = v
	}

	if ve.HasErrors() {
		appErr := errors.New(errors.CodeInvalidInput, "查询参数无效").WithDetails(ve.Error())
		for _, e := range ve.Errors {
			appErr.WithField(e.Field, e.Message)
		}
		return filter, appErr
	}
	return filter, nil
}
