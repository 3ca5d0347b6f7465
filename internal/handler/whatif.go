package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/swap"
	"github.com/paiban/rollingstock/pkg/validator"
)

// ConflictResponse 冲突检测响应
type ConflictResponse struct {
	Summary   validator.Summary    `json:"summary"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

// RecommendationResponse 列车推荐响应
type RecommendationResponse struct {
	DepartureID     model.DepartureID     `json:"departure_id"`
	Recommendations []swap.Recommendation `json:"recommendations"`
}

// EvaluateMove 在当前方案上评估一次改派或互换，不影响求解
func (h *ScheduleHandler) EvaluateMove(w http.ResponseWriter, r *http.Request) {
	var req swap.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "无效的改派请求").WithCause(err))
		return
	}

	result, err := h.evaluator.Evaluate(h.current(), &req)
	if err != nil {
		respondError(w, errors.From(err))
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RecommendTrains 为发车推荐列车，limit 默认 5
func (h *ScheduleHandler) RecommendTrains(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, errors.InvalidInput("id", "发车 ID 必须为整数"))
		return
	}

	limit := swap.DefaultRecommendLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondError(w, errors.InvalidInput("limit", "必须为 1-100 的整数").WithField("limit", v))
			return
		}
		limit = n
	}

	recs, err := h.recommender.Recommend(h.current(), model.DepartureID(id), limit)
	if err != nil {
		respondError(w, errors.From(err))
		return
	}
	respondJSON(w, http.StatusOK, RecommendationResponse{DepartureID: model.DepartureID(id), Recommendations: recs})
}

// GetConflicts 检测当前方案的冲突
// 同时给出 departure_id 与 train_id 时只检测该分配会引入的冲突
func (h *ScheduleHandler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	current := h.current()
	q := r.URL.Query()

	var conflicts []validator.Conflict
	if q.Get("departure_id") != "" || q.Get("train_id") != "" {
		depID, err1 := strconv.ParseInt(q.Get("departure_id"), 10, 64)
		trainID, err2 := strconv.ParseInt(q.Get("train_id"), 10, 64)
		if err1 != nil || err2 != nil {
			respondError(w, errors.New(errors.CodeInvalidInput, "departure_id 与 train_id 必须同时给出且为整数").
				WithField("departure_id", q.Get("departure_id")).
				WithField("train_id", q.Get("train_id")))
			return
		}
		if !hasDeparture(current, model.DepartureID(depID)) {
			respondError(w, errors.NotFound("departure", q.Get("departure_id")))
			return
		}
		conflicts = h.detector.DetectForAssignment(current, model.DepartureID(depID), model.TrainID(trainID))
	} else {
		conflicts = h.detector.DetectAll(current)
	}

	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	respondJSON(w, http.StatusOK, ConflictResponse{Summary: validator.Summarize(conflicts), Conflicts: conflicts})
}

func hasDeparture(s *model.Schedule, id model.DepartureID) bool {
	for i := range s.Departures {
		if s.Departures[i].ID == id {
			return true
		}
	}
	return false
}
