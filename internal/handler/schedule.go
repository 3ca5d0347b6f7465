package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/paiban/rollingstock/internal/constraints"
	"github.com/paiban/rollingstock/internal/metrics"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
	"github.com/paiban/rollingstock/pkg/stats"
)

// maxProblemSize 请求体上限
const maxProblemSize = 16 << 20

// SolveResponse 开始求解响应
type SolveResponse struct {
	RunID      string `json:"run_id"`
	Key        string `json:"key"`
	Status     string `json:"status"`
	Departures int    `json:"departures"`
	Trains     int    `json:"trains"`
}

// StopResponse 停止求解响应
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Status  string `json:"status"`
}

// ScoreResponse 得分明细响应
type ScoreResponse struct {
	Score          score.Score                    `json:"score"`
	Feasible       bool                           `json:"feasible"`
	SolverStatus   model.SolverStatus             `json:"solver_status"`
	Assigned       int                            `json:"assigned"`
	Departures     int                            `json:"departures"`
	Constraints    []constraint.ConstraintSummary `json:"constraints"`
	HardViolations []constraint.ViolationDetail   `json:"hard_violations"`
	SoftViolations []constraint.ViolationDetail   `json:"soft_violations"`
}

// StatsResponse 方案统计响应
type StatsResponse struct {
	SolverStatus model.SolverStatus     `json:"solver_status"`
	Fleet        *stats.FleetMetrics    `json:"fleet"`
	Coverage     *stats.CoverageMetrics `json:"coverage"`
}

// GetSchedule 当前最优方案，尚未求解时返回生成的默认问题
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.current())
}

func (h *ScheduleHandler) current() *model.Schedule {
	if best := h.sessions.BestSolution(ProblemKey); best != nil {
		return best
	}
	return h.generator.Generate(h.dataset).WithStatus(h.sessions.Status(ProblemKey).SolverStatus())
}

// Solve 开始求解：请求体为问题数据，为空时使用生成器
// 已有运行会先被停止，最优解随之重置
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	problem, appErr := h.readProblem(r)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	run, err := h.sessions.Start(ProblemKey, problem)
	if err != nil {
		appErr := errors.From(err)
		logger.WithContext(r.Context()).Warn().Err(err).Str("code", string(appErr.Code)).Msg("求解启动失败")
		respondError(w, appErr)
		return
	}
	metrics.SetActiveRuns(h.sessions.Active())

	logger.WithContext(r.Context()).Info().
		Str("run_id", run.ID).
		Int("departures", len(problem.Departures)).
		Int("trains", len(problem.Trains)).
		Msg("求解已开始")

	respondJSON(w, http.StatusAccepted, SolveResponse{
		RunID:      run.ID,
		Key:        ProblemKey,
		Status:     string(run.Status().SolverStatus()),
		Departures: len(problem.Departures),
		Trains:     len(problem.Trains),
	})
}

// readProblem 解析请求体，空请求体按 dataset 参数生成
func (h *ScheduleHandler) readProblem(r *http.Request) (*model.Schedule, *errors.AppError) {
	var problem model.Schedule
	err := json.NewDecoder(io.LimitReader(r.Body, maxProblemSize)).Decode(&problem)
	switch {
	case err == io.EOF:
		ds := h.dataset
		if name := r.URL.Query().Get("dataset"); name != "" {
			parsed, err := demo.ParseDataset(name)
			if err != nil {
				return nil, errors.From(err)
			}
			ds = parsed
		}
		return h.generator.Generate(ds), nil
	case err != nil:
		return nil, errors.Wrap(err, errors.CodeMalformedProblem, "解析问题数据失败")
	}
	return &problem, nil
}

// StopSolving 停止求解，可重复调用
func (h *ScheduleHandler) StopSolving(w http.ResponseWriter, r *http.Request) {
	stopped := h.sessions.Stop(ProblemKey)
	respondJSON(w, http.StatusOK, StopResponse{
		Stopped: stopped,
		Status:  string(h.sessions.Status(ProblemKey).SolverStatus()),
	})
}

// GetScore 当前方案的得分与各约束明细
func (h *ScheduleHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	current := h.current()
	result := h.manager.Evaluate(constraint.NewContext(current))

	respondJSON(w, http.StatusOK, ScoreResponse{
		Score:          result.Score,
		Feasible:       result.Feasible,
		SolverStatus:   current.SolverStatus,
		Assigned:       current.AssignedCount(),
		Departures:     len(current.Departures),
		Constraints:    result.Constraints,
		HardViolations: result.HardViolations,
		SoftViolations: result.SoftViolations,
	})
}

// GetDemo 生成演示问题
func (h *ScheduleHandler) GetDemo(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset
	if name := r.URL.Query().Get("dataset"); name != "" {
		parsed, err := demo.ParseDataset(name)
		if err != nil {
			respondError(w, errors.From(err))
			return
		}
		ds = parsed
	}
	respondJSON(w, http.StatusOK, h.generator.Generate(ds))
}

// GetConstraints 约束库及当前参数
func (h *ScheduleHandler) GetConstraints(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{
		Library: constraints.GetLibrary(h.weights, h.manager),
	})
}

// GetStats 当前方案的车队使用与发车覆盖统计
func (h *ScheduleHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	current := h.current()
	respondJSON(w, http.StatusOK, StatsResponse{
		SolverStatus: current.SolverStatus,
		Fleet:        stats.NewFleetAnalyzer().Analyze(current),
		Coverage:     stats.NewCoverageAnalyzer().Analyze(current),
	})
}
