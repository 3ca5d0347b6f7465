// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paiban/rollingstock/internal/broker"
	"github.com/paiban/rollingstock/internal/metrics"
	"github.com/paiban/rollingstock/internal/middleware"
	"github.com/paiban/rollingstock/internal/repository"
	"github.com/paiban/rollingstock/internal/security"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/session"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
	"github.com/paiban/rollingstock/pkg/swap"
	"github.com/paiban/rollingstock/pkg/validator"
)

// ProblemKey 唯一的调度问题标识
const ProblemKey = "rolling-stock-schedule"

// Options 处理器依赖
type Options struct {
	Sessions  *session.Manager
	Broker    broker.Broker
	Runs      *repository.RunRepository // 为 nil 时不归档
	Generator *demo.Generator
	Dataset   demo.Dataset
	Weights   builtin.Weights
	Acceptor  string
}

// ScheduleHandler 车辆调度处理器
type ScheduleHandler struct {
	sessions  *session.Manager
	broker    broker.Broker
	runs      *repository.RunRepository
	generator *demo.Generator
	dataset   demo.Dataset
	weights   builtin.Weights
	acceptor  string
	manager   *constraint.Manager

	evaluator   *swap.Evaluator
	recommender *swap.Recommender
	detector    *validator.ConflictDetector
}

// NewScheduleHandler 创建处理器并订阅会话事件
func NewScheduleHandler(opts Options) *ScheduleHandler {
	if opts.Broker == nil {
		opts.Broker = broker.NewMemoryBroker()
	}
	if opts.Generator == nil {
		opts.Generator = demo.NewGenerator(demo.DefaultSeed)
	}
	if opts.Dataset == "" {
		opts.Dataset = demo.DatasetDefault
	}

	h := &ScheduleHandler{
		sessions:  opts.Sessions,
		broker:    opts.Broker,
		runs:      opts.Runs,
		generator: opts.Generator,
		dataset:   opts.Dataset,
		weights:   opts.Weights,
		acceptor:  opts.Acceptor,
		manager:   builtin.NewDefaultManager(opts.Weights),
	}
	h.evaluator = swap.NewEvaluator(h.manager)
	h.recommender = swap.NewRecommender(h.manager)

	detectorCfg := validator.DefaultDetectorConfig()
	if opts.Weights.DoubleBookingWindow > 0 {
		detectorCfg.TurnaroundWindow = opts.Weights.DoubleBookingWindow
	}
	h.detector = validator.NewConflictDetector(detectorCfg)

	h.sessions.OnBestSolution(h.onBestSolution)
	h.sessions.OnTerminated(h.onTerminated)
	return h
}

// Routes 注册路由，写操作需要 solve 权限
func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Route("/rolling-stock-schedule", func(r chi.Router) {
		r.With(middleware.RequireScope(security.ScopeRead)).Group(func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Get("/score", h.GetScore)
			r.Get("/stats", h.GetStats)
			r.Get("/events", h.Events)
			r.Get("/constraints", h.GetConstraints)
			r.Get("/runs", h.ListRuns)
			r.Get("/runs/{id}", h.GetRun)
			r.Get("/conflicts", h.GetConflicts)
			r.Post("/evaluate-move", h.EvaluateMove)
			r.Get("/departures/{id}/recommendations", h.RecommendTrains)
		})
		r.With(middleware.RequireScope(security.ScopeSolve)).Group(func(r chi.Router) {
			r.Post("/solve", h.Solve)
			r.Get("/stop-solving", h.StopSolving)
		})
	})
	r.With(middleware.RequireScope(security.ScopeRead)).Get("/demo/rolling-stock-schedule", h.GetDemo)
}

// onBestSolution 推送最优解事件并更新指标
func (h *ScheduleHandler) onBestSolution(key string, best *model.Schedule) {
	runID := ""
	if run := h.sessions.Handle(key); run != nil {
		runID = run.ID
	}
	h.broker.Publish(key, broker.NewBestSolutionEvent(key, runID, best, true))
	metrics.RecordBestScore(key, best.Score.Hard, best.Score.Soft)
}

// onTerminated 记录指标、推送结束事件并归档
func (h *ScheduleHandler) onTerminated(key string, run *session.Handle, result *solver.Result) {
	metrics.RecordSolveRun(string(result.Reason), result.Feasible, h.acceptor, result.Steps, result.Duration)
	metrics.SetActiveRuns(h.sessions.Active())
	if result.ConstraintResult != nil {
		counts := make(map[string]int, len(result.ConstraintResult.Constraints))
		for _, c := range result.ConstraintResult.Constraints {
			counts[string(c.Type)] = c.Violations
		}
		metrics.SetConstraintViolations(counts)
	}

	evt := broker.Event{
		Type:     broker.EventSolvingEnded,
		Key:      key,
		RunID:    run.ID,
		Score:    result.Score,
		Feasible: result.Feasible,
		Reason:   string(result.Reason),
		Time:     time.Now(),
	}
	if result.Best != nil {
		evt.Assigned = result.Best.AssignedCount()
		evt.Departures = len(result.Best.Departures)
	}
	h.broker.Publish(key, evt)

	if h.runs == nil {
		return
	}
	id, err := uuid.Parse(run.ID)
	if err != nil {
		id = uuid.New()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.runs.Create(ctx, repository.NewRun(id, key, run.StartedAt, result)); err != nil {
		logger.Error().Err(err).Str("run_id", run.ID).Msg("求解记录归档失败")
	}
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}
