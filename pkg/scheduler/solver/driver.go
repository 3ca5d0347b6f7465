package solver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Phase 求解阶段
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseConstructing
	PhaseLocalSearch
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseConstructing:
		return "constructing"
	case PhaseLocalSearch:
		return "local_search"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrAlreadyUsed 求解器只能运行一次
var ErrAlreadyUsed = errors.New("solver: Solve called more than once")

// BestSolutionFunc 发现更优解时的回调，包括构造阶段的结果
type BestSolutionFunc = optimizer.BestSolutionFunc

// Result 求解结果
type Result struct {
	Best             *model.Schedule             `json:"-"`
	Score            score.Score                 `json:"score"`
	Feasible         bool                        `json:"feasible"`
	Construction     ConstructionResult          `json:"construction"`
	Steps            int64                       `json:"steps"`
	Accepted         int64                       `json:"accepted"`
	Reason           optimizer.TerminationReason `json:"reason"`
	Duration         time.Duration               `json:"duration"`
	ConstraintResult *constraint.Result          `json:"constraint_result,omitempty"`
}

// Solver 求解流程驱动：构造 -> 局部搜索 -> 终止
type Solver struct {
	manager *constraint.Manager
	config  *optimizer.Config
	logger  *logger.SolverLogger
	phase   atomic.Int32
}

// NewSolver 创建求解器
func NewSolver(manager *constraint.Manager, config *optimizer.Config) *Solver {
	if config == nil {
		config = optimizer.DefaultConfig()
	}
	return &Solver{
		manager: manager,
		config:  config,
		logger:  logger.NewSolverLogger(),
	}
}

// WithLogger 替换日志器
func (s *Solver) WithLogger(l *logger.SolverLogger) *Solver {
	s.logger = l
	return s
}

// Name 返回求解器名称
func (s *Solver) Name() string {
	return "FirstFit+LocalSearch"
}

// Phase 当前阶段
func (s *Solver) Phase() Phase {
	return Phase(s.phase.Load())
}

// Rescore 按求解器的约束重新计算 problem 的得分，返回带 status 的副本
// 客户端提交的得分被忽略
func (s *Solver) Rescore(problem *model.Schedule, status model.SolverStatus) *model.Schedule {
	return constraint.NewDirector(s.manager, problem.Clone()).Snapshot(status)
}

// Solve 求解，直接修改 problem 的分配
// 终止后求解器不可再用
func (s *Solver) Solve(ctx context.Context, problem *model.Schedule, onBest BestSolutionFunc) (*Result, error) {
	if !s.phase.CompareAndSwap(int32(PhaseUninitialized), int32(PhaseConstructing)) {
		return nil, ErrAlreadyUsed
	}
	defer s.phase.Store(int32(PhaseTerminated))

	start := time.Now()
	s.logger.StartSolving(s.Name(), len(problem.Trains), len(problem.Departures))

	dir := constraint.NewDirector(s.manager, problem)
	construction := NewFirstFit().WithLogger(s.logger).Construct(ctx, dir)

	constructed := dir.Snapshot(model.SolverSolvingActive)
	if onBest != nil {
		onBest(constructed)
	}

	s.phase.Store(int32(PhaseLocalSearch))
	var ls optimizer.Result
	if s.config.Workers > 1 {
		ls = optimizer.NewIslandOptimizer(s.config, s.manager, s.config.Workers).
			WithLogger(s.logger).
			Run(ctx, constructed, onBest)
	} else {
		ls = optimizer.NewLocalSearch(s.config).
			WithLogger(s.logger).
			Run(ctx, dir, onBest)
	}

	best := ls.Best
	if best == nil || constructed.Score.BetterThan(best.Score) {
		best = constructed
	}
	best = best.WithStatus(model.SolverNotSolving)

	result := &Result{
		Best:             best,
		Score:            best.Score,
		Feasible:         best.Score.IsFeasible() && best.AssignedCount() == len(best.Departures),
		Construction:     construction,
		Steps:            ls.Steps,
		Accepted:         ls.Accepted,
		Reason:           ls.Reason,
		Duration:         time.Since(start),
		ConstraintResult: s.manager.Evaluate(constraint.NewContext(best)),
	}

	s.logger.SolvingEnded(string(result.Reason), result.Steps, result.Duration, result.Score.String(), result.Feasible)
	return result, nil
}
