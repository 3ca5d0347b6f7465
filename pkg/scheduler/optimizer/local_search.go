package optimizer

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Config 局部搜索配置
type Config struct {
	Termination         Termination `yaml:"termination" json:"termination"`
	Acceptor            string      `yaml:"acceptor" json:"acceptor"`                         // hill_climbing/simulated_annealing
	InitialTemp         float64     `yaml:"initial_temp" json:"initial_temp"`                 // 模拟退火初始温度
	CoolingRate         float64     `yaml:"cooling_rate" json:"cooling_rate"`                 // 冷却速率
	HardWeight          int64       `yaml:"hard_weight" json:"hard_weight"`                   // 硬分折算为软分的倍数
	TabuSize            int         `yaml:"tabu_size" json:"tabu_size"`                       // 禁忌表大小
	NeighborhoodSize    int         `yaml:"neighborhood_size" json:"neighborhood_size"`       // 每步评估的移动数
	ExhaustiveThreshold int         `yaml:"exhaustive_threshold" json:"exhaustive_threshold"` // 邻域规模不超过该值时穷举
	Seed                uint64      `yaml:"seed" json:"seed"`
	Workers             int         `yaml:"workers" json:"workers"` // 并行岛屿数
}

// DefaultConfig 默认优化配置
func DefaultConfig() *Config {
	return &Config{
		Termination:         DefaultTermination(),
		Acceptor:            AcceptorSimulatedAnnealing,
		InitialTemp:         100.0,
		CoolingRate:         0.999,
		HardWeight:          1000,
		TabuSize:            50,
		NeighborhoodSize:    20,
		ExhaustiveThreshold: 2000,
		Seed:                42,
		Workers:             1,
	}
}

// BestSolutionFunc 发现更优解时的回调
type BestSolutionFunc func(best *model.Schedule)

// Result 局部搜索结果
type Result struct {
	Best     *model.Schedule   `json:"-"`
	Score    score.Score       `json:"score"`
	Steps    int64             `json:"steps"`
	Accepted int64             `json:"accepted"`
	Reason   TerminationReason `json:"reason"`
	Duration time.Duration     `json:"duration"`
}

// LocalSearch 局部搜索优化器
// 单个实例只在一个协程中使用
type LocalSearch struct {
	config   *Config
	acceptor Acceptor
	tabuList *TabuList
	rng      *rand.Rand
	logger   *logger.SolverLogger
}

// NewLocalSearch 创建局部搜索优化器
func NewLocalSearch(config *Config) *LocalSearch {
	if config == nil {
		config = DefaultConfig()
	}
	return &LocalSearch{
		config:   config,
		acceptor: NewAcceptor(config),
		tabuList: NewTabuList(config.TabuSize),
		rng:      rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		logger:   logger.NewSolverLogger(),
	}
}

// WithLogger 替换日志器
func (o *LocalSearch) WithLogger(l *logger.SolverLogger) *LocalSearch {
	o.logger = l
	return o
}

// Acceptor 当前接受准则
func (o *LocalSearch) Acceptor() Acceptor {
	return o.acceptor
}

// Run 从评分器的当前分配开始搜索，直到终止条件满足
// 每次严格改进都会调用 onBest，返回的 Best 是搜索过程中的最优快照
func (o *LocalSearch) Run(ctx context.Context, dir *constraint.Director, onBest BestSolutionFunc) Result {
	p := &progress{start: time.Now()}
	best := dir.Snapshot(model.SolverSolvingActive)
	result := Result{Best: best, Score: best.Score}

	selector := NewSelector(dir.Schedule(), o.config.ExhaustiveThreshold, o.rng)
	limit := o.config.NeighborhoodSize
	if f, ok := selector.(interface{ finite() bool }); ok && f.finite() {
		limit = 0
	}

	// 0 步或已取消时直接返回初始解
	reason := o.config.Termination.check(ctx, p)

	for reason == ReasonNone {
		move, delta, seen := o.pickMove(dir, selector, limit, best.Score)
		if seen == 0 {
			reason = ReasonNoMoves
			break
		}

		p.steps++
		if move != nil && o.acceptor.Accept(delta, o.rng) {
			undo := dir.Apply(move)
			if u, ok := undo.(Move); ok {
				o.tabuList.Add(u.Key())
			}
			result.Accepted++

			if dir.Score().BetterThan(best.Score) {
				best = dir.Snapshot(model.SolverSolvingActive)
				p.sinceImprove = 0
				o.logger.NewBestScore(p.steps, best.Score.String())
				if onBest != nil {
					onBest(best)
				}
			} else {
				p.sinceImprove++
			}
		} else {
			p.sinceImprove++
		}
		o.acceptor.StepEnded()

		reason = o.config.Termination.check(ctx, p)
	}

	result.Best = best
	result.Score = best.Score
	result.Steps = p.steps
	result.Reason = reason
	result.Duration = time.Since(p.start)
	o.logger.PhaseEnded("local_search", p.steps, best.Score.String(), result.Duration)
	return result
}

// pickMove 从邻域中选出得分变化最好的非禁忌移动
// 禁忌移动若能超过历史最优仍可选（特赦准则）
// seen 为评估过的可执行移动数，全部被禁忌时返回的移动为 nil
func (o *LocalSearch) pickMove(dir *constraint.Director, selector MoveSelector, limit int, bestScore score.Score) (Move, score.Score, int) {
	var chosen Move
	var chosenDelta score.Score
	seen := 0

	for m := range selector.Moves(dir) {
		if limit > 0 && seen >= limit {
			break
		}
		seen++

		delta := dir.EvaluateDelta(m)
		if o.tabuList.Contains(m.Key()) && !dir.Score().Add(delta).BetterThan(bestScore) {
			continue
		}
		if chosen == nil || delta.BetterThan(chosenDelta) {
			chosen, chosenDelta = m, delta
		}
	}

	return chosen, chosenDelta, seen
}
