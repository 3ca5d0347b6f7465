package optimizer

import (
	"context"
	"sync"

	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
)

// IslandOptimizer 岛屿模型并行优化器
// 多个岛屿从同一初始解出发，使用不同随机种子独立搜索，取全局最优
type IslandOptimizer struct {
	config      *Config
	manager     *constraint.Manager
	islandCount int
	logger      *logger.SolverLogger
}

// NewIslandOptimizer 创建岛屿模型优化器
func NewIslandOptimizer(config *Config, manager *constraint.Manager, islandCount int) *IslandOptimizer {
	if config == nil {
		config = DefaultConfig()
	}
	if islandCount < 2 {
		islandCount = 2
	}
	return &IslandOptimizer{
		config:      config,
		manager:     manager,
		islandCount: islandCount,
		logger:      logger.NewSolverLogger(),
	}
}

// WithLogger 替换日志器
func (io *IslandOptimizer) WithLogger(l *logger.SolverLogger) *IslandOptimizer {
	io.logger = l
	return io
}

// Island 岛屿（独立搜索）
type Island struct {
	ID        int
	Director  *constraint.Director
	Optimizer *LocalSearch
	Result    Result
}

// Run 并行运行全部岛屿
// onBest 只在全局最优被刷新时调用，调用是串行的
func (io *IslandOptimizer) Run(ctx context.Context, initial *model.Schedule, onBest BestSolutionFunc) Result {
	islands := make([]*Island, io.islandCount)
	for i := 0; i < io.islandCount; i++ {
		cfg := *io.config
		cfg.Seed = io.config.Seed + uint64(i)
		islands[i] = &Island{
			ID:        i,
			Director:  constraint.NewDirector(io.manager, initial.Clone()),
			Optimizer: NewLocalSearch(&cfg).WithLogger(io.logger),
		}
	}

	var mu sync.Mutex
	globalBest := initial.Score
	publish := func(best *model.Schedule) {
		mu.Lock()
		defer mu.Unlock()
		if best.Score.BetterThan(globalBest) {
			globalBest = best.Score
			if onBest != nil {
				onBest(best)
			}
		}
	}

	// 并行运行岛屿
	var wg sync.WaitGroup
	for _, island := range islands {
		wg.Add(1)
		go func(island *Island) {
			defer wg.Done()
			island.Result = island.Optimizer.Run(ctx, island.Director, publish)
		}(island)
	}
	wg.Wait()

	// 找出全局最优解，得分相同时取编号小的岛屿
	best := islands[0].Result
	var steps, accepted int64
	for _, island := range islands {
		steps += island.Result.Steps
		accepted += island.Result.Accepted
		if island.Result.Score.BetterThan(best.Score) {
			best = island.Result
		}
	}
	best.Steps = steps
	best.Accepted = accepted

	io.logger.PhaseEnded("islands", steps, best.Score.String(), best.Duration)
	return best
}
