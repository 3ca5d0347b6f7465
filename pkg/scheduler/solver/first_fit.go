// Package solver 提供构造阶段与求解流程驱动
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
)

// ConstructionResult 构造阶段结果
type ConstructionResult struct {
	Assigned   int           `json:"assigned"`
	Unassigned int           `json:"unassigned"`
	Kept       int           `json:"kept"` // 保留的预分配
	Feasible   bool          `json:"feasible"`
	Duration   time.Duration `json:"duration"`
}

// FirstFit 首次适应构造器
// 按方案顺序处理发车，按车队顺序尝试列车，选第一个不与已分配发车成对冲突的列车
// 容量等单发车约束不参与选择，超载的发车照常分配并计入硬分
type FirstFit struct {
	logger *logger.SolverLogger
}

// NewFirstFit 创建首次适应构造器
func NewFirstFit() *FirstFit {
	return &FirstFit{logger: logger.NewSolverLogger()}
}

// WithLogger 替换日志器
func (f *FirstFit) WithLogger(l *logger.SolverLogger) *FirstFit {
	f.logger = l
	return f
}

// Name 返回构造器名称
func (f *FirstFit) Name() string {
	return "FirstFit"
}

// Construct 为未分配的发车选择列车，已分配的发车保持不变
// 找不到合适列车的发车保持未分配，并将结果标记为不可行
func (f *FirstFit) Construct(ctx context.Context, dir *constraint.Director) ConstructionResult {
	start := time.Now()
	result := ConstructionResult{Feasible: true}
	trains := dir.Trains()

	for i := 0; i < dir.Len(); i++ {
		if dir.TrainOf(i).Valid {
			result.Kept++
			continue
		}
		if ctx.Err() != nil {
			kept, open := countRemaining(dir, i)
			result.Kept += kept
			result.Unassigned += open
			result.Feasible = false
			break
		}

		placed := false
		for _, t := range trains {
			if dir.PairScore(i, t.ID).Hard >= 0 {
				dir.SetTrain(i, model.AssignTrain(t.ID))
				placed = true
				break
			}
		}

		if placed {
			result.Assigned++
			continue
		}

		result.Unassigned++
		result.Feasible = false
		dep := dir.Departure(i)
		f.logger.ConstraintViolation("first_fit", fmt.Sprintf("发车 %d（%s）无可用列车", dep.ID, dep.Time))
	}

	if !dir.Score().IsFeasible() {
		result.Feasible = false
	}
	result.Duration = time.Since(start)
	f.logger.PhaseEnded("construction", int64(result.Assigned), dir.Score().String(), result.Duration)
	return result
}

// countRemaining 统计下标 from 起已分配与未分配的发车数
func countRemaining(dir *constraint.Director, from int) (assigned, unassigned int) {
	for j := from; j < dir.Len(); j++ {
		if dir.TrainOf(j).Valid {
			assigned++
		} else {
			unassigned++
		}
	}
	return assigned, unassigned
}
