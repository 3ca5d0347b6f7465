package builtin

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// TrainCapacityConstraint 发车人数不能超过列车容量
type TrainCapacityConstraint struct {
	*BaseConstraint
}

// NewTrainCapacityConstraint 创建容量约束
func NewTrainCapacityConstraint() *TrainCapacityConstraint {
	return &TrainCapacityConstraint{
		BaseConstraint: NewBaseConstraint("列车容量", constraint.TypeTrainCapacity, constraint.CategoryHard, 1),
	}
}

// overage 超载人数
func overage(ctx *constraint.Context, d *model.Departure) int {
	if !d.IsAssigned() {
		return 0
	}
	t := ctx.Train(d.Train.ID)
	if t == nil || d.Passengers <= t.Capacity {
		return 0
	}
	return d.Passengers - t.Capacity
}

// ScoreDeparture 超载多少人扣多少硬分
func (c *TrainCapacityConstraint) ScoreDeparture(ctx *constraint.Context, d *model.Departure) score.Score {
	if over := overage(ctx, d); over > 0 {
		return score.OfHard(-int64(over * c.weight))
	}
	return score.Zero
}

// Evaluate 评估约束
func (c *TrainCapacityConstraint) Evaluate(ctx *constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return evaluateDepartures(ctx, c, c.BaseConstraint, func(d *model.Departure) string {
		return fmt.Sprintf("发车 %d 预计 %d 人，列车 %d 容量 %d",
			d.ID, d.Passengers, d.Train.ID, ctx.Train(d.Train.ID).Capacity)
	})
}
