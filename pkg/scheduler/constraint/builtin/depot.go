package builtin

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// DepotReturnConstraint 列车最后一个发车应在其车辆段所在车站
type DepotReturnConstraint struct {
	*BaseConstraint
}

// NewDepotReturnConstraint 创建回段约束，权重为 0 时不产生任何得分
func NewDepotReturnConstraint(weight int64) *DepotReturnConstraint {
	return &DepotReturnConstraint{
		BaseConstraint: NewBaseConstraint("列车回段", constraint.TypeDepotReturn, constraint.CategorySoft, int(weight)),
	}
}

// lastDeparture 时间最晚的发车，同一时刻取 ID 较大者
func lastDeparture(deps []*model.Departure) *model.Departure {
	var last *model.Departure
	for _, d := range deps {
		if last == nil || d.Time > last.Time || (d.Time == last.Time && d.ID > last.ID) {
			last = d
		}
	}
	return last
}

// ScoreTrain 最后一个发车不在车辆段车站则扣分
func (c *DepotReturnConstraint) ScoreTrain(ctx *constraint.Context, train model.TrainID, deps []*model.Departure) score.Score {
	if c.weight == 0 || len(deps) == 0 {
		return score.Zero
	}
	depot := ctx.Depot(train)
	if depot == nil {
		return score.Zero
	}
	if last := lastDeparture(deps); last.StationID != depot.StationID {
		return score.OfSoft(-int64(c.weight))
	}
	return score.Zero
}

// Evaluate 评估约束
func (c *DepotReturnConstraint) Evaluate(ctx *constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return evaluateTrains(ctx, c, c.BaseConstraint, func(train model.TrainID, deps []*model.Departure) string {
		last := lastDeparture(deps)
		return fmt.Sprintf("列车 %d 最后停靠车站 %d，车辆段位于车站 %d",
			train, last.StationID, ctx.Depot(train).StationID)
	})
}
