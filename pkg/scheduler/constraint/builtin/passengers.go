package builtin

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// EmptyTrainConstraint 避免空车发车
type EmptyTrainConstraint struct {
	*BaseConstraint
}

// NewEmptyTrainConstraint 创建空车约束
func NewEmptyTrainConstraint(weight int64) *EmptyTrainConstraint {
	return &EmptyTrainConstraint{
		BaseConstraint: NewBaseConstraint("避免空车", constraint.TypeEmptyTrain, constraint.CategorySoft, int(weight)),
	}
}

// ScoreDeparture 已分配且人数为 0 时扣分
func (c *EmptyTrainConstraint) ScoreDeparture(_ *constraint.Context, d *model.Departure) score.Score {
	if !d.IsAssigned() || d.Passengers != 0 {
		return score.Zero
	}
	return score.OfSoft(-int64(c.weight))
}

// Evaluate 评估约束
func (c *EmptyTrainConstraint) Evaluate(ctx *constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return evaluateDepartures(ctx, c, c.BaseConstraint, func(d *model.Departure) string {
		return fmt.Sprintf("发车 %d（车站 %d %s）无乘客", d.ID, d.StationID, d.Time)
	})
}

// PassengerPickupConstraint 奖励载客
type PassengerPickupConstraint struct {
	*BaseConstraint
}

// NewPassengerPickupConstraint 创建载客奖励，weight 为每位乘客的得分
func NewPassengerPickupConstraint(weight int64) *PassengerPickupConstraint {
	return &PassengerPickupConstraint{
		BaseConstraint: NewBaseConstraint("载客奖励", constraint.TypePassengerPickup, constraint.CategorySoft, int(weight)),
	}
}

// ScoreDeparture 已分配且人数为正时按人数加分
func (c *PassengerPickupConstraint) ScoreDeparture(_ *constraint.Context, d *model.Departure) score.Score {
	if !d.IsAssigned() || d.Passengers <= 0 {
		return score.Zero
	}
	return score.OfSoft(int64(d.Passengers * c.weight))
}

// Evaluate 评估约束，奖励不计入违反详情
func (c *PassengerPickupConstraint) Evaluate(ctx *constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return evaluateDepartures(ctx, c, c.BaseConstraint, nil)
}
