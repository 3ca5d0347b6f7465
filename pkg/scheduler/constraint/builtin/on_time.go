package builtin

import (
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// OnTimeArrivalConstraint 准点到达
// 模型中没有延误数据，始终为 0 分，注册后仅出现在约束汇总中
type OnTimeArrivalConstraint struct {
	*BaseConstraint
}

// NewOnTimeArrivalConstraint 创建准点约束
func NewOnTimeArrivalConstraint() *OnTimeArrivalConstraint {
	return &OnTimeArrivalConstraint{
		BaseConstraint: NewBaseConstraint("准点到达", constraint.TypeOnTimeArrival, constraint.CategorySoft, 0),
	}
}

// ScoreDeparture 始终为 0
func (c *OnTimeArrivalConstraint) ScoreDeparture(*constraint.Context, *model.Departure) score.Score {
	return score.Zero
}

// Evaluate 评估约束
func (c *OnTimeArrivalConstraint) Evaluate(*constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return score.Zero, nil
}
