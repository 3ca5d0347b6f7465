package builtin

import (
	"fmt"
	"time"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// NoDoubleBookingConstraint 同一列车不能在短时间内出现在两个不同车站
type NoDoubleBookingConstraint struct {
	*BaseConstraint
	window time.Duration
}

// NewNoDoubleBookingConstraint 创建防重复占用约束
func NewNoDoubleBookingConstraint(window time.Duration) *NoDoubleBookingConstraint {
	return &NoDoubleBookingConstraint{
		BaseConstraint: NewBaseConstraint("列车不可重复占用", constraint.TypeNoDoubleBooking, constraint.CategoryHard, 1),
		window:         window,
	}
}

// Window 冲突时间窗口
func (c *NoDoubleBookingConstraint) Window() time.Duration {
	return c.window
}

// ScorePair 两个发车间隔严格小于窗口且车站不同时扣 1 硬分
// 同一车站无论间隔多少都不冲突
func (c *NoDoubleBookingConstraint) ScorePair(_ *constraint.Context, a, b *model.Departure) score.Score {
	if a.StationID == b.StationID {
		return score.Zero
	}
	if model.AbsDuration(a.Time.Sub(b.Time)) >= c.window {
		return score.Zero
	}
	return score.OfHard(-int64(c.weight))
}

// Evaluate 评估约束
func (c *NoDoubleBookingConstraint) Evaluate(ctx *constraint.Context) (score.Score, []constraint.ViolationDetail) {
	return evaluatePairs(ctx, c, c.BaseConstraint, func(a, b *model.Departure) string {
		return fmt.Sprintf("列车 %d 于 %s 在车站 %d、%s 在车站 %d，间隔不足 %v",
			a.Train.ID, a.Time, a.StationID, b.Time, b.StationID, c.window)
	})
}
