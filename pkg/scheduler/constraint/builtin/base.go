// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// CreateViolation 创建违反详情
func (c *BaseConstraint) CreateViolation(train model.TrainID, impact score.Score, message string, departures ...model.DepartureID) constraint.ViolationDetail {
	v := constraint.NewViolation(c, impact, message)
	v.TrainID = train
	v.DepartureIDs = departures
	return v
}

// evaluateDepartures 对所有已分配发车求和，explain 为非零得分生成说明
func evaluateDepartures(ctx *constraint.Context, c constraint.DepartureConstraint, base *BaseConstraint,
	explain func(d *model.Departure) string) (score.Score, []constraint.ViolationDetail) {
	var total score.Score
	var details []constraint.ViolationDetail
	for i := range ctx.Schedule.Departures {
		d := &ctx.Schedule.Departures[i]
		if !d.IsAssigned() {
			continue
		}
		s := c.ScoreDeparture(ctx, d)
		if s.IsZero() {
			continue
		}
		total = total.Add(s)
		if explain != nil {
			details = append(details, base.CreateViolation(d.Train.ID, s, explain(d), d.ID))
		}
	}
	return total, details
}

// evaluatePairs 对同一列车上的每一对发车求和
func evaluatePairs(ctx *constraint.Context, c constraint.PairConstraint, base *BaseConstraint,
	explain func(a, b *model.Departure) string) (score.Score, []constraint.ViolationDetail) {
	var total score.Score
	var details []constraint.ViolationDetail
	for train, deps := range ctx.DeparturesByTrain() {
		for i := 0; i < len(deps); i++ {
			for j := i + 1; j < len(deps); j++ {
				s := c.ScorePair(ctx, deps[i], deps[j])
				if s.IsZero() {
					continue
				}
				total = total.Add(s)
				details = append(details, base.CreateViolation(train, s, explain(deps[i], deps[j]), deps[i].ID, deps[j].ID))
			}
		}
	}
	return total, details
}

// evaluateTrains 对车队中每列车求和
func evaluateTrains(ctx *constraint.Context, c constraint.TrainConstraint, base *BaseConstraint,
	explain func(train model.TrainID, deps []*model.Departure) string) (score.Score, []constraint.ViolationDetail) {
	var total score.Score
	var details []constraint.ViolationDetail
	groups := ctx.DeparturesByTrain()
	for _, t := range ctx.Schedule.Trains {
		s := c.ScoreTrain(ctx, t.ID, groups[t.ID])
		if s.IsZero() {
			continue
		}
		total = total.Add(s)
		details = append(details, base.CreateViolation(t.ID, s, explain(t.ID, groups[t.ID])))
	}
	return total, details
}
