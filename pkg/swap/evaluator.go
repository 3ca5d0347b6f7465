// Package swap 提供发车改派/互换的评估与推荐
package swap

import (
	"fmt"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// Evaluator 改派评估器，不修改输入方案
type Evaluator struct {
	manager *constraint.Manager
}

// NewEvaluator 创建改派评估器
func NewEvaluator(manager *constraint.Manager) *Evaluator {
	return &Evaluator{manager: manager}
}

// Request 改派请求
// SwapWith 非空时交换两个发车的列车，否则把发车改派给 TrainID（为空表示取消分配）
type Request struct {
	DepartureID model.DepartureID  `json:"departure_id"`
	TrainID     *model.TrainID     `json:"train_id,omitempty"`
	SwapWith    *model.DepartureID `json:"swap_with,omitempty"`
}

// Evaluation 改派评估结果
type Evaluation struct {
	Move           string      `json:"move"`
	Feasible       bool        `json:"feasible"` // 修改后仍满足全部硬约束
	Before         score.Score `json:"before"`
	After          score.Score `json:"after"`
	Delta          score.Score `json:"delta"`
	Improves       bool        `json:"improves"`
	Issues         []Issue     `json:"issues"` // 涉及被修改发车的违反
	Recommendation string      `json:"recommendation"`
}

// Issue 评估发现的问题
type Issue struct {
	Type       constraint.Type     `json:"type"`
	Severity   string              `json:"severity"` // error/warning
	Message    string              `json:"message"`
	Departures []model.DepartureID `json:"departures,omitempty"`
}

// Evaluate 评估改派或互换对得分的影响
func (e *Evaluator) Evaluate(s *model.Schedule, req *Request) (*Evaluation, error) {
	dir := constraint.NewDirector(e.manager, s.Clone())

	move, touched, err := buildMove(dir, req)
	if err != nil {
		return nil, err
	}
	return e.evaluate(dir, move, touched), nil
}

// evaluate 应用移动、收集违反详情后撤销
func (e *Evaluator) evaluate(dir *constraint.Director, move optimizer.Move, touched []model.DepartureID) *Evaluation {
	before := dir.Score()
	result := &Evaluation{
		Move:   describe(dir, move),
		Before: before,
		Issues: make([]Issue, 0),
	}

	undo := dir.Apply(move)
	after := dir.Score()
	violations := e.manager.Evaluate(dir.Context())
	dir.Apply(undo)

	result.After = after
	result.Delta = after.Sub(before)
	result.Feasible = after.IsFeasible()
	result.Improves = after.BetterThan(before)

	for _, v := range append(violations.HardViolations, violations.SoftViolations...) {
		if !involves(v.DepartureIDs, touched) {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			Type:       v.ConstraintType,
			Severity:   v.Severity,
			Message:    v.Message,
			Departures: v.DepartureIDs,
		})
	}

	result.Recommendation = generateRecommendation(result)
	return result
}

// buildMove 把请求转换为移动，返回被修改的发车
func buildMove(dir *constraint.Director, req *Request) (optimizer.Move, []model.DepartureID, error) {
	index := departureIndex(dir)

	i, ok := index[req.DepartureID]
	if !ok {
		return nil, nil, errors.NotFound("departure", fmt.Sprint(req.DepartureID))
	}

	if req.SwapWith != nil {
		j, ok := index[*req.SwapWith]
		if !ok {
			return nil, nil, errors.NotFound("departure", fmt.Sprint(*req.SwapWith))
		}
		move := optimizer.SwapMove{Left: i, Right: j}
		if !move.IsDoable(dir) {
			return nil, nil, errors.InvalidInput("swap_with", "两个发车的列车相同，互换没有意义")
		}
		return move, []model.DepartureID{req.DepartureID, *req.SwapWith}, nil
	}

	ref := model.Unassigned()
	if req.TrainID != nil {
		ref = model.AssignTrain(*req.TrainID)
		if !dir.Context().InFleet(*req.TrainID) {
			return nil, nil, errors.NotFound("train", fmt.Sprint(*req.TrainID))
		}
	}
	move := optimizer.ReassignMove{Departure: i, Train: ref}
	if !move.IsDoable(dir) {
		return nil, nil, errors.InvalidInput("train_id", "发车已分配给该列车")
	}
	return move, []model.DepartureID{req.DepartureID}, nil
}

func departureIndex(dir *constraint.Director) map[model.DepartureID]int {
	idx := make(map[model.DepartureID]int, dir.Len())
	for i := 0; i < dir.Len(); i++ {
		idx[dir.Departure(i).ID] = i
	}
	return idx
}

// describe 以发车 ID 描述移动
func describe(dir *constraint.Director, move optimizer.Move) string {
	switch m := move.(type) {
	case optimizer.ReassignMove:
		d := dir.Departure(m.Departure)
		return fmt.Sprintf("departure %d: %s -> %s", d.ID, d.Train, m.Train)
	case optimizer.SwapMove:
		return fmt.Sprintf("swap departure %d <-> %d", dir.Departure(m.Left).ID, dir.Departure(m.Right).ID)
	default:
		return move.String()
	}
}

func involves(ids, touched []model.DepartureID) bool {
	for _, id := range ids {
		for _, t := range touched {
			if id == t {
				return true
			}
		}
	}
	return false
}

// generateRecommendation 生成建议
func generateRecommendation(result *Evaluation) string {
	switch {
	case !result.Feasible && result.Before.IsFeasible():
		return "不建议修改：会破坏硬约束"
	case result.Improves:
		return "建议修改：得分提高 " + result.Delta.String()
	case result.Delta.IsZero():
		return "修改不影响得分"
	default:
		return "不建议修改：得分下降 " + result.Delta.String()
	}
}
