package swap

import (
	"fmt"
	"sort"

	"github.com/paiban/rollingstock/pkg/errors"
	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
	"github.com/paiban/rollingstock/pkg/scheduler/optimizer"
	"github.com/paiban/rollingstock/pkg/scheduler/score"
)

// DefaultRecommendLimit 默认推荐数量
const DefaultRecommendLimit = 5

// Recommender 为发车推荐列车
type Recommender struct {
	manager *constraint.Manager
}

// NewRecommender 创建推荐器
func NewRecommender(manager *constraint.Manager) *Recommender {
	return &Recommender{manager: manager}
}

// Recommendation 候选分配
type Recommendation struct {
	Train    model.TrainRef `json:"train"`
	Current  bool           `json:"current"` // 当前分配
	Score    score.Score    `json:"score"`   // 采用后的方案得分
	Delta    score.Score    `json:"delta"`
	Feasible bool           `json:"feasible"`
	Reason   string         `json:"reason"`
}

// Recommend 按采用后的得分从高到低列出候选列车，包含取消分配与当前分配
func (r *Recommender) Recommend(s *model.Schedule, departureID model.DepartureID, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}

	dir := constraint.NewDirector(r.manager, s.Clone())
	i, ok := departureIndex(dir)[departureID]
	if !ok {
		return nil, errors.NotFound("departure", fmt.Sprint(departureID))
	}

	base := dir.Score()
	current := dir.TrainOf(i)

	candidates := make([]model.TrainRef, 0, len(dir.Trains())+1)
	for _, t := range dir.Trains() {
		candidates = append(candidates, model.AssignTrain(t.ID))
	}
	candidates = append(candidates, model.Unassigned())

	result := make([]Recommendation, 0, len(candidates))
	for _, ref := range candidates {
		var delta score.Score
		if ref != current {
			delta = dir.EvaluateDelta(optimizer.ReassignMove{Departure: i, Train: ref})
		}
		after := base.Add(delta)
		result = append(result, Recommendation{
			Train:    ref,
			Current:  ref == current,
			Score:    after,
			Delta:    delta,
			Feasible: after.IsFeasible(),
			Reason:   reason(ref, current, delta, after),
		})
	}

	sort.SliceStable(result, func(a, b int) bool {
		if c := result[a].Score.Compare(result[b].Score); c != 0 {
			return c > 0
		}
		// 同分时优先保持当前分配，其次优先分配列车
		if result[a].Current != result[b].Current {
			return result[a].Current
		}
		return result[a].Train.Valid && !result[b].Train.Valid
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func reason(ref, current model.TrainRef, delta, after score.Score) string {
	switch {
	case ref == current:
		return "当前分配"
	case !after.IsFeasible():
		return "违反硬约束 " + after.String()
	case delta.IsZero():
		return "得分不变"
	case delta.Compare(score.Zero) > 0:
		return "得分提高 " + delta.String()
	default:
		return "得分下降 " + delta.String()
	}
}
