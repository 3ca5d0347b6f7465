package optimizer

import (
	"iter"
	"math/rand/v2"

	"github.com/paiban/rollingstock/pkg/model"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint"
)

// MoveSelector 邻域生成器
// 每次调用 Moves 返回一个全新的惰性序列，只产出可执行的移动
type MoveSelector interface {
	Moves(d *constraint.Director) iter.Seq[Move]
}

// ExhaustiveSelector 按固定顺序枚举全部改派与交换
type ExhaustiveSelector struct{}

// Moves 先枚举改派，再枚举 i<j 的交换
func (ExhaustiveSelector) Moves(d *constraint.Director) iter.Seq[Move] {
	return func(yield func(Move) bool) {
		trains := d.Trains()
		for i := 0; i < d.Len(); i++ {
			for _, t := range trains {
				m := ReassignMove{Departure: i, Train: model.AssignTrain(t.ID)}
				if m.IsDoable(d) && !yield(m) {
					return
				}
			}
		}
		for i := 0; i < d.Len(); i++ {
			for j := i + 1; j < d.Len(); j++ {
				m := SwapMove{Left: i, Right: j}
				if m.IsDoable(d) && !yield(m) {
					return
				}
			}
		}
	}
}

// finite 可以完整遍历的选择器
func (ExhaustiveSelector) finite() bool { return true }

// maxRandomAttempts 连续抽到不可执行移动的上限，超过后结束序列
const maxRandomAttempts = 256

// RandomSelector 均匀随机抽样，序列无界
type RandomSelector struct {
	rng       *rand.Rand
	swapRatio float64
}

// NewRandomSelector 创建随机选择器
func NewRandomSelector(rng *rand.Rand) *RandomSelector {
	return &RandomSelector{rng: rng, swapRatio: 0.5}
}

// Moves 随机产出改派或交换
func (s *RandomSelector) Moves(d *constraint.Director) iter.Seq[Move] {
	return func(yield func(Move) bool) {
		n := d.Len()
		trains := d.Trains()
		if n == 0 || len(trains) == 0 {
			return
		}
		misses := 0
		for misses < maxRandomAttempts {
			var m Move
			if n > 1 && s.rng.Float64() < s.swapRatio {
				m = SwapMove{Left: s.rng.IntN(n), Right: s.rng.IntN(n)}
			} else {
				t := trains[s.rng.IntN(len(trains))]
				m = ReassignMove{Departure: s.rng.IntN(n), Train: model.AssignTrain(t.ID)}
			}
			if !m.IsDoable(d) {
				misses++
				continue
			}
			misses = 0
			if !yield(m) {
				return
			}
		}
	}
}

// CandidateCount 邻域规模：改派 n*t 加交换 n*(n-1)/2
func CandidateCount(s *model.Schedule) int {
	n := len(s.Departures)
	return n*len(s.Trains) + n*(n-1)/2
}

// NewSelector 小规模问题穷举，否则随机抽样
func NewSelector(s *model.Schedule, threshold int, rng *rand.Rand) MoveSelector {
	if CandidateCount(s) <= threshold {
		return ExhaustiveSelector{}
	}
	return NewRandomSelector(rng)
}
